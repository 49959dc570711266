package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"runtime"
	"sync"
	"time"

	kinect "github.com/kevmo314/go-kinect"
	"github.com/kevmo314/go-kinect/pkg/formats"
	"github.com/veandco/go-sdl2/sdl"
)

func main() {
	runtime.LockOSThread() // SDL requires main thread

	path := flag.String("path", "", "usbfs path of the camera, the first camera on the bus if empty")
	streamName := flag.String("stream", "rgb", "stream to show: rgb or depth")
	flag.Parse()

	kind, err := kinect.ParseStreamKind(*streamName)
	if err != nil {
		log.Fatalf("Unknown stream %q", *streamName)
	}

	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		log.Fatalf("Failed to init SDL: %v", err)
	}
	defer sdl.Quit()

	var dev *kinect.Device
	if *path != "" {
		dev, err = kinect.OpenPath(*path, "", kinect.Options{})
	} else {
		var devices []*kinect.Device
		devices, err = kinect.OpenDevices(kinect.Options{})
		if len(devices) > 0 {
			dev, err = devices[0], nil
			for _, d := range devices[1:] {
				d.Close()
			}
		}
	}
	if err != nil {
		log.Fatalf("Failed to open kinect: %v", err)
	}
	defer dev.Close()

	// YUYV maps straight onto the texture; depth is only available as RGB.
	stream := dev.Stream(kind)
	format := formats.PixelFormatYUYV
	if kind == kinect.StreamDepth {
		format = formats.PixelFormatDepthRGB24
	}
	if err := stream.Open(); err != nil {
		log.Fatalf("Failed to open %s stream: %v", kind, err)
	}
	if err := stream.SetPixelFormat(format); err != nil {
		log.Fatalf("Failed to set format: %v", err)
	}

	window, err := sdl.CreateWindow("Kinect "+kind.String(),
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		formats.FrameWidth, formats.FrameHeight, sdl.WINDOW_SHOWN)
	if err != nil {
		log.Fatalf("Failed to create window: %v", err)
	}
	defer window.Destroy()

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	defer renderer.Destroy()

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_IYUV,
		sdl.TEXTUREACCESS_STREAMING, formats.FrameWidth, formats.FrameHeight)
	if err != nil {
		log.Fatalf("Failed to create texture: %v", err)
	}
	defer texture.Destroy()

	frameChan := make(chan *Planes, 2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reader goroutine
	go func() {
		var lastLog time.Time
		var frameCount int

		for ctx.Err() == nil {
			buf, err := stream.Dequeue(ctx)
			if err != nil {
				if errors.Is(err, kinect.ErrNotOpen) || errors.Is(err, context.Canceled) {
					return
				}
				log.Printf("Failed to read frame: %v", err)
				continue
			}
			mem := stream.Mapping()
			if mem == nil {
				return
			}
			pix := mem[buf.Offset : buf.Offset+buf.BytesUsed]

			p := NewPlanes(formats.FrameWidth, formats.FrameHeight)
			if format == formats.PixelFormatYUYV {
				p.FromYUYV(pix, format.BytesPerLine())
			} else {
				p.FromRGB(pix, format.BytesPerLine(), format.BytesPerPixel())
			}
			select {
			case frameChan <- p:
			default:
			}

			frameCount++
			if time.Since(lastLog) >= time.Second {
				log.Printf("Capture FPS: %d (dropped %d)", frameCount, stream.Stats().Dropped)
				frameCount = 0
				lastLog = time.Now()
			}
		}
	}()

	var displayCount int
	var lastFPS time.Time
	var mu sync.Mutex
	var latestFrame *Planes

	go func() {
		for f := range frameChan {
			mu.Lock()
			latestFrame = f
			mu.Unlock()
		}
	}()

	running := true
	for running {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch event.(type) {
			case *sdl.QuitEvent:
				running = false
			}
		}

		mu.Lock()
		frame := latestFrame
		latestFrame = nil
		mu.Unlock()

		if frame != nil {
			texture.UpdateYUV(nil,
				frame.Y, frame.YStride,
				frame.U, frame.CStride,
				frame.V, frame.CStride)

			displayCount++
		}

		renderer.Clear()
		renderer.Copy(texture, nil, nil)
		renderer.Present()

		if time.Since(lastFPS) >= time.Second {
			log.Printf("Display FPS: %d", displayCount)
			displayCount = 0
			lastFPS = time.Now()
		}

		sdl.Delay(1)
	}
}
