package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"log"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"

	"github.com/gdamore/tcell/v2"
	"github.com/hajimehoshi/ebiten/v2"
	kinect "github.com/kevmo314/go-kinect"
	"github.com/kevmo314/go-kinect/pkg/decode"
	"github.com/kevmo314/go-kinect/pkg/formats"
	"github.com/rivo/tview"
)

const accelRate = 50

type Display struct {
	frame atomic.Value
}

func (g *Display) Update() error {
	return nil
}

func (g *Display) Draw(screen *ebiten.Image) {
	screen.DrawImage(g.frame.Load().(*ebiten.Image), &ebiten.DrawImageOptions{})
}

func (g *Display) Layout(outsideWidth, outsideHeight int) (int, int) {
	frame := g.frame.Load().(*ebiten.Image)
	return frame.Bounds().Dx(), frame.Bounds().Dy()
}

func main() {
	path := flag.String("path", "", "usbfs path of the camera, the first camera on the bus if empty")
	motorPath := flag.String("motor", "", "usbfs path of the motor")
	render := flag.Bool("render", false, "render the frames to screen (higher performance but requires a display)")

	flag.Parse()

	app := tview.NewApplication()

	logText := tview.NewTextView()
	logText.SetMaxLines(10).SetBorder(true).SetTitle("Log")

	opts := kinect.Options{Logger: slog.New(slog.NewTextHandler(logText, nil))}

	dev, err := openDevice(*path, *motorPath, opts)
	if err != nil {
		log.Fatalf("failed to open kinect: %v", err)
	}
	defer dev.Close()

	log.SetOutput(logText)

	streams := tview.NewList()
	streams.SetBorder(true).SetTitle("Streams")

	pixelFormats := tview.NewList().ShowSecondaryText(false)
	pixelFormats.SetBorder(true).SetTitle("Formats")

	motorControls := tview.NewList().ShowSecondaryText(false)
	motorControls.SetBorder(true).SetTitle("Motor")

	stats := tview.NewTextView()
	stats.SetBorder(true).SetTitle("Stats")

	accel := tview.NewTextView()
	accel.SetBorder(true).SetTitle("Accelerometer")

	preview := tview.NewImage()
	preview.SetColors(256).SetDithering(tview.DitheringNone).SetBorder(true).SetTitle("Preview")

	firstColumn := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(streams, 0, 1, true).
		AddItem(pixelFormats, 0, 2, false)

	secondColumn := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(motorControls, 0, 1, false).
		AddItem(stats, 0, 1, false)

	active := &atomic.Uint32{}

	// stream selects a stream and starts reading it, replacing whatever
	// stream was being read before.
	stream := func(kind kinect.StreamKind) {
		track := active.Add(1)
		for _, s := range []*kinect.Stream{dev.Color(), dev.Depth()} {
			if err := s.Close(); err != nil && !errors.Is(err, kinect.ErrNotOpen) {
				log.Printf("error closing %s: %s", s.Kind(), err)
			}
		}
		s := dev.Stream(kind)
		if err := s.Open(); err != nil {
			log.Printf("error opening %s: %s", kind, err)
			return
		}
		if *render {
			g := &Display{}
			go func() {
				for active.Load() == track {
					img, err := readImage(s)
					if err != nil {
						if errors.Is(err, kinect.ErrNotOpen) {
							return
						}
						log.Printf("error reading frame: %s", err)
						continue
					}
					if g.frame.Swap(ebiten.NewImageFromImage(img)) == nil {
						go func() {
							if err := ebiten.RunGame(g); err != nil {
								log.Printf("ebiten error: %s", err)
							}
						}()
					}
				}
			}()
		} else {
			go func() {
				t0 := time.Now().Add(-1 * time.Second)
				for active.Load() == track {
					img, err := readImage(s)
					if err != nil {
						if errors.Is(err, kinect.ErrNotOpen) {
							return
						}
						log.Printf("error reading frame: %s", err)
						continue
					}
					t1 := time.Now()
					if t1.Sub(t0) < 50*time.Millisecond {
						continue
					}
					t0 = t1
					w := 64
					h := img.Bounds().Dy() * w / img.Bounds().Dx()
					preview.SetImage(resize(img, w, h))
					app.ForceDraw()
				}
			}()
		}

		pixelFormats.Clear()
		choices := formats.ColorFormats()
		if kind == kinect.StreamDepth {
			choices = formats.DepthFormats()
		}
		for _, f := range choices {
			pixelFormats.AddItem(fmt.Sprintf("%s (%s)", f, f.FourCC()), "", 0, func() {
				if err := s.SetPixelFormat(f); err != nil {
					log.Printf("error setting format %s: %s", f, err)
				}
				app.SetFocus(streams)
			})
		}
		app.SetFocus(pixelFormats)
	}

	for _, kind := range []kinect.StreamKind{kinect.StreamColor, kinect.StreamDepth} {
		streams.AddItem(kind.String(), "", 0, func() { stream(kind) })
	}
	streams.AddItem("Stop", "close both streams", 0, func() {
		active.Add(1)
		dev.Color().Close()
		dev.Depth().Close()
	})

	if dev.HasMotor() {
		for led := kinect.LEDOff; led.Valid(); led++ {
			motorControls.AddItem("LED "+led.String(), "", 0, func() {
				if err := dev.SetLED(led); err != nil {
					log.Printf("led request failed %s", err)
				}
			})
		}
		motorControls.AddItem("Tilt", "", 0, func() {
			tiltInput := tview.NewInputField()

			tiltInput.SetLabel("Enter tilt in degrees (-31 to 31): ").
				SetFieldWidth(5).
				SetAcceptanceFunc(tview.InputFieldInteger).
				SetDoneFunc(func(key tcell.Key) {
					degrees, err := strconv.Atoi(tiltInput.GetText())
					if err != nil {
						log.Printf("failed parsing value %s", err)
						return
					}
					if err := dev.SetTilt(degrees); err != nil {
						log.Printf("tilt request failed %s", err)
					}
					secondColumn.RemoveItem(tiltInput)
					app.SetFocus(motorControls)
				})
			secondColumn.AddItem(tiltInput, 3, 0, false)
			app.SetFocus(tiltInput)
		})
		go pollAccelerometer(app, dev, accel)
	} else {
		motorControls.AddItem("no motor", "", 0, nil)
	}

	go func() {
		for range time.Tick(500 * time.Millisecond) {
			text := ""
			for _, s := range []*kinect.Stream{dev.Color(), dev.Depth()} {
				st := s.Stats()
				text += fmt.Sprintf("[%s] %s open=%v synced=%v\n  frames=%d delivered=%d dropped=%d isoc errors=%d\n  lost=%d resyncs=%d\n",
					st.Stream, st.Format, st.Open, st.Synced, st.Frames, st.Delivered, st.Dropped, st.IsocErrors,
					st.Packets.LostPackets, st.Packets.Resyncs)
			}
			app.QueueUpdateDraw(func() { stats.SetText(text) })
		}
	}()

	// Create the layout.

	flex := tview.NewFlex().
		AddItem(firstColumn, 0, 1, true).
		AddItem(secondColumn, 0, 1, false).
		AddItem(accel, 0, 1, false)

	if !*render {
		flex.AddItem(preview, 0, 3, false)
	}

	if err := app.SetRoot(tview.NewFlex().SetDirection(tview.FlexRow).AddItem(flex, 0, 1, true).AddItem(logText, 10, 0, false), true).Run(); err != nil {
		panic(err)
	}
}

func openDevice(path, motorPath string, opts kinect.Options) (*kinect.Device, error) {
	if path != "" {
		return kinect.OpenPath(path, motorPath, opts)
	}
	devices, err := kinect.OpenDevices(opts)
	if len(devices) == 0 {
		return nil, err
	}
	for _, d := range devices[1:] {
		d.Close()
	}
	return devices[0], nil
}

// readImage dequeues the next frame of s and copies it out of the image
// slot, which is reused once the next frame is dequeued.
func readImage(s *kinect.Stream) (image.Image, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	buf, err := s.Dequeue(ctx)
	if err != nil {
		return nil, err
	}
	mem := s.Mapping()
	if mem == nil {
		return nil, kinect.ErrNotOpen
	}
	img, err := decode.Image(s.PixelFormat(), mem[buf.Offset:buf.Offset+buf.BytesUsed])
	if err != nil {
		return nil, err
	}
	dst := image.NewRGBA(img.Bounds())
	draw.Copy(dst, image.Point{}, img, img.Bounds(), draw.Src, nil)
	return dst, nil
}

func pollAccelerometer(app *tview.Application, dev *kinect.Device, view *tview.TextView) {
	window := NewVibrationWindow(128, accelRate)
	for range time.Tick(time.Second / accelRate) {
		x, y, z, err := dev.Motor().AccelerometerMKS()
		if err != nil {
			log.Printf("accelerometer read failed %s", err)
			time.Sleep(time.Second)
			continue
		}
		window.Add(x, y, z)
		text := fmt.Sprintf("x=%6.2f y=%6.2f z=%6.2f m/s²\ntilt=%d led=%s\n\n", x, y, z, dev.Motor().Tilt(), dev.Motor().LED())
		if bins := window.Spectrum(); bins != nil {
			text += fmt.Sprintf("peak %.1f Hz\n%s", window.Peak(bins), Bars(bins, 16, 20))
		}
		app.QueueUpdateDraw(func() { view.SetText(text) })
	}
}

func resize(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
