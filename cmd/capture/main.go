package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/image/bmp"

	kinect "github.com/kevmo314/go-kinect"
	"github.com/kevmo314/go-kinect/pkg/decode"
	"github.com/kevmo314/go-kinect/pkg/formats"
)

func main() {
	path := flag.String("path", "", "usbfs path of the camera, the first camera on the bus if empty")
	streamName := flag.String("stream", "rgb", "stream to capture: rgb or depth")
	formatName := flag.String("format", "", "pixel format, the stream default if empty")
	output := flag.String("output", "frame", "output filename prefix (will save as frame_N.<type>)")
	fileType := flag.String("type", "png", "output type: png, jpg, bmp or raw")
	count := flag.Int("count", 5, "number of frames to capture")
	useRead := flag.Bool("read", false, "copy frames with Read instead of dequeuing mapped buffers")
	timeout := flag.Duration("timeout", 5*time.Second, "time to wait for each frame")
	flag.Parse()

	kind, err := kinect.ParseStreamKind(*streamName)
	if err != nil {
		log.Fatalf("Unknown stream %q", *streamName)
	}

	var dev *kinect.Device
	if *path != "" {
		log.Printf("Opening camera at %s", *path)
		dev, err = kinect.OpenPath(*path, "", kinect.Options{FreeMotor: true})
	} else {
		var devices []*kinect.Device
		devices, err = kinect.OpenDevices(kinect.Options{FreeMotor: true})
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

	stream := dev.Stream(kind)
	if err := stream.Open(); err != nil {
		log.Fatalf("Failed to open %s stream: %v", kind, err)
	}
	if *formatName != "" {
		f, err := formats.ParsePixelFormat(*formatName)
		if err != nil {
			log.Fatalf("Invalid format: %v", err)
		}
		if err := stream.SetPixelFormat(f); err != nil {
			log.Fatalf("Failed to set format %s: %v", f, err)
		}
	}
	format := stream.PixelFormat()
	log.Printf("Capturing %d %s frames as %s", *count, kind, format)

	frame := make([]byte, format.ImageSize())
	for i := 0; i < *count; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		if *useRead {
			err = readFrame(ctx, stream, frame)
		} else {
			err = dequeueFrame(ctx, stream, frame)
		}
		cancel()
		if err != nil {
			log.Printf("Error reading frame %d: %v", i+1, err)
			continue
		}

		filename := fmt.Sprintf("%s_%d.%s", *output, i+1, *fileType)
		if err := save(filename, *fileType, format, frame); err != nil {
			log.Printf("Failed to save %s: %v", filename, err)
			continue
		}
		log.Printf("Saved %s", filename)
	}

	st := stream.Stats()
	log.Printf("Frames: %d delivered, %d dropped, %d lost packets", st.Delivered, st.Dropped, st.Packets.LostPackets)
}

// readFrame fills frame through the copying read path. Read returns at most
// len(p) bytes per call, so a frame may take several calls.
func readFrame(ctx context.Context, stream *kinect.Stream, frame []byte) error {
	for n := 0; n < len(frame); {
		m, err := stream.Read(ctx, frame[n:], false)
		if err != nil {
			return err
		}
		n += m
	}
	return nil
}

// dequeueFrame takes the next image slot and copies it out of the mapping.
func dequeueFrame(ctx context.Context, stream *kinect.Stream, frame []byte) error {
	buf, err := stream.Dequeue(ctx)
	if err != nil {
		return err
	}
	mem := stream.Mapping()
	if mem == nil {
		return kinect.ErrNotOpen
	}
	copy(frame, mem[buf.Offset:buf.Offset+buf.BytesUsed])
	return nil
}

func save(filename, fileType string, format formats.PixelFormat, frame []byte) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if fileType == "raw" {
		_, err = file.Write(frame)
		return err
	}

	img, err := decode.Image(format, frame)
	if err != nil {
		return err
	}
	return encode(file, fileType, img)
}

func encode(w io.Writer, fileType string, img image.Image) error {
	switch fileType {
	case "png":
		return png.Encode(w, img)
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "bmp":
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unknown output type %q", fileType)
}
