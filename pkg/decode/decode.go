package decode

import (
	"fmt"
	"io"

	"github.com/kevmo314/go-kinect/pkg/formats"
)

const (
	width  = formats.FrameWidth
	height = formats.FrameHeight

	// RawColorSize is the size of one Bayer mosaic frame.
	RawColorSize = width * height
	// RawDepthSize is the size of one frame of packed 11-bit depth samples.
	RawDepthSize = width * height * 11 / 8
)

// Decoder converts one raw sensor frame into a single output pixel format.
type Decoder interface {
	Format() formats.PixelFormat
	// Decode writes Format().ImageSize() bytes into dst.
	Decode(dst, raw []byte) error
}

type decoder struct {
	format  formats.PixelFormat
	rawSize int
	convert func(dst, raw []byte)
}

func (d *decoder) Format() formats.PixelFormat {
	return d.format
}

func (d *decoder) Decode(dst, raw []byte) error {
	if len(raw) < d.rawSize {
		return fmt.Errorf("raw frame is %d bytes, need %d: %w", len(raw), d.rawSize, io.ErrShortBuffer)
	}
	if len(dst) < d.format.ImageSize() {
		return fmt.Errorf("output buffer is %d bytes, need %d: %w", len(dst), d.format.ImageSize(), io.ErrShortBuffer)
	}
	d.convert(dst, raw)
	return nil
}

// NewDecoder returns the decoder for f. The selection happens once so that
// the per-frame path does not switch on the format.
func NewDecoder(f formats.PixelFormat) (Decoder, error) {
	switch f {
	case formats.PixelFormatRGB24:
		return &decoder{f, RawColorSize, BayerToRGB24}, nil
	case formats.PixelFormatRGB32:
		return &decoder{f, RawColorSize, BayerToRGB32}, nil
	case formats.PixelFormatBGR24:
		return &decoder{f, RawColorSize, BayerToBGR24}, nil
	case formats.PixelFormatBGR32:
		return &decoder{f, RawColorSize, BayerToBGR32}, nil
	case formats.PixelFormatUYVY:
		return &decoder{f, RawColorSize, BayerToUYVY}, nil
	case formats.PixelFormatYUYV:
		return &decoder{f, RawColorSize, BayerToYUYV}, nil
	case formats.PixelFormatDepthRGB24:
		return &depthDecoder{format: f, samples: make([]uint16, width*height), render: DepthToRGB24}, nil
	case formats.PixelFormatDepthRaw:
		return &depthDecoder{format: f, samples: make([]uint16, width*height), render: DepthToRaw}, nil
	}
	return nil, fmt.Errorf("no decoder for %v", f)
}

// depthDecoder keeps a scratch buffer for the unpacked samples, so a single
// instance must not be used from two goroutines at once.
type depthDecoder struct {
	format  formats.PixelFormat
	samples []uint16
	render  func(dst []byte, depth []uint16)
}

func (d *depthDecoder) Format() formats.PixelFormat {
	return d.format
}

func (d *depthDecoder) Decode(dst, raw []byte) error {
	if len(raw) < RawDepthSize {
		return fmt.Errorf("raw depth frame is %d bytes, need %d: %w", len(raw), RawDepthSize, io.ErrShortBuffer)
	}
	if len(dst) < d.format.ImageSize() {
		return fmt.Errorf("output buffer is %d bytes, need %d: %w", len(dst), d.format.ImageSize(), io.ErrShortBuffer)
	}
	UnpackDepth(d.samples, raw)
	d.render(dst, d.samples)
	return nil
}
