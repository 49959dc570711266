package formats

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	FrameWidth  = 640
	FrameHeight = 480
)

type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatRGB24
	PixelFormatRGB32
	PixelFormatBGR24
	PixelFormatBGR32
	PixelFormatUYVY
	PixelFormatYUYV
	// PixelFormatDepthRGB24 is the false-color rendering of the depth stream.
	PixelFormatDepthRGB24
	// PixelFormatDepthRaw is the unpacked 11-bit depth as little-endian uint16.
	PixelFormatDepthRaw
)

// CompressionFormat is the media subtype GUID of a pixel format.
type CompressionFormat [16]byte

func (c CompressionFormat) String() string {
	return uuid.UUID(c).String()
}

var (
	CompressionFormatYUY2  = CompressionFormat(uuid.MustParse("32595559-0000-0010-8000-00AA00389B71"))
	CompressionFormatUYVY  = CompressionFormat(uuid.MustParse("59565955-0000-0010-8000-00AA00389B71"))
	CompressionFormatRGB24 = CompressionFormat(uuid.MustParse("E436EB7D-524F-11CE-9F53-0020AF0BA770"))
	CompressionFormatRGB32 = CompressionFormat(uuid.MustParse("E436EB7E-524F-11CE-9F53-0020AF0BA770"))
	CompressionFormatBGR3  = CompressionFormat(uuid.MustParse("33524742-0000-0010-8000-00AA00389B71"))
	CompressionFormatBGR4  = CompressionFormat(uuid.MustParse("34524742-0000-0010-8000-00AA00389B71"))
	CompressionFormatY16   = CompressionFormat(uuid.MustParse("20363159-0000-0010-8000-00AA00389B71"))
)

type formatInfo struct {
	name          string
	fourcc        string
	guid          CompressionFormat
	bytesPerPixel int
	depth         bool
}

var catalogue = map[PixelFormat]formatInfo{
	PixelFormatRGB24:      {"rgb24", "RGB3", CompressionFormatRGB24, 3, false},
	PixelFormatRGB32:      {"rgb32", "RGB4", CompressionFormatRGB32, 4, false},
	PixelFormatBGR24:      {"bgr24", "BGR3", CompressionFormatBGR3, 3, false},
	PixelFormatBGR32:      {"bgr32", "BGR4", CompressionFormatBGR4, 4, false},
	PixelFormatUYVY:       {"uyvy", "UYVY", CompressionFormatUYVY, 2, false},
	PixelFormatYUYV:       {"yuyv", "YUYV", CompressionFormatYUY2, 2, false},
	PixelFormatDepthRGB24: {"depth-rgb24", "RGB3", CompressionFormatRGB24, 3, true},
	PixelFormatDepthRaw:   {"depth-raw", "Y16 ", CompressionFormatY16, 2, true},
}

func (f PixelFormat) String() string {
	if info, ok := catalogue[f]; ok {
		return info.name
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

func (f PixelFormat) FourCC() string {
	return catalogue[f].fourcc
}

func (f PixelFormat) GUID() CompressionFormat {
	return catalogue[f].guid
}

func (f PixelFormat) BytesPerPixel() int {
	return catalogue[f].bytesPerPixel
}

// IsDepth reports whether the format belongs to the depth stream.
func (f PixelFormat) IsDepth() bool {
	return catalogue[f].depth
}

func (f PixelFormat) Valid() bool {
	_, ok := catalogue[f]
	return ok
}

// ImageSize is the number of bytes one decoded frame occupies.
func (f PixelFormat) ImageSize() int {
	return FrameWidth * FrameHeight * f.BytesPerPixel()
}

// BytesPerLine is the row stride of a decoded frame.
func (f PixelFormat) BytesPerLine() int {
	return FrameWidth * f.BytesPerPixel()
}

// MaxImageSize bounds every format's decoded frame.
const MaxImageSize = FrameWidth * FrameHeight * 4

// ParsePixelFormat accepts the String() names, case-insensitively.
func ParsePixelFormat(s string) (PixelFormat, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for f, info := range catalogue {
		if info.name == s {
			return f, nil
		}
	}
	return PixelFormatUnknown, fmt.Errorf("unknown pixel format %q", s)
}

// ColorFormats lists the formats the color stream can produce.
func ColorFormats() []PixelFormat {
	return []PixelFormat{PixelFormatRGB24, PixelFormatRGB32, PixelFormatBGR24, PixelFormatBGR32, PixelFormatUYVY, PixelFormatYUYV}
}

// DepthFormats lists the formats the depth stream can produce.
func DepthFormats() []PixelFormat {
	return []PixelFormat{PixelFormatDepthRGB24, PixelFormatDepthRaw}
}
