package kinect

import (
	"github.com/kevmo314/go-kinect/pkg/formats"
	"github.com/kevmo314/go-kinect/pkg/transfers"
)

const (
	VendorID        = 0x045e
	CameraProductID = 0x02ae
	MotorProductID  = 0x02b0
)

const (
	// DefaultFramePoolSize is the number of raw frame buffers per stream.
	DefaultFramePoolSize = 3
	// DefaultImageSlots is the number of decoded image slots per stream.
	DefaultImageSlots = 2

	cameraInterface = 0
)

// StreamKind selects one of the two sensor streams.
type StreamKind int

const (
	StreamColor StreamKind = iota
	StreamDepth
)

func (k StreamKind) String() string {
	switch k {
	case StreamColor:
		return "rgb"
	case StreamDepth:
		return "depth"
	}
	return "unknown"
}

// ParseStreamKind accepts the names returned by StreamKind.String.
func ParseStreamKind(s string) (StreamKind, error) {
	switch s {
	case "rgb", "color":
		return StreamColor, nil
	case "depth":
		return StreamDepth, nil
	}
	return 0, ErrInvalidFormat
}

type register struct {
	reg, value uint16
}

type streamConfig struct {
	kind       StreamKind
	endpoint   uint8
	bufferSize int
	params     transfers.StreamParams
	format     formats.PixelFormat
	start      []register
	stop       []register
}

var streamConfigs = [...]streamConfig{
	StreamColor: {
		kind:       StreamColor,
		endpoint:   0x81,
		bufferSize: 1920,
		params:     transfers.StreamParams{Name: "rgb", FlagBase: 0x80, PacketSize: 1908, PacketsPerFrame: 162},
		format:     formats.PixelFormatRGB24,
		start: []register{
			{0x05, 0x00},
			{0x0c, 0x00},
			{0x0d, 0x01},
			{0x0e, 0x1e},
			{0x05, 0x01},
			{0x47, 0x00},
		},
		stop: []register{{0x05, 0x00}},
	},
	StreamDepth: {
		kind:       StreamDepth,
		endpoint:   0x82,
		bufferSize: 1760,
		params:     transfers.StreamParams{Name: "depth", FlagBase: 0x70, PacketSize: 1748, PacketsPerFrame: 242},
		format:     formats.PixelFormatDepthRGB24,
		start: []register{
			{0x06, 0x00},
			{0x12, 0x03},
			{0x13, 0x01},
			{0x14, 0x1e},
			{0x06, 0x02},
		},
		stop: []register{{0x06, 0x00}},
	},
}
