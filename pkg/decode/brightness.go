package decode

import "github.com/kevmo314/go-kinect/pkg/formats"

const (
	DefaultBrightness = 0x7f00
	brightnessMid     = 32767
)

// CorrectBrightness shifts the bytes of a decoded color frame by
// (brightness-32767)/256, saturating at 0 and 255. Packed YUV formats only
// have their luma bytes touched. Depth formats are left alone.
func CorrectBrightness(img []byte, f formats.PixelFormat, brightness int) {
	start, step := 0, 1
	switch f {
	case formats.PixelFormatRGB24, formats.PixelFormatBGR24, formats.PixelFormatRGB32, formats.PixelFormatBGR32:
	case formats.PixelFormatUYVY:
		start, step = 1, 2
	case formats.PixelFormatYUYV:
		start, step = 0, 2
	default:
		return
	}
	n := min(f.ImageSize(), len(img))

	if brightness >= brightnessMid {
		x := uint8((brightness - brightnessMid) / 256)
		if x == 0 {
			return
		}
		for i := start; i < n; i += step {
			if int(img[i])+int(x) > 255 {
				img[i] = 255
			} else {
				img[i] += x
			}
		}
		return
	}

	x := uint8((brightnessMid - brightness) / 256)
	if x == 0 {
		return
	}
	for i := start; i < n; i += step {
		if x > img[i] {
			img[i] = 0
		} else {
			img[i] -= x
		}
	}
}
