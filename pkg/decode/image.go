package decode

import (
	"fmt"
	"image"
	"image/color"

	"github.com/kevmo314/go-kinect/pkg/formats"
)

// RGB is an in-memory image of packed red, green, blue pixels. Step is 3 for
// RGB24 and 4 for RGB32, whose fourth byte is ignored.
type RGB struct {
	// Pix holds the image's pixels. The pixel at (x, y) starts at
	// Pix[(y-Rect.Min.Y)*Stride + (x-Rect.Min.X)*Step].
	Pix []uint8
	// Stride is the Pix stride (in bytes) between vertically adjacent pixels.
	Stride int
	Step   int
	// Rect is the image's bounds.
	Rect image.Rectangle
}

var _ image.Image = &RGB{}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) At(x, y int) color.Color {
	return p.RGBAAt(x, y)
}

func (p *RGB) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3] // Small cap improves performance, see https://golang.org/issue/27857
	return color.RGBA{s[0], s[1], s[2], 0xff}
}

// PixOffset returns the index of the first element of Pix that corresponds to
// the pixel at (x, y).
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*p.Step
}

// SubImage returns an image representing the portion of the image p visible
// through r. The returned value shares pixels with the original image.
func (p *RGB) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(p.Rect)
	// If r1 and r2 are Rectangles, r1.Intersect(r2) is not guaranteed to be inside
	// either r1 or r2 if the intersection is empty. Without explicitly checking for
	// this, the Pix[i:] expression below can panic.
	if r.Empty() {
		return &RGB{Step: p.Step}
	}
	i := p.PixOffset(r.Min.X, r.Min.Y)
	return &RGB{
		Pix:    p.Pix[i:],
		Stride: p.Stride,
		Step:   p.Step,
		Rect:   r,
	}
}

// BGR is RGB with the red and blue bytes swapped.
type BGR struct {
	Pix    []uint8
	Stride int
	Step   int
	Rect   image.Rectangle
}

var _ image.Image = &BGR{}

func (p *BGR) ColorModel() color.Model { return color.RGBAModel }

func (p *BGR) Bounds() image.Rectangle { return p.Rect }

func (p *BGR) At(x, y int) color.Color {
	return p.RGBAAt(x, y)
}

func (p *BGR) RGBAAt(x, y int) color.RGBA {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.RGBA{s[2], s[1], s[0], 0xff}
}

func (p *BGR) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*p.Step
}

// YUV422 is a packed 4:2:2 image. Each pair of pixels shares a U sample on
// the even column and a V sample on the odd column.
type YUV422 struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
	// LumaFirst selects YUYV byte order over UYVY.
	LumaFirst bool
}

var _ image.Image = &YUV422{}

func (p *YUV422) ColorModel() color.Model { return color.YCbCrModel }

func (p *YUV422) Bounds() image.Rectangle { return p.Rect }

func (p *YUV422) At(x, y int) color.Color {
	return p.YCbCrAt(x, y)
}

func (p *YUV422) YCbCrAt(x, y int) color.YCbCr {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.YCbCr{}
	}
	yi, ci := 1, 0
	if p.LumaFirst {
		yi, ci = 0, 1
	}
	row := (y - p.Rect.Min.Y) * p.Stride
	px := x - p.Rect.Min.X
	even := row + (px&^1)*2
	return color.YCbCr{
		Y:  p.Pix[row+px*2+yi],
		Cb: p.Pix[even+ci],
		Cr: p.Pix[even+2+ci],
	}
}

// Depth exposes unpacked little-endian depth samples as a 16-bit grayscale
// image. Samples only use the low 11 bits.
type Depth struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

var _ image.Image = &Depth{}

func (p *Depth) ColorModel() color.Model { return color.Gray16Model }

func (p *Depth) Bounds() image.Rectangle { return p.Rect }

func (p *Depth) At(x, y int) color.Color {
	return color.Gray16{Y: p.Sample(x, y) << 5}
}

// Sample returns the raw 11-bit value at (x, y).
func (p *Depth) Sample(x, y int) uint16 {
	if !(image.Point{x, y}.In(p.Rect)) {
		return 0
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*2
	return uint16(p.Pix[i]) | uint16(p.Pix[i+1])<<8
}

// Image wraps a decoded frame of format f without copying it.
func Image(f formats.PixelFormat, pix []byte) (image.Image, error) {
	if len(pix) < f.ImageSize() || !f.Valid() {
		return nil, fmt.Errorf("cannot wrap %d bytes as %v", len(pix), f)
	}
	rect := image.Rect(0, 0, width, height)
	stride := f.BytesPerLine()
	switch f {
	case formats.PixelFormatRGB24, formats.PixelFormatRGB32, formats.PixelFormatDepthRGB24:
		return &RGB{Pix: pix, Stride: stride, Step: f.BytesPerPixel(), Rect: rect}, nil
	case formats.PixelFormatBGR24, formats.PixelFormatBGR32:
		return &BGR{Pix: pix, Stride: stride, Step: f.BytesPerPixel(), Rect: rect}, nil
	case formats.PixelFormatUYVY:
		return &YUV422{Pix: pix, Stride: stride, Rect: rect}, nil
	case formats.PixelFormatYUYV:
		return &YUV422{Pix: pix, Stride: stride, Rect: rect, LumaFirst: true}, nil
	case formats.PixelFormatDepthRaw:
		return &Depth{Pix: pix, Stride: stride, Rect: rect}, nil
	}
	return nil, fmt.Errorf("cannot wrap %v", f)
}
