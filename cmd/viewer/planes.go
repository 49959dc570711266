package main

import (
	"github.com/kevmo314/go-kinect/pkg/decode"
)

// Planes is a 4:2:0 image laid out the way an IYUV texture expects it.
type Planes struct {
	Y, U, V          []byte
	YStride, CStride int
	width, height    int
}

func NewPlanes(width, height int) *Planes {
	cw, ch := (width+1)/2, (height+1)/2
	return &Planes{
		Y:       make([]byte, width*height),
		U:       make([]byte, cw*ch),
		V:       make([]byte, cw*ch),
		YStride: width,
		CStride: cw,
		width:   width,
		height:  height,
	}
}

// FromYUYV converts packed 4:2:2 into the planes, taking chroma from the
// even rows.
func (p *Planes) FromYUYV(src []byte, stride int) {
	for y := 0; y < p.height; y++ {
		row := src[y*stride:]
		for x := 0; x < p.width; x++ {
			p.Y[y*p.YStride+x] = row[x*2]
		}
		if y&1 != 0 {
			continue
		}
		for cx := 0; cx < p.width/2; cx++ {
			p.U[(y/2)*p.CStride+cx] = row[cx*4+1]
			p.V[(y/2)*p.CStride+cx] = row[cx*4+3]
		}
	}
}

// FromRGB converts packed RGB with step bytes per pixel. Chroma comes from
// the top left pixel of each 2x2 block.
func (p *Planes) FromRGB(src []byte, stride, step int) {
	for y := 0; y < p.height; y++ {
		row := src[y*stride:]
		for x := 0; x < p.width; x++ {
			o := x * step
			luma, u, v := decode.RGBToYUV(row[o], row[o+1], row[o+2])
			p.Y[y*p.YStride+x] = luma
			if y&1 == 0 && x&1 == 0 {
				p.U[(y/2)*p.CStride+x/2] = u
				p.V[(y/2)*p.CStride+x/2] = v
			}
		}
	}
}
