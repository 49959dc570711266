package decode

// The sensor mosaic is GRBG: even rows read G R G R, odd rows read B G B G.

func bay(raw []byte, x, y int) uint32 {
	return uint32(raw[x+width*y])
}

// bayerCopy fills the 2x2 tile at (x, y) without looking outside of it.
func bayerCopy(raw, rgb []byte, x, y int) {
	g := uint8((bay(raw, x, y) + bay(raw, x+1, y+1)) / 2)
	r := raw[x+width*(y+1)]
	b := raw[x+1+width*y]
	for _, p := range [4][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}} {
		o := 3 * (x + p[0] + width*(y+p[1]))
		rgb[o+0] = r
		rgb[o+1] = g
		rgb[o+2] = b
	}
	rgb[3*(x+width*y)+1] = raw[x+width*y]
	rgb[3*(x+1+width*(y+1))+1] = raw[x+1+width*(y+1)]
}

// bayerBilinear fills the 2x2 tile at (x, y) by averaging the nearest
// neighbours of each missing channel. It reads one pixel around the tile.
func bayerBilinear(raw, rgb []byte, x, y int) {
	set := func(px, py int, r, g, b uint32) {
		o := 3 * (px + width*py)
		rgb[o+0] = uint8(r)
		rgb[o+1] = uint8(g)
		rgb[o+2] = uint8(b)
	}

	set(x, y,
		(bay(raw, x, y+1)+bay(raw, x, y-1))/2,
		bay(raw, x, y),
		(bay(raw, x-1, y)+bay(raw, x+1, y))/2)

	set(x, y+1,
		bay(raw, x, y+1),
		(bay(raw, x, y)+bay(raw, x, y+2)+bay(raw, x-1, y+1)+bay(raw, x+1, y+1))/4,
		(bay(raw, x+1, y)+bay(raw, x-1, y)+bay(raw, x+1, y+2)+bay(raw, x-1, y+2))/4)

	set(x+1, y,
		(bay(raw, x, y+1)+bay(raw, x+2, y+1)+bay(raw, x, y-1)+bay(raw, x+2, y-1))/4,
		(bay(raw, x, y)+bay(raw, x+2, y)+bay(raw, x+1, y-1)+bay(raw, x+1, y+1))/4,
		bay(raw, x+1, y))

	set(x+1, y+1,
		(bay(raw, x, y+1)+bay(raw, x+2, y+1))/2,
		bay(raw, x+1, y+1),
		(bay(raw, x+1, y)+bay(raw, x+1, y+2))/2)
}

// BayerToRGB24 demosaics a full frame into packed RGB24. Tiles start
// at the second row and column; tiles touching the frame edge use bayerCopy
// and the outermost row and column are left black.
func BayerToRGB24(rgb, raw []byte) {
	clear(rgb[:3*width])
	clear(rgb[3*width*(height-1) : 3*width*height])
	for y := 1; y < height-1; y++ {
		clear(rgb[3*width*y : 3*width*y+3])
		clear(rgb[3*(width*y+width-1) : 3*width*(y+1)])
	}
	for y := 1; y <= height-3; y += 2 {
		for x := 1; x <= width-3; x += 2 {
			if x == 1 || y == 1 || x == width-3 || y == height-3 {
				bayerCopy(raw, rgb, x, y)
			} else {
				bayerBilinear(raw, rgb, x, y)
			}
		}
	}
}

// interpolate returns the full color of the interior pixel (x, y).
func interpolate(raw []byte, x, y int) (r, g, b uint8) {
	o := x + width*y
	c := uint32(raw[o])
	horiz := (uint32(raw[o-1]) + uint32(raw[o+1])) >> 1
	vert := (uint32(raw[o-width]) + uint32(raw[o+width])) >> 1
	cross := (uint32(raw[o-width]) + uint32(raw[o-1]) + uint32(raw[o+1]) + uint32(raw[o+width])) >> 2
	diag := (uint32(raw[o-width-1]) + uint32(raw[o-width+1]) + uint32(raw[o+width-1]) + uint32(raw[o+width+1])) >> 2

	switch {
	case y&1 == 0 && x&1 == 0: // green on a red row
		return uint8(horiz), uint8(c), uint8(vert)
	case y&1 == 0: // red
		return uint8(c), uint8(cross), uint8(diag)
	case x&1 == 0: // blue
		return uint8(diag), uint8(cross), uint8(c)
	default: // green on a blue row
		return uint8(vert), uint8(c), uint8(horiz)
	}
}

// canvasOffset is the byte offset that centers a frame inside the output
// canvas. Canvas and frame share the 640x480 geometry, so this is zero; the
// padded converters still go through it.
func canvasOffset(step int) int {
	const canvasWidth, canvasHeight = width, height
	return ((canvasHeight-height)/2)*canvasWidth*step + ((canvasWidth-width)/2)*step
}

// bayerToPacked writes one pixel every step bytes with the red, green and
// blue bytes at the given offsets. Any fourth byte is written as zero. The
// outer border of the frame is black.
func bayerToPacked(dst, raw []byte, step, ri, gi, bi int) {
	dst = dst[canvasOffset(step):]
	for y := 0; y < height; y++ {
		row := dst[y*width*step : (y+1)*width*step]
		if y == 0 || y == height-1 {
			clear(row)
			continue
		}
		clear(row[:step])
		clear(row[(width-1)*step:])
		for x := 1; x < width-1; x++ {
			r, g, b := interpolate(raw, x, y)
			p := row[x*step : (x+1)*step]
			p[ri], p[gi], p[bi] = r, g, b
			if step == 4 {
				p[3] = 0
			}
		}
	}
}

func BayerToRGB32(dst, raw []byte) {
	bayerToPacked(dst, raw, 4, 0, 1, 2)
}

func BayerToBGR24(dst, raw []byte) {
	bayerToPacked(dst, raw, 3, 2, 1, 0)
}

func BayerToBGR32(dst, raw []byte) {
	bayerToPacked(dst, raw, 4, 2, 1, 0)
}
