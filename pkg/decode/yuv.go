package decode

const (
	yuvBlackLuma   = 16
	yuvBlackChroma = 128
)

func clip(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RGBToYUV converts one pixel with the integer coefficient table and scales
// the result into studio range: luma 16..235, chroma 16..240.
func RGBToYUV(r, g, b uint8) (y, u, v uint8) {
	cr, cg, cb := &yuvCoefficients[r], &yuvCoefficients[g], &yuvCoefficients[b]
	py := clip(int(cr[0])+int(cg[1])+int(cb[2]), 0, 255)
	pu := clip(int(cr[3])+int(cg[4])+int(cb[5]), -127, 127)
	pv := clip(int(cr[5])+int(cg[6])+int(cb[7]), -127, 127)
	return uint8(219*py/255 + 16), uint8(112*pu/127 + 128), uint8(112*pv/127 + 128)
}

// bayerToYUV422 writes two bytes per pixel. Even columns carry U and odd
// columns carry V. The frame border is black.
func bayerToYUV422(dst, raw []byte, lumaFirst bool) {
	const step = 2
	dst = dst[canvasOffset(step):]
	yi, ci := 1, 0
	if lumaFirst {
		yi, ci = 0, 1
	}
	put := func(o int, y, c uint8) {
		dst[o+yi] = y
		dst[o+ci] = c
	}
	for y := 0; y < height; y++ {
		o := y * width * step
		if y == 0 || y == height-1 {
			for x := 0; x < width; x++ {
				put(o+x*step, yuvBlackLuma, yuvBlackChroma)
			}
			continue
		}
		put(o, yuvBlackLuma, yuvBlackChroma)
		put(o+(width-1)*step, yuvBlackLuma, yuvBlackChroma)
		for x := 1; x < width-1; x++ {
			luma, u, v := RGBToYUV(interpolate(raw, x, y))
			if x&1 == 0 {
				put(o+x*step, luma, u)
			} else {
				put(o+x*step, luma, v)
			}
		}
	}
}

func BayerToUYVY(dst, raw []byte) {
	bayerToYUV422(dst, raw, false)
}

func BayerToYUYV(dst, raw []byte) {
	bayerToYUV422(dst, raw, true)
}
