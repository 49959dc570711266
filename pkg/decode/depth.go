package decode

import "encoding/binary"

const depthMask = 1<<11 - 1

// gamma maps an 11-bit depth sample onto a band index (high byte) and a
// position within the band (low byte).
var gamma [2048]uint16

func init() {
	for i := range gamma {
		v := uint64(i)
		gamma[i] = uint16(v * v * v * 9216 >> 33)
	}
}

// UnpackDepth extracts width*height 11-bit big-endian samples from raw.
// Bytes past the end of raw read as zero.
func UnpackDepth(dst []uint16, raw []byte) {
	at := func(i int) uint32 {
		if i < len(raw) {
			return uint32(raw[i])
		}
		return 0
	}
	for i := range dst[:width*height] {
		idx := i * 11 / 8
		word := at(idx)<<16 | at(idx+1)<<8 | at(idx+2)
		shift := 13 - (i*11)%8
		dst[i] = uint16(word>>shift) & depthMask
	}
}

// DepthColor returns the false color of one depth sample.
func DepthColor(d uint16) (r, g, b uint8) {
	if int(d) >= len(gamma) {
		return 0, 0, 0
	}
	pval := gamma[d]
	lb := uint8(pval)
	switch pval >> 8 {
	case 0:
		return 255, 255 - lb, 255 - lb
	case 1:
		return 255, lb, 0
	case 2:
		return 255 - lb, 255, 0
	case 3:
		return 0, 255, lb
	case 4:
		return 0, 255 - lb, 255
	case 5:
		return 0, 0, 255 - lb
	}
	return 0, 0, 0
}

func DepthToRGB24(dst []byte, depth []uint16) {
	for i, d := range depth[:width*height] {
		dst[3*i], dst[3*i+1], dst[3*i+2] = DepthColor(d)
	}
}

// DepthToRaw writes the samples as little-endian uint16.
func DepthToRaw(dst []byte, depth []uint16) {
	for i, d := range depth[:width*height] {
		binary.LittleEndian.PutUint16(dst[2*i:], d)
	}
}
