package kinect

import (
	"encoding/binary"
	"fmt"
	"strconv"
)

// Text formats of the LED, tilt and accelerometer controls. Tilt positions
// run from 0 (down) to 62 (up); 31 is level.

const (
	LEDHelp  = "values:\n0 = off\n1 = green\n2 = red\n3 = yellow\n4 = blink yellow\n5 = blink green\n6 = blink red yellow\n"
	TiltHelp = "range = [0, 62];\nup = 62;\ndown = 0;\nmiddle = 31;\n"

	tiltPositions = MaxTilt - MinTilt
)

// ParseLED reads an LED state from the first byte of b, either as a binary
// value or as an ASCII digit.
func ParseLED(b []byte) (LED, error) {
	if len(b) < 1 {
		return 0, ErrInvalidLED
	}
	switch c := b[0]; {
	case c <= byte(LEDBlinkRedYellow):
		return LED(c), nil
	case c >= '0' && c <= '0'+byte(LEDBlinkRedYellow):
		return LED(c - '0'), nil
	}
	return 0, fmt.Errorf("%q: %w", b[0], ErrInvalidLED)
}

// ParseTiltRaw reads a tilt position from the first byte of b and returns
// it in degrees.
func ParseTiltRaw(b []byte) (int, error) {
	if len(b) < 1 || b[0] > tiltPositions {
		return 0, ErrInvalidTilt
	}
	return int(b[0]) + MinTilt, nil
}

// ParseTiltChar reads a tilt position written as up to two decimal digits
// and returns it in degrees. Anything after the digits is ignored.
func ParseTiltChar(b []byte) (int, error) {
	b = b[:min(len(b), 2)]
	n := 0
	for n < len(b) && b[n] >= '0' && b[n] <= '9' {
		n++
	}
	if n == 0 {
		return 0, ErrInvalidTilt
	}
	pos, err := strconv.Atoi(string(b[:n]))
	if err != nil || pos > tiltPositions {
		return 0, fmt.Errorf("%q: %w", b[:n], ErrInvalidTilt)
	}
	return pos + MinTilt, nil
}

// TiltPosition converts degrees to the 0..62 position scale.
func TiltPosition(degrees int) int {
	return min(max(degrees, MinTilt), MaxTilt) - MinTilt
}

func FormatAccel(x, y, z int16) string {
	return fmt.Sprintf("%d %d %d\n", x, y, z)
}

// AccelRaw packs the axes as three little-endian 16-bit words.
func AccelRaw(x, y, z int16) []byte {
	buf := make([]byte, 6)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(x))
	binary.LittleEndian.PutUint16(buf[2:4], uint16(y))
	binary.LittleEndian.PutUint16(buf[4:6], uint16(z))
	return buf
}
