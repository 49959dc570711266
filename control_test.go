package kinect

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseLED(t *testing.T) {
	tests := []struct {
		in      []byte
		want    LED
		wantErr bool
	}{
		{[]byte{0}, LEDOff, false},
		{[]byte{6}, LEDBlinkRedYellow, false},
		{[]byte("2\n"), LEDRed, false},
		{[]byte("6"), LEDBlinkRedYellow, false},
		{[]byte{7}, 0, true},
		{[]byte("7"), 0, true},
		{[]byte("x"), 0, true},
		{nil, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseLED(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLED(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, ErrInvalidLED) {
			t.Errorf("ParseLED(%q) error = %v, want ErrInvalidLED", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLED(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseTiltRaw(t *testing.T) {
	tests := []struct {
		in      []byte
		want    int
		wantErr bool
	}{
		{[]byte{0}, -31, false},
		{[]byte{31}, 0, false},
		{[]byte{62}, 31, false},
		{[]byte{63}, 0, true},
		{nil, 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTiltRaw(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTiltRaw(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTiltRaw(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseTiltChar(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"0", -31, false},
		{"31\n", 0, false},
		{"62", 31, false},
		{"5x", -26, false},
		{"625", 31, false},
		{"63", 0, true},
		{"-1", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseTiltChar([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseTiltChar(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTiltChar(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTiltPosition(t *testing.T) {
	tests := []struct{ degrees, want int }{
		{-31, 0}, {0, 31}, {31, 62}, {40, 62}, {-40, 0},
	}
	for _, tt := range tests {
		if got := TiltPosition(tt.degrees); got != tt.want {
			t.Errorf("TiltPosition(%d) = %d, want %d", tt.degrees, got, tt.want)
		}
	}
}

func TestFormatAccel(t *testing.T) {
	if got := FormatAccel(16, -2, 819); got != "16 -2 819\n" {
		t.Errorf("FormatAccel() = %q, want %q", got, "16 -2 819\n")
	}
	want := []byte{0x10, 0x00, 0xfe, 0xff, 0x33, 0x03}
	if got := AccelRaw(16, -2, 819); !bytes.Equal(got, want) {
		t.Errorf("AccelRaw() = % x, want % x", got, want)
	}
}
