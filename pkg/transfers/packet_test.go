package transfers

import (
	"bytes"
	"io"
	"testing"
)

func TestPacketUnmarshalBinary(t *testing.T) {
	buf := []byte{
		'R', 'B', // magic
		0x00,       // pad
		0x81,       // flag: RGB start of frame
		0x00,       // unknown
		0x2a,       // seq
		0x00, 0x00, // unknown
		0x01, 0x02, 0x03, 0x04, // timestamp = 0x04030201
		0xDE, 0xAD, // payload data
	}

	p := &Packet{}
	if err := p.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}

	if p.Flag != 0x81 {
		t.Errorf("Flag = %02x, want %02x", p.Flag, 0x81)
	}
	if p.Seq != 0x2a {
		t.Errorf("Seq = %d, want %d", p.Seq, 0x2a)
	}
	if p.Timestamp != 0x04030201 {
		t.Errorf("Timestamp = %08x, want %08x", p.Timestamp, 0x04030201)
	}
	if !bytes.Equal(p.Data, []byte{0xDE, 0xAD}) {
		t.Errorf("Data = %x, want DEAD", p.Data)
	}
}

func TestPacketUnmarshalBinary_HeaderOnly(t *testing.T) {
	buf := []byte{'R', 'B', 0, 0x75, 0, 1, 0, 0, 0, 0, 0, 0}

	p := &Packet{}
	if err := p.UnmarshalBinary(buf); err != nil {
		t.Fatalf("UnmarshalBinary failed: %v", err)
	}
	if len(p.Data) != 0 {
		t.Errorf("Data length = %d, want 0", len(p.Data))
	}
}

func TestPacketUnmarshalBinary_ShortBuffer(t *testing.T) {
	buf := []byte{'R', 'B', 0, 0x81, 0, 0}

	p := &Packet{}
	err := p.UnmarshalBinary(buf)
	if err != io.ErrShortBuffer {
		t.Errorf("UnmarshalBinary error = %v, want io.ErrShortBuffer", err)
	}
}

func TestPacketUnmarshalBinary_BadMagic(t *testing.T) {
	buf := []byte{'G', 'M', 0, 0x81, 0, 0, 0, 0, 0, 0, 0, 0}

	p := &Packet{}
	if err := p.UnmarshalBinary(buf); err != ErrBadMagic {
		t.Errorf("UnmarshalBinary error = %v, want ErrBadMagic", err)
	}
}

func TestPacketMarshalBinary(t *testing.T) {
	in := &Packet{Flag: 0x72, Seq: 200, Timestamp: 0xCAFEBABE, Data: []byte{1, 2, 3}}
	buf, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	out := &Packet{}
	if err := out.UnmarshalBinary(buf); err != nil {
		t.Fatal(err)
	}
	if out.Flag != in.Flag || out.Seq != in.Seq || out.Timestamp != in.Timestamp || !bytes.Equal(out.Data, in.Data) {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}

func TestPacketFlagAccessors(t *testing.T) {
	tests := []struct {
		flag     uint8
		base     uint8
		name     string
		accessor func(*Packet, uint8) bool
		want     bool
	}{
		{0x81, 0x80, "StartOfFrame(rgb)", (*Packet).StartOfFrame, true},
		{0x71, 0x70, "StartOfFrame(depth)", (*Packet).StartOfFrame, true},
		{0x71, 0x80, "StartOfFrame(wrong base)", (*Packet).StartOfFrame, false},
		{0x82, 0x80, "MiddleOfFrame(rgb)", (*Packet).MiddleOfFrame, true},
		{0x85, 0x80, "MiddleOfFrame(end)", (*Packet).MiddleOfFrame, false},
		{0x75, 0x70, "EndOfFrame(depth)", (*Packet).EndOfFrame, true},
		{0x72, 0x70, "EndOfFrame(middle)", (*Packet).EndOfFrame, false},
	}

	for _, tt := range tests {
		p := &Packet{Flag: tt.flag}
		if got := tt.accessor(p, tt.base); got != tt.want {
			t.Errorf("%s with flag %02x = %v, want %v", tt.name, tt.flag, got, tt.want)
		}
	}
}
