package requests

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestEncodeCommand(t *testing.T) {
	buf, err := EncodeCommand(0x03, 0x1267, []byte{0x06, 0x00, 0x00, 0x00})
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{'G', 'M', 0x02, 0x00, 0x03, 0x00, 0x67, 0x12, 0x06, 0x00, 0x00, 0x00}
	if !bytes.Equal(buf, want) {
		t.Errorf("EncodeCommand() = % x, want % x", buf, want)
	}
}

func TestEncodeCommandInvalidLength(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"odd", 3},
		{"too long", MaxCommandSize - CommandHeaderSize + 2},
	}
	for _, tt := range tests {
		if _, err := EncodeCommand(0x03, 0, make([]byte, tt.n)); !errors.Is(err, ErrInvalidCommandLength) {
			t.Errorf("%s: EncodeCommand() error = %v, want ErrInvalidCommandLength", tt.name, err)
		}
	}
	if _, err := EncodeCommand(0x03, 0, make([]byte, MaxCommandSize-CommandHeaderSize)); err != nil {
		t.Errorf("EncodeCommand(max) error = %v", err)
	}
}

func TestDecodeReply(t *testing.T) {
	reply := func(magic [2]byte, length, cmd, tag uint16, payload ...byte) []byte {
		h := CommandHeader{Magic: magic, Len: length, Cmd: cmd, Tag: tag}
		buf, _ := h.MarshalBinary()
		return append(buf, payload...)
	}
	tests := []struct {
		name    string
		buf     []byte
		want    []byte
		wantErr error
	}{
		{"ok", reply(ReplyMagic, 1, 0x03, 7, 0, 0), []byte{0, 0}, nil},
		{"empty payload", reply(ReplyMagic, 0, 0x03, 7), []byte{}, nil},
		{"short", []byte{'R', 'B', 0}, nil, io.ErrShortBuffer},
		{"bad magic", reply(CommandMagic, 1, 0x03, 7, 0, 0), nil, ErrBadMagic},
		{"bad cmd", reply(ReplyMagic, 1, 0x04, 7, 0, 0), nil, ErrBadCommand},
		{"bad tag", reply(ReplyMagic, 1, 0x03, 8, 0, 0), nil, ErrBadTag},
		{"bad len", reply(ReplyMagic, 2, 0x03, 7, 0, 0), nil, ErrBadLength},
	}
	for _, tt := range tests {
		got, err := DecodeReply(tt.buf, 0x03, 7)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: DecodeReply() error = %v, want %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && !bytes.Equal(got, tt.want) {
			t.Errorf("%s: DecodeReply() = % x, want % x", tt.name, got, tt.want)
		}
	}
}
