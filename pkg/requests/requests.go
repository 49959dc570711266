package requests

import (
	"encoding/binary"
	"errors"
	"io"
	"time"
)

type RequestType uint8

const (
	RequestTypeVendorSetRequest   RequestType = 0b01000000
	RequestTypeVendorGetRequest   RequestType = 0b11000000
	RequestTypeStandardGetRequest RequestType = 0b10000000
)

type RequestCode uint8

const (
	// RequestCodeCommand carries camera commands and their replies.
	RequestCodeCommand       RequestCode = 0x00
	RequestCodeGetDescriptor RequestCode = 0x06
	// RequestCodeSetLED shares its value with GET_DESCRIPTOR but goes to
	// the motor as a vendor request.
	RequestCodeSetLED       RequestCode = 0x06
	RequestCodeSetTilt      RequestCode = 0x31
	RequestCodeGetTiltState RequestCode = 0x32
)

// ControlTransferer issues USB control transfers. *usb.DeviceHandle
// satisfies it.
type ControlTransferer interface {
	ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
}

const (
	CommandHeaderSize = 8
	// MaxCommandSize bounds the command buffer, header included.
	MaxCommandSize = 0x400
	// MaxReplySize bounds the reply buffer, header included.
	MaxReplySize = 0x200
)

var (
	CommandMagic = [2]byte{'G', 'M'}
	ReplyMagic   = [2]byte{'R', 'B'}

	ErrBadMagic             = errors.New("bad reply magic")
	ErrBadCommand           = errors.New("reply is for another command")
	ErrBadTag               = errors.New("reply tag mismatch")
	ErrBadLength            = errors.New("reply length mismatch")
	ErrInvalidCommandLength = errors.New("invalid command length")
)

// CommandHeader prefixes camera commands and their replies. Len counts
// 16-bit words of payload.
type CommandHeader struct {
	Magic [2]byte
	Len   uint16
	Cmd   uint16
	Tag   uint16
}

func (h *CommandHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, CommandHeaderSize)
	copy(buf, h.Magic[:])
	binary.LittleEndian.PutUint16(buf[2:4], h.Len)
	binary.LittleEndian.PutUint16(buf[4:6], h.Cmd)
	binary.LittleEndian.PutUint16(buf[6:8], h.Tag)
	return buf, nil
}

func (h *CommandHeader) UnmarshalBinary(buf []byte) error {
	if len(buf) < CommandHeaderSize {
		return io.ErrShortBuffer
	}
	h.Magic = [2]byte{buf[0], buf[1]}
	h.Len = binary.LittleEndian.Uint16(buf[2:4])
	h.Cmd = binary.LittleEndian.Uint16(buf[4:6])
	h.Tag = binary.LittleEndian.Uint16(buf[6:8])
	return nil
}

// EncodeCommand builds a command packet. The payload must have an even
// length that fits in MaxCommandSize with the header.
func EncodeCommand(cmd, tag uint16, payload []byte) ([]byte, error) {
	if len(payload)&1 != 0 || len(payload) > MaxCommandSize-CommandHeaderSize {
		return nil, ErrInvalidCommandLength
	}
	h := CommandHeader{Magic: CommandMagic, Len: uint16(len(payload) / 2), Cmd: cmd, Tag: tag}
	buf, _ := h.MarshalBinary()
	return append(buf, payload...), nil
}

// DecodeReply validates a reply to the command cmd with the given tag and
// returns its payload.
func DecodeReply(buf []byte, cmd, tag uint16) ([]byte, error) {
	var h CommandHeader
	if err := h.UnmarshalBinary(buf); err != nil {
		return nil, err
	}
	switch {
	case h.Magic != ReplyMagic:
		return nil, ErrBadMagic
	case h.Cmd != cmd:
		return nil, ErrBadCommand
	case h.Tag != tag:
		return nil, ErrBadTag
	case int(h.Len) != (len(buf)-CommandHeaderSize)/2:
		return nil, ErrBadLength
	}
	return buf[CommandHeaderSize:], nil
}
