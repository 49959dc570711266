package transfers

import (
	"encoding/binary"
	"errors"
	"io"
)

// HeaderSize is the length of the header every isochronous packet starts with.
const HeaderSize = 12

// Flag offsets from a stream's flag base.
const (
	FlagStart  = 0x01
	FlagMiddle = 0x02
	FlagEnd    = 0x05
)

var (
	Magic = [2]byte{'R', 'B'}

	ErrBadMagic = errors.New("bad packet magic")
)

// Packet is one isochronous packet. Data aliases the buffer it was
// unmarshalled from.
type Packet struct {
	Magic     [2]byte
	Flag      uint8
	Seq       uint8
	Timestamp uint32
	Data      []byte
}

func (p *Packet) UnmarshalBinary(buf []byte) error {
	if len(buf) < HeaderSize {
		return io.ErrShortBuffer
	}
	p.Magic = [2]byte{buf[0], buf[1]}
	if p.Magic != Magic {
		return ErrBadMagic
	}
	p.Flag = buf[3]
	p.Seq = buf[5]
	p.Timestamp = binary.LittleEndian.Uint32(buf[8:12])
	p.Data = buf[HeaderSize:]
	return nil
}

func (p *Packet) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize+len(p.Data))
	copy(buf, Magic[:])
	buf[3] = p.Flag
	buf[5] = p.Seq
	binary.LittleEndian.PutUint32(buf[8:12], p.Timestamp)
	copy(buf[HeaderSize:], p.Data)
	return buf, nil
}

func (p *Packet) StartOfFrame(base uint8) bool {
	return p.Flag == base|FlagStart
}

func (p *Packet) MiddleOfFrame(base uint8) bool {
	return p.Flag == base|FlagMiddle
}

func (p *Packet) EndOfFrame(base uint8) bool {
	return p.Flag == base|FlagEnd
}
