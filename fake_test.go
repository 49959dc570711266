package kinect

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/kevmo314/go-kinect/pkg/requests"
	"github.com/kevmo314/go-kinect/pkg/transfers"
)

type controlRequest struct {
	requestType uint8
	request     uint8
	value       uint16
	index       uint16
	data        []byte
}

// fakeControl answers camera commands the way the sensor does and records
// every control transfer.
type fakeControl struct {
	mu       sync.Mutex
	requests []controlRequest
	pending  [][]byte
	// emptyReplies is the number of zero-length reads before each reply.
	emptyReplies int
	empty        int
	// reply builds the reply to a command; nil answers with one zero word.
	reply func(h requests.CommandHeader, payload []byte) []byte
	accel []byte
	err   error
}

var errNoReply = errors.New("no reply pending")

func (f *fakeControl) ControlTransfer(requestType, request uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	req := controlRequest{requestType: requestType, request: request, value: value, index: index}
	if requestType&0x80 == 0 {
		req.data = bytes.Clone(data)
	}
	f.requests = append(f.requests, req)
	if f.err != nil {
		return 0, f.err
	}

	switch {
	case requestType == 0x40 && request == 0x00:
		var h requests.CommandHeader
		if err := h.UnmarshalBinary(data); err != nil {
			return 0, err
		}
		f.pending = append(f.pending, f.replyTo(h, data[requests.CommandHeaderSize:]))
		f.empty = f.emptyReplies
		return len(data), nil
	case requestType == 0xc0 && request == 0x00:
		if f.empty > 0 {
			f.empty--
			return 0, nil
		}
		if len(f.pending) == 0 {
			return 0, errNoReply
		}
		n := copy(data, f.pending[0])
		f.pending = f.pending[1:]
		return n, nil
	case requestType == 0xc0 && request == 0x32:
		return copy(data, f.accel), nil
	}
	return len(data), nil
}

func (f *fakeControl) replyTo(h requests.CommandHeader, payload []byte) []byte {
	if f.reply != nil {
		return f.reply(h, payload)
	}
	return commandReply(h.Cmd, h.Tag, 0, 0)
}

func commandReply(cmd, tag uint16, payload ...byte) []byte {
	h := requests.CommandHeader{Magic: requests.ReplyMagic, Len: uint16(len(payload) / 2), Cmd: cmd, Tag: tag}
	buf, _ := h.MarshalBinary()
	return append(buf, payload...)
}

func (f *fakeControl) Requests() []controlRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]controlRequest(nil), f.requests...)
}

func (f *fakeControl) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func (f *fakeControl) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// commands returns the headers of the commands sent so far.
func (f *fakeControl) commands() []requests.CommandHeader {
	var hs []requests.CommandHeader
	for _, r := range f.Requests() {
		if r.requestType != 0x40 || r.request != 0x00 {
			continue
		}
		var h requests.CommandHeader
		h.UnmarshalBinary(r.data)
		hs = append(hs, h)
	}
	return hs
}

// registerWrites returns the register writes sent so far.
func (f *fakeControl) registerWrites() []register {
	var regs []register
	for _, r := range f.Requests() {
		if r.requestType != 0x40 || r.request != 0x00 || len(r.data) != requests.CommandHeaderSize+4 {
			continue
		}
		p := r.data[requests.CommandHeaderSize:]
		regs = append(regs, register{binary.LittleEndian.Uint16(p[0:2]), binary.LittleEndian.Uint16(p[2:4])})
	}
	return regs
}

// values returns the wValue of every vendor OUT request with the given
// request code.
func (f *fakeControl) values(request uint8) []uint16 {
	var vs []uint16
	for _, r := range f.Requests() {
		if r.requestType == 0x40 && r.request == request {
			vs = append(vs, r.value)
		}
	}
	return vs
}

// framePackets builds the packets of one frame whose first packet has
// sequence number seq0, every payload byte set to fill.
func framePackets(p transfers.StreamParams, seq0 uint8, ts uint32, fill byte) [][]byte {
	pkts := make([][]byte, p.PacketsPerFrame)
	for i := range pkts {
		pkts[i] = framePacket(p, seq0, i, ts, fill)
	}
	return pkts
}

func framePacket(p transfers.StreamParams, seq0 uint8, i int, ts uint32, fill byte) []byte {
	flag := p.FlagBase | transfers.FlagMiddle
	switch i {
	case 0:
		flag = p.FlagBase | transfers.FlagStart
	case p.PacketsPerFrame - 1:
		flag = p.FlagBase | transfers.FlagEnd
	}
	pkt := transfers.Packet{Flag: flag, Seq: seq0 + uint8(i), Timestamp: ts, Data: bytes.Repeat([]byte{fill}, p.PacketSize)}
	buf, _ := pkt.MarshalBinary()
	return buf
}
