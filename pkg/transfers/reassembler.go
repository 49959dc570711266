package transfers

import (
	"log/slog"

	"github.com/kevmo314/go-kinect/internal/logging"
)

// MaxLostPackets is the largest sequence gap a stream absorbs without
// resynchronizing.
const MaxLostPackets = 5

type Result int

const (
	// NoOp means the packet was discarded.
	NoOp Result = iota
	Accepted
	// FrameComplete means the destination buffer holds a finished frame.
	FrameComplete
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case FrameComplete:
		return "frame-complete"
	}
	return "no-op"
}

// StreamParams describes the packet layout of one sensor stream.
type StreamParams struct {
	Name     string
	FlagBase uint8
	// PacketSize is the payload capacity of one packet.
	PacketSize      int
	PacketsPerFrame int
}

// FrameSize is the number of bytes one reassembled frame may occupy.
func (p StreamParams) FrameSize() int {
	return p.PacketSize * p.PacketsPerFrame
}

// StreamCounters are diagnostics for packets that did not make it into a
// frame. None of them is ever surfaced as an error.
type StreamCounters struct {
	Rejected      uint64 // short header or bad magic
	Unsynced      uint64 // discarded while waiting for a start of frame
	LostPackets   uint64
	Resyncs       uint64
	FlagMismatch  uint64
	Oversized     uint64
	ShortPayloads uint64
}

// PacketStream reassembles the packets of one sensor stream into frames.
// It is driven by a single goroutine and is not safe for concurrent use.
type PacketStream struct {
	StreamParams

	Synced   bool
	Seq      uint8
	PacketNo int
	// GotPackets counts packets copied into the current frame and
	// ValidPackets is its value for the last completed frame.
	GotPackets   int
	ValidPackets int
	// Timestamp belongs to the last completed frame.
	Timestamp     uint32
	LastTimestamp uint32

	Counters StreamCounters
	logger   *slog.Logger
}

func NewPacketStream(params StreamParams, logger *slog.Logger) *PacketStream {
	if logger == nil {
		logger = logging.GetLogger("transfers")
	}
	return &PacketStream{
		StreamParams: params,
		logger:       logger.With("stream", params.Name),
	}
}

// Reset drops synchronization so the next start of frame begins a new frame.
func (s *PacketStream) Reset() {
	s.Synced = false
	s.PacketNo = 0
	s.GotPackets = 0
	s.ValidPackets = 0
}

func (s *PacketStream) desync(reason string, args ...any) Result {
	s.logger.Debug(reason, args...)
	s.Synced = false
	s.Counters.Resyncs++
	return NoOp
}

// Process feeds one isochronous packet. Its payload is copied into dst at
// the packet's position in the frame. Malformed packets are never an error.
func (s *PacketStream) Process(dst, buf []byte) Result {
	var p Packet
	if err := p.UnmarshalBinary(buf); err != nil {
		s.Counters.Rejected++
		if err == ErrBadMagic {
			s.logger.Debug("invalid magic", "magic", p.Magic[:])
		}
		return NoOp
	}

	if !s.Synced {
		if !p.StartOfFrame(s.FlagBase) {
			s.Counters.Unsynced++
			return NoOp
		}
		s.Synced = true
		s.Seq = p.Seq
		s.PacketNo = 0
		s.ValidPackets = 0
		s.GotPackets = 0
	}

	result := Accepted
	if p.Seq != s.Seq {
		// Counted back from the expected number, so a packet ahead of it
		// wraps past MaxLostPackets.
		lost := s.Seq - p.Seq
		s.logger.Debug("lost packets", "lost", lost)
		if lost > MaxLostPackets {
			return s.desync("lost too many packets, resyncing", "lost", lost)
		}
		s.Counters.LostPackets += uint64(lost)
		s.Seq = p.Seq
		left := s.PacketsPerFrame - s.PacketNo
		if left <= int(lost) {
			s.PacketNo = int(lost) - left
			s.ValidPackets = s.GotPackets
			s.GotPackets = 0
			s.Timestamp = s.LastTimestamp
			result = FrameComplete
		} else {
			s.PacketNo += int(lost)
		}
	}

	last := s.PacketsPerFrame - 1
	switch {
	case s.PacketNo == 0 && p.StartOfFrame(s.FlagBase):
	case s.PacketNo == last && p.EndOfFrame(s.FlagBase):
	case s.PacketNo > 0 && s.PacketNo < last && p.MiddleOfFrame(s.FlagBase):
	default:
		s.Counters.FlagMismatch++
		return s.desync("inconsistent flag, resyncing", "flag", p.Flag, "packet", s.PacketNo, "total", s.PacketsPerFrame)
	}

	if len(p.Data) > s.PacketSize {
		s.Counters.Oversized++
		s.logger.Debug("oversized payload, dropping", "want", s.PacketSize, "got", len(p.Data))
		return NoOp
	}
	if len(p.Data) != s.PacketSize && !p.EndOfFrame(s.FlagBase) {
		s.Counters.ShortPayloads++
		s.logger.Warn("short payload", "want", s.PacketSize, "got", len(p.Data), "packet", s.PacketNo)
	}
	copy(dst[s.PacketNo*s.PacketSize:], p.Data)

	s.PacketNo++
	s.Seq++
	s.GotPackets++
	s.LastTimestamp = p.Timestamp

	if s.PacketNo == s.PacketsPerFrame {
		s.PacketNo = 0
		s.ValidPackets = s.GotPackets
		s.GotPackets = 0
		s.Timestamp = p.Timestamp
		return FrameComplete
	}
	return result
}
