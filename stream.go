package kinect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kevmo314/go-kinect/internal/events"
	"github.com/kevmo314/go-kinect/internal/metrics"
	"github.com/kevmo314/go-kinect/pkg/decode"
	"github.com/kevmo314/go-kinect/pkg/formats"
	"github.com/kevmo314/go-kinect/pkg/ring"
	"github.com/kevmo314/go-kinect/pkg/transfers"
)

// Buffer describes a decoded image slot.
type Buffer struct {
	Index     int
	Offset    int
	Length    int
	BytesUsed int
	// Timestamp is the sensor clock of the frame; Time is the host clock at
	// dequeue.
	Timestamp uint32
	Sequence  uint32
	Time      time.Time
}

// StreamStats is a snapshot of a stream's state and counters.
type StreamStats struct {
	Stream     string `json:"stream"`
	Session    string `json:"session,omitempty"`
	Open       bool   `json:"open"`
	Streaming  bool   `json:"streaming"`
	Synced     bool   `json:"synced"`
	Format     string `json:"format"`
	Brightness int    `json:"brightness"`

	Frames     uint64 `json:"frames"`
	Delivered  uint64 `json:"delivered"`
	Dropped    uint64 `json:"dropped"`
	IsocErrors uint64 `json:"isoc_errors"`

	Packets transfers.StreamCounters `json:"packets"`
	Error   string                   `json:"error,omitempty"`
}

// Stream is one of the two sensor streams of a Device. The isochronous
// completion handler fills raw frames; Read and Dequeue decode them into
// image slots. One reader at a time is expected.
type Stream struct {
	dev     *Device
	cfg     *streamConfig
	logger  *slog.Logger
	metrics *metrics.Stream

	// wake is signalled whenever a waiting reader should look again.
	wake chan struct{}

	// readMu serializes readers, including across the wait for a frame.
	readMu sync.Mutex

	mu         sync.Mutex
	open       bool
	streaming  bool
	gen        uint64
	session    uuid.UUID
	// sessionID mirrors session for the completion handler.
	sessionID  atomic.Value
	reader     *transfers.IsochronousReader
	frames     *ring.Ring
	packets    *transfers.PacketStream
	images     *imageRegion
	format     formats.PixelFormat
	decoder    decode.Decoder
	brightness int
	fillImage  int
	readPos    int

	errMu sync.Mutex
	err   error

	statsMu     sync.Mutex
	packetStats transfers.StreamCounters
	synced      bool

	completed  atomic.Uint64
	delivered  atomic.Uint64
	dropped    atomic.Uint64
	isocErrors atomic.Uint64
}

func newStream(dev *Device, cfg *streamConfig) *Stream {
	s := &Stream{
		dev:        dev,
		cfg:        cfg,
		logger:     dev.logger.With("stream", cfg.kind.String()),
		wake:       make(chan struct{}, 1),
		format:     cfg.format,
		brightness: decode.DefaultBrightness,
	}
	if dev.opts.Metrics {
		s.metrics = metrics.ForStream(dev.name, cfg.kind.String())
	}
	return s
}

func (s *Stream) Kind() StreamKind {
	return s.cfg.kind
}

// Open allocates the frame pool and image slots and selects the default
// pixel format.
func (s *Stream) Open() error {
	if s.dev.isClosed() {
		return ErrClosed
	}
	s.mu.Lock()
	if s.open {
		s.mu.Unlock()
		return ErrBusy
	}

	frames, err := ring.New(s.dev.opts.FramePoolSize, s.cfg.params.FrameSize())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to allocate %s frames: %w", s.cfg.kind, err)
	}
	images, err := newImageRegion(s.dev.opts.ImageSlots)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	format := s.dev.defaultFormat(s.cfg.kind)
	decoder, err := decode.NewDecoder(format)
	if err != nil {
		images.Close()
		s.mu.Unlock()
		return err
	}

	s.frames = frames
	s.images = images
	s.packets = transfers.NewPacketStream(s.cfg.params, s.logger)
	s.format = format
	s.decoder = decoder
	s.fillImage = 0
	s.readPos = 0
	s.session = uuid.New()
	s.sessionID.Store(s.session.String())
	s.open = true
	s.resetCounters()
	s.setErr(nil)
	session := s.session
	s.mu.Unlock()

	s.logger.Info("stream opened", "session", session, "format", format)
	s.publishState(events.StateOpened)
	s.dev.streamOpened()
	return nil
}

func (s *Stream) resetCounters() {
	s.completed.Store(0)
	s.delivered.Store(0)
	s.dropped.Store(0)
	s.isocErrors.Store(0)
	s.statsMu.Lock()
	s.packetStats = transfers.StreamCounters{}
	s.synced = false
	s.statsMu.Unlock()
}

// Close stops the stream if it is running and releases its buffers. A
// blocked reader returns ErrNotOpen.
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	err := s.stopLocked()
	s.open = false
	s.gen++
	if cerr := s.images.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("failed to release %s images: %w", s.cfg.kind, cerr))
	}
	s.images = nil
	s.frames = nil
	s.mu.Unlock()

	s.signal()
	s.logger.Info("stream closed")
	s.publishState(events.StateClosed)
	s.dev.streamClosed()
	return err
}

// Start begins streaming. It does nothing if the stream is running.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return ErrNotOpen
	}
	return s.startLocked()
}

// Stop ends streaming. It does nothing if the stream is not running. A
// blocked reader returns ErrStopped.
func (s *Stream) Stop() error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	err := s.stopLocked()
	s.gen++
	s.mu.Unlock()
	s.signal()
	return err
}

func (s *Stream) startLocked() error {
	if s.streaming {
		return nil
	}
	if err := s.dev.startSensor(s.cfg); err != nil {
		return fmt.Errorf("failed to start %s stream: %w", s.cfg.kind, err)
	}
	s.frames.Reset()
	s.packets.Reset()

	reader, err := transfers.NewIsochronousReader(s.dev.transfers, transfers.ReaderConfig{
		Endpoint:     s.cfg.endpoint,
		NumTransfers: s.dev.opts.NumTransfers,
		NumPackets:   s.dev.opts.NumPackets,
		PacketSize:   s.cfg.bufferSize,
		Logger:       s.logger,
	}, s.handleTransfer)
	if err != nil {
		if serr := s.dev.stopSensor(s.cfg); serr != nil {
			s.logger.Warn("failed to stop sensor after failed start", "error", serr)
		}
		return fmt.Errorf("failed to start %s transfers: %w", s.cfg.kind, err)
	}
	s.reader = reader
	s.streaming = true
	if s.metrics != nil {
		s.metrics.SetStreaming(true)
	}
	s.logger.Info("streaming", "format", s.format, "endpoint", fmt.Sprintf("0x%02x", s.cfg.endpoint))
	s.publishStateLocked(events.StateStreaming)
	return nil
}

func (s *Stream) stopLocked() error {
	if !s.streaming {
		return nil
	}
	err := s.dev.stopSensor(s.cfg)
	if err != nil {
		err = fmt.Errorf("failed to stop %s stream: %w", s.cfg.kind, err)
	}
	if cerr := s.reader.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.reader = nil
	s.streaming = false
	if s.metrics != nil {
		s.metrics.SetStreaming(false)
	}
	s.logger.Info("stopped")
	s.publishStateLocked(events.StateStopped)
	return err
}

// handleTransfer runs on the reader goroutine for every completed transfer.
// It must not take s.mu: Stop holds it while waiting for the reader.
func (s *Stream) handleTransfer(tx transfers.Transfer, err error) {
	if tx == nil {
		s.fail(fmt.Errorf("%s stream: %w", s.cfg.kind, err))
		return
	}
	if err != nil {
		s.isocErrors.Add(1)
		if s.metrics != nil {
			s.metrics.IsocError()
		}
		if isDisconnect(err) {
			s.fail(fmt.Errorf("%w: %w", ErrDisconnected, err))
			return
		}
		s.logger.Warn("isochronous transfer failed", "error", err)
		s.signal()
		return
	}

	fill := s.frames.Fill()
	if fill == nil {
		s.logger.Error("transfer completed without a fill buffer")
		s.signal()
		return
	}

	awake := false
	for i := 0; i < tx.NumPackets(); i++ {
		data, err := tx.Packet(i)
		if err != nil {
			fill.Errors++
			s.logger.Debug("packet error", "packet", i, "error", err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		switch s.packets.Process(fill.Data, data) {
		case transfers.Accepted:
			fill.Filled++
		case transfers.FrameComplete:
			fill.Filled = s.packets.ValidPackets
			fill.Timestamp = s.packets.Timestamp
			dropped, err := s.frames.Advance()
			if err != nil {
				s.logger.Error("failed to advance fill buffer", "error", err)
				continue
			}
			s.frameCompleted(fill, dropped)
			fill = s.frames.Fill()
			awake = true
		}
	}

	s.statsMu.Lock()
	s.packetStats = s.packets.Counters
	s.synced = s.packets.Synced
	s.statsMu.Unlock()
	if s.metrics != nil {
		s.metrics.ObservePackets(metrics.PacketCounters{
			Resyncs:  s.packets.Counters.Resyncs,
			Rejected: s.packets.Counters.Rejected,
			Lost:     s.packets.Counters.LostPackets,
		})
	}

	if awake {
		s.signal()
	}
}

func (s *Stream) frameCompleted(fb *ring.FrameBuffer, dropped bool) {
	s.completed.Add(1)
	if dropped {
		s.dropped.Add(1)
		s.logger.Debug("frame dropped")
	}
	if s.metrics != nil {
		s.metrics.FrameCompleted()
		if dropped {
			s.metrics.FrameDropped()
		}
	}
	if s.dev.bus != nil {
		s.dev.bus.Publish(events.FrameEvent{
			Device:    s.dev.name,
			Stream:    s.cfg.kind.String(),
			Session:   s.sessionString(),
			Sequence:  fb.Sequence,
			Timestamp: fb.Timestamp,
			Dropped:   dropped,
			Time:      time.Now(),
		})
	}
}

func (s *Stream) sessionString() string {
	id, _ := s.sessionID.Load().(string)
	return id
}

func (s *Stream) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// fail latches err. The first error sticks until the stream is reopened.
func (s *Stream) fail(err error) {
	s.errMu.Lock()
	first := s.err == nil
	if first {
		s.err = err
	}
	s.errMu.Unlock()
	if first {
		s.logger.Error("stream failed", "error", err)
		if s.dev.bus != nil {
			s.dev.bus.Publish(events.StreamErrorEvent{
				Device:  s.dev.name,
				Stream:  s.cfg.kind.String(),
				Session: s.sessionString(),
				Error:   err.Error(),
			})
		}
	}
	s.signal()
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.err = err
}

// Err is the latched error, if any.
func (s *Stream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// acquire starts the stream if needed and returns the ring and generation
// a reader waits on.
func (s *Stream) acquire() (*ring.Ring, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, 0, ErrNotOpen
	}
	if err := s.startLocked(); err != nil {
		return nil, 0, err
	}
	return s.frames, s.gen, nil
}

func (s *Stream) waitFrame(ctx context.Context, frames *ring.Ring, gen uint64, nonblocking bool) error {
	for {
		if frames.HasFull() {
			return nil
		}
		if err := s.Err(); err != nil {
			return err
		}
		if err := s.checkGen(gen); err != nil {
			return err
		}
		if nonblocking {
			return ErrWouldBlock
		}
		select {
		case <-s.wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Stream) checkGen(gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkGenLocked(gen)
}

func (s *Stream) checkGenLocked(gen uint64) error {
	switch {
	case !s.open:
		return ErrNotOpen
	case s.gen != gen:
		return ErrStopped
	}
	return nil
}

// decodeLocked decodes the oldest full frame into the current image slot.
func (s *Stream) decodeLocked() (*ring.FrameBuffer, error) {
	fb, err := s.frames.DequeueFull()
	if err != nil {
		return nil, err
	}
	defer s.frames.RecycleRead()

	slot := s.images.Slot(s.fillImage)
	if err := s.decoder.Decode(slot, fb.Data); err != nil {
		return nil, fmt.Errorf("failed to decode %s frame: %w", s.cfg.kind, err)
	}
	decode.CorrectBrightness(slot[:s.format.ImageSize()], s.format, s.brightness)
	s.delivered.Add(1)
	if s.metrics != nil {
		s.metrics.FrameDelivered()
	}
	return &ring.FrameBuffer{Index: fb.Index, Timestamp: fb.Timestamp, Sequence: fb.Sequence}, nil
}

func (s *Stream) nextImageLocked() {
	s.fillImage = (s.fillImage + 1) % s.images.Len()
}

// Read copies decoded image bytes into p, starting the stream if needed.
// A new frame is waited for and decoded only at the start of an image;
// the rest of the image is returned by subsequent calls.
func (s *Stream) Read(ctx context.Context, p []byte, nonblocking bool) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	frames, gen, err := s.acquire()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	pos := s.readPos
	s.mu.Unlock()
	if pos == 0 {
		if err := s.waitFrame(ctx, frames, gen, nonblocking); err != nil {
			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGenLocked(gen); err != nil {
		return 0, err
	}
	if s.readPos == 0 {
		if _, err := s.decodeLocked(); err != nil {
			return 0, err
		}
	}

	size := s.format.ImageSize()
	slot := s.images.Slot(s.fillImage)
	n := copy(p, slot[s.readPos:size])
	s.readPos += n
	if s.readPos >= size {
		s.readPos = 0
		s.nextImageLocked()
	}
	return n, nil
}

// Poll reports whether Read would not block.
func (s *Stream) Poll() bool {
	if s.Err() != nil {
		return true
	}
	s.mu.Lock()
	frames := s.frames
	s.mu.Unlock()
	return frames != nil && frames.HasFull()
}

// Dequeue waits for a frame, decodes it into the current image slot and
// returns that slot. The slot stays valid until the next Dequeue wraps
// around to it.
func (s *Stream) Dequeue(ctx context.Context) (Buffer, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()

	frames, gen, err := s.acquire()
	if err != nil {
		return Buffer{}, err
	}
	if err := s.waitFrame(ctx, frames, gen, false); err != nil {
		return Buffer{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkGenLocked(gen); err != nil {
		return Buffer{}, err
	}
	fb, err := s.decodeLocked()
	if err != nil {
		return Buffer{}, err
	}
	buf := Buffer{
		Index:     s.fillImage,
		Offset:    s.images.Offset(s.fillImage),
		Length:    s.images.slotLen,
		BytesUsed: s.format.ImageSize(),
		Timestamp: fb.Timestamp,
		Sequence:  fb.Sequence,
		Time:      time.Now(),
	}
	s.nextImageLocked()
	return buf, nil
}

// QueryBuffer describes image slot i.
func (s *Stream) QueryBuffer(i int) (Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return Buffer{}, ErrNotOpen
	}
	if i < 0 || i >= s.images.Len() {
		return Buffer{}, fmt.Errorf("%d: %w", i, ErrInvalidBuffer)
	}
	return Buffer{
		Index:     i,
		Offset:    s.images.Offset(i),
		Length:    s.images.slotLen,
		BytesUsed: s.format.ImageSize(),
	}, nil
}

// Mapping returns the image slots as one region; slot i starts at
// i*SlotLength(). It is nil when the stream is closed.
func (s *Stream) Mapping() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		return nil
	}
	return s.images.mem
}

func (s *Stream) SlotLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.images == nil {
		return 0
	}
	return s.images.slotLen
}

func (s *Stream) PixelFormat() formats.PixelFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// SetPixelFormat switches the output format. A running stream is stopped,
// its buffers cleared and restarted.
func (s *Stream) SetPixelFormat(f formats.PixelFormat) error {
	if !f.Valid() || f.IsDepth() != (s.cfg.kind == StreamDepth) {
		return fmt.Errorf("%v for %s stream: %w", f, s.cfg.kind, ErrInvalidFormat)
	}
	decoder, err := decode.NewDecoder(f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return ErrNotOpen
	}
	if f == s.format {
		s.mu.Unlock()
		return nil
	}
	restart := s.streaming
	if restart {
		if err := s.stopLocked(); err != nil {
			s.logger.Warn("failed to stop stream for format change", "error", err)
		}
		s.frames.Reset()
		s.fillImage = 0
	}
	s.format = f
	s.decoder = decoder
	s.readPos = 0
	if restart {
		err = s.startLocked()
	}
	s.mu.Unlock()

	s.logger.Info("pixel format set", "format", f)
	s.publishState(events.StateOpened)
	return err
}

// SetBrightness sets the brightness of the color stream, 0 to 0xff00 with
// 0x7f00 leaving images unchanged. Depth formats ignore it.
func (s *Stream) SetBrightness(v int) {
	v = min(max(v, 0), 0xff00) & 0xff00
	s.mu.Lock()
	s.brightness = v
	s.mu.Unlock()
}

func (s *Stream) Brightness() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.brightness
}

func (s *Stream) Stats() StreamStats {
	s.mu.Lock()
	st := StreamStats{
		Stream:     s.cfg.kind.String(),
		Open:       s.open,
		Streaming:  s.streaming,
		Format:     s.format.String(),
		Brightness: s.brightness,
	}
	if s.open {
		st.Session = s.session.String()
	}
	s.mu.Unlock()

	st.Frames = s.completed.Load()
	st.Delivered = s.delivered.Load()
	st.Dropped = s.dropped.Load()
	st.IsocErrors = s.isocErrors.Load()
	s.statsMu.Lock()
	st.Packets = s.packetStats
	st.Synced = s.synced
	s.statsMu.Unlock()
	if err := s.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}

func (s *Stream) publishState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishStateLocked(state)
}

func (s *Stream) publishStateLocked(state string) {
	if s.dev.bus == nil {
		return
	}
	s.dev.bus.Publish(events.StreamStateEvent{
		Device:  s.dev.name,
		Stream:  s.cfg.kind.String(),
		Session: s.session.String(),
		State:   state,
		Format:  s.format.String(),
	})
}
