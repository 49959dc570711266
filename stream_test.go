package kinect

import (
	"context"
	"errors"
	"slices"
	"syscall"
	"testing"
	"time"

	"github.com/kevmo314/go-kinect/pkg/formats"
	"github.com/kevmo314/go-kinect/pkg/transfers"
	"github.com/kevmo314/go-kinect/pkg/transfers/transferstest"
)

type testDevice struct {
	*Device
	camera  *fakeControl
	motor   *fakeControl
	factory *transferstest.Factory
}

func newTestDevice(t *testing.T, opts Options) *testDevice {
	t.Helper()
	td := &testDevice{
		camera:  &fakeControl{},
		motor:   &fakeControl{},
		factory: &transferstest.Factory{},
	}
	if opts.NumTransfers == 0 {
		opts.NumTransfers = 1
	}
	d, err := NewDevice(td.camera, td.factory, td.motor, opts)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })
	td.Device = d
	return td
}

// start opens and starts s and returns the transfer it streams from.
func (td *testDevice) start(t *testing.T, s *Stream) *transferstest.Transfer {
	t.Helper()
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	return td.lastTransfer(t)
}

func (td *testDevice) lastTransfer(t *testing.T) *transferstest.Transfer {
	t.Helper()
	txs := td.factory.Transfers()
	if len(txs) == 0 {
		t.Fatal("no transfers allocated")
	}
	return txs[len(txs)-1]
}

// consecutiveFrames builds n frames with contiguous sequence numbers.
func consecutiveFrames(p transfers.StreamParams, n int, fill byte) [][]byte {
	var pkts [][]byte
	seq := uint8(0)
	for i := 0; i < n; i++ {
		pkts = append(pkts, framePackets(p, seq, uint32(i+1)*1000, fill)...)
		seq += uint8(p.PacketsPerFrame)
	}
	return pkts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestStreamOpenBusy(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()

	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	if err := s.Open(); !errors.Is(err, ErrBusy) {
		t.Errorf("second Open() error = %v, want ErrBusy", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("second Close() error = %v, want ErrNotOpen", err)
	}
	if err := s.Open(); err != nil {
		t.Errorf("Open() after Close() error = %v", err)
	}
}

func TestStreamFrameComplete(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	tx := td.start(t, s)

	if s.Poll() {
		t.Error("Poll() before any frame = true, want false")
	}
	tx.Complete(framePackets(streamConfigs[StreamColor].params, 0, 1000, 100), nil)
	waitFor(t, "frame", func() bool { return s.Stats().Frames == 1 })

	st := s.Stats()
	if st.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", st.Dropped)
	}
	if !st.Synced || !st.Streaming {
		t.Errorf("Stats() = %+v, want synced and streaming", st)
	}
	if !s.Poll() {
		t.Error("Poll() with a full frame = false, want true")
	}
}

func TestStreamLostPacketsResync(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Depth()
	tx := td.start(t, s)
	p := streamConfigs[StreamDepth].params

	pkts := framePackets(p, 0, 1000, 1)
	lossy := append([][]byte{pkts[0]}, pkts[7:]...)
	tx.Complete(lossy, nil)
	waitFor(t, "resync", func() bool { return s.Stats().Packets.Resyncs == 1 })

	st := s.Stats()
	if st.Synced || st.Frames != 0 {
		t.Errorf("after losing 6 packets: synced = %v, frames = %d, want false, 0", st.Synced, st.Frames)
	}

	tx.Complete(framePackets(p, 200, 2000, 1), nil)
	waitFor(t, "frame", func() bool { return s.Stats().Frames == 1 })
	if !s.Stats().Synced {
		t.Error("Synced = false after a full frame, want true")
	}
}

func TestStreamRead(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	tx := td.start(t, s)
	p := streamConfigs[StreamColor].params
	ctx := testContext(t)

	size := formats.PixelFormatRGB24.ImageSize()
	img := make([]byte, size)
	pixel := (240*640 + 320) * 3

	tx.Complete(framePackets(p, 0, 1000, 100), nil)
	n, err := s.Read(ctx, img, false)
	if err != nil {
		t.Fatal(err)
	}
	if n != size {
		t.Errorf("Read() = %d, want %d", n, size)
	}
	if got := img[pixel : pixel+3]; !slices.Equal(got, []byte{100, 100, 100}) {
		t.Errorf("pixel (320, 240) = %v, want [100 100 100]", got)
	}

	s.SetBrightness(0xff00)
	tx.Complete(framePackets(p, 162, 2000, 100), nil)
	if _, err := s.Read(ctx, img, false); err != nil {
		t.Fatal(err)
	}
	if got := img[pixel : pixel+3]; !slices.Equal(got, []byte{227, 227, 227}) {
		t.Errorf("pixel (320, 240) at brightness 0xff00 = %v, want [227 227 227]", got)
	}
	if got := s.Stats().Delivered; got != 2 {
		t.Errorf("Delivered = %d, want 2", got)
	}
}

func TestStreamReadPartial(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	tx := td.start(t, s)
	ctx := testContext(t)

	half := formats.PixelFormatRGB24.ImageSize() / 2
	buf := make([]byte, half)

	tx.Complete(framePackets(streamConfigs[StreamColor].params, 0, 1000, 100), nil)
	waitFor(t, "frame", s.Poll)
	for i := 0; i < 2; i++ {
		n, err := s.Read(ctx, buf, true)
		if err != nil {
			t.Fatalf("Read() #%d error = %v", i, err)
		}
		if n != half {
			t.Errorf("Read() #%d = %d, want %d", i, n, half)
		}
	}
	if _, err := s.Read(ctx, buf, true); !errors.Is(err, ErrWouldBlock) {
		t.Errorf("Read() with no frame error = %v, want ErrWouldBlock", err)
	}
}

func TestStreamDropOldest(t *testing.T) {
	td := newTestDevice(t, Options{FramePoolSize: 3})
	s := td.Color()
	tx := td.start(t, s)
	ctx := testContext(t)

	tx.Complete(consecutiveFrames(streamConfigs[StreamColor].params, 3, 50), nil)
	waitFor(t, "frames", func() bool { return s.Stats().Frames == 3 })
	if got := s.Stats().Dropped; got != 1 {
		t.Errorf("Dropped = %d, want 1", got)
	}

	for i, want := range []uint32{1, 2} {
		buf, err := s.Dequeue(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if buf.Sequence != want {
			t.Errorf("Dequeue() #%d sequence = %d, want %d", i, buf.Sequence, want)
		}
		if buf.Index != i {
			t.Errorf("Dequeue() #%d index = %d, want %d", i, buf.Index, i)
		}
		if buf.Timestamp != (want+1)*1000 {
			t.Errorf("Dequeue() #%d timestamp = %d, want %d", i, buf.Timestamp, (want+1)*1000)
		}
	}
}

func TestStreamTransferErrors(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	tx := td.start(t, s)

	tx.Complete(nil, errors.New("babble"))
	waitFor(t, "isoc error", func() bool { return s.Stats().IsocErrors == 1 })
	if err := s.Err(); err != nil {
		t.Errorf("Err() after a transient error = %v, want nil", err)
	}

	tx.Complete(nil, syscall.ENODEV)
	waitFor(t, "latched error", func() bool { return s.Err() != nil })
	if !s.Poll() {
		t.Error("Poll() with a latched error = false, want true")
	}
	if _, err := s.Read(testContext(t), make([]byte, 16), false); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Read() error = %v, want ErrDisconnected", err)
	}
	if got := s.Stats().Error; got == "" {
		t.Error("Stats().Error is empty")
	}

	// Reopening clears the error.
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}
	if err := s.Err(); err != nil {
		t.Errorf("Err() after reopen = %v, want nil", err)
	}
}

func TestDeviceDisconnect(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Depth()
	td.start(t, s)

	td.Disconnect()
	if _, err := s.Dequeue(testContext(t)); !errors.Is(err, ErrDisconnected) {
		t.Errorf("Dequeue() error = %v, want ErrDisconnected", err)
	}
}

func TestStreamStopWakesReader(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	td.start(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Read(context.Background(), make([]byte, 16), false)
		done <- err
	}()

	// A Stop that lands before the reader starts is undone by the lazy
	// start, so keep stopping until the reader returns.
	deadline := time.After(5 * time.Second)
	for {
		if err := s.Stop(); err != nil {
			t.Fatal(err)
		}
		select {
		case err := <-done:
			if !errors.Is(err, ErrStopped) {
				t.Errorf("Read() error = %v, want ErrStopped", err)
			}
			return
		case <-deadline:
			t.Fatal("reader did not return after Stop()")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStreamCloseWakesReader(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	td.start(t, s)

	done := make(chan error, 1)
	go func() {
		_, err := s.Dequeue(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, ErrNotOpen) {
			t.Errorf("Dequeue() error = %v, want ErrNotOpen", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not return after Close()")
	}
	if s.Mapping() != nil {
		t.Error("Mapping() after Close() is not nil")
	}
}

func TestStreamReadContext(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Read(ctx, make([]byte, 16), false); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read() error = %v, want context.DeadlineExceeded", err)
	}
	if !s.Stats().Streaming {
		t.Error("Read() did not start the stream")
	}
}

func TestStreamReadNotOpen(t *testing.T) {
	td := newTestDevice(t, Options{})
	if _, err := td.Color().Read(testContext(t), make([]byte, 16), true); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read() error = %v, want ErrNotOpen", err)
	}
}

func TestStreamSetPixelFormat(t *testing.T) {
	td := newTestDevice(t, Options{})
	color, depth := td.Color(), td.Depth()

	if err := color.SetPixelFormat(formats.PixelFormatBGR24); !errors.Is(err, ErrNotOpen) {
		t.Errorf("SetPixelFormat() on closed stream error = %v, want ErrNotOpen", err)
	}

	tx := td.start(t, color)
	if err := depth.Open(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		s *Stream
		f formats.PixelFormat
	}{
		{color, formats.PixelFormatDepthRaw},
		{color, formats.PixelFormatUnknown},
		{depth, formats.PixelFormatYUYV},
		{depth, formats.PixelFormat(99)},
	}
	for _, tt := range tests {
		if err := tt.s.SetPixelFormat(tt.f); !errors.Is(err, ErrInvalidFormat) {
			t.Errorf("%v stream SetPixelFormat(%v) error = %v, want ErrInvalidFormat", tt.s.Kind(), tt.f, err)
		}
	}

	if err := color.SetPixelFormat(formats.PixelFormatBGR32); err != nil {
		t.Fatal(err)
	}
	if got := color.PixelFormat(); got != formats.PixelFormatBGR32 {
		t.Errorf("PixelFormat() = %v, want BGR32", got)
	}
	if !tx.Cancelled() {
		t.Error("old transfer was not cancelled on restart")
	}
	if !color.Stats().Streaming {
		t.Error("stream is not streaming after format change")
	}

	next := td.lastTransfer(t)
	next.Complete(framePackets(streamConfigs[StreamColor].params, 0, 1000, 100), nil)
	buf, err := color.Dequeue(testContext(t))
	if err != nil {
		t.Fatal(err)
	}
	if buf.BytesUsed != formats.PixelFormatBGR32.ImageSize() {
		t.Errorf("BytesUsed = %d, want %d", buf.BytesUsed, formats.PixelFormatBGR32.ImageSize())
	}

	if err := depth.SetPixelFormat(formats.PixelFormatDepthRaw); err != nil {
		t.Errorf("depth SetPixelFormat(DepthRaw) error = %v", err)
	}
}

func TestStreamBuffers(t *testing.T) {
	td := newTestDevice(t, Options{ImageSlots: 2})
	s := td.Depth()
	if _, err := s.QueryBuffer(0); !errors.Is(err, ErrNotOpen) {
		t.Errorf("QueryBuffer() on closed stream error = %v, want ErrNotOpen", err)
	}
	if err := s.Open(); err != nil {
		t.Fatal(err)
	}

	slot := s.SlotLength()
	if slot < formats.MaxImageSize {
		t.Errorf("SlotLength() = %d, want at least %d", slot, formats.MaxImageSize)
	}
	if got := len(s.Mapping()); got != 2*slot {
		t.Errorf("len(Mapping()) = %d, want %d", got, 2*slot)
	}
	for i := 0; i < 2; i++ {
		buf, err := s.QueryBuffer(i)
		if err != nil {
			t.Fatal(err)
		}
		want := Buffer{Index: i, Offset: i * slot, Length: slot, BytesUsed: formats.PixelFormatDepthRGB24.ImageSize()}
		if buf != want {
			t.Errorf("QueryBuffer(%d) = %+v, want %+v", i, buf, want)
		}
	}
	if _, err := s.QueryBuffer(2); !errors.Is(err, ErrInvalidBuffer) {
		t.Errorf("QueryBuffer(2) error = %v, want ErrInvalidBuffer", err)
	}
}

func TestStreamBrightness(t *testing.T) {
	td := newTestDevice(t, Options{})
	s := td.Color()
	tests := []struct{ in, want int }{
		{0x7f00, 0x7f00},
		{0x12345, 0xff00},
		{-5, 0},
		{0x80ff, 0x8000},
	}
	for _, tt := range tests {
		s.SetBrightness(tt.in)
		if got := s.Brightness(); got != tt.want {
			t.Errorf("SetBrightness(0x%x): Brightness() = 0x%x, want 0x%x", tt.in, got, tt.want)
		}
	}
}
