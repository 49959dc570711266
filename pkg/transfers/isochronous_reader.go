package transfers

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kevmo314/go-kinect/internal/logging"
)

const (
	// DefaultNumTransfers is the number of transfers kept in flight per
	// endpoint.
	DefaultNumTransfers = 16
	// DefaultNumPackets is the number of packets in each transfer.
	DefaultNumPackets = 16
)

// ErrStalled is reported when no transfer could be resubmitted.
var ErrStalled = errors.New("no isochronous transfers in flight")

// CompletionHandler is called once for every completed transfer, with the
// transfer's error if it failed, before the transfer is resubmitted. It must
// not block. A nil tx means the reader gave up and err says why.
type CompletionHandler func(tx Transfer, err error)

// IsochronousReader keeps a fixed set of isochronous transfers in flight on
// one endpoint and hands every completion to a handler.
type IsochronousReader struct {
	transfers []Transfer
	handler   CompletionHandler
	logger    *slog.Logger

	mu      sync.Mutex
	closed  bool
	pending []bool
	done    chan struct{}

	submitErrors uint64
}

type ReaderConfig struct {
	Endpoint     uint8
	NumTransfers int
	NumPackets   int
	PacketSize   int
	Logger       *slog.Logger
}

func NewIsochronousReader(factory TransferFactory, cfg ReaderConfig, handler CompletionHandler) (*IsochronousReader, error) {
	if cfg.NumTransfers < 1 {
		cfg.NumTransfers = DefaultNumTransfers
	}
	if cfg.NumPackets < 1 {
		cfg.NumPackets = DefaultNumPackets
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger("transfers")
	}
	r := &IsochronousReader{
		transfers: make([]Transfer, cfg.NumTransfers),
		pending:   make([]bool, cfg.NumTransfers),
		handler:   handler,
		logger:    cfg.Logger.With("endpoint", fmt.Sprintf("0x%02x", cfg.Endpoint)),
		done:      make(chan struct{}),
	}

	for i := range r.transfers {
		tx, err := factory.NewIsochronousTransfer(cfg.Endpoint, cfg.NumPackets, cfg.PacketSize)
		if err != nil {
			r.cancel(i)
			return nil, fmt.Errorf("failed to create isochronous transfer %d: %w", i, err)
		}
		if err := tx.Submit(); err != nil {
			r.cancel(i)
			return nil, fmt.Errorf("failed to submit isochronous transfer %d: %w", i, err)
		}
		r.transfers[i] = tx
		r.pending[i] = true
	}

	go r.run()
	return r, nil
}

// cancel tears down the first n transfers of a reader that failed to start.
func (r *IsochronousReader) cancel(n int) {
	for _, tx := range r.transfers[:n] {
		tx.Cancel()
	}
	for _, tx := range r.transfers[:n] {
		tx.Wait()
	}
}

func (r *IsochronousReader) run() {
	defer close(r.done)
	n := len(r.transfers)
	for i := 0; ; i = (i + 1) % n {
		if !r.isPending(i) {
			if r.idle() {
				if r.isClosed() {
					return
				}
				r.logger.Error("isochronous pipe stalled")
				r.handler(nil, ErrStalled)
				return
			}
			continue
		}
		tx := r.transfers[i]
		err := tx.Wait()

		r.mu.Lock()
		r.pending[i] = false
		closed := r.closed
		r.mu.Unlock()
		if closed {
			r.drain()
			return
		}

		r.handler(tx, err)
		r.resubmit(i)
	}
}

func (r *IsochronousReader) isPending(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[i]
}

func (r *IsochronousReader) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *IsochronousReader) idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pending {
		if p {
			return false
		}
	}
	return true
}

func (r *IsochronousReader) resubmit(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if err := r.transfers[i].Submit(); err != nil {
		r.submitErrors++
		r.logger.Warn("failed to resubmit isochronous transfer", "transfer", i, "error", err)
		return
	}
	r.pending[i] = true
}

// drain waits out every transfer still in flight after Close cancelled it.
func (r *IsochronousReader) drain() {
	for i, tx := range r.transfers {
		if r.isPending(i) {
			tx.Wait()
			r.mu.Lock()
			r.pending[i] = false
			r.mu.Unlock()
		}
	}
}

// SubmitErrors counts failed resubmissions.
func (r *IsochronousReader) SubmitErrors() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.submitErrors
}

// Close cancels all transfers and returns once none is in flight and the
// handler will not be called again.
func (r *IsochronousReader) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	for _, tx := range r.transfers {
		tx.Cancel()
	}
	<-r.done
	return nil
}
