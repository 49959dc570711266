// Package transferstest provides in-memory isochronous transfers for tests.
package transferstest

import (
	"errors"
	"sync"

	"github.com/kevmo314/go-kinect/pkg/transfers"
)

var ErrCancelled = errors.New("transfer cancelled")

type result struct {
	packets [][]byte
	err     error
}

// Transfer is a fake isochronous transfer. Wait blocks until Complete or
// Cancel is called.
type Transfer struct {
	Endpoint uint8

	results chan result
	cancel  chan struct{}

	mu        sync.Mutex
	packets   [][]byte
	status    map[int]error
	submits   int
	cancelled bool
	submitErr error
}

var _ transfers.Transfer = (*Transfer)(nil)

// NewTransfer returns a transfer that already holds packets, for driving a
// completion handler directly.
func NewTransfer(packets ...[]byte) *Transfer {
	return &Transfer{
		results: make(chan result, 64),
		cancel:  make(chan struct{}),
		packets: packets,
	}
}

// Complete finishes the next Wait with the given packets and error.
func (t *Transfer) Complete(packets [][]byte, err error) {
	t.results <- result{packets, err}
}

// FailPacket makes Packet(i) report a transport error.
func (t *Transfer) FailPacket(i int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status == nil {
		t.status = make(map[int]error)
	}
	t.status[i] = err
}

// FailSubmit makes every following Submit return err.
func (t *Transfer) FailSubmit(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.submitErr = err
}

func (t *Transfer) Submit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.submitErr != nil {
		return t.submitErr
	}
	t.submits++
	return nil
}

func (t *Transfer) Submits() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.submits
}

func (t *Transfer) Wait() error {
	select {
	case r := <-t.results:
		t.mu.Lock()
		t.packets = r.packets
		t.mu.Unlock()
		return r.err
	case <-t.cancel:
		return ErrCancelled
	}
}

func (t *Transfer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.cancelled {
		t.cancelled = true
		close(t.cancel)
	}
}

func (t *Transfer) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *Transfer) NumPackets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.packets)
}

func (t *Transfer) Packet(i int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.status[i]; err != nil {
		return nil, err
	}
	return t.packets[i], nil
}

// Factory hands out fake transfers and remembers them.
type Factory struct {
	mu        sync.Mutex
	transfers []*Transfer
	// FailCreate makes the n-th allocation (1-based) fail when non-zero.
	FailCreate int
}

var _ transfers.TransferFactory = (*Factory)(nil)

func (f *Factory) NewIsochronousTransfer(endpoint uint8, packets, packetSize int) (transfers.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailCreate != 0 && len(f.transfers)+1 == f.FailCreate {
		return nil, errors.New("cannot allocate transfer")
	}
	tx := NewTransfer()
	tx.Endpoint = endpoint
	f.transfers = append(f.transfers, tx)
	return tx, nil
}

// Transfers returns the transfers allocated so far.
func (f *Factory) Transfers() []*Transfer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Transfer(nil), f.transfers...)
}
