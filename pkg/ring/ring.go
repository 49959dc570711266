// Package ring recycles a fixed pool of raw frame buffers between the
// isochronous completion handler that fills them and the reader that
// decodes them.
//
// Every buffer is in exactly one place: the empty queue, the full queue,
// the fill slot or the read slot. The lock only guards those handles; the
// frame bytes are owned by whoever holds the handle.
package ring

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNoBuffers = errors.New("ring: no buffers")
	ErrNoFrame   = errors.New("ring: no full frame")
)

const none = -1

// FrameBuffer is one raw sensor frame.
type FrameBuffer struct {
	Index int
	Data  []byte
	// Filled is the number of valid packets that went into Data.
	Filled    int
	Errors    int
	Timestamp uint32
	// Sequence counts completed frames since the last Reset.
	Sequence uint32
}

// queue is a fixed-capacity FIFO of buffer handles.
type queue struct {
	items []int
	head  int
	n     int
}

func newQueue(capacity int) queue {
	return queue{items: make([]int, capacity)}
}

func (q *queue) push(h int) {
	q.items[(q.head+q.n)%len(q.items)] = h
	q.n++
}

func (q *queue) pop() (int, bool) {
	if q.n == 0 {
		return none, false
	}
	h := q.items[q.head]
	q.head = (q.head + 1) % len(q.items)
	q.n--
	return h, true
}

func (q *queue) reset() {
	q.head, q.n = 0, 0
}

func (q *queue) each(fn func(int)) {
	for i := 0; i < q.n; i++ {
		fn(q.items[(q.head+i)%len(q.items)])
	}
}

type Ring struct {
	mu       sync.Mutex
	buffers  []FrameBuffer
	empty    queue
	full     queue
	fill     int
	read     int
	sequence uint32
}

// New allocates n buffers of size bytes each. The ring starts reset.
func New(n, size int) (*Ring, error) {
	if n < 1 {
		return nil, fmt.Errorf("ring: pool of %d buffers: %w", n, ErrNoBuffers)
	}
	r := &Ring{
		buffers: make([]FrameBuffer, n),
		empty:   newQueue(n),
		full:    newQueue(n),
	}
	for i := range r.buffers {
		r.buffers[i] = FrameBuffer{Index: i, Data: make([]byte, size)}
	}
	r.Reset()
	return r, nil
}

// Reset puts the first buffer in the fill slot and the rest, in order, on
// the empty queue.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.empty.reset()
	r.full.reset()
	r.read = none
	r.sequence = 0
	for i := range r.buffers {
		r.buffers[i].Filled = 0
		r.buffers[i].Errors = 0
		r.buffers[i].Timestamp = 0
		r.buffers[i].Sequence = 0
		if i > 0 {
			r.empty.push(i)
		}
	}
	r.fill = 0
}

// Len is the pool size.
func (r *Ring) Len() int {
	return len(r.buffers)
}

// Fill returns the buffer currently being filled.
func (r *Ring) Fill() *FrameBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fill == none {
		return nil
	}
	return &r.buffers[r.fill]
}

// Advance queues the fill buffer as a full frame and takes a new fill
// buffer from the empty queue. When the empty queue is exhausted the oldest
// full frame is taken back instead, and dropped is true.
func (r *Ring) Advance() (dropped bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.fill == none {
		return false, ErrNoBuffers
	}
	r.buffers[r.fill].Sequence = r.sequence
	r.sequence++
	r.full.push(r.fill)

	if h, ok := r.empty.pop(); ok {
		r.fill = h
	} else {
		r.fill, _ = r.full.pop()
		dropped = true
	}
	r.buffers[r.fill].Filled = 0
	r.buffers[r.fill].Errors = 0
	return dropped, nil
}

// DequeueFull moves the oldest full frame into the read slot. If a frame
// is already being read it is returned again.
func (r *Ring) DequeueFull() (*FrameBuffer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.read != none {
		return &r.buffers[r.read], nil
	}
	h, ok := r.full.pop()
	if !ok {
		return nil, ErrNoFrame
	}
	r.read = h
	return &r.buffers[h], nil
}

// RecycleRead returns the read buffer to the empty queue.
func (r *Ring) RecycleRead() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.read == none {
		return
	}
	r.empty.push(r.read)
	r.read = none
}

// HasFull reports whether a frame is queued or being read.
func (r *Ring) HasFull() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full.n > 0 || r.read != none
}

// Counts reports how many buffers are in each place.
func (r *Ring) Counts() (empty, full int, filling, reading bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.empty.n, r.full.n, r.fill != none, r.read != none
}

// Check verifies that every buffer is held in exactly one place.
func (r *Ring) Check() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make([]string, len(r.buffers))
	var err error
	mark := func(where string) func(int) {
		return func(h int) {
			if h < 0 || h >= len(seen) {
				err = errors.Join(err, fmt.Errorf("ring: %s holds invalid handle %d", where, h))
				return
			}
			if seen[h] != "" {
				err = errors.Join(err, fmt.Errorf("ring: buffer %d in both %s and %s", h, seen[h], where))
				return
			}
			seen[h] = where
		}
	}
	r.empty.each(mark("empty"))
	r.full.each(mark("full"))
	if r.fill != none {
		mark("fill")(r.fill)
	}
	if r.read != none {
		mark("read")(r.read)
	}
	for h, where := range seen {
		if where == "" {
			err = errors.Join(err, fmt.Errorf("ring: buffer %d is lost", h))
		}
	}
	return err
}
