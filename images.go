package kinect

import (
	"fmt"

	"github.com/kevmo314/go-kinect/pkg/formats"
)

// imageRegion holds the decoded image slots of a stream back to back, so
// that slot i starts at i*slotLen whatever the current pixel format.
type imageRegion struct {
	mem     []byte
	slotLen int
	free    func([]byte) error
}

func newImageRegion(slots int) (*imageRegion, error) {
	if slots < 1 {
		return nil, fmt.Errorf("%d image slots: %w", slots, ErrInvalidBuffer)
	}
	page := pageSize()
	slotLen := (formats.MaxImageSize + page - 1) / page * page
	mem, free, err := allocImages(slots * slotLen)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %d image slots: %w", slots, err)
	}
	return &imageRegion{mem: mem, slotLen: slotLen, free: free}, nil
}

func (r *imageRegion) Len() int {
	return len(r.mem) / r.slotLen
}

func (r *imageRegion) Offset(i int) int {
	return i * r.slotLen
}

func (r *imageRegion) Slot(i int) []byte {
	return r.mem[i*r.slotLen : (i+1)*r.slotLen]
}

func (r *imageRegion) Close() error {
	if r.mem == nil {
		return nil
	}
	mem := r.mem
	r.mem = nil
	return r.free(mem)
}
