package ring

import (
	"errors"
	"math/rand/v2"
	"testing"
)

func TestReset(t *testing.T) {
	r, err := New(3, 16)
	if err != nil {
		t.Fatal(err)
	}
	empty, full, filling, reading := r.Counts()
	if empty != 2 || full != 0 || !filling || reading {
		t.Errorf("Counts() = %d, %d, %v, %v, want 2, 0, true, false", empty, full, filling, reading)
	}
	if got := r.Fill().Index; got != 0 {
		t.Errorf("Fill().Index = %d, want 0", got)
	}
	if err := r.Check(); err != nil {
		t.Error(err)
	}
}

func TestNewRejectsEmptyPool(t *testing.T) {
	if _, err := New(0, 16); !errors.Is(err, ErrNoBuffers) {
		t.Errorf("New(0) error = %v, want ErrNoBuffers", err)
	}
}

func TestFIFOOrder(t *testing.T) {
	r, err := New(3, 16)
	if err != nil {
		t.Fatal(err)
	}
	var want []int
	for i := 0; i < 2; i++ {
		want = append(want, r.Fill().Index)
		if dropped, err := r.Advance(); err != nil || dropped {
			t.Fatalf("Advance() = %v, %v, want false, nil", dropped, err)
		}
	}
	for i, w := range want {
		fb, err := r.DequeueFull()
		if err != nil {
			t.Fatal(err)
		}
		if fb.Index != w || fb.Sequence != uint32(i) {
			t.Errorf("frame %d = buffer %d seq %d, want buffer %d seq %d", i, fb.Index, fb.Sequence, w, i)
		}
		r.RecycleRead()
	}
	if _, err := r.DequeueFull(); !errors.Is(err, ErrNoFrame) {
		t.Errorf("DequeueFull() error = %v, want ErrNoFrame", err)
	}
}

func TestDequeueWhileReading(t *testing.T) {
	r, err := New(3, 16)
	if err != nil {
		t.Fatal(err)
	}
	r.Advance()
	r.Advance()
	first, err := r.DequeueFull()
	if err != nil {
		t.Fatal(err)
	}
	again, err := r.DequeueFull()
	if err != nil {
		t.Fatal(err)
	}
	if first != again {
		t.Errorf("DequeueFull() with a frame in read = buffer %d, want %d", again.Index, first.Index)
	}
	if _, full, _, _ := r.Counts(); full != 1 {
		t.Errorf("full = %d, want 1", full)
	}
}

func TestExhaustionDropsOldest(t *testing.T) {
	r, err := New(3, 16)
	if err != nil {
		t.Fatal(err)
	}
	r.Advance() // buffer 0 full
	r.Advance() // buffer 1 full, buffer 2 filling
	drops := 0
	dropped, err := r.Advance()
	if err != nil {
		t.Fatal(err)
	}
	if dropped {
		drops++
	}
	if drops != 1 {
		t.Fatalf("drops = %d, want 1", drops)
	}
	if got := r.Fill().Index; got != 0 {
		t.Errorf("Fill().Index = %d, want oldest full buffer 0", got)
	}
	fb, err := r.DequeueFull()
	if err != nil {
		t.Fatal(err)
	}
	if fb.Index != 1 || fb.Sequence != 1 {
		t.Errorf("DequeueFull() = buffer %d seq %d, want buffer 1 seq 1", fb.Index, fb.Sequence)
	}
	if err := r.Check(); err != nil {
		t.Error(err)
	}
}

func TestAdvanceResetsFillCounters(t *testing.T) {
	r, err := New(2, 16)
	if err != nil {
		t.Fatal(err)
	}
	fb := r.Fill()
	fb.Filled, fb.Errors = 10, 2
	r.Advance()
	r.Advance()
	if got := r.Fill(); got.Filled != 0 || got.Errors != 0 {
		t.Errorf("Fill() = filled %d errors %d, want 0, 0", got.Filled, got.Errors)
	}
}

func TestRandomInterleaving(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5} {
		r, err := New(n, 4)
		if err != nil {
			t.Fatal(err)
		}
		rng := rand.New(rand.NewPCG(uint64(n), 42))
		for step := 0; step < 10000; step++ {
			switch rng.IntN(4) {
			case 0, 1:
				if _, err := r.Advance(); err != nil {
					t.Fatalf("n=%d step %d: Advance() error = %v", n, step, err)
				}
			case 2:
				r.DequeueFull()
			case 3:
				r.RecycleRead()
			}
			if err := r.Check(); err != nil {
				t.Fatalf("n=%d step %d: %v", n, step, err)
			}
			if r.Fill() == nil {
				t.Fatalf("n=%d step %d: no fill buffer", n, step)
			}
		}
		r.Reset()
		if err := r.Check(); err != nil {
			t.Fatalf("n=%d after Reset: %v", n, err)
		}
	}
}
