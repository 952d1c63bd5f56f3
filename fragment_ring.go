package flv2hls

import (
	"fmt"
	"time"
)

type fragment struct {
	id       uint64
	duration time.Duration
	discont  bool
	active   bool
}

// fragmentRing stores the metadata of fragments.
// It contains 2N+1 slots: the live fragments (at most N), the fragment that
// is being written, and the fragments that left the window, whose slots are
// reused later.
type fragmentRing struct {
	slots []fragment
	size  int
	head  uint64
	count int
}

func newFragmentRing(size int) *fragmentRing {
	return &fragmentRing{
		slots: make([]fragment, 2*size+1),
		size:  size,
	}
}

func (r *fragmentRing) at(i int) *fragment {
	return &r.slots[(r.head+uint64(i))%uint64(len(r.slots))]
}

// current returns the slot of the fragment that is being written.
func (r *fragmentRing) current() *fragment {
	return r.at(r.count)
}

// nextID returns the ID of the fragment that is being written.
func (r *fragmentRing) nextID() uint64 {
	return r.head + uint64(r.count)
}

// advance adds the current fragment to the live ones.
// When the window is full, the oldest fragment leaves it.
func (r *fragmentRing) advance() {
	if r.count == r.size {
		r.head++
	} else {
		r.count++
	}
}

// live returns the live fragments, oldest first.
func (r *fragmentRing) live() []*fragment {
	ret := make([]*fragment, r.count)
	for i := range ret {
		ret[i] = r.at(i)
	}
	return ret
}

func (r *fragmentRing) check() error {
	if r.count < 0 || r.count > r.size {
		return fmt.Errorf("live fragment count out of range: %d", r.count)
	}

	for i, f := range r.live() {
		if !f.active || f.id != r.head+uint64(i) {
			return fmt.Errorf("fragment slot %d is inconsistent", i)
		}
	}

	return nil
}
