package scheduler

import bloomfilter "github.com/holiman/bloomfilter/v2"

// slot is a virtual worker: a scheduling record of (read-set, write-set,
// task?). Index is the canonical tie-break among idle slots. Slots are
// never pointers to real OS threads; count is independent
// of CPU count and the work itself runs on a goroutine dispatched per
// epoch.
type slot struct {
	index  int
	hint   hintView
	filter *bloomfilter.Filter
	busy   bool
}

func newSlots(n int) []*slot {
	slots := make([]*slot, n)
	for i := range slots {
		slots[i] = &slot{index: i}
	}
	return slots
}

// seed claims the slot for the epoch: h becomes its visible read/write view
// for subsequent axiom checks against later candidates in the same sweep.
func (s *slot) seed(h hintView, filter *bloomfilter.Filter) {
	s.hint = h
	s.filter = filter
	s.busy = true
}

// release returns the slot to idle at epoch boundary.
func (s *slot) release() {
	s.hint = hintView{}
	s.filter = nil
	s.busy = false
}
