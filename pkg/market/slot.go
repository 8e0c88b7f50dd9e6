package market

import "sync"

// slot is one producer's queue. Order inside the queue carries no meaning.
type slot[P comparable] struct {
	mu       sync.Mutex
	items    []P
	capacity int
}

func newSlot[P comparable](capacity int) *slot[P] {
	return &slot[P]{items: make([]P, 0, capacity), capacity: capacity}
}

// put appends p unless the queue is full.
func (s *slot[P]) put(p P) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) >= s.capacity {
		return false
	}
	s.items = append(s.items, p)
	return true
}

// take removes one unit equal to p, if any.
func (s *slot[P]) take(p P) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i] == p {
			last := len(s.items) - 1
			s.items[i] = s.items[last]
			var zero P
			s.items[last] = zero
			s.items = s.items[:last]
			return true
		}
	}
	return false
}

// restore puts back a unit that was previously taken from this slot.
func (s *slot[P]) restore(p P) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, p)
}

func (s *slot[P]) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
