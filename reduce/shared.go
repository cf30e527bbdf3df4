package reduce

import "sync"

// A Shared is a mutually exclusive scalar cell. It is the
// single merge point for the per-thread partials of one
// process, so the critical section is held for one combine
// at a time and contention stays negligible.
type Shared[T any] struct {
	mu    sync.Mutex
	value T
}

// NewShared creates a cell holding an initial value,
// typically the operator's identity.
func NewShared[T any](initial T) *Shared[T] {
	return &Shared[T]{value: initial}
}

// Reduce atomically replaces the cell's value with
// op.Combine(value, incoming). Safe under concurrent
// calls from multiple threads.
func (s *Shared[T]) Reduce(incoming T, op Op[T]) {
	s.mu.Lock()
	s.value = op.Combine(s.value, incoming)
	s.mu.Unlock()
}

// Set overwrites the cell's value. Used by plain
// (non-reducing) receives.
func (s *Shared[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
}

// Get returns the current value. The result is only
// meaningful once every contributing thread has merged.
func (s *Shared[T]) Get() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}
