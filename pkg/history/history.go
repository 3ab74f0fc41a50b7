// Package history keeps the bounded undo stack of parameter sets.
package history

import (
	"sync"

	"github.com/menta2k/headshot/pkg/types"
)

// DefaultCapacity is the number of undo steps kept per session
const DefaultCapacity = 5

// Stack stores up to its capacity of parameter sets. Storage is FIFO
// bounded (the oldest entry is evicted), retrieval is LIFO.
type Stack struct {
	mu       sync.Mutex
	items    []types.Params
	capacity int
}

// New creates a stack with DefaultCapacity
func New() *Stack {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity creates a stack holding at most capacity entries;
// non-positive values select DefaultCapacity.
func NewWithCapacity(capacity int) *Stack {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stack{capacity: capacity, items: make([]types.Params, 0, capacity)}
}

// Push records the parameter set that was active before a new apply.
func (s *Stack) Push(p types.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == s.capacity {
		copy(s.items, s.items[1:])
		s.items = s.items[:len(s.items)-1]
	}
	s.items = append(s.items, p)
}

// Undo pops the most recently pushed set. ok is false when there is no
// history, which callers treat as a no-op.
func (s *Stack) Undo() (p types.Params, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return types.Params{}, false
	}
	p = s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return p, true
}

// Reset clears the history
func (s *Stack) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.items[:0]
}

// Len returns the number of stored sets
func (s *Stack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Snapshots returns the stored sets, most recent first
func (s *Stack) Snapshots() []types.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Params, len(s.items))
	for i, p := range s.items {
		out[len(s.items)-1-i] = p
	}
	return out
}
