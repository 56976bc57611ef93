package audit

import (
	"context"
	"sync"
)

const defaultMemoryCapacity = 1000

// MemoryRepository keeps the most recent events in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

// NewMemoryRepository returns a repository holding at most capacity events.
// A non-positive capacity selects the default.
func NewMemoryRepository(capacity int) *MemoryRepository {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	return &MemoryRepository{capacity: capacity}
}

func (r *MemoryRepository) Append(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
	if overflow := len(r.events) - r.capacity; overflow > 0 {
		r.events = append(r.events[:0:0], r.events[overflow:]...)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (r *MemoryRepository) Recent(_ context.Context, limit int) ([]Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.events) {
		limit = len(r.events)
	}

	out := make([]Event, 0, limit)
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.events[i])
	}
	return out, nil
}
