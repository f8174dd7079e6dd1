package history

import (
	"sync"

	"github.com/posturekit/go-posture/pkg/posture"
)

// EventRing keeps the most recent posture events in memory for the API.
// Oldest entries are overwritten once capacity is reached; events are
// not persisted.
type EventRing struct {
	mu     sync.RWMutex
	events []posture.Event
	next   int
	full   bool
}

// NewEventRing builds a ring holding up to capacity events.
func NewEventRing(capacity int) *EventRing {
	if capacity < 1 {
		capacity = 1
	}
	return &EventRing{events: make([]posture.Event, capacity)}
}

// Add records an event, overwriting the oldest once full.
func (r *EventRing) Add(ev posture.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = ev
	r.next++
	if r.next == len(r.events) {
		r.next = 0
		r.full = true
	}
}

// Len returns how many events are currently held.
func (r *EventRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.full {
		return len(r.events)
	}
	return r.next
}

// Recent returns up to limit events, newest first. limit <= 0 means all.
func (r *EventRing) Recent(limit int) []posture.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]posture.Event, 0, limit)
	for i := 0; i < limit; i++ {
		idx := r.next - 1 - i
		if idx < 0 {
			idx += len(r.events)
		}
		out = append(out, r.events[idx])
	}
	return out
}
