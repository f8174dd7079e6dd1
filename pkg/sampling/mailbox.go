package sampling

import (
	"sync"

	"github.com/posturekit/go-posture/pkg/landmark"
)

// Mailbox is the single-slot handoff between frame producers and the
// loop. Publish overwrites whatever is waiting and Take consumes the
// slot: latest wins, no queue, no backpressure. Overwritten frames are
// counted, not treated as errors; frames are cheap to discard.
//
// A frame with a nil Set is a valid deposit (the explicit no-detection
// signal), distinct from an empty mailbox.
type Mailbox struct {
	mu    sync.Mutex
	frame *landmark.Frame
	drops uint64
}

// Publish deposits a frame, replacing any unconsumed one. Never blocks.
func (m *Mailbox) Publish(f landmark.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame != nil {
		m.drops++
	}
	m.frame = &f
}

// Take removes and returns the waiting frame, if any.
func (m *Mailbox) Take() (landmark.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return landmark.Frame{}, false
	}
	f := *m.frame
	m.frame = nil
	return f, true
}

// Drops returns how many frames were overwritten before being consumed.
func (m *Mailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
