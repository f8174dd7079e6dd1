package history

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/posturekit/go-posture/pkg/posture"
)

func ringEvent(i int) posture.Event {
	return posture.Event{
		ID:       uuid.New(),
		At:       storeTestTime().Add(time.Duration(i) * time.Minute),
		Severity: posture.StateWarning,
	}
}

func TestEventRingNewestFirst(t *testing.T) {
	r := NewEventRing(10)
	for i := 1; i <= 3; i++ {
		r.Add(ringEvent(i))
	}

	got := r.Recent(0)
	if len(got) != 3 {
		t.Fatalf("Recent(0) returned %d events, want 3", len(got))
	}
	for i := 0; i < len(got)-1; i++ {
		if !got[i].At.After(got[i+1].At) {
			t.Errorf("events not newest-first at %d: %v then %v", i, got[i].At, got[i+1].At)
		}
	}
}

func TestEventRingOverwritesOldest(t *testing.T) {
	r := NewEventRing(3)
	for i := 1; i <= 5; i++ {
		r.Add(ringEvent(i))
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	got := r.Recent(0)
	wantMinutes := []int{5, 4, 3}
	for i, ev := range got {
		want := storeTestTime().Add(time.Duration(wantMinutes[i]) * time.Minute)
		if !ev.At.Equal(want) {
			t.Errorf("Recent[%d].At = %v, want %v", i, ev.At, want)
		}
	}
}

func TestEventRingLimit(t *testing.T) {
	r := NewEventRing(10)
	for i := 1; i <= 6; i++ {
		r.Add(ringEvent(i))
	}

	got := r.Recent(2)
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d events", len(got))
	}
	if !got[0].At.After(got[1].At) {
		t.Error("limited result not newest-first")
	}

	if got := r.Recent(100); len(got) != 6 {
		t.Errorf("Recent(100) returned %d events, want all 6", len(got))
	}
}

func TestEventRingEmpty(t *testing.T) {
	r := NewEventRing(4)
	if got := r.Recent(10); len(got) != 0 {
		t.Errorf("Recent on empty ring returned %d events", len(got))
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}
