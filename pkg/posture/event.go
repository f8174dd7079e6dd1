package posture

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event marks a state upgrade (Good to Warning, Warning to Slouching, or
// Good straight to Slouching). At most one event is emitted per upgrade;
// downgrades and repeat ticks in the same state are silent.
type Event struct {
	// ID is assigned by the Session when the event is published.
	ID uuid.UUID

	// At is the tick time at which the upgrade was detected.
	At time.Time

	// Severity is the state entered: StateWarning or StateSlouching.
	Severity State

	// Duration is how long posture had been bad when the upgrade fired.
	Duration time.Duration

	// Feature drift at the moment of the upgrade.
	HeadForwardDeltaDeg  float64
	ShoulderTiltDeltaDeg float64
}

// eventJSON is the wire form: millisecond duration, RFC3339 timestamp.
type eventJSON struct {
	ID                   string    `json:"id"`
	At                   time.Time `json:"at"`
	Severity             State     `json:"severity"`
	DurationMS           int64     `json:"duration_ms"`
	HeadForwardDeltaDeg  float64   `json:"head_forward_delta_deg"`
	ShoulderTiltDeltaDeg float64   `json:"shoulder_tilt_delta_deg"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		ID:                   e.ID.String(),
		At:                   e.At,
		Severity:             e.Severity,
		DurationMS:           e.Duration.Milliseconds(),
		HeadForwardDeltaDeg:  e.HeadForwardDeltaDeg,
		ShoulderTiltDeltaDeg: e.ShoulderTiltDeltaDeg,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := uuid.Parse(w.ID)
	if err != nil {
		return err
	}
	*e = Event{
		ID:                   id,
		At:                   w.At,
		Severity:             w.Severity,
		Duration:             time.Duration(w.DurationMS) * time.Millisecond,
		HeadForwardDeltaDeg:  w.HeadForwardDeltaDeg,
		ShoulderTiltDeltaDeg: w.ShoulderTiltDeltaDeg,
	}
	return nil
}
