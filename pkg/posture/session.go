// Package posture implements the real-time posture classification engine:
// feature extraction from body landmarks, baseline calibration, and the
// debounced state machine that turns per-tick threshold crossings into
// Good / Warning / Slouching.
//
// The engine is deterministic. Every time-dependent operation takes an
// explicit now, so identical input sequences reproduce identical states
// and events; only event IDs differ between runs.
package posture

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/posturekit/go-posture/pkg/landmark"
)

// Update is the engine's per-tick output, delivered to the host sink on
// every classified frame. Metrics is nil when the tick had no usable
// landmarks; Event is non-nil only on upgrade transitions.
type Update struct {
	State   State    `json:"state"`
	Metrics *Metrics `json:"metrics,omitempty"`
	Event   *Event   `json:"event,omitempty"`
}

// Session owns all mutable classification state for one monitoring run:
// the baseline, the state machine and the effective thresholds. Hosts
// create a Session and route every mutation through it; there are no
// package-level globals.
type Session struct {
	mu       sync.RWMutex
	id       uuid.UUID
	cfg      Config
	machine  *Machine
	baseline *Baseline
}

// NewSession builds a session with a fresh identity. The config is
// validated here so a bad config fails at construction, not at tick time.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Session{
		id:      uuid.New(),
		cfg:     cfg,
		machine: NewMachine(cfg),
	}, nil
}

// ID returns the session identity.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Config returns the engine configuration in effect.
func (s *Session) Config() Config {
	return s.cfg
}

// State returns the last reported state without advancing the machine.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.State()
}

// Baseline returns a copy of the current baseline and whether one exists.
func (s *Session) Baseline() (Baseline, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.baseline == nil {
		return Baseline{}, false
	}
	return *s.baseline, true
}

// EffectiveThresholds returns the thresholds the machine is evaluating.
func (s *Session) EffectiveThresholds() Thresholds {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.machine.Thresholds()
}

// SetThresholds replaces the effective thresholds, typically after an
// adaptive recompute. Applies from the next tick.
func (s *Session) SetThresholds(t Thresholds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machine.SetThresholds(t)
}

// Calibrate captures a new baseline from set, observed at the given time.
// On success the previous baseline is replaced in one step and the
// machine restarts from Good with cleared hysteresis; on failure the
// previous baseline and state are untouched.
func (s *Session) Calibrate(set *landmark.Set, at time.Time) (Baseline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := Calibrate(set, s.cfg.MinConfidence, at)
	if err != nil {
		return Baseline{}, err
	}
	s.baseline = &b
	s.machine.Reset()
	return b, nil
}

// ClearBaseline drops the baseline and returns the machine to Uncalibrated.
func (s *Session) ClearBaseline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseline = nil
	s.machine.Clear()
}

// Tick classifies one landmark observation at time now and returns the
// update to publish. A nil or incomplete set means no usable detection:
// metrics come back nil and the machine holds its previous state.
func (s *Session) Tick(set *landmark.Set, now time.Time) Update {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics, ok := ComputeMetrics(set, s.baseline)
	state, event := s.machine.Tick(metrics, ok, now)
	if event != nil {
		event.ID = uuid.New()
	}

	u := Update{State: state, Event: event}
	if ok {
		u.Metrics = &metrics
	}
	return u
}
