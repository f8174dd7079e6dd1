package posture

import "time"

// Machine is the time-hysteresis state machine that debounces raw
// threshold crossings into Good / Warning / Slouching. All time comes
// from the now passed to Tick; the machine never reads a clock, so
// replaying an identical input sequence reproduces the exact same state
// and event sequence.
//
// Machine is not safe for concurrent use. Session serializes access.
type Machine struct {
	warningAfter time.Duration
	slouchAfter  time.Duration
	thresholds   Thresholds

	calibrated bool
	badSince   time.Time // zero while posture is fine
	reported   State
}

// NewMachine builds a machine from cfg. It starts uncalibrated.
func NewMachine(cfg Config) *Machine {
	return &Machine{
		warningAfter: cfg.WarningAfter,
		slouchAfter:  cfg.SlouchAfter,
		thresholds:   cfg.BaseThresholds(),
		reported:     StateUncalibrated,
	}
}

// State returns the last reported state.
func (m *Machine) State() State {
	return m.reported
}

// Thresholds returns the thresholds currently in effect.
func (m *Machine) Thresholds() Thresholds {
	return m.thresholds
}

// SetThresholds swaps the effective thresholds. Applies from the next tick.
func (m *Machine) SetThresholds(t Thresholds) {
	m.thresholds = t
}

// Reset marks the machine calibrated and restarts hysteresis from Good.
// Called after every successful calibration.
func (m *Machine) Reset() {
	m.calibrated = true
	m.badSince = time.Time{}
	m.reported = StateGood
}

// Clear drops calibration. The machine reports Uncalibrated until the
// next Reset.
func (m *Machine) Clear() {
	m.calibrated = false
	m.badSince = time.Time{}
	m.reported = StateUncalibrated
}

// Tick classifies one observation. ok=false means there were no usable
// metrics this tick; the previous state is held and the bad-since timer
// is left untouched. The returned event, when non-nil, marks an upgrade
// transition; its ID is zero and is assigned by the caller.
func (m *Machine) Tick(metrics Metrics, ok bool, now time.Time) (State, *Event) {
	if !m.calibrated {
		return StateUncalibrated, nil
	}
	if !ok {
		return m.reported, nil
	}

	if !m.thresholds.Exceeded(metrics) {
		m.badSince = time.Time{}
		m.reported = StateGood
		return m.reported, nil
	}

	if m.badSince.IsZero() {
		m.badSince = now
	}
	held := now.Sub(m.badSince)

	switch {
	case held >= m.slouchAfter:
		return m.upgrade(StateSlouching, now, held, metrics)
	case held >= m.warningAfter:
		return m.upgrade(StateWarning, now, held, metrics)
	default:
		// Grace window: bad, but not long enough to say so yet. Holding
		// the prior state suppresses flicker on momentary bad frames.
		return m.reported, nil
	}
}

// upgrade moves to target, emitting an event only on the first arrival.
func (m *Machine) upgrade(target State, now time.Time, held time.Duration, metrics Metrics) (State, *Event) {
	if m.reported == target {
		return m.reported, nil
	}
	m.reported = target
	return target, &Event{
		At:                   now,
		Severity:             target,
		Duration:             held,
		HeadForwardDeltaDeg:  metrics.HeadForwardDeltaDeg,
		ShoulderTiltDeltaDeg: metrics.ShoulderTiltDeltaDeg,
	}
}
