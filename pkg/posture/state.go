package posture

// State is the debounced posture classification reported by the engine.
type State string

const (
	// StateUncalibrated is the only state reachable without a baseline.
	// Classification does not run until a calibration succeeds.
	StateUncalibrated State = "uncalibrated"

	// StateGood means every enabled feature is inside its threshold.
	StateGood State = "good"

	// StateWarning means bad posture has been held past the warning window.
	StateWarning State = "warning"

	// StateSlouching means bad posture has been held past the slouch window.
	StateSlouching State = "slouching"
)

// Severity ranks states for upgrade decisions. Higher is worse.
func (s State) Severity() int {
	switch s {
	case StateWarning:
		return 1
	case StateSlouching:
		return 2
	default:
		return 0
	}
}

// Valid reports whether s is one of the defined states.
func (s State) Valid() bool {
	switch s {
	case StateUncalibrated, StateGood, StateWarning, StateSlouching:
		return true
	}
	return false
}

func (s State) String() string {
	return string(s)
}
