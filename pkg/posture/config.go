package posture

import "time"

// Config holds all tunable parameters for posture classification
type Config struct {
	// Timing
	SampleInterval     time.Duration // How often the loop classifies a frame
	WarningAfter       time.Duration // Sustained bad posture before Warning
	SlouchAfter        time.Duration // Sustained bad posture before Slouching
	CalibrationTimeout time.Duration // Max wait for a calibration frame

	// Feature thresholds (degrees of drift from baseline; <= 0 disables the feature)
	HeadForwardThresholdDeg      float64
	ShoulderTiltThresholdDeg     float64
	ShoulderSymmetryThresholdDeg float64
	BackRoundingThresholdDeg     float64

	// Calibration
	MinConfidence float64 // Keypoint confidence floor for baseline capture (0-1)
}

// DefaultConfig returns the recommended configuration for desk monitoring
func DefaultConfig() Config {
	return Config{
		// Timing
		SampleInterval:     1500 * time.Millisecond, // Classify at most ~0.7 frames per second
		WarningAfter:       5 * time.Second,         // Short grace for momentary leans
		SlouchAfter:        15 * time.Second,        // Sustained slouch before escalating
		CalibrationTimeout: 5 * time.Second,

		// Thresholds - tolerances before a feature counts as bad
		HeadForwardThresholdDeg:      12,
		ShoulderTiltThresholdDeg:     8,
		ShoulderSymmetryThresholdDeg: 6,
		BackRoundingThresholdDeg:     15,

		// Calibration
		MinConfidence: 0.5,
	}
}

// RelaxedConfig returns a configuration that tolerates more drift before
// flagging, for users who find the defaults too eager
func RelaxedConfig() Config {
	cfg := DefaultConfig()
	cfg.WarningAfter = 8 * time.Second
	cfg.SlouchAfter = 30 * time.Second
	cfg.HeadForwardThresholdDeg = 16
	cfg.ShoulderTiltThresholdDeg = 11
	cfg.ShoulderSymmetryThresholdDeg = 8
	cfg.BackRoundingThresholdDeg = 20
	return cfg
}

// StrictConfig returns a configuration for tighter posture discipline
func StrictConfig() Config {
	cfg := DefaultConfig()
	cfg.WarningAfter = 3 * time.Second
	cfg.SlouchAfter = 10 * time.Second
	cfg.HeadForwardThresholdDeg = 9
	cfg.ShoulderTiltThresholdDeg = 6
	cfg.ShoulderSymmetryThresholdDeg = 4
	cfg.BackRoundingThresholdDeg = 12
	return cfg
}

// Validate fails fast on configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.SampleInterval <= 0 {
		return &ConfigError{Field: "SampleInterval", Reason: "must be positive"}
	}
	if c.WarningAfter <= 0 {
		return &ConfigError{Field: "WarningAfter", Reason: "must be positive"}
	}
	if c.SlouchAfter <= c.WarningAfter {
		return &ConfigError{Field: "SlouchAfter", Reason: "must exceed WarningAfter"}
	}
	if c.CalibrationTimeout <= 0 {
		return &ConfigError{Field: "CalibrationTimeout", Reason: "must be positive"}
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return &ConfigError{Field: "MinConfidence", Reason: "must be in [0,1]"}
	}
	if !c.BaseThresholds().AnyEnabled() {
		return &ConfigError{Field: "thresholds", Reason: "must enable at least one feature"}
	}
	return nil
}

// Thresholds is the per-feature drift allowance, in degrees, evaluated
// every tick. A value <= 0 disables that feature.
type Thresholds struct {
	HeadForwardDeg      float64 `json:"head_forward_deg"`
	ShoulderTiltDeg     float64 `json:"shoulder_tilt_deg"`
	ShoulderSymmetryDeg float64 `json:"shoulder_symmetry_deg"`
	BackRoundingDeg     float64 `json:"back_rounding_deg"`
}

// BaseThresholds returns the configured thresholds before any adaptive
// adjustment is overlaid.
func (c Config) BaseThresholds() Thresholds {
	return Thresholds{
		HeadForwardDeg:      c.HeadForwardThresholdDeg,
		ShoulderTiltDeg:     c.ShoulderTiltThresholdDeg,
		ShoulderSymmetryDeg: c.ShoulderSymmetryThresholdDeg,
		BackRoundingDeg:     c.BackRoundingThresholdDeg,
	}
}

// AnyEnabled reports whether at least one feature is active.
func (t Thresholds) AnyEnabled() bool {
	return t.HeadForwardDeg > 0 || t.ShoulderTiltDeg > 0 ||
		t.ShoulderSymmetryDeg > 0 || t.BackRoundingDeg > 0
}

// Exceeded reports whether any enabled feature's delta is at or past its
// threshold.
func (t Thresholds) Exceeded(m Metrics) bool {
	if t.HeadForwardDeg > 0 && m.HeadForwardDeltaDeg >= t.HeadForwardDeg {
		return true
	}
	if t.ShoulderTiltDeg > 0 && m.ShoulderTiltDeltaDeg >= t.ShoulderTiltDeg {
		return true
	}
	if t.ShoulderSymmetryDeg > 0 && m.ShoulderSymmetryDeltaDeg >= t.ShoulderSymmetryDeg {
		return true
	}
	if t.BackRoundingDeg > 0 && m.BackRoundingDeltaDeg >= t.BackRoundingDeg {
		return true
	}
	return false
}
