package posture

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure conditions.
var (
	// ErrInsufficientLandmarks is returned when a landmark set is missing
	// required keypoints or a keypoint's confidence is below the floor.
	// Recoverable: the caller retries with the next frame.
	ErrInsufficientLandmarks = errors.New("posture: insufficient landmarks")

	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("posture: invalid config")

	// ErrNotCalibrated is returned by operations that require a baseline
	// when none has been captured yet.
	ErrNotCalibrated = errors.New("posture: not calibrated")
)

// CalibrationError reports why a candidate baseline frame was rejected.
// It unwraps to ErrInsufficientLandmarks.
type CalibrationError struct {
	// Missing lists the absent keypoints, if any.
	Missing []string

	// Score is the lowest confidence observed across the set.
	Score float64

	// Minimum is the configured confidence floor the set failed.
	Minimum float64
}

// Error implements the error interface.
func (e *CalibrationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("posture: insufficient landmarks: missing %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("posture: insufficient landmarks: confidence %.2f below minimum %.2f", e.Score, e.Minimum)
}

// Unwrap returns the sentinel so errors.Is(err, ErrInsufficientLandmarks) holds.
func (e *CalibrationError) Unwrap() error {
	return ErrInsufficientLandmarks
}

// ConfigError identifies the field that failed validation.
type ConfigError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("posture: invalid config: %s %s", e.Field, e.Reason)
}

// Unwrap returns the sentinel so errors.Is(err, ErrInvalidConfig) holds.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}
