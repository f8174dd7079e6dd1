package sampling

import "errors"

// Sentinel errors for common failure conditions.
var (
	// ErrCalibrationTimeout is returned when no frame arrives within the
	// calibration window. Distinct from a rejected frame: nothing was in
	// view at all.
	ErrCalibrationTimeout = errors.New("sampling: calibration timed out waiting for a frame")

	// ErrCalibrationPending is returned when a calibration is requested
	// while another is still waiting for its frame.
	ErrCalibrationPending = errors.New("sampling: calibration already in progress")
)
