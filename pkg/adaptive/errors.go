package adaptive

import "errors"

// Sentinel errors for common failure conditions.
var (
	// ErrInsufficientHistory is returned when a recompute finds fewer
	// than MinSamples observations inside the window. Recoverable: the
	// caller keeps the previous thresholds.
	ErrInsufficientHistory = errors.New("adaptive: insufficient history")
)
