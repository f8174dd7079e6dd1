// Package adaptive derives personalized posture thresholds from recorded
// drift history. A user who habitually sits with 10 degrees of head-forward
// drift should not be warned at the stock 12; the estimator widens (or
// tightens) each threshold to mean + 1.5 sigma of their own recent samples,
// clamped into a fixed safe band.
package adaptive

import (
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/posturekit/go-posture/pkg/posture"
)

// Recompute policy.
const (
	// HistoryWindow is how far back samples are considered.
	HistoryWindow = 7 * 24 * time.Hour

	// MinSamples is the fewest qualifying samples a recompute accepts.
	MinSamples = 100

	// Staleness is how long a computed result is reused before a
	// recompute is attempted.
	Staleness = 24 * time.Hour

	sigmaFactor = 1.5
)

// Per-feature clamp bands, in degrees. A personalized threshold never
// leaves its band no matter how the history is distributed.
const (
	headForwardFloor    = 8
	headForwardCeiling  = 20
	shoulderSymFloor    = 3
	shoulderSymCeiling  = 10
	backRoundingFloor   = 10
	backRoundingCeiling = 25
)

// Sample is one recorded drift observation, appended by the sampling
// loop whenever a calibrated tick produces metrics.
type Sample struct {
	At                    time.Time `json:"at"`
	HeadForwardDelta      float64   `json:"head_forward_delta_deg"`
	ShoulderSymmetryDelta float64   `json:"shoulder_symmetry_delta_deg"`
	BackRoundingDelta     float64   `json:"back_rounding_delta_deg"`
}

// Thresholds is a personalized sensitivity set. Recomputed wholesale,
// never adjusted incrementally. Shoulder tilt is deliberately absent:
// tilt is a symmetric, pose-independent signal that the estimator does
// not model, so it stays config-driven.
type Thresholds struct {
	HeadForwardDeg      float64   `json:"head_forward_threshold_deg"`
	ShoulderSymmetryDeg float64   `json:"shoulder_symmetry_threshold_deg"`
	BackRoundingDeg     float64   `json:"back_rounding_threshold_deg"`
	CalculatedAt        time.Time `json:"calculated_at"`
	SampleCount         int       `json:"sample_count"`
}

// Stale reports whether the thresholds are due for recomputation at now.
func (t Thresholds) Stale(now time.Time) bool {
	return t.CalculatedAt.IsZero() || now.Sub(t.CalculatedAt) >= Staleness
}

// Overlay applies the adaptive values on top of the configured base.
// Features disabled in the base (threshold <= 0) stay disabled, and
// shoulder tilt always keeps its configured value.
func (t Thresholds) Overlay(base posture.Thresholds) posture.Thresholds {
	if base.HeadForwardDeg > 0 {
		base.HeadForwardDeg = t.HeadForwardDeg
	}
	if base.ShoulderSymmetryDeg > 0 {
		base.ShoulderSymmetryDeg = t.ShoulderSymmetryDeg
	}
	if base.BackRoundingDeg > 0 {
		base.BackRoundingDeg = t.BackRoundingDeg
	}
	return base
}

// Recompute derives thresholds from history at now. Pure: the caller
// supplies the sample snapshot and the clock. Samples older than
// HistoryWindow are ignored; fewer than MinSamples qualifying samples
// fail with ErrInsufficientHistory and the caller keeps what it had.
func Recompute(history []Sample, now time.Time) (Thresholds, error) {
	cutoff := now.Add(-HistoryWindow)

	head := make([]float64, 0, len(history))
	sym := make([]float64, 0, len(history))
	back := make([]float64, 0, len(history))
	for _, s := range history {
		if s.At.Before(cutoff) {
			continue
		}
		head = append(head, s.HeadForwardDelta)
		sym = append(sym, s.ShoulderSymmetryDelta)
		back = append(back, s.BackRoundingDelta)
	}
	if len(head) < MinSamples {
		return Thresholds{}, ErrInsufficientHistory
	}

	return Thresholds{
		HeadForwardDeg:      bandedThreshold(head, headForwardFloor, headForwardCeiling),
		ShoulderSymmetryDeg: bandedThreshold(sym, shoulderSymFloor, shoulderSymCeiling),
		BackRoundingDeg:     bandedThreshold(back, backRoundingFloor, backRoundingCeiling),
		CalculatedAt:        now,
		SampleCount:         len(head),
	}, nil
}

// bandedThreshold is mean + 1.5 sigma, clamped into [floor, ceiling].
func bandedThreshold(values []float64, floor, ceiling float64) float64 {
	mean, std := stat.MeanStdDev(values, nil)
	v := mean + sigmaFactor*std
	if v < floor {
		return floor
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
