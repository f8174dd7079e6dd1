package posture

import (
	"time"

	"github.com/posturekit/go-posture/pkg/landmark"
)

// Baseline is the personal reference capture that every delta is measured
// against. Immutable once created; a new calibration replaces it wholesale,
// never field by field.
type Baseline struct {
	HeadForwardDeg      float64   `json:"head_forward_deg"`
	ShoulderTiltDeg     float64   `json:"shoulder_tilt_deg"`
	ShoulderSymmetryDeg float64   `json:"shoulder_symmetry_deg"`
	BackRoundingDeg     float64   `json:"back_rounding_deg"`
	CapturedAt          time.Time `json:"captured_at"`
}

// Calibrate captures a baseline from a landmark set observed at the given
// time. It fails with a CalibrationError when any of the five keypoints is
// missing or, when confidence is reported, scores below minConfidence.
// On success the set's raw angles (no baseline applied) become the new
// reference.
func Calibrate(set *landmark.Set, minConfidence float64, at time.Time) (Baseline, error) {
	if !set.Complete() {
		return Baseline{}, &CalibrationError{Missing: set.Missing()}
	}
	if score := set.MinScore(); score < minConfidence {
		return Baseline{}, &CalibrationError{Score: score, Minimum: minConfidence}
	}

	// Complete set, so metrics cannot fail here.
	m, _ := ComputeMetrics(set, nil)
	return Baseline{
		HeadForwardDeg:      m.HeadForwardDeg,
		ShoulderTiltDeg:     m.ShoulderTiltDeg,
		ShoulderSymmetryDeg: m.ShoulderSymmetryDeg,
		BackRoundingDeg:     m.BackRoundingDeg,
		CapturedAt:          at,
	}, nil
}
