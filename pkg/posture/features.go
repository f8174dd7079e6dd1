package posture

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/posturekit/go-posture/pkg/landmark"
)

// epsilon guards near-zero denominators in the angle math. Degenerate
// geometry is absorbed here and never surfaced as an error.
const epsilon = 1e-5

// Composite score weights and multipliers. Fixed constants, not learned.
const (
	headScoreWeight     = 0.7
	shoulderScoreWeight = 0.3
	headScoreSlope      = 5
	shoulderScoreSlope  = 3
)

// Metrics is one tick's feature measurements. Absolute angles are always
// populated for a complete set; the deltas are measured against the
// baseline and are zero when none is supplied.
type Metrics struct {
	HeadForwardDeg      float64 `json:"head_forward_deg"`
	ShoulderTiltDeg     float64 `json:"shoulder_tilt_deg"`
	ShoulderSymmetryDeg float64 `json:"shoulder_symmetry_deg"`
	BackRoundingDeg     float64 `json:"back_rounding_deg"`

	HeadForwardDeltaDeg      float64 `json:"head_forward_delta_deg"`
	ShoulderTiltDeltaDeg     float64 `json:"shoulder_tilt_delta_deg"`
	ShoulderSymmetryDeltaDeg float64 `json:"shoulder_symmetry_delta_deg"`
	BackRoundingDeltaDeg     float64 `json:"back_rounding_delta_deg"`

	// CompositeScore summarizes the head-forward and shoulder-tilt drift
	// on a 0-100 scale, 100 meaning no drift from baseline.
	CompositeScore float64 `json:"composite_score"`
}

// ComputeMetrics derives the posture features from a landmark set. The
// second return is false when the set is nil or incomplete; the caller
// treats that as "hold previous state". Pure: identical input yields
// identical output and the set is never mutated.
//
// Head-forward is measured as horizontal displacement of the nose over
// the shoulder midpoint. The depth axis is deliberately not used: Z is
// optional and unitless across detector models, so mixing it in would
// change what the angle means depending on the source.
func ComputeMetrics(set *landmark.Set, baseline *Baseline) (Metrics, bool) {
	if !set.Complete() {
		return Metrics{}, false
	}

	shoulderMid := landmark.Midpoint(*set.LeftShoulder, *set.RightShoulder)
	earMid := landmark.Midpoint(*set.LeftEar, *set.RightEar)

	m := Metrics{
		HeadForwardDeg:  dropAngleDeg(set.Nose.Vec(), shoulderMid),
		ShoulderTiltDeg: tiltAngleDeg(set.LeftShoulder.Vec(), set.RightShoulder.Vec()),
		ShoulderSymmetryDeg: math.Abs(
			dropAngleDeg(set.LeftEar.Vec(), set.LeftShoulder.Vec()) -
				dropAngleDeg(set.RightEar.Vec(), set.RightShoulder.Vec())),
		// The ear midpoint is a steadier proxy for upper-back carriage
		// than the nose, which also moves with head turns.
		BackRoundingDeg: dropAngleDeg(earMid, shoulderMid),
	}

	if baseline != nil {
		m.HeadForwardDeltaDeg = math.Abs(m.HeadForwardDeg - baseline.HeadForwardDeg)
		m.ShoulderTiltDeltaDeg = math.Abs(m.ShoulderTiltDeg - baseline.ShoulderTiltDeg)
		m.ShoulderSymmetryDeltaDeg = math.Abs(m.ShoulderSymmetryDeg - baseline.ShoulderSymmetryDeg)
		m.BackRoundingDeltaDeg = math.Abs(m.BackRoundingDeg - baseline.BackRoundingDeg)
	}
	m.CompositeScore = compositeScore(m.HeadForwardDeltaDeg, m.ShoulderTiltDeltaDeg)

	return m, true
}

// dropAngleDeg measures how far the vector from lower up to upper leans
// away from vertical, in degrees. 0 means perfectly stacked.
func dropAngleDeg(upper, lower r3.Vector) float64 {
	dx := math.Abs(upper.X - lower.X)
	dy := math.Abs(upper.Y - lower.Y)
	return degrees(math.Atan2(dx, dy+epsilon))
}

// tiltAngleDeg measures the angle of the left-to-right shoulder line
// against horizontal, in degrees. 0 means level shoulders.
func tiltAngleDeg(left, right r3.Vector) float64 {
	dy := left.Y - right.Y
	dx := left.X - right.X
	return degrees(math.Atan2(dy, dx+epsilon))
}

// compositeScore folds the two primary deltas into the 0-100 score.
func compositeScore(headDelta, tiltDelta float64) float64 {
	headScore := math.Max(0, 100-headDelta*headScoreSlope)
	shoulderScore := math.Max(0, 100-tiltDelta*shoulderScoreSlope)
	return clamp(headScoreWeight*headScore+shoulderScoreWeight*shoulderScore, 0, 100)
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
