package posture

import (
	"math"
	"testing"

	"github.com/posturekit/go-posture/pkg/landmark"
)

const (
	floatTolerance = 1e-9
	angleTolerance = 0.05 // degrees, for geometry expectations
)

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func angleEquals(a, b float64) bool {
	return math.Abs(a-b) < angleTolerance
}

// uprightSet models a subject sitting straight, facing the camera.
// Left-side keypoints carry the larger x, as detectors report them in
// unmirrored image coordinates.
func uprightSet() *landmark.Set {
	return &landmark.Set{
		Nose:          &landmark.Point{X: 0.50, Y: 0.20},
		LeftEar:       &landmark.Point{X: 0.54, Y: 0.22},
		RightEar:      &landmark.Point{X: 0.46, Y: 0.22},
		LeftShoulder:  &landmark.Point{X: 0.60, Y: 0.42},
		RightShoulder: &landmark.Point{X: 0.40, Y: 0.42},
	}
}

// slouchSet leans the head well forward of the shoulder line, roughly 20
// degrees of head-forward drift against uprightSet.
func slouchSet() *landmark.Set {
	s := uprightSet()
	s.Nose = &landmark.Point{X: 0.58, Y: 0.20}
	s.LeftEar = &landmark.Point{X: 0.60, Y: 0.23}
	s.RightEar = &landmark.Point{X: 0.54, Y: 0.23}
	return s
}

func TestComputeMetricsUpright(t *testing.T) {
	m, ok := ComputeMetrics(uprightSet(), nil)
	if !ok {
		t.Fatal("ComputeMetrics rejected a complete set")
	}

	if !angleEquals(m.HeadForwardDeg, 0) {
		t.Errorf("HeadForwardDeg = %v, want ~0", m.HeadForwardDeg)
	}
	if !angleEquals(m.ShoulderTiltDeg, 0) {
		t.Errorf("ShoulderTiltDeg = %v, want ~0", m.ShoulderTiltDeg)
	}
	if !angleEquals(m.ShoulderSymmetryDeg, 0) {
		t.Errorf("ShoulderSymmetryDeg = %v, want ~0", m.ShoulderSymmetryDeg)
	}
	if !angleEquals(m.BackRoundingDeg, 0) {
		t.Errorf("BackRoundingDeg = %v, want ~0", m.BackRoundingDeg)
	}

	// No baseline: deltas zero, score pegged at 100.
	if !floatEquals(m.HeadForwardDeltaDeg, 0) || !floatEquals(m.ShoulderTiltDeltaDeg, 0) {
		t.Errorf("deltas without baseline = %v / %v, want 0 / 0", m.HeadForwardDeltaDeg, m.ShoulderTiltDeltaDeg)
	}
	if !floatEquals(m.CompositeScore, 100) {
		t.Errorf("CompositeScore = %v, want 100", m.CompositeScore)
	}
}

func TestComputeMetricsHeadForward(t *testing.T) {
	m, ok := ComputeMetrics(slouchSet(), nil)
	if !ok {
		t.Fatal("ComputeMetrics rejected a complete set")
	}

	// Nose 0.08 right of the shoulder midpoint, 0.22 above it:
	// atan(0.08/0.22) is just under 20 degrees.
	if !angleEquals(m.HeadForwardDeg, 19.98) {
		t.Errorf("HeadForwardDeg = %v, want ~19.98", m.HeadForwardDeg)
	}
}

func TestComputeMetricsShoulderTilt(t *testing.T) {
	s := uprightSet()
	s.LeftShoulder = &landmark.Point{X: 0.60, Y: 0.46}

	m, ok := ComputeMetrics(s, nil)
	if !ok {
		t.Fatal("ComputeMetrics rejected a complete set")
	}

	// Left shoulder dropped 0.04 over a 0.2 span: atan(0.2) ~ 11.31 deg.
	if !angleEquals(m.ShoulderTiltDeg, 11.31) {
		t.Errorf("ShoulderTiltDeg = %v, want ~11.31", m.ShoulderTiltDeg)
	}
}

func TestComputeMetricsDeltas(t *testing.T) {
	base, err := Calibrate(uprightSet(), 0.5, testTime(0))
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	m, ok := ComputeMetrics(slouchSet(), &base)
	if !ok {
		t.Fatal("ComputeMetrics rejected a complete set")
	}

	if !floatEquals(m.HeadForwardDeltaDeg, math.Abs(m.HeadForwardDeg-base.HeadForwardDeg)) {
		t.Errorf("HeadForwardDeltaDeg = %v, want |%v - %v|", m.HeadForwardDeltaDeg, m.HeadForwardDeg, base.HeadForwardDeg)
	}
	if m.HeadForwardDeltaDeg < 15 {
		t.Errorf("HeadForwardDeltaDeg = %v, want a pronounced lean (>= 15)", m.HeadForwardDeltaDeg)
	}
	if m.CompositeScore >= 100 {
		t.Errorf("CompositeScore = %v, want < 100 under drift", m.CompositeScore)
	}
}

func TestComputeMetricsPure(t *testing.T) {
	s := slouchSet()
	before := *s.Nose

	m1, ok1 := ComputeMetrics(s, nil)
	m2, ok2 := ComputeMetrics(s, nil)
	if !ok1 || !ok2 {
		t.Fatal("ComputeMetrics rejected a complete set")
	}
	if m1 != m2 {
		t.Errorf("repeated compute differs: %+v vs %+v", m1, m2)
	}
	if *s.Nose != before {
		t.Errorf("input mutated: nose %+v, want %+v", *s.Nose, before)
	}
}

func TestComputeMetricsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		set  *landmark.Set
	}{
		{"nil set", nil},
		{"empty set", &landmark.Set{}},
		{"missing right shoulder", func() *landmark.Set {
			s := uprightSet()
			s.RightShoulder = nil
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ComputeMetrics(tt.set, nil); ok {
				t.Error("ComputeMetrics accepted an unusable set")
			}
		})
	}
}

func TestCompositeScore(t *testing.T) {
	tests := []struct {
		name      string
		headDelta float64
		tiltDelta float64
		want      float64
	}{
		{"no drift", 0, 0, 100},
		{"moderate drift", 10, 10, 56},
		{"head only", 10, 0, 65},
		{"saturated", 40, 60, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := compositeScore(tt.headDelta, tt.tiltDelta); !floatEquals(got, tt.want) {
				t.Errorf("compositeScore(%v, %v) = %v, want %v", tt.headDelta, tt.tiltDelta, got, tt.want)
			}
		})
	}
}

func TestDropAngleEpsilon(t *testing.T) {
	// Coincident points must not blow up; epsilon keeps the angle finite.
	p := landmark.Point{X: 0.5, Y: 0.5}
	got := dropAngleDeg(p.Vec(), p.Vec())
	if math.IsNaN(got) || math.IsInf(got, 0) {
		t.Fatalf("dropAngleDeg on coincident points = %v", got)
	}
	if !floatEquals(got, 0) {
		t.Errorf("dropAngleDeg on coincident points = %v, want 0", got)
	}
}
