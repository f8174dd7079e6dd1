package adaptive

import (
	"math"
	"testing"
	"time"

	"github.com/posturekit/go-posture/pkg/posture"
)

const floatTolerance = 1e-9

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func testNow() time.Time {
	return time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)
}

// flatHistory returns n samples with constant deltas, spread hourly
// backwards from now. Constant values make mean+1.5*sigma equal the
// value itself, which keeps expectations exact.
func flatHistory(n int, now time.Time, head, sym, back float64) []Sample {
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			At:                    now.Add(-time.Duration(i) * time.Hour / 4),
			HeadForwardDelta:      head,
			ShoulderSymmetryDelta: sym,
			BackRoundingDelta:     back,
		}
	}
	return samples
}

func TestRecomputeInsufficientHistory(t *testing.T) {
	now := testNow()

	if _, err := Recompute(nil, now); err != ErrInsufficientHistory {
		t.Errorf("empty history err = %v, want ErrInsufficientHistory", err)
	}
	if _, err := Recompute(flatHistory(MinSamples-1, now, 10, 5, 15), now); err != ErrInsufficientHistory {
		t.Errorf("%d samples err = %v, want ErrInsufficientHistory", MinSamples-1, err)
	}
	if _, err := Recompute(flatHistory(MinSamples, now, 10, 5, 15), now); err != nil {
		t.Errorf("%d samples err = %v, want nil", MinSamples, err)
	}
}

func TestRecomputeWindowFilter(t *testing.T) {
	now := testNow()

	// 80 recent samples plus 50 just outside the window: not enough.
	history := flatHistory(80, now, 10, 5, 15)
	old := now.Add(-HistoryWindow - time.Hour)
	for i := 0; i < 50; i++ {
		history = append(history, Sample{At: old, HeadForwardDelta: 10})
	}
	if _, err := Recompute(history, now); err != ErrInsufficientHistory {
		t.Fatalf("err = %v, want ErrInsufficientHistory with stale bulk", err)
	}

	// Top up inside the window: the stale samples still do not count.
	history = append(history, flatHistory(40, now, 10, 5, 15)...)
	thresholds, err := Recompute(history, now)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if thresholds.SampleCount != 120 {
		t.Errorf("SampleCount = %d, want 120 (window only)", thresholds.SampleCount)
	}
}

func TestRecomputeConstantHistory(t *testing.T) {
	now := testNow()

	thresholds, err := Recompute(flatHistory(150, now, 10, 5, 15), now)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}

	if !floatEquals(thresholds.HeadForwardDeg, 10) {
		t.Errorf("HeadForwardDeg = %v, want 10", thresholds.HeadForwardDeg)
	}
	if !floatEquals(thresholds.ShoulderSymmetryDeg, 5) {
		t.Errorf("ShoulderSymmetryDeg = %v, want 5", thresholds.ShoulderSymmetryDeg)
	}
	if !floatEquals(thresholds.BackRoundingDeg, 15) {
		t.Errorf("BackRoundingDeg = %v, want 15", thresholds.BackRoundingDeg)
	}
	if !thresholds.CalculatedAt.Equal(now) {
		t.Errorf("CalculatedAt = %v, want %v", thresholds.CalculatedAt, now)
	}
	if thresholds.SampleCount != 150 {
		t.Errorf("SampleCount = %d, want 150", thresholds.SampleCount)
	}
}

func TestRecomputeClamping(t *testing.T) {
	now := testNow()

	tests := []struct {
		name            string
		head, sym, back float64
		wantHead        float64
		wantSym         float64
		wantBack        float64
	}{
		{"floors", 1, 0.5, 2, 8, 3, 10},
		{"ceilings", 90, 45, 60, 20, 10, 25},
		{"inside bands", 12, 6, 18, 12, 6, 18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			thresholds, err := Recompute(flatHistory(120, now, tt.head, tt.sym, tt.back), now)
			if err != nil {
				t.Fatalf("Recompute: %v", err)
			}
			if !floatEquals(thresholds.HeadForwardDeg, tt.wantHead) {
				t.Errorf("HeadForwardDeg = %v, want %v", thresholds.HeadForwardDeg, tt.wantHead)
			}
			if !floatEquals(thresholds.ShoulderSymmetryDeg, tt.wantSym) {
				t.Errorf("ShoulderSymmetryDeg = %v, want %v", thresholds.ShoulderSymmetryDeg, tt.wantSym)
			}
			if !floatEquals(thresholds.BackRoundingDeg, tt.wantBack) {
				t.Errorf("BackRoundingDeg = %v, want %v", thresholds.BackRoundingDeg, tt.wantBack)
			}
		})
	}
}

func TestRecomputeSpreadRaisesThreshold(t *testing.T) {
	now := testNow()

	// Alternating 8 and 16 degree drift: mean 12, sample sigma just over
	// 4, so the personalized threshold lands above the mean but inside
	// the band.
	history := make([]Sample, 120)
	for i := range history {
		v := 8.0
		if i%2 == 1 {
			v = 16.0
		}
		history[i] = Sample{At: now.Add(-time.Duration(i) * time.Minute), HeadForwardDelta: v, ShoulderSymmetryDelta: 5, BackRoundingDelta: 15}
	}

	thresholds, err := Recompute(history, now)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if thresholds.HeadForwardDeg <= 12 {
		t.Errorf("HeadForwardDeg = %v, want above the 12 degree mean", thresholds.HeadForwardDeg)
	}
	if thresholds.HeadForwardDeg > headForwardCeiling {
		t.Errorf("HeadForwardDeg = %v, escaped the ceiling %v", thresholds.HeadForwardDeg, headForwardCeiling)
	}
}

func TestThresholdsStale(t *testing.T) {
	now := testNow()

	if !(Thresholds{}).Stale(now) {
		t.Error("zero-value thresholds should be stale")
	}
	fresh := Thresholds{CalculatedAt: now.Add(-Staleness + time.Minute)}
	if fresh.Stale(now) {
		t.Error("thresholds under 24h old reported stale")
	}
	old := Thresholds{CalculatedAt: now.Add(-Staleness)}
	if !old.Stale(now) {
		t.Error("thresholds exactly 24h old should be stale")
	}
}

func TestOverlay(t *testing.T) {
	base := posture.Thresholds{
		HeadForwardDeg:      12,
		ShoulderTiltDeg:     8,
		ShoulderSymmetryDeg: 6,
		BackRoundingDeg:     15,
	}
	adaptive := Thresholds{HeadForwardDeg: 17, ShoulderSymmetryDeg: 4, BackRoundingDeg: 22}

	got := adaptive.Overlay(base)
	if !floatEquals(got.HeadForwardDeg, 17) {
		t.Errorf("HeadForwardDeg = %v, want 17", got.HeadForwardDeg)
	}
	if !floatEquals(got.ShoulderSymmetryDeg, 4) {
		t.Errorf("ShoulderSymmetryDeg = %v, want 4", got.ShoulderSymmetryDeg)
	}
	if !floatEquals(got.BackRoundingDeg, 22) {
		t.Errorf("BackRoundingDeg = %v, want 22", got.BackRoundingDeg)
	}
	if !floatEquals(got.ShoulderTiltDeg, 8) {
		t.Errorf("ShoulderTiltDeg = %v, want 8 (config-driven)", got.ShoulderTiltDeg)
	}
}

func TestOverlayKeepsDisabledFeatures(t *testing.T) {
	base := posture.Thresholds{HeadForwardDeg: 12} // symmetry and back-rounding off
	adaptive := Thresholds{HeadForwardDeg: 17, ShoulderSymmetryDeg: 4, BackRoundingDeg: 22}

	got := adaptive.Overlay(base)
	if got.ShoulderSymmetryDeg != 0 || got.BackRoundingDeg != 0 {
		t.Errorf("Overlay re-enabled disabled features: %+v", got)
	}
	if !floatEquals(got.HeadForwardDeg, 17) {
		t.Errorf("HeadForwardDeg = %v, want 17", got.HeadForwardDeg)
	}
}
