package adaptive

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SampleSource supplies a snapshot of recorded drift samples. The
// snapshot must be safe to read after the call returns; the estimator
// runs on the scheduler goroutine and must never hold a lock the
// sampling loop needs.
type SampleSource interface {
	SamplesSince(ctx context.Context, cutoff time.Time) ([]Sample, error)
}

// Estimator maintains the current adaptive thresholds. Results are
// computed lazily, reused until stale, and kept in place when a
// recompute fails: a stale threshold beats no threshold.
type Estimator struct {
	mu      sync.RWMutex
	source  SampleSource
	current *Thresholds
	logger  *slog.Logger
}

// NewEstimator builds an estimator reading from source.
func NewEstimator(source SampleSource) *Estimator {
	return &Estimator{
		source: source,
		logger: slog.Default().With("component", "adaptive"),
	}
}

// Seed installs previously persisted thresholds, typically at daemon
// startup so a restart does not wait a day to regain personalization.
// Thresholds with a zero CalculatedAt are ignored.
func (e *Estimator) Seed(t Thresholds) {
	if t.CalculatedAt.IsZero() {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = &t
	e.logger.Info("seeded adaptive thresholds",
		"calculated_at", t.CalculatedAt,
		"sample_count", t.SampleCount)
}

// Current returns the thresholds in effect and whether any exist.
func (e *Estimator) Current() (Thresholds, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return Thresholds{}, false
	}
	return *e.current, true
}

// RecomputeIfStale returns the thresholds in effect at now, recomputing
// first when they are absent or older than Staleness. ok is false only
// when there is still nothing to report. The error describes a failed
// recompute attempt; a stale-but-valid result is returned alongside it.
func (e *Estimator) RecomputeIfStale(ctx context.Context, now time.Time) (Thresholds, bool, error) {
	e.mu.RLock()
	cur := e.current
	e.mu.RUnlock()

	if cur != nil && !cur.Stale(now) {
		return *cur, true, nil
	}

	next, err := e.recompute(ctx, now)
	if err != nil {
		if cur != nil {
			e.logger.Debug("keeping stale adaptive thresholds", "error", err)
			return *cur, true, err
		}
		return Thresholds{}, false, err
	}

	e.mu.Lock()
	e.current = &next
	e.mu.Unlock()
	return next, true, nil
}

func (e *Estimator) recompute(ctx context.Context, now time.Time) (Thresholds, error) {
	samples, err := e.source.SamplesSince(ctx, now.Add(-HistoryWindow))
	if err != nil {
		return Thresholds{}, fmt.Errorf("adaptive: load samples: %w", err)
	}

	t, err := Recompute(samples, now)
	if err != nil {
		return Thresholds{}, err
	}

	e.logger.Info("recomputed adaptive thresholds",
		"head_forward_deg", t.HeadForwardDeg,
		"shoulder_symmetry_deg", t.ShoulderSymmetryDeg,
		"back_rounding_deg", t.BackRoundingDeg,
		"sample_count", t.SampleCount)
	return t, nil
}
