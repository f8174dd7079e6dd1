package adaptive

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler drives periodic recomputation. It polls a coarse ticker
// against a stored next-due timestamp instead of arming one long timer,
// so a host that sleeps through the due time catches up on the next poll
// rather than drifting by a full period.
type Scheduler struct {
	est   *Estimator
	apply func(Thresholds)

	checkInterval time.Duration
	retryInterval time.Duration
	clock         func() time.Time

	nextDue time.Time
	logger  *slog.Logger
}

// SchedulerOption customizes a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often the due time is polled.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.checkInterval = d }
}

// WithRetryInterval sets how soon a failed recompute is retried.
func WithRetryInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.retryInterval = d }
}

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.clock = clock }
}

// NewScheduler builds a scheduler that hands freshly computed thresholds
// to apply. The callback runs on the scheduler goroutine and must hand
// off to the loop (apply queue), not mutate shared state directly.
func NewScheduler(est *Estimator, apply func(Thresholds), opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		est:           est,
		apply:         apply,
		checkInterval: time.Minute,
		retryInterval: time.Hour,
		clock:         time.Now,
		logger:        slog.Default().With("component", "adaptive.scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is done. The first check fires immediately so a
// restarted daemon re-applies whatever the estimator was seeded with.
func (s *Scheduler) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single due-time check. Exposed for tests and for
// one-shot recompute commands.
func (s *Scheduler) RunOnce(ctx context.Context) {
	now := s.clock()
	if now.Before(s.nextDue) {
		return
	}

	t, ok, err := s.est.RecomputeIfStale(ctx, now)
	switch {
	case err != nil && errors.Is(err, ErrInsufficientHistory):
		s.logger.Debug("recompute skipped", "error", err)
		s.nextDue = now.Add(s.retryInterval)
	case err != nil:
		s.logger.Warn("recompute failed", "error", err)
		s.nextDue = now.Add(s.retryInterval)
	default:
		s.nextDue = t.CalculatedAt.Add(Staleness)
	}

	if ok {
		s.apply(t)
	}
}
