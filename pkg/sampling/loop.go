// Package sampling drives the posture engine at a fixed cadence. The
// loop goroutine is the only writer of session state: frame producers
// deposit into a latest-wins mailbox, out-of-band mutations queue up and
// drain between ticks, and calibration suspends classification for
// exactly one frame.
package sampling

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/posture"
)

// SampleRecorder receives one drift sample per calibrated tick. The
// implementation must not block; the loop calls it inline.
type SampleRecorder interface {
	Record(sample adaptive.Sample)
}

type calibrationResult struct {
	baseline posture.Baseline
	err      error
}

type calibrationRequest struct {
	resp chan calibrationResult
}

type pendingCalibration struct {
	resp     chan calibrationResult
	deadline time.Time
}

// Loop owns the tick cycle for one session.
type Loop struct {
	session  *posture.Session
	mailbox  *Mailbox
	recorder SampleRecorder

	interval           time.Duration
	calibrationTimeout time.Duration
	clock              func() time.Time

	onUpdate  []func(posture.Update)
	apply     chan func()
	calibrate chan calibrationRequest
	pending   *pendingCalibration

	ticks  atomic.Uint64
	logger *slog.Logger
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) LoopOption {
	return func(l *Loop) { l.clock = clock }
}

// WithRecorder attaches a drift-sample recorder.
func WithRecorder(r SampleRecorder) LoopOption {
	return func(l *Loop) { l.recorder = r }
}

// WithInterval overrides the session's configured sample interval.
func WithInterval(d time.Duration) LoopOption {
	return func(l *Loop) { l.interval = d }
}

// NewLoop builds a loop around session and mailbox. Interval and
// calibration timeout come from the session config unless overridden.
func NewLoop(session *posture.Session, mailbox *Mailbox, opts ...LoopOption) *Loop {
	cfg := session.Config()
	l := &Loop{
		session:            session,
		mailbox:            mailbox,
		interval:           cfg.SampleInterval,
		calibrationTimeout: cfg.CalibrationTimeout,
		clock:              time.Now,
		apply:              make(chan func(), 16),
		calibrate:          make(chan calibrationRequest, 1),
		logger:             slog.Default().With("component", "sampling"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// OnUpdate registers a sink for every published update. Register before
// Run; the callbacks run on the loop goroutine and must not block.
func (l *Loop) OnUpdate(fn func(posture.Update)) {
	l.onUpdate = append(l.onUpdate, fn)
}

// Ticks returns how many frames have been classified.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Run drives the tick cycle until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("sampling loop started", "interval", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.failPending(ctx.Err())
			l.logger.Info("sampling loop stopped")
			return
		case fn := <-l.apply:
			fn()
		case req := <-l.calibrate:
			l.acceptCalibration(req)
		case <-ticker.C:
			l.tick()
		}
	}
}

// Apply hands a mutation to the loop goroutine, to run between ticks.
// Non-blocking; returns false when the queue is full.
func (l *Loop) Apply(fn func()) bool {
	select {
	case l.apply <- fn:
		return true
	default:
		return false
	}
}

// Calibrate suspends classification for exactly one subsequent frame and
// consumes it as the calibration sample. It blocks until the baseline is
// captured, the frame is rejected, the calibration window elapses
// (ErrCalibrationTimeout), or ctx is done.
func (l *Loop) Calibrate(ctx context.Context) (posture.Baseline, error) {
	req := calibrationRequest{resp: make(chan calibrationResult, 1)}
	select {
	case l.calibrate <- req:
	default:
		return posture.Baseline{}, ErrCalibrationPending
	}

	select {
	case res := <-req.resp:
		return res.baseline, res.err
	case <-ctx.Done():
		return posture.Baseline{}, ctx.Err()
	}
}

func (l *Loop) acceptCalibration(req calibrationRequest) {
	if l.pending != nil {
		req.resp <- calibrationResult{err: ErrCalibrationPending}
		return
	}
	l.pending = &pendingCalibration{
		resp:     req.resp,
		deadline: l.clock().Add(l.calibrationTimeout),
	}
	l.logger.Info("calibration requested", "deadline", l.pending.deadline)
}

func (l *Loop) failPending(err error) {
	if l.pending == nil {
		return
	}
	l.pending.resp <- calibrationResult{err: err}
	l.pending = nil
}

// tick runs one cycle: resolve a pending calibration, or classify the
// latest frame. An empty mailbox means nothing happened since the last
// tick; no state change, no publish.
func (l *Loop) tick() {
	now := l.clock()

	if l.pending != nil {
		l.resolveCalibration(now)
		return
	}

	frame, ok := l.mailbox.Take()
	if !ok {
		return
	}

	update := l.session.Tick(frame.Set, now)
	l.ticks.Add(1)
	l.record(update, now)
	for _, fn := range l.onUpdate {
		fn(update)
	}
}

func (l *Loop) resolveCalibration(now time.Time) {
	if frame, ok := l.mailbox.Take(); ok {
		baseline, err := l.session.Calibrate(frame.Set, now)
		if err != nil {
			l.logger.Warn("calibration rejected", "error", err)
		} else {
			l.logger.Info("calibrated",
				"head_forward_deg", baseline.HeadForwardDeg,
				"shoulder_tilt_deg", baseline.ShoulderTiltDeg)
		}
		l.pending.resp <- calibrationResult{baseline: baseline, err: err}
		l.pending = nil
		return
	}

	if !now.Before(l.pending.deadline) {
		l.logger.Warn("calibration timed out")
		l.pending.resp <- calibrationResult{err: ErrCalibrationTimeout}
		l.pending = nil
	}
}

// record appends the drift sample for a calibrated, measurable tick.
func (l *Loop) record(u posture.Update, now time.Time) {
	if l.recorder == nil || u.Metrics == nil || u.State == posture.StateUncalibrated {
		return
	}
	l.recorder.Record(adaptive.Sample{
		At:                    now,
		HeadForwardDelta:      u.Metrics.HeadForwardDeltaDeg,
		ShoulderSymmetryDelta: u.Metrics.ShoulderSymmetryDeltaDeg,
		BackRoundingDelta:     u.Metrics.BackRoundingDeltaDeg,
	})
}
