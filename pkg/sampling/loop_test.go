package sampling

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/posturekit/go-posture/pkg/adaptive"
	"github.com/posturekit/go-posture/pkg/landmark"
	"github.com/posturekit/go-posture/pkg/posture"
)

func uprightSet() *landmark.Set {
	return &landmark.Set{
		Nose:          &landmark.Point{X: 0.50, Y: 0.20},
		LeftEar:       &landmark.Point{X: 0.54, Y: 0.22},
		RightEar:      &landmark.Point{X: 0.46, Y: 0.22},
		LeftShoulder:  &landmark.Point{X: 0.60, Y: 0.42},
		RightShoulder: &landmark.Point{X: 0.40, Y: 0.42},
	}
}

func slouchSet() *landmark.Set {
	s := uprightSet()
	s.Nose = &landmark.Point{X: 0.58, Y: 0.20}
	s.LeftEar = &landmark.Point{X: 0.60, Y: 0.23}
	s.RightEar = &landmark.Point{X: 0.54, Y: 0.23}
	return s
}

// loopConfig keeps the classic two-feature deployment with a 5s/10s
// hysteresis, convenient for scripted tick sequences.
func loopConfig() posture.Config {
	cfg := posture.DefaultConfig()
	cfg.WarningAfter = 5 * time.Second
	cfg.SlouchAfter = 10 * time.Second
	return cfg
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type updateCollector struct {
	mu      sync.Mutex
	updates []posture.Update
}

func (c *updateCollector) add(u posture.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, u)
}

func (c *updateCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

func (c *updateCollector) last() posture.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates[len(c.updates)-1]
}

func (c *updateCollector) events() []posture.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var evs []posture.Event
	for _, u := range c.updates {
		if u.Event != nil {
			evs = append(evs, *u.Event)
		}
	}
	return evs
}

type fakeRecorder struct {
	mu      sync.Mutex
	samples []adaptive.Sample
}

func (f *fakeRecorder) Record(sample adaptive.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, sample)
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.samples)
}

func newManualLoop(t *testing.T, cfg posture.Config, clk *fakeClock) (*Loop, *posture.Session, *Mailbox, *updateCollector, *fakeRecorder) {
	t.Helper()
	session, err := posture.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	mb := &Mailbox{}
	col := &updateCollector{}
	rec := &fakeRecorder{}
	l := NewLoop(session, mb, WithClock(clk.Now), WithRecorder(rec))
	l.OnUpdate(col.add)
	return l, session, mb, col, rec
}

func TestLoopEmptyMailboxIsNoOp(t *testing.T) {
	clk := newFakeClock()
	l, session, _, col, rec := newManualLoop(t, loopConfig(), clk)

	if _, err := session.Calibrate(uprightSet(), clk.Now()); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	for i := 0; i < 5; i++ {
		clk.advance(1500 * time.Millisecond)
		l.tick()
	}

	if col.count() != 0 {
		t.Errorf("published %d updates with an empty mailbox, want 0", col.count())
	}
	if rec.count() != 0 {
		t.Errorf("recorded %d samples with an empty mailbox, want 0", rec.count())
	}
	if l.Ticks() != 0 {
		t.Errorf("Ticks() = %d, want 0", l.Ticks())
	}
	if session.State() != posture.StateGood {
		t.Errorf("state drifted to %v on empty ticks", session.State())
	}
}

func TestLoopClassifiesLatestFrame(t *testing.T) {
	clk := newFakeClock()
	l, session, mb, col, rec := newManualLoop(t, loopConfig(), clk)

	if _, err := session.Calibrate(uprightSet(), clk.Now()); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	// Two frames arrive between ticks; only the newest is classified.
	mb.Publish(landmark.Frame{At: clk.Now(), Set: uprightSet()})
	mb.Publish(landmark.Frame{At: clk.Now(), Set: slouchSet()})

	clk.advance(1500 * time.Millisecond)
	l.tick()

	if col.count() != 1 {
		t.Fatalf("published %d updates, want 1", col.count())
	}
	u := col.last()
	if u.State != posture.StateGood {
		t.Errorf("state = %v, want %v (inside grace window)", u.State, posture.StateGood)
	}
	if u.Metrics == nil {
		t.Fatal("update carries no metrics")
	}
	if u.Metrics.HeadForwardDeltaDeg < 15 {
		t.Errorf("head-forward delta = %v, want the slouched frame (>= 15)", u.Metrics.HeadForwardDeltaDeg)
	}
	if mb.Drops() != 1 {
		t.Errorf("Drops() = %d, want 1", mb.Drops())
	}

	if rec.count() != 1 {
		t.Fatalf("recorded %d samples, want 1", rec.count())
	}
	rec.mu.Lock()
	sample := rec.samples[0]
	rec.mu.Unlock()
	if !sample.At.Equal(clk.Now()) {
		t.Errorf("sample at %v, want tick time %v", sample.At, clk.Now())
	}
	if math.Abs(sample.HeadForwardDelta-u.Metrics.HeadForwardDeltaDeg) > 1e-9 {
		t.Errorf("sample delta = %v, want %v", sample.HeadForwardDelta, u.Metrics.HeadForwardDeltaDeg)
	}
}

func TestLoopUncalibratedPublishesWithoutRecording(t *testing.T) {
	clk := newFakeClock()
	l, _, mb, col, rec := newManualLoop(t, loopConfig(), clk)

	mb.Publish(landmark.Frame{At: clk.Now(), Set: uprightSet()})
	clk.advance(1500 * time.Millisecond)
	l.tick()

	if col.count() != 1 {
		t.Fatalf("published %d updates, want 1", col.count())
	}
	if u := col.last(); u.State != posture.StateUncalibrated || u.Metrics == nil {
		t.Errorf("update = %+v, want uncalibrated with absolute metrics", u)
	}
	if rec.count() != 0 {
		t.Errorf("recorded %d samples before calibration, want 0", rec.count())
	}
}

func TestLoopNoDetectionHoldsState(t *testing.T) {
	clk := newFakeClock()
	l, session, mb, col, rec := newManualLoop(t, loopConfig(), clk)

	if _, err := session.Calibrate(uprightSet(), clk.Now()); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	mb.Publish(landmark.Frame{At: clk.Now(), Set: nil})
	clk.advance(1500 * time.Millisecond)
	l.tick()

	if col.count() != 1 {
		t.Fatalf("published %d updates, want 1", col.count())
	}
	u := col.last()
	if u.State != posture.StateGood || u.Metrics != nil || u.Event != nil {
		t.Errorf("update = %+v, want held Good with nil metrics", u)
	}
	if rec.count() != 0 {
		t.Errorf("recorded %d samples for a no-detection tick, want 0", rec.count())
	}
}

func TestLoopEscalationAcrossTicks(t *testing.T) {
	clk := newFakeClock()
	l, session, mb, col, _ := newManualLoop(t, loopConfig(), clk)

	if _, err := session.Calibrate(uprightSet(), clk.Now()); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}

	// Slouch continuously at the 1.5s cadence for 15 seconds.
	for i := 0; i < 10; i++ {
		clk.advance(1500 * time.Millisecond)
		mb.Publish(landmark.Frame{At: clk.Now(), Set: slouchSet()})
		l.tick()
	}

	events := col.events()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (warning then slouching)", len(events))
	}
	if events[0].Severity != posture.StateWarning || events[1].Severity != posture.StateSlouching {
		t.Errorf("event severities = %v, %v, want warning then slouching", events[0].Severity, events[1].Severity)
	}
	if col.last().State != posture.StateSlouching {
		t.Errorf("final state = %v, want %v", col.last().State, posture.StateSlouching)
	}
}

func TestLoopApplyQueue(t *testing.T) {
	clk := newFakeClock()
	l, _, _, _, _ := newManualLoop(t, loopConfig(), clk)

	for i := 0; i < 16; i++ {
		if !l.Apply(func() {}) {
			t.Fatalf("Apply rejected at %d with room left", i)
		}
	}
	if l.Apply(func() {}) {
		t.Error("Apply accepted past capacity")
	}
}

func TestLoopAppliesMutationsBetweenTicks(t *testing.T) {
	cfg := loopConfig()
	cfg.SampleInterval = 5 * time.Millisecond
	session, err := posture.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	l := NewLoop(session, &Mailbox{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	tightened := cfg.BaseThresholds()
	tightened.HeadForwardDeg = 5
	if !l.Apply(func() { session.SetThresholds(tightened) }) {
		t.Fatal("Apply rejected")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if session.EffectiveThresholds().HeadForwardDeg == 5 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := session.EffectiveThresholds().HeadForwardDeg; got != 5 {
		t.Errorf("threshold = %v, want 5 applied by the loop", got)
	}

	cancel()
	<-done
}

func TestLoopCalibrateConsumesOneFrame(t *testing.T) {
	cfg := loopConfig()
	cfg.SampleInterval = 5 * time.Millisecond
	session, err := posture.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	mb := &Mailbox{}
	col := &updateCollector{}
	l := NewLoop(session, mb)
	l.OnUpdate(col.add)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	// Deliver the calibration frame shortly after the request lands.
	go func() {
		time.Sleep(25 * time.Millisecond)
		mb.Publish(landmark.Frame{At: time.Now(), Set: uprightSet()})
	}()

	baseline, err := l.Calibrate(ctx)
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if baseline.HeadForwardDeg > 0.1 {
		t.Errorf("baseline head-forward = %v, want ~0 for the upright pose", baseline.HeadForwardDeg)
	}
	if session.State() != posture.StateGood {
		t.Errorf("state after calibration = %v, want %v", session.State(), posture.StateGood)
	}

	// The calibration frame itself was consumed, not classified.
	if col.count() != 0 {
		t.Errorf("calibration frame produced %d updates, want 0", col.count())
	}

	// Classification resumes with the next frame.
	mb.Publish(landmark.Frame{At: time.Now(), Set: uprightSet()})
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && col.count() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	if col.count() == 0 {
		t.Error("no update after calibration completed")
	}

	cancel()
	<-done
}

func TestLoopCalibrateTimeout(t *testing.T) {
	cfg := loopConfig()
	cfg.SampleInterval = 5 * time.Millisecond
	cfg.CalibrationTimeout = 30 * time.Millisecond
	session, err := posture.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	l := NewLoop(session, &Mailbox{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	if _, err := l.Calibrate(ctx); !errors.Is(err, ErrCalibrationTimeout) {
		t.Errorf("err = %v, want ErrCalibrationTimeout", err)
	}

	cancel()
	<-done
}

func TestLoopCalibrateRejectsConcurrentRequest(t *testing.T) {
	cfg := loopConfig()
	cfg.SampleInterval = 5 * time.Millisecond
	cfg.CalibrationTimeout = 500 * time.Millisecond
	session, err := posture.NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	mb := &Mailbox{}
	l := NewLoop(session, mb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	firstErr := make(chan error, 1)
	go func() {
		_, err := l.Calibrate(ctx)
		firstErr <- err
	}()

	// Give the loop time to accept the first request, then pile on.
	time.Sleep(50 * time.Millisecond)
	if _, err := l.Calibrate(ctx); !errors.Is(err, ErrCalibrationPending) {
		t.Errorf("second calibrate err = %v, want ErrCalibrationPending", err)
	}

	mb.Publish(landmark.Frame{At: time.Now(), Set: uprightSet()})
	if err := <-firstErr; err != nil {
		t.Errorf("first calibrate err = %v, want nil", err)
	}

	cancel()
	<-done
}
