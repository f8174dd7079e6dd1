package history

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/posturekit/go-posture/pkg/adaptive"
)

// SampleStore is the slice of Store the recorder needs.
type SampleStore interface {
	AppendSample(ctx context.Context, sample adaptive.Sample) error
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder decouples history writes from the sampling loop. Record never
// blocks: samples land in a buffered queue and a separate goroutine
// writes them out; when the queue is full the sample is dropped and
// counted. The recorder also prunes samples past the retention window
// on a coarse interval.
type Recorder struct {
	store      SampleStore
	retention  time.Duration
	bufferSize int
	pruneEvery time.Duration
	clock      func() time.Time

	ch      chan adaptive.Sample
	dropped atomic.Uint64
	logger  *slog.Logger
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithBuffer sets the queue capacity.
func WithBuffer(n int) RecorderOption {
	return func(r *Recorder) { r.bufferSize = n }
}

// WithPruneInterval sets how often expired samples are deleted.
func WithPruneInterval(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.pruneEvery = d }
}

// WithClock substitutes the time source, for tests.
func WithClock(clock func() time.Time) RecorderOption {
	return func(r *Recorder) { r.clock = clock }
}

// NewRecorder builds a recorder writing to store and retaining samples
// for the given window.
func NewRecorder(store SampleStore, retention time.Duration, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:      store,
		retention:  retention,
		bufferSize: 256,
		pruneEvery: time.Hour,
		clock:      time.Now,
		logger:     slog.Default().With("component", "history.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.ch = make(chan adaptive.Sample, r.bufferSize)
	return r
}

// Record queues one sample without blocking.
func (r *Recorder) Record(sample adaptive.Sample) {
	select {
	case r.ch <- sample:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many samples were discarded because the writer
// fell behind.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run drains the queue and prunes expired samples until ctx is done,
// then flushes whatever is still buffered.
func (r *Recorder) Run(ctx context.Context) {
	prune := time.NewTicker(r.pruneEvery)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case sample := <-r.ch:
			r.append(ctx, sample)
		case <-prune.C:
			r.prune(ctx)
		}
	}
}

func (r *Recorder) append(ctx context.Context, sample adaptive.Sample) {
	if err := r.store.AppendSample(ctx, sample); err != nil {
		r.logger.Warn("sample append failed", "error", err)
	}
}

func (r *Recorder) prune(ctx context.Context) {
	cutoff := r.clock().Add(-r.retention)
	n, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Warn("prune failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Debug("pruned samples", "count", n)
	}
}

// flush writes out anything still queued at shutdown, on a short leash.
func (r *Recorder) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case sample := <-r.ch:
			r.append(ctx, sample)
		default:
			return
		}
	}
}
