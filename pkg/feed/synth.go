package feed

import (
	"math/rand"
	"time"

	"github.com/posturekit/go-posture/pkg/landmark"
)

type synthPoint struct {
	x, y float64
}

type synthPose struct {
	nose          synthPoint
	leftEar       synthPoint
	rightEar      synthPoint
	leftShoulder  synthPoint
	rightShoulder synthPoint
}

// Poses are normalized image coordinates with the subject facing the
// camera, so the subject's left side has the larger x.
var (
	uprightPose = synthPose{
		nose:          synthPoint{0.50, 0.20},
		leftEar:       synthPoint{0.54, 0.22},
		rightEar:      synthPoint{0.46, 0.22},
		leftShoulder:  synthPoint{0.60, 0.42},
		rightShoulder: synthPoint{0.40, 0.42},
	}
	slouchedPose = synthPose{
		nose:          synthPoint{0.58, 0.20},
		leftEar:       synthPoint{0.60, 0.23},
		rightEar:      synthPoint{0.54, 0.23},
		leftShoulder:  synthPoint{0.60, 0.42},
		rightShoulder: synthPoint{0.40, 0.42},
	}
)

// Cycle phase boundaries: hold upright, ease into the slouch, hold it,
// recover before the cycle wraps.
const (
	slouchStart  = 0.35
	slouchFull   = 0.50
	recoverStart = 0.85
)

// Synthesizer produces a repeating upright-then-slouch cycle of landmark
// sets. Each call to Next advances the cycle by one step, so the sequence
// is fully deterministic for a given seed.
type Synthesizer struct {
	cycle     time.Duration
	step      time.Duration
	jitter    float64
	dropEvery int
	rng       *rand.Rand

	elapsed time.Duration
	frames  int
}

// SynthOption configures a Synthesizer.
type SynthOption func(*Synthesizer)

// WithCycle sets the length of one full upright-slouch-recover cycle.
func WithCycle(d time.Duration) SynthOption {
	return func(s *Synthesizer) { s.cycle = d }
}

// WithStep sets how far the cycle advances per generated frame.
func WithStep(d time.Duration) SynthOption {
	return func(s *Synthesizer) { s.step = d }
}

// WithJitter sets the per-coordinate noise amplitude.
func WithJitter(amount float64) SynthOption {
	return func(s *Synthesizer) { s.jitter = amount }
}

// WithDropout makes every nth frame report no detection.
func WithDropout(n int) SynthOption {
	return func(s *Synthesizer) { s.dropEvery = n }
}

// WithSeed seeds the noise generator.
func WithSeed(seed int64) SynthOption {
	return func(s *Synthesizer) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewSynthesizer creates a slouch-cycle source with a one minute cycle
// and mild coordinate jitter.
func NewSynthesizer(opts ...SynthOption) *Synthesizer {
	s := &Synthesizer{
		cycle:  60 * time.Second,
		step:   250 * time.Millisecond,
		jitter: 0.002,
		rng:    rand.New(rand.NewSource(1)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next frame in the cycle, or nil on a dropout frame.
func (s *Synthesizer) Next() *landmark.Set {
	s.frames++
	elapsed := s.elapsed
	s.elapsed += s.step

	if s.dropEvery > 0 && s.frames%s.dropEvery == 0 {
		return nil
	}

	phase := float64(elapsed%s.cycle) / float64(s.cycle)
	w := slouchWeight(phase)

	return &landmark.Set{
		Nose:          s.point(uprightPose.nose, slouchedPose.nose, w),
		LeftEar:       s.point(uprightPose.leftEar, slouchedPose.leftEar, w),
		RightEar:      s.point(uprightPose.rightEar, slouchedPose.rightEar, w),
		LeftShoulder:  s.point(uprightPose.leftShoulder, slouchedPose.leftShoulder, w),
		RightShoulder: s.point(uprightPose.rightShoulder, slouchedPose.rightShoulder, w),
	}
}

// slouchWeight maps a cycle phase to the blend weight between the upright
// and slouched poses.
func slouchWeight(phase float64) float64 {
	switch {
	case phase < slouchStart:
		return 0
	case phase < slouchFull:
		return smoothstep((phase - slouchStart) / (slouchFull - slouchStart))
	case phase < recoverStart:
		return 1
	default:
		return 1 - smoothstep((phase-recoverStart)/(1-recoverStart))
	}
}

func smoothstep(t float64) float64 {
	return t * t * (3 - 2*t)
}

func (s *Synthesizer) point(a, b synthPoint, w float64) *landmark.Point {
	conf := clampUnit(0.92 + s.noise(0.03))
	return &landmark.Point{
		X:          lerp(a.x, b.x, w) + s.noise(s.jitter),
		Y:          lerp(a.y, b.y, w) + s.noise(s.jitter),
		Confidence: &conf,
	}
}

func (s *Synthesizer) noise(amount float64) float64 {
	if amount == 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * amount
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
