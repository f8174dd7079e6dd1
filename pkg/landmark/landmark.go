// Package landmark defines the body-landmark data model consumed by the
// posture engine. Landmarks arrive from an external detector process (the
// pose model itself is not part of this repo) in image-normalized
// coordinates, and the engine only ever looks at the five upper-body
// keypoints it needs.
package landmark

import (
	"time"

	"github.com/golang/geo/r3"
)

// Names of the five keypoints the engine requires.
const (
	Nose          = "nose"
	LeftEar       = "left_ear"
	RightEar      = "right_ear"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
)

// Point is a single detected keypoint in image-normalized coordinates.
// X and Y are always present and lie in [0,1]. Z is depth-relative and
// unitless; Confidence is the detector's score in [0,1]. Both are optional
// because not every detector model supplies them.
type Point struct {
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	Z          *float64 `json:"z,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Depth returns the depth component and whether it was supplied.
func (p Point) Depth() (float64, bool) {
	if p.Z == nil {
		return 0, false
	}
	return *p.Z, true
}

// Score returns the detection confidence and whether it was supplied.
func (p Point) Score() (float64, bool) {
	if p.Confidence == nil {
		return 0, false
	}
	return *p.Confidence, true
}

// Vec returns the point as a 3D vector. Absent depth maps to 0 so 2D-only
// detectors produce vectors in the z=0 plane.
func (p Point) Vec() r3.Vector {
	z, _ := p.Depth()
	return r3.Vector{X: p.X, Y: p.Y, Z: z}
}

// Set is the named collection of the five keypoints the engine requires.
// A Set is usable only when all five are present; the engine rejects
// partial sets rather than substituting defaults.
type Set struct {
	Nose          *Point `json:"nose,omitempty"`
	LeftEar       *Point `json:"left_ear,omitempty"`
	RightEar      *Point `json:"right_ear,omitempty"`
	LeftShoulder  *Point `json:"left_shoulder,omitempty"`
	RightShoulder *Point `json:"right_shoulder,omitempty"`
}

// Complete reports whether all five required keypoints are present.
func (s *Set) Complete() bool {
	if s == nil {
		return false
	}
	return s.Nose != nil && s.LeftEar != nil && s.RightEar != nil &&
		s.LeftShoulder != nil && s.RightShoulder != nil
}

// Missing returns the names of absent keypoints, in a fixed order.
// Useful for calibration error messages.
func (s *Set) Missing() []string {
	var missing []string
	if s == nil {
		return []string{Nose, LeftEar, RightEar, LeftShoulder, RightShoulder}
	}
	if s.Nose == nil {
		missing = append(missing, Nose)
	}
	if s.LeftEar == nil {
		missing = append(missing, LeftEar)
	}
	if s.RightEar == nil {
		missing = append(missing, RightEar)
	}
	if s.LeftShoulder == nil {
		missing = append(missing, LeftShoulder)
	}
	if s.RightShoulder == nil {
		missing = append(missing, RightShoulder)
	}
	return missing
}

// MinScore returns the lowest confidence among the five keypoints.
// Points without a confidence are treated as fully trusted (1.0), so a
// detector that never reports confidence is not penalized. Returns 1.0
// for an incomplete set; callers are expected to check Complete first.
func (s *Set) MinScore() float64 {
	min := 1.0
	if s == nil {
		return min
	}
	for _, p := range []*Point{s.Nose, s.LeftEar, s.RightEar, s.LeftShoulder, s.RightShoulder} {
		if p == nil {
			continue
		}
		if score, ok := p.Score(); ok && score < min {
			min = score
		}
	}
	return min
}

// Midpoint returns the component-wise average of two points. Depth is
// averaged only when both points carry it; otherwise it is 0, matching
// the 2D fallback used throughout the feature math.
func Midpoint(a, b Point) r3.Vector {
	mid := r3.Vector{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
	za, aok := a.Depth()
	zb, bok := b.Depth()
	if aok && bok {
		mid.Z = (za + zb) / 2
	}
	return mid
}

// Frame is one detector observation: a complete set of landmarks, or an
// explicit no-detection signal (nil Set). At is the capture timestamp
// assigned by the producer.
type Frame struct {
	At  time.Time
	Set *Set
}

// Detected reports whether the frame carries a landmark set at all.
// The set may still be incomplete; that is the engine's call to make.
func (f Frame) Detected() bool {
	return f.Set != nil
}
