// Package landmark defines the 3D keypoint sets produced by hand and body
// trackers and normalizes them into a size and position independent frame.
package landmark

import (
	"fmt"

	"github.com/golang/geo/r3"
)

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist      = 0
	ThumbCMC   = 1
	ThumbMCP   = 2
	ThumbIP    = 3
	ThumbTip   = 4
	IndexMCP   = 5
	IndexPIP   = 6
	IndexDIP   = 7
	IndexTip   = 8
	MiddleMCP  = 9
	MiddlePIP  = 10
	MiddleDIP  = 11
	MiddleTip  = 12
	RingMCP    = 13
	RingPIP    = 14
	RingDIP    = 15
	RingTip    = 16
	PinkyMCP   = 17
	PinkyPIP   = 18
	PinkyDIP   = 19
	PinkyTip   = 20
	HandPoints = 21
)

// Body landmark indices following the MediaPipe pose model.
const (
	Nose           = 0
	LeftShoulder   = 11
	RightShoulder  = 12
	LeftElbow      = 13
	RightElbow     = 14
	LeftWrist      = 15
	RightWrist     = 16
	LeftPinky      = 17
	RightPinky     = 18
	LeftIndex      = 19
	RightIndex     = 20
	LeftThumb      = 21
	RightThumb     = 22
	LeftHip        = 23
	RightHip       = 24
	LeftKnee       = 25
	RightKnee      = 26
	LeftAnkle      = 27
	RightAnkle     = 28
	LeftHeel       = 29
	RightHeel      = 30
	LeftFootIndex  = 31
	RightFootIndex = 32
	BodyPoints     = 33
)

// Kind identifies which tracker produced a landmark set.
type Kind int

const (
	KindNone Kind = iota
	KindHand
	KindBody
)

// Points returns the number of landmarks a set of this kind must carry.
func (k Kind) Points() int {
	switch k {
	case KindHand:
		return HandPoints
	case KindBody:
		return BodyPoints
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case KindHand:
		return "hand"
	case KindBody:
		return "body"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "hand":
		*k = KindHand
	case "body":
		*k = KindBody
	case "none", "":
		*k = KindNone
	default:
		return fmt.Errorf("unknown landmark kind %q", b)
	}
	return nil
}

// Point3 is a single landmark. X and Y are image-relative, Z is relative depth.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	// Visibility is reported by the pose model and ignored by scoring.
	Visibility float64 `json:"visibility,omitempty"`
}

// Vec converts the point to an r3 vector.
func (p Point3) Vec() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// FromVec builds a point from an r3 vector.
func FromVec(v r3.Vector) Point3 {
	return Point3{X: v.X, Y: v.Y, Z: v.Z}
}

// Set is an ordered list of landmarks. Index i always denotes the same
// anatomical point for a given Kind.
type Set []Point3

// Clone returns a copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Matches reports whether the set has exactly the point count of kind.
func (s Set) Matches(kind Kind) bool {
	return kind != KindNone && len(s) == kind.Points()
}

// Observation is what a live source reports for the current instant:
// zero or more hands and at most one body.
type Observation struct {
	Hands []Set `json:"hands,omitempty"`
	Pose  Set   `json:"pose,omitempty"`
}

// Empty reports whether the observation carries no landmarks at all.
func (o Observation) Empty() bool {
	for _, h := range o.Hands {
		if len(h) > 0 {
			return false
		}
	}
	return len(o.Pose) == 0
}
