// Package landmarktest provides landmark presets for tests.
package landmarktest

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/ayusman/mudra/internal/landmark"
)

// OpenPalm returns a right hand with all fingers extended.
func OpenPalm() landmark.Set {
	s := make(landmark.Set, landmark.HandPoints)

	// Wrist at base
	s[landmark.Wrist] = landmark.Point3{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	s[landmark.ThumbCMC] = landmark.Point3{X: 0.55, Y: 0.75, Z: 0.02}
	s[landmark.ThumbMCP] = landmark.Point3{X: 0.62, Y: 0.70, Z: 0.03}
	s[landmark.ThumbIP] = landmark.Point3{X: 0.68, Y: 0.65, Z: 0.03}
	s[landmark.ThumbTip] = landmark.Point3{X: 0.73, Y: 0.60, Z: 0.03}

	s[landmark.IndexMCP] = landmark.Point3{X: 0.55, Y: 0.68, Z: 0.0}
	s[landmark.IndexPIP] = landmark.Point3{X: 0.57, Y: 0.55, Z: 0.0}
	s[landmark.IndexDIP] = landmark.Point3{X: 0.58, Y: 0.45, Z: 0.0}
	s[landmark.IndexTip] = landmark.Point3{X: 0.58, Y: 0.35, Z: 0.0}

	s[landmark.MiddleMCP] = landmark.Point3{X: 0.50, Y: 0.66, Z: 0.0}
	s[landmark.MiddlePIP] = landmark.Point3{X: 0.50, Y: 0.52, Z: 0.0}
	s[landmark.MiddleDIP] = landmark.Point3{X: 0.50, Y: 0.40, Z: 0.0}
	s[landmark.MiddleTip] = landmark.Point3{X: 0.50, Y: 0.28, Z: 0.0}

	s[landmark.RingMCP] = landmark.Point3{X: 0.45, Y: 0.68, Z: 0.0}
	s[landmark.RingPIP] = landmark.Point3{X: 0.43, Y: 0.55, Z: 0.0}
	s[landmark.RingDIP] = landmark.Point3{X: 0.42, Y: 0.45, Z: 0.0}
	s[landmark.RingTip] = landmark.Point3{X: 0.42, Y: 0.35, Z: 0.0}

	s[landmark.PinkyMCP] = landmark.Point3{X: 0.40, Y: 0.70, Z: 0.0}
	s[landmark.PinkyPIP] = landmark.Point3{X: 0.37, Y: 0.60, Z: 0.0}
	s[landmark.PinkyDIP] = landmark.Point3{X: 0.35, Y: 0.50, Z: 0.0}
	s[landmark.PinkyTip] = landmark.Point3{X: 0.34, Y: 0.42, Z: 0.0}

	return s
}

// ThumbsUp returns a right hand with the thumb raised and the other fingers curled.
func ThumbsUp() landmark.Set {
	s := make(landmark.Set, landmark.HandPoints)

	s[landmark.Wrist] = landmark.Point3{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended upward (Y decreases going up)
	s[landmark.ThumbCMC] = landmark.Point3{X: 0.55, Y: 0.75, Z: 0.0}
	s[landmark.ThumbMCP] = landmark.Point3{X: 0.58, Y: 0.65, Z: 0.0}
	s[landmark.ThumbIP] = landmark.Point3{X: 0.58, Y: 0.50, Z: 0.0}
	s[landmark.ThumbTip] = landmark.Point3{X: 0.58, Y: 0.35, Z: 0.0}

	s[landmark.IndexMCP] = landmark.Point3{X: 0.55, Y: 0.70, Z: -0.02}
	s[landmark.IndexPIP] = landmark.Point3{X: 0.55, Y: 0.68, Z: -0.05}
	s[landmark.IndexDIP] = landmark.Point3{X: 0.52, Y: 0.70, Z: -0.04}
	s[landmark.IndexTip] = landmark.Point3{X: 0.50, Y: 0.72, Z: -0.02}

	s[landmark.MiddleMCP] = landmark.Point3{X: 0.50, Y: 0.68, Z: -0.02}
	s[landmark.MiddlePIP] = landmark.Point3{X: 0.50, Y: 0.66, Z: -0.05}
	s[landmark.MiddleDIP] = landmark.Point3{X: 0.47, Y: 0.68, Z: -0.04}
	s[landmark.MiddleTip] = landmark.Point3{X: 0.45, Y: 0.70, Z: -0.02}

	s[landmark.RingMCP] = landmark.Point3{X: 0.45, Y: 0.70, Z: -0.02}
	s[landmark.RingPIP] = landmark.Point3{X: 0.45, Y: 0.68, Z: -0.05}
	s[landmark.RingDIP] = landmark.Point3{X: 0.42, Y: 0.70, Z: -0.04}
	s[landmark.RingTip] = landmark.Point3{X: 0.40, Y: 0.72, Z: -0.02}

	s[landmark.PinkyMCP] = landmark.Point3{X: 0.40, Y: 0.72, Z: -0.02}
	s[landmark.PinkyPIP] = landmark.Point3{X: 0.40, Y: 0.70, Z: -0.05}
	s[landmark.PinkyDIP] = landmark.Point3{X: 0.37, Y: 0.72, Z: -0.04}
	s[landmark.PinkyTip] = landmark.Point3{X: 0.35, Y: 0.74, Z: -0.02}

	return s
}

// ArmsOut returns a pose standing upright with both arms held out at
// shoulder height and the elbows slightly bent.
func ArmsOut() landmark.Set {
	s := neutralBody()
	s[landmark.LeftElbow] = landmark.Point3{X: 0.75, Y: 0.32, Z: 0}
	s[landmark.RightElbow] = landmark.Point3{X: 0.25, Y: 0.32, Z: 0}
	s[landmark.LeftWrist] = landmark.Point3{X: 0.88, Y: 0.25, Z: 0}
	s[landmark.RightWrist] = landmark.Point3{X: 0.12, Y: 0.25, Z: 0}
	s[landmark.LeftPinky] = landmark.Point3{X: 0.91, Y: 0.24, Z: 0}
	s[landmark.RightPinky] = landmark.Point3{X: 0.09, Y: 0.24, Z: 0}
	s[landmark.LeftIndex] = landmark.Point3{X: 0.92, Y: 0.22, Z: 0}
	s[landmark.RightIndex] = landmark.Point3{X: 0.08, Y: 0.22, Z: 0}
	s[landmark.LeftThumb] = landmark.Point3{X: 0.90, Y: 0.21, Z: 0}
	s[landmark.RightThumb] = landmark.Point3{X: 0.10, Y: 0.21, Z: 0}
	return s
}

// ArmsDown returns a pose standing upright with both arms hanging.
func ArmsDown() landmark.Set {
	s := neutralBody()
	s[landmark.LeftElbow] = landmark.Point3{X: 0.64, Y: 0.45, Z: 0}
	s[landmark.RightElbow] = landmark.Point3{X: 0.36, Y: 0.45, Z: 0}
	s[landmark.LeftWrist] = landmark.Point3{X: 0.65, Y: 0.60, Z: 0}
	s[landmark.RightWrist] = landmark.Point3{X: 0.35, Y: 0.60, Z: 0}
	s[landmark.LeftPinky] = landmark.Point3{X: 0.66, Y: 0.64, Z: 0}
	s[landmark.RightPinky] = landmark.Point3{X: 0.34, Y: 0.64, Z: 0}
	s[landmark.LeftIndex] = landmark.Point3{X: 0.64, Y: 0.65, Z: 0}
	s[landmark.RightIndex] = landmark.Point3{X: 0.36, Y: 0.65, Z: 0}
	s[landmark.LeftThumb] = landmark.Point3{X: 0.63, Y: 0.63, Z: 0}
	s[landmark.RightThumb] = landmark.Point3{X: 0.37, Y: 0.63, Z: 0}
	return s
}

// neutralBody fills a 33-point pose with the head, torso and legs of a
// person facing the camera. Arms are left for the caller to place.
func neutralBody() landmark.Set {
	s := make(landmark.Set, landmark.BodyPoints)
	// Face points 0-10 clustered around the nose.
	for i := 0; i <= 10; i++ {
		s[i] = landmark.Point3{X: 0.5 + float64(i%3-1)*0.02, Y: 0.15 + float64(i/3)*0.01, Z: 0}
	}
	s[landmark.LeftShoulder] = landmark.Point3{X: 0.60, Y: 0.30, Z: 0}
	s[landmark.RightShoulder] = landmark.Point3{X: 0.40, Y: 0.30, Z: 0}
	s[landmark.LeftHip] = landmark.Point3{X: 0.57, Y: 0.60, Z: 0}
	s[landmark.RightHip] = landmark.Point3{X: 0.43, Y: 0.60, Z: 0}
	s[landmark.LeftKnee] = landmark.Point3{X: 0.57, Y: 0.78, Z: 0}
	s[landmark.RightKnee] = landmark.Point3{X: 0.43, Y: 0.78, Z: 0}
	s[landmark.LeftAnkle] = landmark.Point3{X: 0.57, Y: 0.95, Z: 0}
	s[landmark.RightAnkle] = landmark.Point3{X: 0.43, Y: 0.95, Z: 0}
	s[landmark.LeftHeel] = landmark.Point3{X: 0.56, Y: 0.97, Z: 0}
	s[landmark.RightHeel] = landmark.Point3{X: 0.44, Y: 0.97, Z: 0}
	s[landmark.LeftFootIndex] = landmark.Point3{X: 0.59, Y: 0.98, Z: 0}
	s[landmark.RightFootIndex] = landmark.Point3{X: 0.41, Y: 0.98, Z: 0}
	return s
}

// Transform scales every point of s by k and then shifts it by (dx, dy, dz).
func Transform(s landmark.Set, k, dx, dy, dz float64) landmark.Set {
	out := make(landmark.Set, len(s))
	for i, p := range s {
		out[i] = landmark.Point3{X: p.X*k + dx, Y: p.Y*k + dy, Z: p.Z*k + dz}
	}
	return out
}

// Collapsed returns a set of n points all at the same position.
func Collapsed(n int) landmark.Set {
	s := make(landmark.Set, n)
	for i := range s {
		s[i] = landmark.Point3{X: 0.5, Y: 0.5, Z: 0}
	}
	return s
}

// Curl holds the angle in degrees at the three joints of one digit, from
// its base joint outwards. 180 is a straight joint.
type Curl [3]float64

// Straight is a fully extended digit.
var Straight = Curl{180, 180, 180}

// Uniform returns a digit bent to deg at every joint.
func Uniform(deg float64) Curl {
	return Curl{deg, deg, deg}
}

type digit struct {
	base    landmark.Point3
	indices [4]int
	lengths [3]float64
}

// digits lists the chains wrist -> base -> ... -> tip of a right hand, in
// thumb, index, middle, ring, pinky order.
var digits = [5]digit{
	{landmark.Point3{X: 0.55, Y: 0.75}, [4]int{landmark.ThumbCMC, landmark.ThumbMCP, landmark.ThumbIP, landmark.ThumbTip}, [3]float64{0.07, 0.06, 0.05}},
	{landmark.Point3{X: 0.55, Y: 0.68}, [4]int{landmark.IndexMCP, landmark.IndexPIP, landmark.IndexDIP, landmark.IndexTip}, [3]float64{0.12, 0.10, 0.08}},
	{landmark.Point3{X: 0.50, Y: 0.66}, [4]int{landmark.MiddleMCP, landmark.MiddlePIP, landmark.MiddleDIP, landmark.MiddleTip}, [3]float64{0.13, 0.11, 0.08}},
	{landmark.Point3{X: 0.45, Y: 0.68}, [4]int{landmark.RingMCP, landmark.RingPIP, landmark.RingDIP, landmark.RingTip}, [3]float64{0.12, 0.10, 0.08}},
	{landmark.Point3{X: 0.40, Y: 0.70}, [4]int{landmark.PinkyMCP, landmark.PinkyPIP, landmark.PinkyDIP, landmark.PinkyTip}, [3]float64{0.10, 0.08, 0.06}},
}

// CurledHand returns a right hand whose digits bend toward the palm so that
// each joint measures exactly the given angle. The wrist and digit bases do
// not move, so the palm angles are the same for every curl.
func CurledHand(thumb, index, middle, ring, pinky Curl) landmark.Set {
	s := make(landmark.Set, landmark.HandPoints)
	wrist := r3.Vector{X: 0.5, Y: 0.8}
	s[landmark.Wrist] = landmark.FromVec(wrist)

	down := r3.Vector{Z: -1}
	for i, curl := range [5]Curl{thumb, index, middle, ring, pinky} {
		d := digits[i]
		p := d.base.Vec()
		s[d.indices[0]] = landmark.FromVec(p)

		// Every segment lies in the plane of the base direction and the palm
		// normal, so each joint angle is 180 minus the turn taken there.
		dir := p.Sub(wrist).Normalize()
		turn := 0.0
		for j := 0; j < 3; j++ {
			turn += (180 - curl[j]) * math.Pi / 180
			seg := dir.Mul(math.Cos(turn)).Add(down.Mul(math.Sin(turn)))
			p = p.Add(seg.Mul(d.lengths[j]))
			s[d.indices[j+1]] = landmark.FromVec(p)
		}
	}
	return s
}
