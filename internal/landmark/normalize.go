package landmark

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// minReference is the smallest reference length accepted by Normalize.
const minReference = 1e-9

var (
	// ErrDegenerateGeometry is returned when a set has no usable size,
	// e.g. all points coincide or the shoulders overlap.
	ErrDegenerateGeometry = errors.New("degenerate landmark geometry")

	// ErrCountMismatch is returned when a set does not have the point
	// count its kind requires.
	ErrCountMismatch = errors.New("landmark count mismatch")
)

// Normalize translates raw so that its anchor sits at the origin and scales
// it by a reference length so that sets captured at different distances and
// positions become comparable. The input is not modified.
//
// Hands are anchored on the wrist and scaled by max(width, height) of their
// x/y bounding box. Bodies are anchored on the shoulder midpoint and scaled
// by the shoulder distance.
func Normalize(raw Set, kind Kind) (Set, error) {
	if kind == KindNone {
		return nil, fmt.Errorf("normalize: %w: no kind", ErrCountMismatch)
	}
	if len(raw) != kind.Points() {
		return nil, fmt.Errorf("normalize %s: %w: got %d, want %d", kind, ErrCountMismatch, len(raw), kind.Points())
	}

	var anchor r3.Vector
	var ref float64
	switch kind {
	case KindHand:
		anchor = raw[Wrist].Vec()
		ref = boundingExtent(raw)
	case KindBody:
		left := raw[LeftShoulder].Vec()
		right := raw[RightShoulder].Vec()
		anchor = left.Add(right).Mul(0.5)
		ref = left.Distance(right)
	}

	if !(ref >= minReference) || math.IsInf(ref, 0) {
		return nil, fmt.Errorf("normalize %s: %w: reference length %g", kind, ErrDegenerateGeometry, ref)
	}

	out := make(Set, len(raw))
	for i, p := range raw {
		out[i] = FromVec(p.Vec().Sub(anchor).Mul(1 / ref))
	}
	return out, nil
}

// boundingExtent returns max(width, height) of the x/y bounding box of s.
func boundingExtent(s Set) float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range s {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	return math.Max(maxX-minX, maxY-minY)
}
