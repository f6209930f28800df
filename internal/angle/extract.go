package angle

import (
	"fmt"
	"math"

	lm "github.com/ayusman/mudra/internal/landmark"
)

// Vector holds one angle in degrees per schema joint. Degrees[i] is only
// meaningful when Valid[i] is true.
type Vector struct {
	Schema  *Schema
	Degrees []float64
	Valid   []bool
}

// Len returns the schema length of the vector.
func (v Vector) Len() int {
	return len(v.Degrees)
}

// Count returns the number of valid joints.
func (v Vector) Count() int {
	n := 0
	for _, ok := range v.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Get returns the angle of the named joint and whether it was measured.
func (v Vector) Get(name string) (float64, bool) {
	if v.Schema == nil {
		return 0, false
	}
	i := v.Schema.Index(name)
	if i < 0 || !v.Valid[i] {
		return 0, false
	}
	return v.Degrees[i], true
}

// Extract measures every joint of s on the normalized set n. Joints whose
// rays have zero length are left invalid rather than reported as 0 degrees.
func Extract(n lm.Set, s *Schema) (Vector, error) {
	if s == nil {
		return Vector{}, fmt.Errorf("extract: nil schema")
	}
	if len(n) != s.Kind.Points() {
		return Vector{}, fmt.Errorf("extract %s: %w: got %d, want %d", s.ID, lm.ErrCountMismatch, len(n), s.Kind.Points())
	}

	v := Vector{
		Schema:  s,
		Degrees: make([]float64, len(s.Joints)),
		Valid:   make([]bool, len(s.Joints)),
	}
	for i, j := range s.Joints {
		deg, ok := jointAngle(n[j.A], n[j.B], n[j.C])
		v.Degrees[i] = deg
		v.Valid[i] = ok
	}
	return v, nil
}

// jointAngle returns the angle ABC in degrees. Joints with a zero-length
// ray have no angle.
func jointAngle(a, b, c lm.Point3) (float64, bool) {
	ba := a.Vec().Sub(b.Vec())
	bc := c.Vec().Sub(b.Vec())
	if ba.Norm() == 0 || bc.Norm() == 0 {
		return 0, false
	}
	deg := ba.Angle(bc).Degrees()
	if math.IsNaN(deg) {
		return 0, false
	}
	return deg, true
}
