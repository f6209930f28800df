// Package angle converts normalized landmark sets into joint-angle feature
// vectors described by versioned schemas.
package angle

import (
	lm "github.com/ayusman/mudra/internal/landmark"
)

// Joint is a named angle measured at B between the rays B->A and B->C.
type Joint struct {
	Name    string
	A, B, C int
}

// Schema is an ordered, versioned list of joints for one landmark kind.
// Schemas are immutable; a changed joint list gets a new ID.
type Schema struct {
	ID     string
	Kind   lm.Kind
	Joints []Joint
	index  map[string]int
}

// Index returns the position of the named joint, or -1.
func (s *Schema) Index(name string) int {
	if i, ok := s.index[name]; ok {
		return i
	}
	return -1
}

// Len returns the number of joints in the schema.
func (s *Schema) Len() int {
	return len(s.Joints)
}

func newSchema(id string, kind lm.Kind, joints []Joint) *Schema {
	s := &Schema{ID: id, Kind: kind, Joints: joints, index: make(map[string]int, len(joints))}
	for i, j := range joints {
		s.index[j.Name] = i
	}
	return s
}

// HandV1 measures the flexion of every finger joint plus two palm angles.
var HandV1 = newSchema("hand/v1", lm.KindHand, []Joint{
	{"thumb_cmc", lm.Wrist, lm.ThumbCMC, lm.ThumbMCP},
	{"thumb_mcp", lm.ThumbCMC, lm.ThumbMCP, lm.ThumbIP},
	{"thumb_ip", lm.ThumbMCP, lm.ThumbIP, lm.ThumbTip},
	{"index_mcp", lm.Wrist, lm.IndexMCP, lm.IndexPIP},
	{"index_pip", lm.IndexMCP, lm.IndexPIP, lm.IndexDIP},
	{"index_dip", lm.IndexPIP, lm.IndexDIP, lm.IndexTip},
	{"middle_mcp", lm.Wrist, lm.MiddleMCP, lm.MiddlePIP},
	{"middle_pip", lm.MiddleMCP, lm.MiddlePIP, lm.MiddleDIP},
	{"middle_dip", lm.MiddlePIP, lm.MiddleDIP, lm.MiddleTip},
	{"ring_mcp", lm.Wrist, lm.RingMCP, lm.RingPIP},
	{"ring_pip", lm.RingMCP, lm.RingPIP, lm.RingDIP},
	{"ring_dip", lm.RingPIP, lm.RingDIP, lm.RingTip},
	{"pinky_mcp", lm.Wrist, lm.PinkyMCP, lm.PinkyPIP},
	{"pinky_pip", lm.PinkyMCP, lm.PinkyPIP, lm.PinkyDIP},
	{"pinky_dip", lm.PinkyPIP, lm.PinkyDIP, lm.PinkyTip},
	{"wrist_spread", lm.IndexMCP, lm.Wrist, lm.PinkyMCP},
	{"palm_arch", lm.IndexMCP, lm.MiddleMCP, lm.PinkyMCP},
})

// BodyV1 measures the upper-body joints that carry sign posture.
var BodyV1 = newSchema("body/v1", lm.KindBody, []Joint{
	{"left_shoulder", lm.LeftElbow, lm.LeftShoulder, lm.LeftHip},
	{"right_shoulder", lm.RightElbow, lm.RightShoulder, lm.RightHip},
	{"left_elbow", lm.LeftShoulder, lm.LeftElbow, lm.LeftWrist},
	{"right_elbow", lm.RightShoulder, lm.RightElbow, lm.RightWrist},
	{"left_wrist", lm.LeftElbow, lm.LeftWrist, lm.LeftIndex},
	{"right_wrist", lm.RightElbow, lm.RightWrist, lm.RightIndex},
	{"left_torso", lm.RightShoulder, lm.LeftShoulder, lm.LeftHip},
	{"right_torso", lm.LeftShoulder, lm.RightShoulder, lm.RightHip},
})

// SchemaFor returns the current schema for kind, or nil for KindNone.
func SchemaFor(kind lm.Kind) *Schema {
	switch kind {
	case lm.KindHand:
		return HandV1
	case lm.KindBody:
		return BodyV1
	default:
		return nil
	}
}
