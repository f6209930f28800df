package compare

import (
	"math"
	"strings"

	lm "github.com/ayusman/mudra/internal/landmark"
)

// ErrorCode is a symbolic correction label. The set is closed.
type ErrorCode string

const (
	CodeNone          ErrorCode = "NONE"
	CodeNoData        ErrorCode = "NO_DATA"
	CodeHandMissing   ErrorCode = "HAND_MISSING"
	CodePoseMissing   ErrorCode = "POSE_MISSING"
	CodeThumbHigh     ErrorCode = "THUMB_HIGH"
	CodeThumbLow      ErrorCode = "THUMB_LOW"
	CodeFingersSpread ErrorCode = "FINGERS_SPREAD"
	CodeFingersClosed ErrorCode = "FINGERS_CLOSED"
	CodeWristBend     ErrorCode = "WRIST_BEND"
	CodeHandAngle     ErrorCode = "HAND_ANGLE"
	CodeArmPosition   ErrorCode = "ARM_POSITION"
)

var allCodes = []ErrorCode{
	CodeNone, CodeNoData, CodeHandMissing, CodePoseMissing,
	CodeThumbHigh, CodeThumbLow, CodeFingersSpread, CodeFingersClosed,
	CodeWristBend, CodeHandAngle, CodeArmPosition,
}

// AllErrorCodes returns every code in a fixed order.
func AllErrorCodes() []ErrorCode {
	out := make([]ErrorCode, len(allCodes))
	copy(out, allCodes)
	return out
}

// Valid reports whether c is one of the known codes.
func (c ErrorCode) Valid() bool {
	for _, k := range allCodes {
		if c == k {
			return true
		}
	}
	return false
}

// Actionable reports whether c asks the user to change their pose.
func (c ErrorCode) Actionable() bool {
	switch c {
	case CodeNone, CodeNoData:
		return false
	}
	return c.Valid()
}

// Classify maps the worst joint of a part and its signed error (user minus
// target, in degrees) to an error code.
func Classify(kind lm.Kind, joint string, signed float64, cal Calibration) ErrorCode {
	if joint == "" || math.Abs(signed) <= cal.ToleranceDegrees {
		return CodeNone
	}

	switch kind {
	case lm.KindBody:
		return CodeArmPosition
	case lm.KindHand:
		switch {
		case strings.Contains(joint, "thumb"):
			if signed > 0 {
				return CodeThumbHigh
			}
			return CodeThumbLow
		case isFinger(joint):
			if signed > cal.FingerSpreadDegrees {
				return CodeFingersSpread
			}
			return CodeFingersClosed
		case strings.Contains(joint, "wrist"):
			return CodeWristBend
		default:
			return CodeHandAngle
		}
	default:
		return CodeNone
	}
}

func isFinger(joint string) bool {
	for _, f := range []string{"index", "middle", "ring", "pinky"} {
		if strings.Contains(joint, f) {
			return true
		}
	}
	return false
}
