package coach

import "github.com/ayusman/mudra/internal/compare"

// DefaultFallback is used for codes without a dedicated line.
const DefaultFallback = "Keep practicing - you're doing great!"

var fallbackText = map[compare.ErrorCode]string{
	compare.CodeThumbHigh:     "Nice work! Lower your thumb slightly for better form.",
	compare.CodeThumbLow:      "Great effort! Try lifting your thumb just a bit higher - you're almost there!",
	compare.CodeFingersSpread: "Good job! Bring your fingers a little closer together.",
	compare.CodeFingersClosed: "You're doing well! Spread your fingers out just a touch more.",
	compare.CodeHandAngle:     "Almost perfect! Adjust your hand angle slightly.",
	compare.CodeWristBend:     "Nice effort! Keep your wrist more relaxed and natural.",
	compare.CodeArmPosition:   "Great start! Try adjusting your arm position a bit.",
	compare.CodeHandMissing:   "Raise your hand into view so we can follow along.",
	compare.CodePoseMissing:   "Step back a little so your shoulders are in view.",
	compare.CodeNoData:        "We can't see you yet - make sure you're in front of the camera.",
	compare.CodeNone:          "Looks great - keep holding that shape!",
}

// Fallback returns the built-in coaching line for code.
func Fallback(code compare.ErrorCode) string {
	if text, ok := fallbackText[code]; ok {
		return text
	}
	return DefaultFallback
}
