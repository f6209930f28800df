// Package timelinetest builds target timelines for tests.
package timelinetest

import (
	lm "github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/timeline"
)

// Hold returns a timeline of n frames at fps that holds the same hand and
// pose throughout. Either set may be nil.
func Hold(sign string, fps float64, n int, hand, pose lm.Set) *timeline.Timeline {
	tl := &timeline.Timeline{Sign: sign, FrameRate: fps, Frames: make([]timeline.Frame, n)}
	for i := range tl.Frames {
		tl.Frames[i] = timeline.Frame{
			Index:     i,
			Timestamp: float64(i) / fps,
			Hand:      hand.Clone(),
			Pose:      pose.Clone(),
		}
	}
	tl.Duration = float64(n) / fps
	return tl
}

// Sequence returns a timeline at fps whose frame i holds hands[i]. Frames
// carry no pose.
func Sequence(sign string, fps float64, hands ...lm.Set) *timeline.Timeline {
	tl := &timeline.Timeline{Sign: sign, FrameRate: fps, Frames: make([]timeline.Frame, len(hands))}
	for i, h := range hands {
		tl.Frames[i] = timeline.Frame{Index: i, Timestamp: float64(i) / fps, Hand: h.Clone()}
	}
	tl.Duration = float64(len(hands)) / fps
	return tl
}
