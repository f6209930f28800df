// Package timeline holds pre-recorded target landmark sequences and finds
// the target frame for a playback time.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sort"

	lm "github.com/ayusman/mudra/internal/landmark"
)

var (
	// ErrInvalidTimeline is returned when a timeline fails validation.
	ErrInvalidTimeline = errors.New("invalid timeline")

	// ErrNotFound is returned by loaders when no timeline exists for a sign.
	ErrNotFound = errors.New("timeline not found")
)

// Frame is the target landmarks at one timestamp. A nil set means the
// recording had no such part in this frame.
type Frame struct {
	Index     int
	Timestamp float64
	Hand      lm.Set
	Pose      lm.Set
}

// Observation returns the frame as an observation for comparison.
func (f Frame) Observation() lm.Observation {
	var obs lm.Observation
	if len(f.Hand) > 0 {
		obs.Hands = []lm.Set{f.Hand}
	}
	obs.Pose = f.Pose
	return obs
}

// Timeline is a validated, read-only sequence of target frames for one sign.
type Timeline struct {
	Sign      string
	FrameRate float64
	Duration  float64
	Frames    []Frame
}

// Validate checks the timeline invariants: at least one frame, a positive
// finite frame rate, and non-negative, non-decreasing timestamps.
func (tl *Timeline) Validate() error {
	if tl == nil || len(tl.Frames) == 0 {
		return fmt.Errorf("%w: no frames", ErrInvalidTimeline)
	}
	if !(tl.FrameRate > 0) || math.IsInf(tl.FrameRate, 0) {
		return fmt.Errorf("%w: frame rate %v", ErrInvalidTimeline, tl.FrameRate)
	}
	prev := math.Inf(-1)
	for i, f := range tl.Frames {
		if math.IsNaN(f.Timestamp) || f.Timestamp < 0 {
			return fmt.Errorf("%w: frame %d has timestamp %v", ErrInvalidTimeline, i, f.Timestamp)
		}
		if f.Index < 0 {
			return fmt.Errorf("%w: frame %d has index %d", ErrInvalidTimeline, i, f.Index)
		}
		if f.Timestamp < prev {
			return fmt.Errorf("%w: frame %d timestamp %v before %v", ErrInvalidTimeline, i, f.Timestamp, prev)
		}
		prev = f.Timestamp
	}
	return nil
}

// Span returns the playback length of the timeline in seconds.
func (tl *Timeline) Span() float64 {
	if tl.Duration > 0 {
		return tl.Duration
	}
	if len(tl.Frames) == 0 {
		return 0
	}
	return tl.Frames[len(tl.Frames)-1].Timestamp + 1/tl.FrameRate
}

// FrameAt returns the frame nearest to t, provided it lies within one
// frame interval of t. An exact tie between two frames picks the earlier one.
func (tl *Timeline) FrameAt(t float64) (Frame, bool) {
	n := len(tl.Frames)
	if n == 0 || !(tl.FrameRate > 0) || math.IsNaN(t) {
		return Frame{}, false
	}

	// First frame at or after t.
	i := sort.Search(n, func(i int) bool { return tl.Frames[i].Timestamp >= t })

	best := -1
	switch {
	case i == 0:
		best = 0
	case i == n:
		best = n - 1
	default:
		before, after := t-tl.Frames[i-1].Timestamp, tl.Frames[i].Timestamp-t
		if after < before {
			best = i
		} else {
			best = i - 1
		}
	}

	// Equal timestamps: report the first of the run.
	for best > 0 && tl.Frames[best-1].Timestamp == tl.Frames[best].Timestamp {
		best--
	}

	if math.Abs(tl.Frames[best].Timestamp-t) >= 1/tl.FrameRate {
		return Frame{}, false
	}
	return tl.Frames[best], true
}
