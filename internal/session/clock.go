package session

import (
	"math"
	"sync/atomic"
	"time"
)

// WallClock reports playback time as the wall time elapsed since it was
// created. A positive Loop wraps playback so the target repeats.
type WallClock struct {
	start time.Time
	loop  float64
	now   func() time.Time
}

// NewWallClock returns a clock starting now that wraps every loop seconds.
// A loop of zero never wraps.
func NewWallClock(loop float64) *WallClock {
	return &WallClock{start: time.Now(), loop: loop, now: time.Now}
}

// PlaybackTime implements Clock.
func (c *WallClock) PlaybackTime() float64 {
	t := c.now().Sub(c.start).Seconds()
	if c.loop > 0 {
		t = math.Mod(t, c.loop)
	}
	return t
}

// ManualClock reports whatever playback time was last set. The practice
// WebSocket uses it to follow the browser's video position.
type ManualClock struct {
	bits atomic.Uint64
}

// Set stores the current playback time in seconds.
func (c *ManualClock) Set(t float64) {
	c.bits.Store(math.Float64bits(t))
}

// PlaybackTime implements Clock.
func (c *ManualClock) PlaybackTime() float64 {
	return math.Float64frombits(c.bits.Load())
}
