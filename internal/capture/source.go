package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	lm "github.com/ayusman/mudra/internal/landmark"
)

// DefaultStillHold is how long a still scene may reuse the last detection.
const DefaultStillHold = 2 * time.Second

// SourceStats counts what a Source did with the frames it read.
type SourceStats struct {
	Frames   int64 `json:"frames"`
	Detected int64 `json:"detected"`
	Reused   int64 `json:"reused"`
	Errors   int64 `json:"errors"`
}

// SourceConfig configures a Source.
type SourceConfig struct {
	Camera   Camera
	Detector detector.Detector
	// Motion is optional. Without it every frame is sent to the detector.
	Motion *MotionDetector
	// Preview is optional and receives every frame read.
	Preview *Preview
	// StillHold bounds how long a still scene reuses the last observation.
	StillHold time.Duration
	Logger    *slog.Logger
}

// Source reads the camera and detects landmarks for a practice session.
// While the motion detector sees a still scene the previous observation is
// reused, for at most StillHold.
type Source struct {
	camera   Camera
	detector detector.Detector
	motion   *MotionDetector
	preview  *Preview
	hold     time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	last    lm.Observation
	lastAt  time.Time
	hasLast bool
	moving  bool
	stats   SourceStats
	nowFunc func() time.Time
}

// NewSource creates a Source. The camera must be opened by the caller.
func NewSource(cfg SourceConfig) *Source {
	if cfg.StillHold <= 0 {
		cfg.StillHold = DefaultStillHold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{
		camera:   cfg.Camera,
		detector: cfg.Detector,
		motion:   cfg.Motion,
		preview:  cfg.Preview,
		hold:     cfg.StillHold,
		logger:   cfg.Logger,
		nowFunc:  time.Now,
	}
}

// Landmarks reads one frame and returns the hands and pose in it.
func (s *Source) Landmarks(ctx context.Context) (lm.Observation, error) {
	if err := ctx.Err(); err != nil {
		return lm.Observation{}, err
	}

	frame, err := s.camera.ReadFrame()
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
		return lm.Observation{}, err
	}
	defer frame.Close()

	if s.preview != nil {
		if err := s.preview.Publish(frame); err != nil {
			s.logger.Debug("preview encode failed", "error", err)
		}
	}

	moved := true
	if s.motion != nil {
		moved, _ = s.motion.Detect(frame)
	}

	s.mu.Lock()
	s.stats.Frames++
	s.moving = moved
	now := s.nowFunc()
	if !moved && s.hasLast && now.Sub(s.lastAt) < s.hold {
		s.stats.Reused++
		obs := s.last
		s.mu.Unlock()
		return obs, nil
	}
	s.mu.Unlock()

	obs, err := s.detector.Detect(frame)
	if err != nil {
		s.mu.Lock()
		s.stats.Errors++
		s.mu.Unlock()
		return lm.Observation{}, err
	}

	s.mu.Lock()
	s.last, s.lastAt, s.hasLast = obs, now, true
	s.stats.Detected++
	s.mu.Unlock()
	return obs, nil
}

// Moving reports whether the last frame showed motion.
func (s *Source) Moving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.moving
}

// Stats returns the frame counters.
func (s *Source) Stats() SourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
