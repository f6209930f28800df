// Package detector extracts hand and body landmarks from video frames.
package detector

import (
	"gocv.io/x/gocv"

	lm "github.com/ayusman/mudra/internal/landmark"
)

// Detector defines the interface for landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the hands and body pose
	// found in it. An empty observation means nothing was detected.
	Detect(frame *gocv.Mat) (lm.Observation, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int `yaml:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `yaml:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `yaml:"min_tracking_confidence"`

	// Script is the path to the MediaPipe service script. Empty searches
	// the usual install locations.
	Script string `yaml:"script"`

	// Python is the interpreter used to run Script. Empty prefers a venv.
	Python string `yaml:"python"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
	}
}
