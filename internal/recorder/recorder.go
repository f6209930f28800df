// Package recorder turns a reference video of a sign into a target timeline
// by running the landmark detector on every frame.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/timeline"
)

// Video limits.
const (
	MaxFileSize   = 100 << 20
	MinDuration   = 0.5
	MaxDuration   = 30.0
	MinResolution = 240
	MinFrameRate  = 10.0
)

var (
	// ErrUnsupportedFormat is returned for files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported video format")

	// ErrInvalidVideo is returned when a video fails the property checks.
	ErrInvalidVideo = errors.New("invalid video")
)

// SupportedFormats lists the accepted file extensions.
var SupportedFormats = []string{".mp4", ".avi", ".mov", ".mkv", ".webm"}

// Properties describes a video file.
type Properties struct {
	FPS        float64 `json:"fps"`
	FrameCount int     `json:"frame_count"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Duration   float64 `json:"duration"`
}

// Check validates the properties against the video limits.
func (p Properties) Check() error {
	switch {
	case p.Duration < MinDuration:
		return fmt.Errorf("%w: too short (%.1fs), minimum %.1fs", ErrInvalidVideo, p.Duration, MinDuration)
	case p.Duration > MaxDuration:
		return fmt.Errorf("%w: too long (%.1fs), maximum %.0fs", ErrInvalidVideo, p.Duration, MaxDuration)
	case p.Width < MinResolution || p.Height < MinResolution:
		return fmt.Errorf("%w: resolution %dx%d below %dx%d", ErrInvalidVideo, p.Width, p.Height, MinResolution, MinResolution)
	case p.FPS < MinFrameRate:
		return fmt.Errorf("%w: frame rate %.1f below %.0f", ErrInvalidVideo, p.FPS, MinFrameRate)
	}
	return nil
}

// CheckFile validates the extension and size of the file at path.
func CheckFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, f := range SupportedFormats {
		if ext == f {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("%w %q, supported: %s", ErrUnsupportedFormat, ext, strings.Join(SupportedFormats, ", "))
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() > MaxFileSize {
		return fmt.Errorf("%w: file is %d MB, limit %d MB", ErrInvalidVideo, info.Size()>>20, MaxFileSize>>20)
	}
	return nil
}

// video is the part of gocv.VideoCapture the recorder uses.
type video interface {
	Read(m *gocv.Mat) bool
	Get(prop gocv.VideoCaptureProperties) float64
	Close() error
}

var openVideo = func(path string) (video, error) {
	return gocv.VideoCaptureFile(path)
}

// Recorder extracts timelines from videos.
type Recorder struct {
	detector detector.Detector
	logger   *slog.Logger
}

// New creates a Recorder using det for landmark detection.
func New(det detector.Detector, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{detector: det, logger: logger}
}

// Record reads the video at path and returns the timeline for sign. Frame
// timestamps are index / fps. Frames where detection fails are kept with no
// landmarks.
func (r *Recorder) Record(ctx context.Context, path, sign string) (*timeline.Timeline, error) {
	if err := CheckFile(path); err != nil {
		return nil, err
	}

	v, err := openVideo(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	defer v.Close()

	props := readProperties(v)
	if err := props.Check(); err != nil {
		return nil, err
	}

	r.logger.Info("processing video", "sign", sign, "frames", props.FrameCount, "fps", props.FPS)
	return r.extract(ctx, v, sign, props)
}

func readProperties(v video) Properties {
	p := Properties{
		FPS:        v.Get(gocv.VideoCaptureFPS),
		FrameCount: int(v.Get(gocv.VideoCaptureFrameCount)),
		Width:      int(v.Get(gocv.VideoCaptureFrameWidth)),
		Height:     int(v.Get(gocv.VideoCaptureFrameHeight)),
	}
	if p.FPS > 0 {
		p.Duration = float64(p.FrameCount) / p.FPS
	}
	return p
}

func (r *Recorder) extract(ctx context.Context, v video, sign string, props Properties) (*timeline.Timeline, error) {
	frame := gocv.NewMat()
	defer frame.Close()

	tl := &timeline.Timeline{Sign: sign, FrameRate: props.FPS}
	var failed, withHands int

	for idx := 0; ; idx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !v.Read(&frame) || frame.Empty() {
			break
		}

		f := timeline.Frame{Index: idx, Timestamp: float64(idx) / props.FPS}
		obs, err := r.detector.Detect(&frame)
		if err != nil {
			failed++
			r.logger.Debug("frame detection failed", "frame", idx, "error", err)
		} else {
			if len(obs.Hands) > 0 {
				f.Hand = obs.Hands[0]
				withHands++
			}
			f.Pose = obs.Pose
		}
		tl.Frames = append(tl.Frames, f)

		if (idx+1)%30 == 0 {
			r.logger.Debug("processed frames", "done", idx+1, "total", props.FrameCount)
		}
	}

	if len(tl.Frames) > 0 {
		tl.Duration = float64(len(tl.Frames)) / props.FPS
	}
	if err := tl.Validate(); err != nil {
		return nil, err
	}

	r.logger.Info("video processed", "sign", sign, "frames", len(tl.Frames),
		"with_hands", withHands, "failed", failed)
	return tl, nil
}
