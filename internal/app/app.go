// Package app wires the camera, landmark detector and practice session into
// the camera practice mode of mudra.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/compare"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// Pipeline timing constants.
const (
	// IdleFPS is the tick rate while the scene is still.
	IdleFPS = 5
	// ActiveFPS is the tick rate while the user is moving.
	ActiveFPS = 15
	// IdleTimeout is how long the scene must stay still before ticking slows down.
	IdleTimeout = 2 * time.Second
)

// ErrRunning is returned by Start while a practice run is active.
var ErrRunning = errors.New("practice already running")

// Config holds configuration options for the application.
type Config struct {
	// Store persists finished runs and, when Loader is nil, supplies timelines.
	Store  *store.Store
	Loader session.Loader

	Camera   capture.Camera
	Detector detector.Detector
	Coach    session.Coach

	Calibration       compare.Calibration
	MotionThreshold   float64
	StillHold         time.Duration
	FeedbackThreshold float64
	FeedbackTimeout   time.Duration

	// Preview is optional and receives every camera frame.
	Preview *capture.Preview

	Logger *slog.Logger

	// OnUpdate receives every tick result. It runs on the pipeline goroutine.
	OnUpdate func(session.Update)
}

// App runs one camera practice session at a time.
type App struct {
	config  Config
	camera  capture.Camera
	motion  *capture.MotionDetector
	source  *capture.Source
	session *session.Session
	logger  *slog.Logger

	mu      sync.RWMutex
	enabled bool
	last    session.Update
	hasLast bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error
}

// New creates an App from config. The camera is opened by Start.
func New(config Config) *App {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Camera == nil {
		config.Camera = capture.NewCamera(capture.DefaultCameraConfig())
	}

	a := &App{
		config:  config,
		camera:  config.Camera,
		motion:  capture.NewMotionDetector(config.MotionThreshold),
		logger:  config.Logger,
		enabled: true,
	}

	a.source = capture.NewSource(capture.SourceConfig{
		Camera:    a.camera,
		Detector:  config.Detector,
		Motion:    a.motion,
		Preview:   config.Preview,
		StillHold: config.StillHold,
		Logger:    config.Logger,
	})

	loader := config.Loader
	if loader == nil && config.Store != nil {
		loader = config.Store.Signs()
	}

	a.session = session.New(session.Config{
		Source:            a.source,
		Loader:            loader,
		Coach:             config.Coach,
		Calibration:       config.Calibration,
		FeedbackThreshold: config.FeedbackThreshold,
		FeedbackTimeout:   config.FeedbackTimeout,
		Logger:            config.Logger,
		OnFinish:          a.saveRun,
	})

	return a
}

// SetEnabled pauses or resumes ticking. A paused run keeps its timeline and
// statistics.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether ticking is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// Start opens the camera, loads the timeline for sign and starts the tick
// pipeline.
func (a *App) Start(ctx context.Context, sign string) error {
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return ErrRunning
	}
	a.mu.Unlock()

	if a.config.Detector == nil {
		return errors.New("no landmark detector configured")
	}
	if !a.camera.IsOpen() {
		if err := a.camera.Open(); err != nil {
			return err
		}
	}
	a.camera.SetFPS(IdleFPS)
	a.motion.Reset()

	if err := a.session.Start(ctx, sign); err != nil {
		a.camera.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	a.mu.Lock()
	a.cancel = cancel
	a.done = done
	a.runErr = nil
	a.hasLast = false
	a.mu.Unlock()

	ticks := make(chan time.Time)
	go a.runPipeline(runCtx, ticks)
	go func() {
		defer close(done)
		err := a.session.Run(runCtx, ticks, a.handleUpdate)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("practice run failed", "sign", sign, "error", err)
		}
		a.mu.Lock()
		a.runErr = err
		a.mu.Unlock()
	}()

	a.logger.Info("practice pipeline started", "sign", sign)
	return nil
}

// Stop ends the practice run and closes the camera. It is safe to call
// when nothing is running.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel, a.done = nil, nil
	a.mu.Unlock()

	a.session.Stop()
	if cancel != nil {
		cancel()
		<-done
	}

	if err := a.camera.Close(); err != nil {
		a.logger.Warn("error closing camera", "error", err)
	}
	if cancel != nil {
		a.logger.Info("practice pipeline stopped")
	}
}

// Close stops the pipeline and releases the motion and landmark detectors.
func (a *App) Close() error {
	a.Stop()
	a.motion.Close()
	if a.config.Detector != nil {
		return a.config.Detector.Close()
	}
	return nil
}

// Done is closed when the current run ends. It is nil when nothing runs.
func (a *App) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Last returns the most recent tick result.
func (a *App) Last() (session.Update, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last, a.hasLast
}

// Session returns the practice session.
func (a *App) Session() *session.Session {
	return a.session
}

// Source returns the camera landmark source.
func (a *App) Source() *capture.Source {
	return a.source
}

// Camera returns the camera instance.
func (a *App) Camera() capture.Camera {
	return a.camera
}

// MotionDetector returns the motion detector instance.
func (a *App) MotionDetector() *capture.MotionDetector {
	return a.motion
}

func (a *App) handleUpdate(u session.Update) {
	a.mu.Lock()
	a.last, a.hasLast = u, true
	a.mu.Unlock()

	a.logger.Debug("tick", "sign", u.Sign, "t", u.Time, "score", u.Result.Score,
		"code", u.Result.ErrorCode, "worst_joint", u.Result.WorstJoint)
	if u.Feedback != nil {
		a.logger.Info("coaching", "sign", u.Sign, "code", u.Feedback.ErrorCode, "text", u.Feedback.Text)
	}
	if a.config.OnUpdate != nil {
		a.config.OnUpdate(u)
	}
}

func (a *App) saveRun(sum session.Summary) {
	if a.config.Store == nil || sum.Stats.Frames == 0 {
		return
	}
	run := &store.Run{
		Sign:      sum.Sign,
		StartedAt: sum.StartedAt,
		EndedAt:   sum.EndedAt,
		Frames:    sum.Stats.Frames,
		Average:   sum.Stats.Average,
		Best:      sum.Stats.Best,
	}
	if err := a.config.Store.Runs().Create(run); err != nil {
		a.logger.Error("failed to save practice run", "sign", sum.Sign, "error", err)
	}
}
