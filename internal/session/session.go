// Package session drives one practice session: it loads a target timeline,
// compares live landmarks against it on every tick and keeps running
// statistics.
//
// A Session moves through Idle, Loading, Running and Stopped. Ticks are
// executed one at a time; the only asynchronous work is the coaching text
// request, whose reply is picked up by a later tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
	lm "github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/timeline"
)

var (
	// ErrNotRunning is returned by Tick and Run outside the Running state.
	ErrNotRunning = errors.New("session not running")

	// ErrNoSource is returned by Start when no landmark source is configured.
	ErrNoSource = errors.New("no landmark source")

	// ErrBusy is returned by Start while a timeline is loading or running.
	ErrBusy = errors.New("session busy")

	// ErrStopped is returned by Start when Stop was called during loading.
	ErrStopped = errors.New("session stopped during load")
)

// Source supplies the user's landmarks for the current instant.
type Source interface {
	Landmarks(ctx context.Context) (lm.Observation, error)
}

// Clock reports the target playback time in seconds.
type Clock interface {
	PlaybackTime() float64
}

// Loader fetches the target timeline for a sign.
type Loader interface {
	LoadTimeline(ctx context.Context, sign string) (*timeline.Timeline, error)
}

// Coach produces coaching text for an error code.
type Coach interface {
	Feedback(ctx context.Context, req coach.Request) (coach.Feedback, error)
}

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	Loading
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DefaultFeedbackThreshold is the worst joint error in degrees a tick must
// exceed before coaching text is requested.
const DefaultFeedbackThreshold = 15.0

// Stats accumulates scores over the ticks of one run.
type Stats struct {
	Frames  int     `json:"frames"`
	Average float64 `json:"average"`
	Best    int     `json:"best"`
}

func (st *Stats) add(score int) {
	st.Frames++
	st.Average += (float64(score) - st.Average) / float64(st.Frames)
	if score > st.Best {
		st.Best = score
	}
}

// Summary describes a finished run.
type Summary struct {
	Sign      string
	StartedAt time.Time
	EndedAt   time.Time
	Stats     Stats
}

// Config configures a Session.
type Config struct {
	Source Source
	Loader Loader

	// Coach is optional. Without it no coaching text is requested.
	Coach Coach

	// Clock is optional. Without it every Start creates a WallClock that
	// loops over the timeline.
	Clock Clock

	Calibration       compare.Calibration
	FeedbackThreshold float64
	FeedbackTimeout   time.Duration

	// UserID is passed to the coach for per-user rate limiting.
	UserID string

	Logger *slog.Logger

	// OnFinish receives the summary of every run that reached Running.
	OnFinish func(Summary)

	// OnStateChange observes every state transition. It runs with the
	// session locked and must not call back into it.
	OnStateChange func(from, to State)
}

// Session is one practice session. All methods are safe for concurrent use.
type Session struct {
	source     Source
	loader     Loader
	coach      Coach
	fixedClock Clock
	comparator *compare.Comparator
	threshold  float64
	timeout    time.Duration
	userID     string
	logger     *slog.Logger
	onFinish   func(Summary)
	onState    func(from, to State)

	// tickMu serializes ticks with Stop. It is taken before mu.
	tickMu sync.Mutex

	mu        sync.Mutex
	state     State
	sign      string
	tl        *timeline.Timeline
	clock     Clock
	stats     Stats
	startedAt time.Time
	lastCode  compare.ErrorCode
	runCancel context.CancelFunc

	// Coaching requests: gen identifies the newest request, cancelPending
	// cancels it, and replies land in the single-slot feedback channel.
	gen           uint64
	cancelPending context.CancelFunc
	feedback      chan coach.Feedback
}

// New creates an idle session.
func New(cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Calibration == (compare.Calibration{}) {
		cfg.Calibration = compare.DefaultCalibration()
	}
	if cfg.FeedbackThreshold <= 0 {
		cfg.FeedbackThreshold = DefaultFeedbackThreshold
	}
	if cfg.FeedbackTimeout <= 0 {
		cfg.FeedbackTimeout = 5 * time.Second
	}
	return &Session{
		source:     cfg.Source,
		loader:     cfg.Loader,
		coach:      cfg.Coach,
		fixedClock: cfg.Clock,
		comparator: compare.NewComparator(cfg.Calibration, cfg.Logger),
		threshold:  cfg.FeedbackThreshold,
		timeout:    cfg.FeedbackTimeout,
		userID:     cfg.UserID,
		logger:     cfg.Logger,
		onFinish:   cfg.OnFinish,
		onState:    cfg.OnStateChange,
		feedback:   make(chan coach.Feedback, 1),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Sign returns the sign of the current or last run.
func (s *Session) Sign() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sign
}

// Stats returns the statistics of the current or last run.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// setState must be called with mu held.
func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	if s.onState != nil && from != to {
		s.onState(from, to)
	}
}

// Start loads the timeline for sign and enters Running. On failure the
// session returns to Idle and the loader or validation error is returned.
func (s *Session) Start(ctx context.Context, sign string) error {
	s.mu.Lock()
	if s.source == nil {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.state == Loading || s.state == Running {
		s.mu.Unlock()
		return fmt.Errorf("start %s: %w (%s)", sign, ErrBusy, s.state)
	}
	s.setState(Loading)
	s.mu.Unlock()

	tl, err := s.load(ctx, sign)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Loading {
		return fmt.Errorf("start %s: %w", sign, ErrStopped)
	}
	if err != nil {
		s.setState(Idle)
		s.logger.Warn("timeline load failed", "sign", sign, "error", err)
		return err
	}

	s.tl = tl
	s.sign = tl.Sign
	s.clock = s.fixedClock
	if s.clock == nil {
		s.clock = NewWallClock(tl.Span())
	}
	s.stats = Stats{}
	s.startedAt = time.Now()
	s.lastCode = ""
	s.drainFeedback()
	s.setState(Running)

	s.logger.Info("session started", "sign", tl.Sign, "frames", len(tl.Frames), "fps", tl.FrameRate)
	return nil
}

func (s *Session) load(ctx context.Context, sign string) (*timeline.Timeline, error) {
	if s.loader == nil {
		return nil, fmt.Errorf("start %s: no timeline loader", sign)
	}
	tl, err := s.loader.LoadTimeline(ctx, sign)
	if err != nil {
		return nil, err
	}
	if err := tl.Validate(); err != nil {
		return nil, fmt.Errorf("start %s: %w", sign, err)
	}
	return tl, nil
}

// Stop ends the current run. It cancels the tick loop, waits for an
// in-flight tick and cancels any outstanding coaching request. No tick runs
// after Stop returns. Stop is idempotent; statistics stay readable.
func (s *Session) Stop() {
	s.mu.Lock()
	cancelRun := s.runCancel
	s.runCancel = nil
	s.mu.Unlock()
	if cancelRun != nil {
		cancelRun()
	}

	s.tickMu.Lock()
	s.mu.Lock()

	wasRunning := s.state == Running
	if s.state == Running || s.state == Loading {
		s.setState(Stopped)
	}
	s.supersedeLocked()
	sum := Summary{Sign: s.sign, StartedAt: s.startedAt, EndedAt: time.Now(), Stats: s.stats}

	s.mu.Unlock()
	s.tickMu.Unlock()

	if wasRunning {
		s.logger.Info("session stopped", "sign", sum.Sign, "frames", sum.Stats.Frames,
			"average", sum.Stats.Average, "best", sum.Stats.Best)
		if s.onFinish != nil {
			s.onFinish(sum)
		}
	}
}

// Switch stops the current run and starts sign. The session passes through
// Stopped and Loading; the timeline is never swapped while Running.
func (s *Session) Switch(ctx context.Context, sign string) error {
	s.Stop()
	return s.Start(ctx, sign)
}

// supersedeLocked cancels the outstanding coaching request and invalidates
// any reply still on its way. mu must be held.
func (s *Session) supersedeLocked() {
	if s.cancelPending != nil {
		s.cancelPending()
		s.cancelPending = nil
	}
	s.gen++
}

func (s *Session) drainFeedback() {
	select {
	case <-s.feedback:
	default:
	}
}
