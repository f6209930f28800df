package session

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
	lm "github.com/ayusman/mudra/internal/landmark"
)

// Update is what one tick produces.
type Update struct {
	Sign string  `json:"sign"`
	Time float64 `json:"t"`
	// Frame is the index of the target frame used, or -1 when no frame was
	// within tolerance.
	Frame    int             `json:"frame"`
	Result   compare.Result  `json:"result"`
	Stats    Stats           `json:"stats"`
	Feedback *coach.Feedback `json:"feedback,omitempty"`
}

// Tick runs one comparison pass: read the playback time, fetch landmarks,
// find the target frame, compare, update statistics and apply the coaching
// gate. A source error is logged and treated as an empty observation.
func (s *Session) Tick(ctx context.Context) (Update, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return Update{}, ErrNotRunning
	}
	tl, clock, sign := s.tl, s.clock, s.sign
	s.mu.Unlock()

	t := clock.PlaybackTime()

	obs, err := s.source.Landmarks(ctx)
	if err != nil {
		s.logger.Debug("landmark source failed", "sign", sign, "error", err)
		obs = lm.Observation{}
	}

	u := Update{Sign: sign, Time: t, Frame: -1}
	var target lm.Observation
	if frame, ok := tl.FrameAt(t); ok {
		target = frame.Observation()
		u.Frame = frame.Index
	}

	u.Result = s.comparator.Compare(obs, target)

	s.mu.Lock()
	s.stats.add(u.Result.Score)
	u.Stats = s.stats
	prev := s.lastCode
	s.lastCode = u.Result.ErrorCode
	s.mu.Unlock()

	select {
	case fb := <-s.feedback:
		u.Feedback = &fb
	default:
	}

	if u.Result.ErrorCode != prev && u.Result.WorstError > s.threshold {
		s.requestFeedback(sign, u.Result.ErrorCode)
	}

	s.logger.Debug("tick", "sign", sign, "t", t, "frame", u.Frame,
		"score", u.Result.Score, "code", u.Result.ErrorCode)
	return u, nil
}

// requestFeedback asks the coach for text in the background. A newer
// request cancels the older one; only the newest reply is delivered.
func (s *Session) requestFeedback(sign string, code compare.ErrorCode) {
	if s.coach == nil {
		return
	}

	s.mu.Lock()
	s.supersedeLocked()
	gen := s.gen
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	s.cancelPending = cancel
	s.mu.Unlock()

	req := coach.Request{Sign: sign, ErrorCode: string(code), UserID: s.userID}
	go func() {
		defer cancel()

		fb, err := s.coach.Feedback(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Debug("coaching request cancelled", "sign", sign, "code", code, "error", err)
			} else {
				s.logger.Warn("coaching request failed", "sign", sign, "code", code, "error", err)
			}
		}
		if fb.Text == "" {
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			return
		}
		s.cancelPending = nil
		s.drainFeedback()
		s.feedback <- fb
	}()
}

// Run executes a tick for every value received on ticks and passes each
// update to emit before reading the next tick. It returns nil when the
// session stops or ticks is closed, and ctx.Err() when ctx is cancelled.
func (s *Session) Run(ctx context.Context, ticks <-chan time.Time, emit func(Update)) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.runCancel = cancel
	s.mu.Unlock()

	for {
		select {
		case <-runCtx.Done():
			return ctx.Err()
		case _, ok := <-ticks:
			if !ok {
				return nil
			}
			u, err := s.Tick(runCtx)
			if errors.Is(err, ErrNotRunning) {
				return nil
			}
			if err != nil {
				return err
			}
			if emit != nil {
				emit(u)
			}
		}
	}
}
