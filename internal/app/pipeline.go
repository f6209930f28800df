package app

import (
	"context"
	"time"
)

// runPipeline feeds ticks to the session and manages the tick rate.
//
// Pipeline logic:
//  1. Start in idle mode (IdleFPS)
//  2. When the source reports motion, switch to active mode (ActiveFPS)
//  3. After IdleTimeout without motion, switch back to idle mode
//  4. While paused, ticks are dropped and the session keeps its state
//
// ticks is closed when ctx is cancelled, which ends Session.Run.
func (a *App) runPipeline(ctx context.Context, ticks chan<- time.Time) {
	defer close(ticks)

	activeMode := false
	lastMotion := time.Now()

	ticker := time.NewTicker(time.Second / time.Duration(IdleFPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			select {
			case ticks <- now:
			case <-ctx.Done():
				return
			}

			// The send returns once the session took the tick, so Moving
			// reflects at most the previous frame.
			if a.source.Moving() {
				lastMotion = now
				if !activeMode {
					activeMode = true
					a.setRate(ticker, ActiveFPS)
					a.logger.Debug("switched to active mode")
				}
			} else if activeMode && now.Sub(lastMotion) > IdleTimeout {
				activeMode = false
				a.setRate(ticker, IdleFPS)
				a.logger.Debug("switched to idle mode")
			}
		}
	}
}

func (a *App) setRate(ticker *time.Ticker, fps int) {
	a.camera.SetFPS(fps)
	ticker.Reset(time.Second / time.Duration(fps))
}
