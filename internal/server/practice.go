package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ayusman/mudra/internal/compare"
	lm "github.com/ayusman/mudra/internal/landmark"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeline"
)

const (
	maxMessageBytes = 1 << 20
	writeTimeout    = 10 * time.Second
)

// Practice message types.
const (
	msgStart   = "start"
	msgSwitch  = "switch"
	msgStop    = "stop"
	msgFrame   = "frame"
	msgStarted = "started"
	msgUpdate  = "update"
	msgStopped = "stopped"
	msgError   = "error"
)

// clientMessage is sent by the browser. Frame messages carry the playback
// time of the target video and the landmarks detected in the browser.
type clientMessage struct {
	Type  string   `json:"type"`
	Sign  string   `json:"sign,omitempty"`
	T     float64  `json:"t"`
	Hands []lm.Set `json:"hands,omitempty"`
	Pose  lm.Set   `json:"pose,omitempty"`
}

type serverMessage struct {
	Type    string          `json:"type"`
	Sign    string          `json:"sign,omitempty"`
	Update  *session.Update `json:"update,omitempty"`
	Summary *runSummary     `json:"summary,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type runSummary struct {
	Sign     string        `json:"sign"`
	Duration float64       `json:"duration"`
	Stats    session.Stats `json:"stats"`
}

// PracticeConfig configures the practice socket.
type PracticeConfig struct {
	Loader session.Loader
	// Runs is optional. When set, finished runs are stored.
	Runs  *store.RunRepository
	Coach session.Coach

	Calibration       compare.Calibration
	FeedbackThreshold float64
	FeedbackTimeout   time.Duration

	// AllowedOrigins lists browser origins besides the server's own.
	AllowedOrigins []string

	Logger *slog.Logger
}

// PracticeHandler runs one practice session per WebSocket connection. The
// browser drives the session: every frame message is one tick, answered by
// an update message.
type PracticeHandler struct {
	config   PracticeConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
	active   atomic.Int64
}

// NewPracticeHandler creates a PracticeHandler.
func NewPracticeHandler(config PracticeConfig) *PracticeHandler {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	h := &PracticeHandler{config: config, logger: config.Logger}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

// Active returns the number of open practice connections.
func (h *PracticeHandler) Active() int64 {
	return h.active.Load()
}

func (h *PracticeHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	for _, allowed := range h.config.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PracticeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageBytes)

	user := r.URL.Query().Get("user")
	if user == "" {
		user = uuid.NewString()
	}

	h.active.Add(1)
	defer h.active.Add(-1)

	pc := h.newConn(conn, user)
	pc.logger.Info("practice connection opened")
	pc.serve()
	pc.logger.Info("practice connection closed")
}

// practiceConn is the state of one connection. Everything runs on the
// connection's read loop, so ticks and writes never overlap.
type practiceConn struct {
	conn     *websocket.Conn
	sess     *session.Session
	source   *frameSource
	clock    *session.ManualClock
	runs     *store.RunRepository
	logger   *slog.Logger
	finished *session.Summary
}

// frameSource hands the landmarks of the current frame message to the
// session.
type frameSource struct {
	obs lm.Observation
}

func (f *frameSource) Landmarks(ctx context.Context) (lm.Observation, error) {
	return f.obs, nil
}

func (h *PracticeHandler) newConn(conn *websocket.Conn, user string) *practiceConn {
	pc := &practiceConn{
		conn:   conn,
		source: &frameSource{},
		clock:  &session.ManualClock{},
		runs:   h.config.Runs,
		logger: h.logger.With("user", user),
	}
	pc.sess = session.New(session.Config{
		Source:            pc.source,
		Loader:            h.config.Loader,
		Coach:             h.config.Coach,
		Clock:             pc.clock,
		Calibration:       h.config.Calibration,
		FeedbackThreshold: h.config.FeedbackThreshold,
		FeedbackTimeout:   h.config.FeedbackTimeout,
		UserID:            user,
		Logger:            pc.logger,
		OnFinish:          pc.finish,
	})
	return pc
}

func (pc *practiceConn) serve() {
	defer pc.sess.Stop()

	for {
		var msg clientMessage
		if err := pc.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pc.logger.Debug("practice read ended", "error", err)
			}
			return
		}
		if err := pc.handle(msg); err != nil {
			pc.logger.Debug("practice write failed", "error", err)
			return
		}
	}
}

// handle processes one message. It returns an error only when the reply
// could not be written.
func (pc *practiceConn) handle(msg clientMessage) error {
	ctx := context.Background()

	switch msg.Type {
	case msgStart, msgSwitch:
		var err error
		if msg.Type == msgSwitch {
			err = pc.sess.Switch(ctx, msg.Sign)
		} else {
			err = pc.sess.Start(ctx, msg.Sign)
		}
		if pc.finished != nil {
			if werr := pc.sendSummary(); werr != nil {
				return werr
			}
		}
		if err != nil {
			return pc.sendError(startError(msg.Sign, err))
		}
		pc.clock.Set(0)
		return pc.write(serverMessage{Type: msgStarted, Sign: pc.sess.Sign()})

	case msgStop:
		pc.sess.Stop()
		if pc.finished == nil {
			return pc.sendError("session not running")
		}
		return pc.sendSummary()

	case msgFrame:
		if math.IsNaN(msg.T) || math.IsInf(msg.T, 0) || msg.T < 0 {
			return pc.sendError("frame time must be a non-negative number")
		}
		pc.source.obs = lm.Observation{Hands: msg.Hands, Pose: msg.Pose}
		pc.clock.Set(msg.T)
		u, err := pc.sess.Tick(ctx)
		if errors.Is(err, session.ErrNotRunning) {
			return pc.sendError("session not running")
		}
		if err != nil {
			return pc.sendError(err.Error())
		}
		return pc.write(serverMessage{Type: msgUpdate, Sign: u.Sign, Update: &u})

	default:
		return pc.sendError(fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func startError(sign string, err error) string {
	switch {
	case errors.Is(err, timeline.ErrNotFound):
		return fmt.Sprintf("sign %q not found", sign)
	case errors.Is(err, timeline.ErrInvalidSign):
		return fmt.Sprintf("invalid sign name %q", sign)
	case errors.Is(err, session.ErrBusy):
		return "session already running, send switch to change sign"
	}
	return err.Error()
}

// finish is the session's OnFinish callback. It runs inside Stop on the
// connection goroutine.
func (pc *practiceConn) finish(sum session.Summary) {
	pc.finished = &sum
	if pc.runs == nil || sum.Stats.Frames == 0 {
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
	if err := pc.runs.Create(run); err != nil {
		pc.logger.Error("failed to save practice run", "sign", sum.Sign, "error", err)
	}
}

func (pc *practiceConn) sendSummary() error {
	sum := pc.finished
	pc.finished = nil
	return pc.write(serverMessage{
		Type: msgStopped,
		Sign: sum.Sign,
		Summary: &runSummary{
			Sign:     sum.Sign,
			Duration: sum.EndedAt.Sub(sum.StartedAt).Seconds(),
			Stats:    sum.Stats,
		},
	})
}

func (pc *practiceConn) sendError(message string) error {
	return pc.write(serverMessage{Type: msgError, Error: message})
}

func (pc *practiceConn) write(msg serverMessage) error {
	pc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return pc.conn.WriteJSON(msg)
}
