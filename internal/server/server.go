// Package server provides the HTTP server of mudra: the REST API, the
// browser practice socket and the camera preview stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
	"github.com/ayusman/mudra/internal/server/api"
	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Coach     *coach.Service

	// Preview enables /api/stream when set.
	Preview *capture.Preview

	// Practice socket settings.
	Calibration       compare.Calibration
	FeedbackThreshold float64
	FeedbackTimeout   time.Duration
	AllowedOrigins    []string

	Logger *slog.Logger
}

// Server represents the HTTP server for the mudra application.
type Server struct {
	config Config
	router chi.Router
	logger *slog.Logger
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: config.Logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	r.Get("/api/health", s.handleHealth)

	if s.config.Store != nil {
		api.NewSignHandler(s.config.Store, s.logger).Register(r)
		api.NewRunHandler(s.config.Store, s.logger).Register(r)
		r.Handle("/api/practice", NewPracticeHandler(PracticeConfig{
			Loader:            s.config.Store.Signs(),
			Runs:              s.config.Store.Runs(),
			Coach:             s.coach(),
			Calibration:       s.config.Calibration,
			FeedbackThreshold: s.config.FeedbackThreshold,
			FeedbackTimeout:   s.config.FeedbackTimeout,
			AllowedOrigins:    s.config.AllowedOrigins,
			Logger:            s.logger,
		}))
	}

	if s.config.Coach != nil {
		api.NewFeedbackHandler(s.config.Coach, s.logger).Register(r)
	}

	if s.config.Preview != nil {
		r.Get("/api/stream", NewStreamHandler(s.config.Preview).ServeHTTP)
	}

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// coach returns the configured coaching service as a session coach, or nil.
func (s *Server) coach() session.Coach {
	if s.config.Coach == nil {
		return nil
	}
	return s.config.Coach
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type healthResponse struct {
	Status string       `json:"status"`
	Uptime string       `json:"uptime"`
	Coach  string       `json:"coach,omitempty"`
	Store  *store.Stats `json:"store,omitempty"`
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Uptime: time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Coach != nil {
		resp.Coach = s.config.Coach.ProviderName()
	}
	if s.config.Store != nil {
		st, err := s.config.Store.Stats()
		if err != nil {
			s.logger.Error("store stats failed", "error", err)
			resp.Status = "degraded"
		} else {
			resp.Store = &st
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestLogger logs one line per request at Debug.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
