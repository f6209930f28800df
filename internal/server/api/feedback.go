package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/coach"
	"github.com/ayusman/mudra/internal/compare"
)

// FeedbackHandler serves coaching text and the coaching service controls.
type FeedbackHandler struct {
	coach  *coach.Service
	logger *slog.Logger
}

// NewFeedbackHandler creates a FeedbackHandler backed by c.
func NewFeedbackHandler(c *coach.Service, logger *slog.Logger) *FeedbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackHandler{coach: c, logger: logger}
}

// Register adds the feedback routes to r.
func (h *FeedbackHandler) Register(r chi.Router) {
	r.Route("/api/feedback", func(r chi.Router) {
		r.Post("/", h.feedback)
		r.Get("/status", h.status)
		r.Get("/error-codes", h.errorCodes)
		r.Get("/rate-limits/{user}", h.rateLimits)
		r.Post("/cache/clear", h.clearCache)
		r.Post("/stats/reset", h.resetStats)
	})
}

type feedbackResponse struct {
	coach.Feedback
	Success bool `json:"success"`
}

// feedback handles POST /api/feedback.
func (h *FeedbackHandler) feedback(w http.ResponseWriter, r *http.Request) {
	var req coach.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Sign == "" || req.ErrorCode == "" {
		writeError(w, http.StatusBadRequest, "sign and error_code are required")
		return
	}

	fb, err := h.coach.Feedback(r.Context(), req)
	switch {
	case errors.Is(err, coach.ErrUnknownCode):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, coach.ErrProviderFailed):
		// fb carries fallback text.
		h.logger.Warn("coaching provider failed", "sign", req.Sign, "code", req.ErrorCode, "error", err)
	case err != nil:
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, feedbackResponse{Feedback: fb, Success: true})
}

type statusResponse struct {
	Enabled      bool        `json:"enabled"`
	Provider     string      `json:"provider"`
	CacheEntries int         `json:"cache_entries"`
	Stats        coach.Stats `json:"statistics"`
}

// status handles GET /api/feedback/status.
func (h *FeedbackHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Enabled:      h.coach.Enabled(),
		Provider:     h.coach.ProviderName(),
		CacheEntries: h.coach.CacheEntries(),
		Stats:        h.coach.Stats(),
	})
}

type errorCodeInfo struct {
	Code       compare.ErrorCode `json:"code"`
	Actionable bool              `json:"actionable"`
	Fallback   string            `json:"fallback,omitempty"`
}

// errorCodes handles GET /api/feedback/error-codes.
func (h *FeedbackHandler) errorCodes(w http.ResponseWriter, r *http.Request) {
	codes := compare.AllErrorCodes()
	out := make([]errorCodeInfo, 0, len(codes))
	for _, c := range codes {
		info := errorCodeInfo{Code: c, Actionable: c.Actionable()}
		if info.Actionable {
			info.Fallback = coach.Fallback(c)
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"error_codes": out})
}

// rateLimits handles GET /api/feedback/rate-limits/{user}.
func (h *FeedbackHandler) rateLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coach.RateLimitStatus(chi.URLParam(r, "user")))
}

// clearCache handles POST /api/feedback/cache/clear.
func (h *FeedbackHandler) clearCache(w http.ResponseWriter, r *http.Request) {
	n := h.coach.CacheEntries()
	h.coach.ClearCache()
	h.logger.Info("coaching cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, map[string]any{"cleared": n})
}

// resetStats handles POST /api/feedback/stats/reset.
func (h *FeedbackHandler) resetStats(w http.ResponseWriter, r *http.Request) {
	h.coach.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}
