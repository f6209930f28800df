package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeline"
)

// DefaultRunLimit caps GET /api/runs when no limit is given.
const DefaultRunLimit = 50

// RunHandler lists finished practice runs.
type RunHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewRunHandler creates a RunHandler backed by s.
func NewRunHandler(s *store.Store, logger *slog.Logger) *RunHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunHandler{store: s, logger: logger}
}

// Register adds the run routes to r.
func (h *RunHandler) Register(r chi.Router) {
	r.Get("/api/runs", h.list)
}

// list handles GET /api/runs?sign=&limit=.
func (h *RunHandler) list(w http.ResponseWriter, r *http.Request) {
	sign := r.URL.Query().Get("sign")
	if sign != "" {
		key, err := timeline.CanonicalSign(sign)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid sign name")
			return
		}
		sign = key
	}

	limit := DefaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.store.Runs().List(sign, limit)
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
