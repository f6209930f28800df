package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeline"
)

// SignHandler serves the sign library.
type SignHandler struct {
	store  *store.Store
	logger *slog.Logger
}

// NewSignHandler creates a SignHandler backed by s.
func NewSignHandler(s *store.Store, logger *slog.Logger) *SignHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignHandler{store: s, logger: logger}
}

// Register adds the sign routes to r.
func (h *SignHandler) Register(r chi.Router) {
	r.Route("/api/signs", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/{sign}", h.get)
		r.Put("/{sign}", h.put)
		r.Delete("/{sign}", h.delete)
		r.Get("/{sign}/timeline", h.timeline)
	})
}

type listSignsResponse struct {
	Signs []*store.Sign `json:"signs"`
	Count int           `json:"count"`
}

// list handles GET /api/signs.
func (h *SignHandler) list(w http.ResponseWriter, r *http.Request) {
	signs, err := h.store.Signs().List()
	if err != nil {
		h.logger.Error("list signs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list signs")
		return
	}
	if signs == nil {
		signs = []*store.Sign{}
	}
	writeJSON(w, http.StatusOK, listSignsResponse{Signs: signs, Count: len(signs)})
}

// get handles GET /api/signs/{sign}.
func (h *SignHandler) get(w http.ResponseWriter, r *http.Request) {
	sg, err := h.store.Signs().Get(chi.URLParam(r, "sign"))
	if err != nil {
		h.writeStoreError(w, err, "Failed to get sign")
		return
	}
	writeJSON(w, http.StatusOK, sg)
}

// put handles PUT /api/signs/{sign}. The body is a recording in the same
// layout GET /api/signs/{sign}/timeline returns.
func (h *SignHandler) put(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "sign")
	if _, err := timeline.CanonicalSign(name); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sign name")
		return
	}

	tl, err := timeline.Decode(http.MaxBytesReader(w, r.Body, maxBodyBytes), name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, getErr := h.store.Signs().Get(name)
	sg, err := h.store.Signs().Put(tl)
	if err != nil {
		h.writeStoreError(w, err, "Failed to store sign")
		return
	}

	h.logger.Info("sign stored", "sign", sg.Name, "frames", sg.FrameCount)
	status := http.StatusCreated
	if getErr == nil {
		status = http.StatusOK
	}
	writeJSON(w, status, sg)
}

// delete handles DELETE /api/signs/{sign}.
func (h *SignHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Signs().Delete(chi.URLParam(r, "sign")); err != nil {
		h.writeStoreError(w, err, "Failed to delete sign")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// timeline handles GET /api/signs/{sign}/timeline.
func (h *SignHandler) timeline(w http.ResponseWriter, r *http.Request) {
	tl, err := h.store.Signs().LoadTimeline(r.Context(), chi.URLParam(r, "sign"))
	if err != nil {
		h.writeStoreError(w, err, "Failed to load timeline")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := timeline.Encode(w, tl); err != nil {
		h.logger.Warn("encode timeline failed", "sign", tl.Sign, "error", err)
	}
}

func (h *SignHandler) writeStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, timeline.ErrNotFound):
		writeError(w, http.StatusNotFound, "Sign not found")
	case errors.Is(err, timeline.ErrInvalidSign):
		writeError(w, http.StatusBadRequest, "Invalid sign name")
	case errors.Is(err, timeline.ErrInvalidTimeline):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(message, "error", err)
		writeError(w, http.StatusInternalServerError, message)
	}
}
