package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/mudra/internal/landmark/landmarktest"
	"github.com/ayusman/mudra/internal/store"
	"github.com/ayusman/mudra/internal/timeline"
	"github.com/ayusman/mudra/internal/timeline/timelinetest"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

type registrar interface {
	Register(r chi.Router)
}

func newRouter(handlers ...registrar) http.Handler {
	r := chi.NewRouter()
	for _, h := range handlers {
		h.Register(r)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func recordingBody(t *testing.T, tl *timeline.Timeline) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := timeline.Encode(&buf, tl); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return &buf
}

func helloRecording(t *testing.T) *bytes.Buffer {
	return recordingBody(t, timelinetest.Hold("hello", 30, 15, landmarktest.OpenPalm(), landmarktest.ArmsDown()))
}
