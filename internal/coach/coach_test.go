package coach

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/mudra/internal/compare"
)

type fakeProvider struct {
	text  string
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, req Request) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func TestService_FallbackOnly(t *testing.T) {
	s := New(Config{})

	fb, err := s.Feedback(context.Background(), Request{Sign: "hello", ErrorCode: "THUMB_LOW"})
	if err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if fb.Source != SourceFallback {
		t.Errorf("Source = %q, want fallback", fb.Source)
	}
	if fb.Text != Fallback(compare.CodeThumbLow) {
		t.Errorf("Text = %q", fb.Text)
	}
	if s.Enabled() {
		t.Error("Enabled() should be false without a provider")
	}
	if st := s.Stats(); st.Total != 1 || st.Fallback != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestService_UnknownCode(t *testing.T) {
	s := New(Config{})
	if _, err := s.Feedback(context.Background(), Request{Sign: "x", ErrorCode: "ELBOW_WOBBLE"}); !errors.Is(err, ErrUnknownCode) {
		t.Errorf("Feedback() error = %v, want ErrUnknownCode", err)
	}
}

func TestService_ProviderAndCache(t *testing.T) {
	p := &fakeProvider{text: "Raise your thumb."}
	s := New(Config{Provider: p})
	ctx := context.Background()

	first, err := s.Feedback(ctx, Request{Sign: "Hello", ErrorCode: "THUMB_LOW"})
	if err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if first.Source != "fake" || first.Cached {
		t.Errorf("first = %+v, want uncached provider text", first)
	}

	second, err := s.Feedback(ctx, Request{Sign: "hello", ErrorCode: "THUMB_LOW"})
	if err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if !second.Cached || second.Text != "Raise your thumb." {
		t.Errorf("second = %+v, want cached text", second)
	}
	if n := p.calls.Load(); n != 1 {
		t.Errorf("provider called %d times, want 1", n)
	}
	if s.CacheEntries() != 1 {
		t.Errorf("CacheEntries() = %d, want 1", s.CacheEntries())
	}

	s.ClearCache()
	if s.CacheEntries() != 0 {
		t.Errorf("CacheEntries() after clear = %d", s.CacheEntries())
	}
}

func TestService_CacheEviction(t *testing.T) {
	s := New(Config{Provider: &fakeProvider{text: "ok"}, CacheSize: 2})
	ctx := context.Background()

	for _, code := range []string{"THUMB_LOW", "THUMB_HIGH", "WRIST_BEND"} {
		if _, err := s.Feedback(ctx, Request{Sign: "a", ErrorCode: code}); err != nil {
			t.Fatalf("Feedback(%s) error = %v", code, err)
		}
		time.Sleep(2 * time.Millisecond)
	}
	if n := s.CacheEntries(); n != 2 {
		t.Errorf("CacheEntries() = %d, want 2", n)
	}
}

func TestService_ProviderError(t *testing.T) {
	s := New(Config{Provider: &fakeProvider{err: errors.New("quota exceeded")}})

	fb, err := s.Feedback(context.Background(), Request{Sign: "hello", ErrorCode: "WRIST_BEND"})
	if !errors.Is(err, ErrProviderFailed) {
		t.Fatalf("Feedback() error = %v, want ErrProviderFailed", err)
	}
	if fb.Source != SourceProviderError || fb.Text != Fallback(compare.CodeWristBend) {
		t.Errorf("fb = %+v, want fallback text", fb)
	}
	if st := s.Stats(); st.Errors != 1 || st.Fallback != 1 {
		t.Errorf("Stats() = %+v", st)
	}
	if s.CacheEntries() != 0 {
		t.Error("fallback text should not be cached")
	}
}

func TestService_Timeout(t *testing.T) {
	s := New(Config{Provider: &fakeProvider{text: "late", delay: time.Second}, Timeout: 20 * time.Millisecond})

	fb, err := s.Feedback(context.Background(), Request{Sign: "hello", ErrorCode: "HAND_ANGLE"})
	if !errors.Is(err, ErrProviderFailed) {
		t.Fatalf("Feedback() error = %v, want ErrProviderFailed", err)
	}
	if fb.Source != SourceProviderError {
		t.Errorf("Source = %q", fb.Source)
	}
}

func TestService_Cancelled(t *testing.T) {
	s := New(Config{Provider: &fakeProvider{text: "late", delay: time.Second}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fb, err := s.Feedback(ctx, Request{Sign: "hello", ErrorCode: "HAND_ANGLE"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Feedback() error = %v, want context.Canceled", err)
	}
	if fb.Text != "" {
		t.Errorf("cancelled request returned text %q", fb.Text)
	}
}

func TestService_RateLimited(t *testing.T) {
	p := &fakeProvider{text: "ok"}
	s := New(Config{Provider: p, Limits: Limits{PerMinute: 10, PerHour: 100, UserPerMinute: 2}})
	ctx := context.Background()

	codes := []string{"THUMB_LOW", "THUMB_HIGH", "WRIST_BEND"}
	var last Feedback
	for _, code := range codes {
		fb, err := s.Feedback(ctx, Request{Sign: "hello", ErrorCode: code, UserID: "u1"})
		if err != nil {
			t.Fatalf("Feedback(%s) error = %v", code, err)
		}
		last = fb
	}
	if last.Source != SourceRateLimited {
		t.Errorf("third request Source = %q, want rate limited", last.Source)
	}
	if n := p.calls.Load(); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}

	// Another user still has budget.
	fb, err := s.Feedback(ctx, Request{Sign: "hello", ErrorCode: "ARM_POSITION", UserID: "u2"})
	if err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if fb.Source != "fake" {
		t.Errorf("other user Source = %q, want provider", fb.Source)
	}

	st := s.RateLimitStatus("u1")
	if st.UserMinuteRemaining != 0 || st.UserMinuteLimit != 2 {
		t.Errorf("RateLimitStatus(u1) = %+v", st)
	}
	if st.MinuteRemaining != 7 {
		t.Errorf("global minute remaining = %d, want 7", st.MinuteRemaining)
	}
	if s.Stats().RateLimited != 1 {
		t.Errorf("RateLimited = %d, want 1", s.Stats().RateLimited)
	}

	s.ResetStats()
	if st := s.Stats(); st != (Stats{}) {
		t.Errorf("Stats() after reset = %+v", st)
	}
}

func TestService_Sanitize(t *testing.T) {
	raw := "<b>Lift</b> your   thumb <script>alert(1)</script>&amp; relax\n your wrist"
	s := New(Config{Provider: &fakeProvider{text: raw}})

	fb, err := s.Feedback(context.Background(), Request{Sign: "hello", ErrorCode: "THUMB_LOW"})
	if err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if strings.ContainsAny(fb.Text, "<>") || strings.Contains(fb.Text, "alert") {
		t.Errorf("Text not sanitized: %q", fb.Text)
	}
	if fb.Text != "Lift your thumb & relax your wrist" {
		t.Errorf("Text = %q", fb.Text)
	}
}

func TestService_EmptyProviderText(t *testing.T) {
	s := New(Config{Provider: &fakeProvider{text: "<p></p>"}})

	fb, err := s.Feedback(context.Background(), Request{Sign: "hello", ErrorCode: "THUMB_LOW"})
	if !errors.Is(err, ErrProviderFailed) {
		t.Fatalf("Feedback() error = %v, want ErrProviderFailed", err)
	}
	if fb.Text == "" {
		t.Error("expected fallback text")
	}
}

func TestFallback_CoversActionableCodes(t *testing.T) {
	for _, code := range compare.AllErrorCodes() {
		if text := Fallback(code); text == "" {
			t.Errorf("Fallback(%s) is empty", code)
		}
	}
	if Fallback("SOMETHING_NEW") != DefaultFallback {
		t.Error("unknown codes should get the default line")
	}
}

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch req["error_code"] {
		case "THUMB_LOW":
			json.NewEncoder(w).Encode(map[string]any{"success": true, "feedback": "Thumb up for " + req["sign"]})
		case "ARM_POSITION":
			json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "model unavailable"})
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second)
	ctx := context.Background()

	text, err := p.Generate(ctx, Request{Sign: "hello", ErrorCode: "THUMB_LOW"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "Thumb up for hello" {
		t.Errorf("Generate() = %q", text)
	}

	if _, err := p.Generate(ctx, Request{Sign: "hello", ErrorCode: "ARM_POSITION"}); err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("Generate(unsuccessful) error = %v", err)
	}
	if _, err := p.Generate(ctx, Request{Sign: "hello", ErrorCode: "WRIST_BEND"}); err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("Generate(500) error = %v", err)
	}
}
