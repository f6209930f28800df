// Package coach turns error codes into short coaching text. Provider output
// is cached, rate limited and sanitized; a built-in table covers every code
// when the provider is unavailable.
package coach

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	gocache "github.com/patrickmn/go-cache"

	"github.com/ayusman/mudra/internal/compare"
)

// Feedback sources.
const (
	SourceFallback      = "fallback"
	SourceRateLimited   = "fallback_rate_limited"
	SourceProviderError = "fallback_provider_error"
)

const maxTextRunes = 280

var (
	// ErrUnknownCode is returned for codes outside the closed set.
	ErrUnknownCode = errors.New("unknown error code")

	// ErrProviderFailed wraps provider errors. The returned Feedback still
	// carries fallback text.
	ErrProviderFailed = errors.New("coaching provider failed")
)

// Request asks for coaching text for one sign and error code.
type Request struct {
	Sign      string `json:"sign"`
	ErrorCode string `json:"error_code"`
	UserID    string `json:"user_id,omitempty"`
}

// Feedback is a coaching line and where it came from.
type Feedback struct {
	Sign      string    `json:"sign"`
	ErrorCode string    `json:"error_code"`
	Text      string    `json:"feedback"`
	Source    string    `json:"source"`
	Cached    bool      `json:"cached"`
	At        time.Time `json:"timestamp"`
}

// Stats counts how requests were answered.
type Stats struct {
	Total       int64 `json:"total_requests"`
	Provider    int64 `json:"provider_requests"`
	Fallback    int64 `json:"fallback_requests"`
	Cached      int64 `json:"cached_requests"`
	RateLimited int64 `json:"rate_limited_requests"`
	Errors      int64 `json:"provider_errors"`
}

// Config configures a Service.
type Config struct {
	// Provider generates text. Nil answers every request from the fallback table.
	Provider  Provider
	Timeout   time.Duration
	CacheTTL  time.Duration
	CacheSize int
	Limits    Limits
	Logger    *slog.Logger
}

// Service answers coaching requests.
type Service struct {
	provider Provider
	timeout  time.Duration
	size     int
	cache    *gocache.Cache
	limiter  *limiter
	policy   *bluemonday.Policy
	logger   *slog.Logger

	// evictMu serializes size checks with inserts.
	evictMu sync.Mutex

	total, fromProvider, fallback, cached, rateLimited, errs atomic.Int64
}

// New creates a Service, filling zero config fields with defaults.
func New(cfg Config) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		provider: cfg.Provider,
		timeout:  cfg.Timeout,
		size:     cfg.CacheSize,
		cache:    gocache.New(cfg.CacheTTL, cfg.CacheTTL),
		limiter:  newLimiter(cfg.Limits),
		policy:   bluemonday.StrictPolicy(),
		logger:   cfg.Logger,
	}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

// ProviderName returns the configured provider name, or "fallback".
func (s *Service) ProviderName() string {
	if s.provider == nil {
		return SourceFallback
	}
	return s.provider.Name()
}

// Feedback returns coaching text for req. On provider failure the result
// holds fallback text and the error wraps ErrProviderFailed. A cancelled
// ctx returns ctx.Err() and no text.
func (s *Service) Feedback(ctx context.Context, req Request) (Feedback, error) {
	s.total.Add(1)

	code := compare.ErrorCode(req.ErrorCode)
	if !code.Valid() {
		return Feedback{}, fmt.Errorf("%w: %q", ErrUnknownCode, req.ErrorCode)
	}

	fb := Feedback{Sign: req.Sign, ErrorCode: req.ErrorCode, At: time.Now()}
	key := cacheKey(req.Sign, req.ErrorCode)

	if v, ok := s.cache.Get(key); ok {
		s.cached.Add(1)
		hit := v.(Feedback)
		hit.Cached = true
		hit.At = fb.At
		return hit, nil
	}

	if s.provider == nil {
		return s.fallbackFor(fb, code, SourceFallback), nil
	}

	if ok, reason := s.limiter.allow(req.UserID, time.Now()); !ok {
		s.rateLimited.Add(1)
		s.logger.Info("coaching rate limited", "reason", reason, "user", req.UserID)
		return s.fallbackFor(fb, code, SourceRateLimited), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.provider.Generate(callCtx, req)
	if ctx.Err() != nil {
		return Feedback{}, ctx.Err()
	}
	if err == nil {
		text = s.sanitize(text)
		if text == "" {
			err = errors.New("empty text")
		}
	}
	if err != nil {
		s.errs.Add(1)
		s.logger.Warn("coaching provider failed", "provider", s.provider.Name(), "code", req.ErrorCode, "error", err)
		return s.fallbackFor(fb, code, SourceProviderError), fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	s.fromProvider.Add(1)
	fb.Text = text
	fb.Source = s.provider.Name()
	s.store(key, fb)
	return fb, nil
}

func (s *Service) fallbackFor(fb Feedback, code compare.ErrorCode, source string) Feedback {
	s.fallback.Add(1)
	fb.Text = Fallback(code)
	fb.Source = source
	return fb
}

// store caches fb, evicting the entry closest to expiry when full.
func (s *Service) store(key string, fb Feedback) {
	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	if _, exists := s.cache.Get(key); !exists && s.cache.ItemCount() >= s.size {
		var oldestKey string
		var oldest int64
		for k, item := range s.cache.Items() {
			if oldestKey == "" || item.Expiration < oldest {
				oldestKey, oldest = k, item.Expiration
			}
		}
		s.cache.Delete(oldestKey)
	}
	s.cache.SetDefault(key, fb)
}

// sanitize strips markup, collapses whitespace and bounds the length.
func (s *Service) sanitize(text string) string {
	text = html.UnescapeString(s.policy.Sanitize(text))
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxTextRunes {
		r := []rune(text)
		text = strings.TrimSpace(string(r[:maxTextRunes-1])) + "…"
	}
	return text
}

// Stats returns a snapshot of the request counters.
func (s *Service) Stats() Stats {
	return Stats{
		Total:       s.total.Load(),
		Provider:    s.fromProvider.Load(),
		Fallback:    s.fallback.Load(),
		Cached:      s.cached.Load(),
		RateLimited: s.rateLimited.Load(),
		Errors:      s.errs.Load(),
	}
}

// ResetStats zeroes the request counters.
func (s *Service) ResetStats() {
	for _, c := range []*atomic.Int64{&s.total, &s.fromProvider, &s.fallback, &s.cached, &s.rateLimited, &s.errs} {
		c.Store(0)
	}
}

// ClearCache drops every cached line.
func (s *Service) ClearCache() {
	s.cache.Flush()
}

// CacheEntries returns the number of cached lines.
func (s *Service) CacheEntries() int {
	return s.cache.ItemCount()
}

// RateLimitStatus reports remaining provider calls for user.
func (s *Service) RateLimitStatus(user string) RateStatus {
	return s.limiter.status(user, time.Now())
}

func cacheKey(sign, code string) string {
	return strings.ToLower(strings.TrimSpace(sign)) + ":" + code
}
