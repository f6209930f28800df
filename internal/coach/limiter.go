package coach

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Limits configures how many provider calls are allowed. Zero disables a limit.
type Limits struct {
	PerMinute     int `yaml:"requests_per_minute" json:"requests_per_minute"`
	PerHour       int `yaml:"requests_per_hour" json:"requests_per_hour"`
	UserPerMinute int `yaml:"user_requests_per_minute" json:"user_requests_per_minute"`
}

// DefaultLimits returns the provider call limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{PerMinute: 10, PerHour: 100, UserPerMinute: 3}
}

// RateStatus reports the remaining provider calls for a user.
type RateStatus struct {
	MinuteRemaining     int `json:"global_minute_remaining"`
	HourRemaining       int `json:"global_hour_remaining"`
	UserMinuteRemaining int `json:"user_minute_remaining"`
	MinuteLimit         int `json:"global_minute_limit"`
	HourLimit           int `json:"global_hour_limit"`
	UserMinuteLimit     int `json:"user_minute_limit"`
}

// limiter combines a global per-minute, a global per-hour and a per-user
// per-minute token bucket.
type limiter struct {
	limits Limits
	minute *rate.Limiter
	hour   *rate.Limiter
	users  *gocache.Cache

	mu sync.Mutex
}

func newLimiter(l Limits) *limiter {
	return &limiter{
		limits: l,
		minute: bucket(l.PerMinute, time.Minute),
		hour:   bucket(l.PerHour, time.Hour),
		users:  gocache.New(10*time.Minute, 10*time.Minute),
	}
}

func bucket(n int, per time.Duration) *rate.Limiter {
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(per/time.Duration(n)), n)
}

// allow takes one token from every applicable bucket, or from none. The
// returned reason names the first bucket that refused.
func (l *limiter) allow(user string, now time.Time) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	buckets := []namedBucket{
		{"global_minute", l.minute},
		{"global_hour", l.hour},
	}
	if user != "" {
		buckets = append(buckets, namedBucket{"user_minute", l.userBucket(user)})
	}

	taken := make([]*rate.Reservation, 0, len(buckets))
	for _, b := range buckets {
		r := b.lim.ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, prev := range taken {
				prev.CancelAt(now)
			}
			return false, b.name
		}
		taken = append(taken, r)
	}
	return true, ""
}

type namedBucket struct {
	name string
	lim  *rate.Limiter
}

func (l *limiter) userBucket(user string) *rate.Limiter {
	if v, ok := l.users.Get(user); ok {
		return v.(*rate.Limiter)
	}
	lim := bucket(l.limits.UserPerMinute, time.Minute)
	l.users.SetDefault(user, lim)
	return lim
}

func (l *limiter) status(user string, now time.Time) RateStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := RateStatus{
		MinuteRemaining: remaining(l.minute, l.limits.PerMinute, now),
		HourRemaining:   remaining(l.hour, l.limits.PerHour, now),
		MinuteLimit:     l.limits.PerMinute,
		HourLimit:       l.limits.PerHour,
		UserMinuteLimit: l.limits.UserPerMinute,
	}
	st.UserMinuteRemaining = l.limits.UserPerMinute
	if v, ok := l.users.Get(user); ok && user != "" {
		st.UserMinuteRemaining = remaining(v.(*rate.Limiter), l.limits.UserPerMinute, now)
	}
	return st
}

func remaining(lim *rate.Limiter, limit int, now time.Time) int {
	if limit <= 0 {
		return -1
	}
	n := int(lim.TokensAt(now))
	if n < 0 {
		return 0
	}
	return n
}
