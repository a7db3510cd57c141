package rustle

import (
	"sync"
	"time"
)

// RateLimitConfig configures the sliding-window rate limiter.
type RateLimitConfig struct {
	Requests int           // Maximum requests per window (default: 60)
	Window   time.Duration // Window size (default: 1 minute)
}

// DefaultRateLimitConfig returns the client default of 60 requests per minute.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Requests: 60, Window: time.Minute}
}

// RateLimiter enforces a sliding-window request budget per key (the API key,
// so separate credentials get separate budgets). Requests over budget are
// rejected locally, before any network call.
type RateLimiter struct {
	requests int
	window   time.Duration

	mu   sync.Mutex
	hits map[string][]time.Time
	now  func() time.Time
}

// NewRateLimiter creates a rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	requests := cfg.Requests
	if requests <= 0 {
		requests = 60
	}
	window := cfg.Window
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		requests: requests,
		window:   window,
		hits:     make(map[string][]time.Time),
		now:      time.Now,
	}
}

// Allow records a request under key and reports whether it fits the window.
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	recent := r.prune(key, now)

	if len(recent) >= r.requests {
		r.hits[key] = recent
		return false
	}

	r.hits[key] = append(recent, now)
	return true
}

// Remaining returns how many requests key may still issue in the current
// window.
func (r *RateLimiter) Remaining(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	recent := r.prune(key, r.now())
	r.hits[key] = recent
	return r.requests - len(recent)
}

// prune drops hits that have slid out of the window (must be called with the
// lock held).
func (r *RateLimiter) prune(key string, now time.Time) []time.Time {
	cutoff := now.Add(-r.window)
	hits := r.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
