package rustle

import (
	"testing"
	"time"
)

func TestRateLimiter_AllowsWithinBudget(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{Requests: 3, Window: time.Minute})

	for i := 0; i < 3; i++ {
		if !r.Allow("key-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if r.Allow("key-a") {
		t.Error("4th request in window should be rejected")
	}
}

func TestRateLimiter_KeysIndependent(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{Requests: 1, Window: time.Minute})

	if !r.Allow("key-a") {
		t.Fatal("first request for key-a should pass")
	}
	if !r.Allow("key-b") {
		t.Error("key-b has its own budget")
	}
	if r.Allow("key-a") {
		t.Error("key-a budget is spent")
	}
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{Requests: 2, Window: time.Minute})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	r.now = func() time.Time { return now }

	if !r.Allow("k") || !r.Allow("k") {
		t.Fatal("first two requests should pass")
	}
	if r.Allow("k") {
		t.Fatal("third request should be rejected")
	}

	// Slide past the first hit only.
	now = base.Add(61 * time.Second)
	if !r.Allow("k") {
		t.Error("request should pass once the oldest hit leaves the window")
	}
	if r.Allow("k") {
		t.Error("window still holds two recent hits")
	}
}

func TestRateLimiter_Remaining(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{Requests: 5, Window: time.Minute})

	if got := r.Remaining("k"); got != 5 {
		t.Errorf("Remaining = %d, want 5", got)
	}
	r.Allow("k")
	r.Allow("k")
	if got := r.Remaining("k"); got != 3 {
		t.Errorf("Remaining = %d, want 3", got)
	}
}

func TestRateLimiter_Defaults(t *testing.T) {
	r := NewRateLimiter(RateLimitConfig{})
	if r.requests != 60 || r.window != time.Minute {
		t.Errorf("defaults = %d/%v, want 60/1m", r.requests, r.window)
	}
}
