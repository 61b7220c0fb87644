package middleware

import (
	"testing"
	"time"
)

func TestRateLimiter_EnforcesLimit(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(2, time.Minute, func() time.Time { return now })

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatalf("expected first two requests allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("expected third request rejected")
	}
	// other keys are unaffected
	if !rl.Allow("b") {
		t.Fatalf("expected different key allowed")
	}
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl := NewRateLimiterWithNow(1, time.Minute, func() time.Time { return now })

	if !rl.Allow("a") {
		t.Fatalf("expected first request allowed")
	}
	if rl.Allow("a") {
		t.Fatalf("expected second request rejected")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.Allow("a") {
		t.Fatalf("expected request allowed after window reset")
	}
}
