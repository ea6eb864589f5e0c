package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLimiter(rdb), mr
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		allowed, err := limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
		if err != nil {
			t.Fatalf("Allow failed on attempt %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i)
		}
	}

	// The 11th attempt in the same window is blocked.
	allowed, err := limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("attempt 11 should be blocked")
	}
}

func TestLimiter_BlockedUntilWindowExpires(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 11; i++ {
		limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
	}

	// Still blocked partway through the window.
	mr.FastForward(time.Minute)
	allowed, err := limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if allowed {
		t.Error("expected client to stay blocked inside the window")
	}

	// Allowed again once the window has fully elapsed.
	mr.FastForward(3 * time.Minute)
	allowed, err = limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Error("expected attempts to be allowed after the window expired")
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	limiter, _ := newTestLimiter(t)
	ctx := context.Background()

	// Exhaust the login window for one client.
	for i := 0; i < 11; i++ {
		limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
	}

	// Same client, different endpoint: independent window.
	allowed, err := limiter.Allow(ctx, "password-reset-request:10.0.0.1", 10, 3*time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Error("expected reset-request window to be independent of login window")
	}

	// Different client, same endpoint: also independent.
	allowed, err = limiter.Allow(ctx, "session:10.0.0.2", 10, 3*time.Minute)
	if err != nil {
		t.Fatalf("Allow failed: %v", err)
	}
	if !allowed {
		t.Error("expected a different client to have its own window")
	}
}

func TestLimiter_WindowStartsAtFirstAttempt(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)

	// Later attempts must not push the expiry out (EXPIRE NX).
	mr.FastForward(2 * time.Minute)
	limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)

	mr.FastForward(time.Minute + time.Second)

	// Window has elapsed relative to the FIRST attempt, so the counter reset.
	for i := 1; i <= 10; i++ {
		allowed, err := limiter.Allow(ctx, "session:10.0.0.1", 10, 3*time.Minute)
		if err != nil {
			t.Fatalf("Allow failed: %v", err)
		}
		if !allowed {
			t.Fatalf("attempt %d in the new window should be allowed", i)
		}
	}
}
