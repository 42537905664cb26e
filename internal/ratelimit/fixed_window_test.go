package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestFixedWindowLimiter(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	ctx := context.Background()

	if !limiter.Allow(ctx, "a@clinic.test") {
		t.Fatalf("first call should pass")
	}
	if !limiter.Allow(ctx, "A@Clinic.test ") {
		t.Fatalf("second call should pass")
	}
	if limiter.Allow(ctx, "a@clinic.test") {
		t.Fatalf("third call should be blocked")
	}
	if !limiter.Allow(ctx, "b@clinic.test") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestFixedWindowLimiterNextWindow(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "", 1, time.Minute)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow(ctx, "a@clinic.test") {
		t.Fatalf("first call should pass")
	}
	if limiter.Allow(ctx, "a@clinic.test") {
		t.Fatalf("second call in the same window should be blocked")
	}
	now = now.Add(time.Minute)
	if !limiter.Allow(ctx, "a@clinic.test") {
		t.Fatalf("call in the next window should pass")
	}
}

func TestFixedWindowLimiterFailClosed(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "test:ratelimit", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	redis.Close()
	if limiter.Allow(context.Background(), "ip-1") {
		t.Fatalf("limiter should fail closed on redis errors")
	}
}

func TestFixedWindowLimiterPing(t *testing.T) {
	redis := miniredis.RunT(t)
	limiter, err := NewRedisFixedWindowLimiter(redis.Addr(), "", "", 1, time.Second)
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { limiter.Close() })
	if err := limiter.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestFixedWindowLimiterValidation(t *testing.T) {
	if l, err := NewRedisFixedWindowLimiter("", "", "x", 1, time.Second); err == nil || l != nil {
		t.Fatalf("expected constructor error for empty redis addr")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "x", 0, time.Second); err == nil {
		t.Fatalf("expected constructor error for zero limit")
	}
	if _, err := NewRedisFixedWindowLimiter("localhost:6379", "", "x", 1, 500*time.Microsecond); err == nil {
		t.Fatalf("expected constructor error for sub-millisecond window")
	}
}

func TestFixedWindowLimiterSubMillisecondWindow(t *testing.T) {
	l := &FixedWindowLimiter{limit: 1, window: 500 * time.Microsecond, now: time.Now}
	if l.Allow(context.Background(), "oak@clinic.test") {
		t.Fatal("expected a sub-millisecond window to deny instead of dividing by zero")
	}
}
