package ratelimit

import (
	"fmt"
	"testing"
	"time"
)

func newTestLimiter(limit int, window time.Duration) (*Limiter, *time.Time) {
	l := New(limit, window)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestAllowWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, _ := l.Allow("session-a")
		if !allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	allowed, retryAfter := l.Allow("session-a")
	if allowed {
		t.Fatal("4th request should be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("retryAfter = %v, want in (0, 1m]", retryAfter)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if allowed, _ := l.Allow("a"); !allowed {
		t.Fatal("first request for a should pass")
	}
	if allowed, _ := l.Allow("b"); !allowed {
		t.Fatal("first request for b should pass")
	}
	if allowed, _ := l.Allow("a"); allowed {
		t.Fatal("second request for a should be denied")
	}
}

func TestWindowReset(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute)

	l.Allow("a")
	if allowed, _ := l.Allow("a"); allowed {
		t.Fatal("should be denied inside window")
	}

	*now = now.Add(61 * time.Second)
	if allowed, _ := l.Allow("a"); !allowed {
		t.Fatal("should be allowed after window reset")
	}
}

func TestEviction(t *testing.T) {
	l, now := newTestLimiter(5, time.Minute)
	l.maxEntries = 10

	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("key-%d", i))
		*now = now.Add(time.Second)
	}
	if l.Len() != 10 {
		t.Fatalf("expected 10 entries, got %d", l.Len())
	}

	// The next new key forces eviction of the oldest resetAt.
	l.Allow("key-new")
	if l.Len() > 10 {
		t.Fatalf("expected at most 10 entries after eviction, got %d", l.Len())
	}

	// key-0 had the oldest window; a fresh request for it starts over.
	if allowed, _ := l.Allow("key-0"); !allowed {
		t.Fatal("evicted key should be treated as new")
	}
}
