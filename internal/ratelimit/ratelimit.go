// Package ratelimit provides a fixed-window request counter keyed by an
// arbitrary string (IP address, session id) with bounded memory.
package ratelimit

import (
	"sync"
	"time"
)

// DefaultMaxEntries caps the number of tracked keys before eviction.
const DefaultMaxEntries = 10000

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key within a fixed window. When the global
// entry cap is exceeded, the entries with the oldest resetAt are evicted
// first. All methods are safe for concurrent use.
type Limiter struct {
	mu         sync.Mutex
	entries    map[string]*entry
	limit      int
	window     time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a limiter allowing limit requests per window for each key.
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		entries:    make(map[string]*entry),
		limit:      limit,
		window:     window,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
}

// Allow records a request for key and reports whether it is within the
// limit. When denied, retryAfter is the time until the window resets.
func (l *Limiter) Allow(key string) (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		if !ok && len(l.entries) >= l.maxEntries {
			l.evictLocked(now)
		}
		l.entries[key] = &entry{count: 1, resetAt: now.Add(l.window)}
		return true, 0
	}

	if e.count >= l.limit {
		return false, e.resetAt.Sub(now)
	}
	e.count++
	return true, 0
}

// evictLocked drops expired entries, then, if still at capacity, the
// entries closest to expiry. Caller must hold the lock.
func (l *Limiter) evictLocked(now time.Time) {
	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
		}
	}

	for len(l.entries) >= l.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range l.entries {
			if oldestKey == "" || e.resetAt.Before(oldest) {
				oldestKey = k
				oldest = e.resetAt
			}
		}
		delete(l.entries, oldestKey)
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
