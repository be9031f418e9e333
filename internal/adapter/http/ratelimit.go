package http

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter enforces a per-user fixed-window request limit. State is
// in-memory and lost on restart, which is acceptable for an abuse guard in
// front of a paid places API.
type RateLimiter struct {
	limit  int
	window time.Duration
	clock  clockwork.Clock

	mu      sync.Mutex
	entries map[string]*windowEntry
}

type windowEntry struct {
	count   int
	resetAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per window per
// key. The clock is injectable for tests; pass nil for real time.
func NewRateLimiter(limit int, window time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		entries: make(map[string]*windowEntry),
	}
}

// Allow reports whether key may make another request in the current window.
func (l *RateLimiter) Allow(key string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		l.entries[key] = &windowEntry{count: 1, resetAt: now.Add(l.window)}
		return true
	}
	if e.count >= l.limit {
		return false
	}
	e.count++
	return true
}
