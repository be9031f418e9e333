// Package session tracks live resolver sessions, one per in-progress diary
// entry, and expires the ones their callers abandoned.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mealtrail/venue-resolver/internal/observability"
	"github.com/mealtrail/venue-resolver/internal/resolver"
)

// Session pairs a resolver with its owner.
type Session struct {
	ID       uuid.UUID
	UserID   string
	Resolver *resolver.Resolver

	lastSeen time.Time
}

// Registry owns all live sessions. Sessions idle longer than the TTL are
// swept on a ticker; any Get refreshes the deadline.
type Registry struct {
	newResolver func(userID string) *resolver.Resolver
	ttl         time.Duration
	clock       clockwork.Clock
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry creates a session registry. The clock is injectable for
// tests; pass nil for real time.
func NewRegistry(newResolver func(userID string) *resolver.Resolver, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		newResolver: newResolver,
		ttl:         ttl,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
		sessions:    make(map[uuid.UUID]*Session),
	}
}

// Create starts a new session for the user.
func (r *Registry) Create(userID string) *Session {
	s := &Session{
		ID:       uuid.New(),
		UserID:   userID,
		Resolver: r.newResolver(userID),
		lastSeen: r.clock.Now(),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(count))
	return s
}

// Get returns the session and refreshes its idle deadline.
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.clock.Now()
	return s, true
}

// Remove tears a session down.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	delete(r.sessions, id)
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(count))
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run sweeps expired sessions every interval until the context is
// cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := r.clock.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired int
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			expired++
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ActiveSessions.Set(float64(count))
	if expired > 0 {
		r.logger.Debug("expired idle sessions", "count", expired, "remaining", count)
	}
}
