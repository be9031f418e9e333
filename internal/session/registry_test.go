package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealtrail/venue-resolver/internal/observability"
	"github.com/mealtrail/venue-resolver/internal/resolver"
)

func testRegistry(t *testing.T, ttl time.Duration) (*Registry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	newResolver := func(userID string) *resolver.Resolver {
		return resolver.New(resolver.Config{
			UserID:  userID,
			Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
			Metrics: observability.NewMetricsForTesting(),
		})
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(newResolver, ttl, clock, logger, observability.NewMetricsForTesting()), clock
}

func TestCreateAndGet(t *testing.T) {
	reg, _ := testRegistry(t, time.Minute)

	s := reg.Create("user-1")
	require.NotNil(t, s.Resolver)
	assert.Equal(t, "user-1", s.UserID)

	got, ok := reg.Get(s.ID)
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, reg.Len())
}

func TestGet_UnknownID(t *testing.T) {
	reg, _ := testRegistry(t, time.Minute)

	_, ok := reg.Get(uuid.New())
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	reg, _ := testRegistry(t, time.Minute)

	s := reg.Create("user-1")
	reg.Remove(s.ID)

	_, ok := reg.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestSweep_ExpiresIdleSessions(t *testing.T) {
	reg, clock := testRegistry(t, time.Minute)

	s := reg.Create("user-1")
	clock.Advance(2 * time.Minute)
	reg.sweep()

	_, ok := reg.Get(s.ID)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())
}

func TestSweep_GetRefreshesDeadline(t *testing.T) {
	reg, clock := testRegistry(t, time.Minute)

	s := reg.Create("user-1")
	clock.Advance(45 * time.Second)

	// Touch the session just before it would expire.
	_, ok := reg.Get(s.ID)
	require.True(t, ok)

	clock.Advance(45 * time.Second)
	reg.sweep()

	_, ok = reg.Get(s.ID)
	assert.True(t, ok, "recently touched session survives the sweep")
}

func TestSweep_KeepsFreshSessions(t *testing.T) {
	reg, clock := testRegistry(t, time.Minute)

	old := reg.Create("user-1")
	clock.Advance(2 * time.Minute)
	fresh := reg.Create("user-2")
	reg.sweep()

	_, ok := reg.Get(old.ID)
	assert.False(t, ok)
	_, ok = reg.Get(fresh.ID)
	assert.True(t, ok)
}
