package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/mealtrail/venue-resolver/internal/adapter/http"
	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
	"github.com/mealtrail/venue-resolver/internal/resolver"
	"github.com/mealtrail/venue-resolver/internal/session"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type memStore struct {
	mu     sync.Mutex
	venues map[string][]domain.Venue
}

func newMemStore() *memStore {
	return &memStore{venues: make(map[string][]domain.Venue)}
}

func (s *memStore) ListForUser(_ context.Context, userID string) ([]domain.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Venue(nil), s.venues[userID]...), nil
}

func (s *memStore) Upsert(_ context.Context, userID string, v domain.Venue) (domain.Venue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.venues[userID] {
		if existing.PlaceID == v.PlaceID {
			s.venues[userID][i] = v
			return v, nil
		}
	}
	s.venues[userID] = append([]domain.Venue{v}, s.venues[userID]...)
	return v, nil
}

func newTestServer(readyErr error, store domain.VenueStore) (*httpadapter.Server, *session.Registry) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := session.NewRegistry(func(userID string) *resolver.Resolver {
		return resolver.New(resolver.Config{
			UserID:  userID,
			Store:   store,
			Logger:  logger,
			Metrics: metrics,
		})
	}, time.Hour, nil, logger, metrics)

	limiter := httpadapter.NewRateLimiter(30, time.Minute, nil)
	srv := httpadapter.NewServer(":0", registry, &mockReadiness{err: readyErr}, limiter, logger, metrics)
	return srv, registry
}

func doRequest(srv *httpadapter.Server, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, srv *httpadapter.Server, userID string) string {
	t.Helper()
	rec := doRequest(srv, http.MethodPost, "/v1/sessions", userID, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["session_id"])
	return body["session_id"]
}

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	rec := doRequest(srv, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	rec := doRequest(srv, http.MethodGet, "/readyz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv, _ := newTestServer(fmt.Errorf("redis down"), newMemStore())
	rec := doRequest(srv, http.MethodGet, "/readyz", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "redis down", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	rec := doRequest(srv, http.MethodGet, "/metrics", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCreateSessionRequiresUserHeader(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	rec := doRequest(srv, http.MethodPost, "/v1/sessions", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateAndGetSession(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodGet, "/v1/sessions/"+id, "user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap resolver.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Empty(t, snap.Candidates)
	assert.Nil(t, snap.Selection)
	assert.False(t, snap.Busy)
}

func TestGetUnknownSessionReturns404(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())

	rec := doRequest(srv, http.MethodGet, "/v1/sessions/0d9264a6-4f5e-4c39-b6f0-3a2f3f9a9f00", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/v1/sessions/not-a-uuid", "user-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionNotVisibleToOtherUser(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodGet, "/v1/sessions/"+id, "user-2", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	srv, registry := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodDelete, "/v1/sessions/"+id, "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, registry.Len())
}

func TestCoordinateAccepted(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodPost, "/v1/sessions/"+id+"/coordinate", "user-1",
		map[string]float64{"lat": 12.9716, "lng": 77.5946})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestCoordinateRejectsMalformedBody(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/"+id+"/coordinate", bytes.NewBufferString("{"))
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryAccepted(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodPost, "/v1/sessions/"+id+"/query", "user-1",
		map[string]string{"query": "mabrouk"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSelectPersistsAndReturnsVenue(t *testing.T) {
	store := newMemStore()
	srv, _ := newTestServer(nil, store)
	id := createSession(t, srv, "user-1")

	lat, lng := 12.9716, 77.5946
	rec := doRequest(srv, http.MethodPost, "/v1/sessions/"+id+"/select", "user-1", map[string]any{
		"place_id": "place-1",
		"name":     "Mabrouk Grill",
		"address":  "12 Brigade Rd",
		"lat":      lat,
		"lng":      lng,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var v domain.Venue
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, "place-1", v.PlaceID)
	assert.Equal(t, "Mabrouk Grill", v.Name)

	saved, err := store.ListForUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "place-1", saved[0].PlaceID)

	rec = doRequest(srv, http.MethodGet, "/v1/sessions/"+id, "user-1", nil)
	var snap resolver.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotNil(t, snap.Selection)
	assert.Equal(t, "place-1", snap.Selection.PlaceID)
}

func TestSelectRejectsEmptyCandidate(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodPost, "/v1/sessions/"+id+"/select", "user-1", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearSelection(t *testing.T) {
	srv, _ := newTestServer(nil, newMemStore())
	id := createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodPost, "/v1/sessions/"+id+"/select", "user-1", map[string]any{
		"name": "Corner Cafe",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodDelete, "/v1/sessions/"+id+"/selection", "user-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/v1/sessions/"+id, "user-1", nil)
	var snap resolver.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Nil(t, snap.Selection)
}

func TestRateLimitReturns429(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()

	registry := session.NewRegistry(func(userID string) *resolver.Resolver {
		return resolver.New(resolver.Config{UserID: userID, Store: store, Logger: logger, Metrics: metrics})
	}, time.Hour, nil, logger, metrics)

	limiter := httpadapter.NewRateLimiter(2, time.Minute, nil)
	srv := httpadapter.NewServer(":0", registry, &mockReadiness{}, limiter, logger, metrics)

	createSession(t, srv, "user-1")
	createSession(t, srv, "user-1")

	rec := doRequest(srv, http.MethodPost, "/v1/sessions", "user-1", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other users have their own window.
	rec = doRequest(srv, http.MethodPost, "/v1/sessions", "user-2", nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}
