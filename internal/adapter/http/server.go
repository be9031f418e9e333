// Package http exposes the resolver session API alongside health,
// readiness, and metrics endpoints.
//
// Callers are identified by the X-User-ID header; authenticating that
// identity is the gateway's job, not this service's. Text queries are
// expected to be debounced client-side (the reference UI waits 400ms after
// the last keystroke); the API itself only enforces the per-user rate
// limit.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
	"github.com/mealtrail/venue-resolver/internal/session"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessFunc adapts a function to the ReadinessChecker interface.
type ReadinessFunc func(ctx context.Context) error

func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Server exposes the session API plus health, readiness, and metrics
// routes.
type Server struct {
	httpServer *http.Server
	registry   *session.Registry
	limiter    *RateLimiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates the HTTP server and wires all routes.
func NewServer(addr string, registry *session.Registry, ready ReadinessChecker, limiter *RateLimiter, logger *slog.Logger, metrics *observability.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registry: registry,
		limiter:  limiter,
		logger:   logger,
		metrics:  metrics,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /v1/sessions", s.withUser(s.handleCreateSession))
	mux.HandleFunc("GET /v1/sessions/{id}", s.withSession(s.handleGetSession))
	mux.HandleFunc("DELETE /v1/sessions/{id}", s.withSession(s.handleDeleteSession))
	mux.HandleFunc("POST /v1/sessions/{id}/coordinate", s.withSession(s.handleCoordinate))
	mux.HandleFunc("POST /v1/sessions/{id}/query", s.withSession(s.handleQuery))
	mux.HandleFunc("POST /v1/sessions/{id}/select", s.withSession(s.handleSelect))
	mux.HandleFunc("DELETE /v1/sessions/{id}/selection", s.withSession(s.handleClearSelection))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful
// shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context
// deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// --- middleware ---

// withUser requires the X-User-ID header and applies the per-user rate
// limit.
func (s *Server) withUser(next func(w http.ResponseWriter, r *http.Request, userID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("X-User-ID")
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
			return
		}
		if !s.limiter.Allow(userID) {
			s.metrics.RateLimited.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
		next(w, r, userID)
	}
}

// withSession resolves the {id} path segment to a session owned by the
// calling user. Sessions belonging to other users are reported as not
// found rather than forbidden.
func (s *Server) withSession(next func(w http.ResponseWriter, r *http.Request, sess *session.Session)) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request, userID string) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		sess, ok := s.registry.Get(id)
		if !ok || sess.UserID != userID {
			writeError(w, http.StatusNotFound, "unknown session")
			return
		}
		next(w, r, sess)
	})
}

// --- handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request, userID string) {
	sess := s.registry.Create(userID)
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": sess.ID.String()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	writeJSON(w, http.StatusOK, sess.Resolver.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	s.registry.Remove(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

type coordinateRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (s *Server) handleCoordinate(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req coordinateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	// The lookup outlives this request; the snapshot below reflects the
	// in-flight (busy) state and the caller polls GET for the outcome.
	go sess.Resolver.OnCoordinateHint(context.WithoutCancel(r.Context()), domain.Coordinate{Lat: req.Lat, Lng: req.Lng})

	writeJSON(w, http.StatusAccepted, sess.Resolver.Snapshot())
}

type queryRequest struct {
	Query string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	go sess.Resolver.OnTextQuery(context.WithoutCancel(r.Context()), req.Query)

	writeJSON(w, http.StatusAccepted, sess.Resolver.Snapshot())
}

type selectRequest struct {
	PlaceID string   `json:"place_id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	candidate := domain.Venue{
		PlaceID: req.PlaceID,
		Name:    req.Name,
		Address: req.Address,
	}
	if req.Lat != nil && req.Lng != nil {
		candidate.Location = &domain.Coordinate{Lat: *req.Lat, Lng: *req.Lng}
	}

	confirmed, err := sess.Resolver.Select(r.Context(), candidate)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCandidate) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Select swallows everything else by contract; this is unreachable
		// but kept so a future hard error is not silently dropped.
		s.logger.Error("select failed", "error", err)
		writeError(w, http.StatusInternalServerError, "selection failed")
		return
	}

	writeJSON(w, http.StatusOK, confirmed)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, _ *http.Request, sess *session.Session) {
	sess.Resolver.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
