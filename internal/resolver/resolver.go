// Package resolver sequences all location-resolution activity for one
// in-progress diary entry.
//
// A Resolver owns one search session: the current candidate list, an
// optional proximity-match banner, an optional confirmed selection, a busy
// flag, and the last coordinate hint. Its operations are safe to call
// concurrently and repeatedly; a monotonically increasing sequence counter
// guarantees that only the most recent request's result ever reaches
// session state. Superseded results are discarded silently, so rapid
// coordinate hints and keystroke-driven text queries never flash stale
// suggestions.
//
// Venue resolution is an enhancement to entry creation, never a
// requirement: every provider or store failure degrades to an idle session
// with empty candidates. The single hard error this package can return is
// [domain.ErrInvalidCandidate] from Select.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
)

// Resolver operation outcomes recorded in metrics.
const (
	outcomeApplied = "applied"
	outcomeStale   = "stale"
	outcomeSkipped = "skipped"
	outcomeError   = "error"
)

// minQueryLen is the minimum number of runes before a text query triggers a
// provider call. The caller additionally debounces keystrokes (400ms in the
// reference UI); the resolver only enforces the length floor.
const minQueryLen = 3

// EventSink receives best-effort notifications about confirmed venues.
type EventSink interface {
	PublishVenueConfirmed(ctx context.Context, userID string, v domain.Venue) error
}

// Snapshot is the caller-facing copy of session state.
type Snapshot struct {
	Candidates     []domain.Venue `json:"candidates"`
	ProximityMatch *domain.Venue  `json:"proximity_match,omitempty"`
	Selection      *domain.Venue  `json:"selection,omitempty"`
	Busy           bool           `json:"busy"`
}

// Config carries the collaborators and tuning for one Resolver.
type Config struct {
	UserID    string
	Directory domain.Directory  // nil disables provider search
	Store     domain.VenueStore // required
	Sink      EventSink         // nil disables event publishing
	Logger    *slog.Logger
	Metrics   *observability.Metrics

	// MatchRadiusMeters short-circuits to a saved venue; NearbyRadiusMeters
	// scopes provider nearby-search. Zero values take the defaults (50, 100).
	MatchRadiusMeters  float64
	NearbyRadiusMeters float64
}

// Resolver coordinates venue lookup for a single entry-creation session.
type Resolver struct {
	userID       string
	directory    domain.Directory
	store        domain.VenueStore
	sink         EventSink
	logger       *slog.Logger
	metrics      *observability.Metrics
	matchRadius  float64
	nearbyRadius float64

	mu         sync.Mutex
	seq        uint64
	busy       bool
	candidates []domain.Venue
	proximity  *domain.Venue
	selection  *domain.Venue
	lastHint   *domain.Coordinate
}

// New creates a Resolver for one user session.
func New(cfg Config) *Resolver {
	if cfg.MatchRadiusMeters <= 0 {
		cfg.MatchRadiusMeters = 50
	}
	if cfg.NearbyRadiusMeters <= 0 {
		cfg.NearbyRadiusMeters = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewMetricsForTesting()
	}
	return &Resolver{
		userID:       cfg.UserID,
		directory:    cfg.Directory,
		store:        cfg.Store,
		sink:         cfg.Sink,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		matchRadius:  cfg.MatchRadiusMeters,
		nearbyRadius: cfg.NearbyRadiusMeters,
	}
}

// OnCoordinateHint handles the arrival of a new coordinate, typically GPS
// data extracted from a photo. It first tries to short-circuit against the
// user's saved venues; only when none is within the match radius does it
// fall back to a provider nearby-search. Out-of-range coordinates are
// rejected silently. Blocks until the lookup completes or is superseded;
// callers wanting fire-and-forget run it in a goroutine.
func (r *Resolver) OnCoordinateHint(ctx context.Context, hint domain.Coordinate) {
	if !hint.Valid() {
		r.metrics.ResolverRequests.WithLabelValues("coordinate", outcomeSkipped).Inc()
		return
	}

	token := r.begin(&hint)

	known, err := r.store.ListForUser(ctx, r.userID)
	if err != nil {
		r.logger.Warn("known-venues fetch failed", "user_id", r.userID, "error", err)
		r.degrade(token, "coordinate")
		return
	}
	if r.superseded(token) {
		r.metrics.ResolverRequests.WithLabelValues("coordinate", outcomeStale).Inc()
		return
	}

	if match := domain.FindNearest(hint, known, r.matchRadius); match != nil {
		m := *match
		if r.apply(token, func() {
			r.proximity = &m
			r.candidates = nil
		}) {
			r.metrics.ProximityMatches.Inc()
			r.metrics.ResolverRequests.WithLabelValues("coordinate", outcomeApplied).Inc()
		} else {
			r.metrics.ResolverRequests.WithLabelValues("coordinate", outcomeStale).Inc()
		}
		return
	}

	nearby, err := r.searchNearby(ctx, hint)
	if err != nil {
		r.logger.Warn("nearby search failed", "user_id", r.userID, "error", err)
		r.degrade(token, "coordinate")
		return
	}

	if r.apply(token, func() {
		r.candidates = nearby
		r.proximity = nil
	}) {
		r.metrics.ResolverRequests.WithLabelValues("coordinate", outcomeApplied).Inc()
	} else {
		r.metrics.ResolverRequests.WithLabelValues("coordinate", outcomeStale).Inc()
	}
}

// OnTextQuery handles user free-text input. Queries shorter than three
// runes never reach the provider and clear any existing candidate list.
// Results are biased by the last coordinate hint when one is known. Blocks
// like OnCoordinateHint; the caller is expected to debounce keystrokes.
func (r *Resolver) OnTextQuery(ctx context.Context, query string) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < minQueryLen {
		// Advancing the sequence here also invalidates any in-flight
		// search, so its late result cannot repopulate the cleared list.
		r.mu.Lock()
		r.seq++
		r.candidates = nil
		r.busy = false
		r.mu.Unlock()
		r.metrics.ResolverRequests.WithLabelValues("text", outcomeSkipped).Inc()
		return
	}

	token := r.begin(nil)
	bias := r.lastHintCopy()

	results, err := r.searchText(ctx, query, bias)
	if err != nil {
		r.logger.Warn("text search failed", "user_id", r.userID, "query_len", len(query), "error", err)
		r.degrade(token, "text")
		return
	}

	if r.apply(token, func() { r.candidates = results }) {
		r.metrics.ResolverRequests.WithLabelValues("text", outcomeApplied).Inc()
	} else {
		r.metrics.ResolverRequests.WithLabelValues("text", outcomeStale).Inc()
	}
}

// Select confirms a candidate as the session's venue. Candidates missing a
// coordinate are completed via a provider details lookup, then upserted
// into the known-venues store keyed by (user, place id). Every failure past
// the structural check is swallowed: the candidate is returned as given and
// the user proceeds with partial data. Candidates without a place id are
// returned unmodified and never persisted.
func (r *Resolver) Select(ctx context.Context, candidate domain.Venue) (domain.Venue, error) {
	if !candidate.Valid() {
		r.metrics.ResolverRequests.WithLabelValues("select", outcomeError).Inc()
		return domain.Venue{}, domain.ErrInvalidCandidate
	}

	r.mu.Lock()
	r.seq++ // invalidate in-flight searches
	r.candidates = nil
	r.proximity = nil
	sel := candidate
	r.selection = &sel
	r.busy = false
	r.mu.Unlock()

	if candidate.PlaceID == "" {
		r.metrics.ResolverRequests.WithLabelValues("select", outcomeApplied).Inc()
		return candidate, nil
	}

	full := candidate
	if full.Location == nil {
		details, err := r.details(ctx, candidate.PlaceID)
		if err != nil || details == nil {
			if err != nil {
				r.logger.Warn("details fetch failed", "place_id", candidate.PlaceID, "error", err)
			}
			r.metrics.ResolverRequests.WithLabelValues("select", outcomeApplied).Inc()
			return candidate, nil
		}
		full = candidate.Merge(*details)
		r.setSelection(full)
	}

	stored, err := r.store.Upsert(ctx, r.userID, full)
	if err != nil {
		r.logger.Warn("venue upsert failed", "user_id", r.userID, "place_id", full.PlaceID, "error", err)
		r.metrics.ResolverRequests.WithLabelValues("select", outcomeApplied).Inc()
		return candidate, nil
	}
	r.metrics.VenuesUpserted.Inc()
	r.setSelection(stored)
	r.publishConfirmed(ctx, stored)

	r.metrics.ResolverRequests.WithLabelValues("select", outcomeApplied).Inc()
	return stored, nil
}

// Clear resets selection, proximity match, and candidates, and invalidates
// any in-flight search.
func (r *Resolver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.busy = false
	r.candidates = nil
	r.proximity = nil
	r.selection = nil
}

// Snapshot returns a copy of the current session state.
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Candidates: make([]domain.Venue, len(r.candidates)),
		Busy:       r.busy,
	}
	copy(snap.Candidates, r.candidates)
	if r.proximity != nil {
		p := *r.proximity
		snap.ProximityMatch = &p
	}
	if r.selection != nil {
		s := *r.selection
		snap.Selection = &s
	}
	return snap
}

// begin issues a new request token, marking the session busy and recording
// the coordinate hint when one accompanies the request.
func (r *Resolver) begin(hint *domain.Coordinate) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.busy = true
	if hint != nil {
		h := *hint
		r.lastHint = &h
	}
	return r.seq
}

// apply runs mutate and clears the busy flag, but only if token still
// identifies the latest request. Reports whether the mutation ran.
func (r *Resolver) apply(token uint64, mutate func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.seq {
		return false
	}
	if mutate != nil {
		mutate()
	}
	r.busy = false
	return true
}

// degrade maps a failed lookup to the "empty result" outcome: candidates
// cleared, busy flag dropped, no error surfaced.
func (r *Resolver) degrade(token uint64, op string) {
	if r.apply(token, func() { r.candidates = nil }) {
		r.metrics.ResolverRequests.WithLabelValues(op, outcomeError).Inc()
	} else {
		r.metrics.ResolverRequests.WithLabelValues(op, outcomeStale).Inc()
	}
}

func (r *Resolver) superseded(token uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return token != r.seq
}

func (r *Resolver) lastHintCopy() *domain.Coordinate {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastHint == nil {
		return nil
	}
	h := *r.lastHint
	return &h
}

func (r *Resolver) setSelection(v domain.Venue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selection = &v
}

func (r *Resolver) searchNearby(ctx context.Context, center domain.Coordinate) ([]domain.Venue, error) {
	if r.directory == nil {
		return nil, nil
	}
	return r.directory.SearchNearby(ctx, center, r.nearbyRadius)
}

func (r *Resolver) searchText(ctx context.Context, query string, bias *domain.Coordinate) ([]domain.Venue, error) {
	if r.directory == nil {
		return nil, nil
	}
	return r.directory.SearchText(ctx, query, bias)
}

func (r *Resolver) details(ctx context.Context, placeID string) (*domain.Venue, error) {
	if r.directory == nil {
		return nil, nil
	}
	return r.directory.Details(ctx, placeID)
}

func (r *Resolver) publishConfirmed(ctx context.Context, v domain.Venue) {
	if r.sink == nil {
		return
	}
	if err := r.sink.PublishVenueConfirmed(ctx, r.userID, v); err != nil {
		r.logger.Warn("venue confirmed event publish failed", "place_id", v.PlaceID, "error", err)
		r.metrics.EventsPublished.WithLabelValues("error").Inc()
		return
	}
	r.metrics.EventsPublished.WithLabelValues("success").Inc()
}
