package domain

import "context"

// Directory is the external places provider consumed by the resolver.
//
// All three calls are best-effort: implementations report transport and
// provider failures through the error return, and the resolver degrades
// every failure to an empty result. An empty slice or nil venue with a nil
// error means the provider genuinely found nothing.
type Directory interface {
	// SearchNearby returns venues around center, closest-biased, each with
	// a place id, name, address, and coordinate.
	SearchNearby(ctx context.Context, center Coordinate, radiusMeters float64) ([]Venue, error)

	// SearchText returns autocomplete predictions for a free-text query,
	// optionally biased toward bias. Predictions carry no coordinate; it
	// must be resolved via Details before persistence.
	SearchText(ctx context.Context, query string, bias *Coordinate) ([]Venue, error)

	// Details resolves a place id to a full venue record, or nil if the
	// provider does not know the id.
	Details(ctx context.Context, placeID string) (*Venue, error)
}

// VenueStore is the user's set of previously confirmed venues.
//
// Upsert is keyed by (user id, place id): a second upsert with the same key
// overwrites rather than duplicates. ListForUser returns venues
// newest-confirmation-first, the order FindNearest relies on for
// tie-breaking.
type VenueStore interface {
	ListForUser(ctx context.Context, userID string) ([]Venue, error)
	Upsert(ctx context.Context, userID string, v Venue) (Venue, error)
}
