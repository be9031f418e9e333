// Package redisstore persists each user's confirmed venues in Redis.
//
// Layout per user:
//
//	venues:{userID}          hash   place id → venue JSON
//	venues:{userID}:recency  zset   place id scored by first confirmation time
//
// The hash gives (user, place id) upsert semantics for free: re-confirming
// a venue overwrites its record. The zset keeps a stable newest-first
// listing order, which is what proximity matching uses for tie-breaking;
// NX scoring means re-confirmation does not reshuffle the order.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/mealtrail/venue-resolver/internal/domain"
)

// ErrMissingPlaceID is returned when a venue without a provider place id is
// offered for persistence. Such venues have no stable key and are kept only
// in session state.
var ErrMissingPlaceID = errors.New("venue has no place id")

// Store implements domain.VenueStore on Redis.
type Store struct {
	client *redis.Client
	clock  clockwork.Clock
	logger *slog.Logger
}

// New creates a venue store. The clock is injectable for tests; pass nil
// for real time.
func New(client *redis.Client, clock clockwork.Clock, logger *slog.Logger) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{client: client, clock: clock, logger: logger}
}

// Ping reports whether Redis is reachable; used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Upsert writes the venue under (userID, place id), overwriting any
// existing record for the same key.
func (s *Store) Upsert(ctx context.Context, userID string, v domain.Venue) (domain.Venue, error) {
	if v.PlaceID == "" {
		return domain.Venue{}, ErrMissingPlaceID
	}

	data, err := json.Marshal(v)
	if err != nil {
		return domain.Venue{}, fmt.Errorf("serialize venue: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, venuesKey(userID), v.PlaceID, data)
	pipe.ZAddNX(ctx, recencyKey(userID), redis.Z{
		Score:  float64(s.clock.Now().UnixMilli()),
		Member: v.PlaceID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return domain.Venue{}, fmt.Errorf("upsert venue %s: %w", v.PlaceID, err)
	}

	return v, nil
}

// ListForUser returns the user's confirmed venues, newest confirmation
// first. Records that fail to unmarshal are skipped with a warning rather
// than failing the whole listing.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]domain.Venue, error) {
	ids, err := s.client.ZRevRange(ctx, recencyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list venue ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := s.client.HMGet(ctx, venuesKey(userID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch venues: %w", err)
	}

	venues := make([]domain.Venue, 0, len(raw))
	for i, item := range raw {
		str, ok := item.(string)
		if !ok {
			s.logger.Warn("venue record missing from hash", "user_id", userID, "place_id", ids[i])
			continue
		}
		var v domain.Venue
		if err := json.Unmarshal([]byte(str), &v); err != nil {
			s.logger.Warn("corrupt venue record skipped", "user_id", userID, "place_id", ids[i], "error", err)
			continue
		}
		venues = append(venues, v)
	}
	return venues, nil
}

func venuesKey(userID string) string {
	return "venues:" + userID
}

func recencyKey(userID string) string {
	return "venues:" + userID + ":recency"
}
