// Command seedvenues loads a JSON fixture of venues into a user's saved set
// in Redis. It uses the actual store package so seeded data matches what the
// service itself writes, ordering included.
//
// Usage:
//
//	go run ./cmd/seedvenues \
//	  -file data/fixtures/bangalore_venues.json \
//	  -user dev-user \
//	  -redis-addr localhost:6379
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/mealtrail/venue-resolver/internal/adapter/redisstore"
	"github.com/mealtrail/venue-resolver/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	file := flag.String("file", "", "path to JSON array of venues")
	user := flag.String("user", "", "user id to seed venues under")
	redisAddr := flag.String("redis-addr", "localhost:6379", "redis address")
	redisDB := flag.Int("redis-db", 0, "redis database number")
	flag.Parse()

	if *file == "" || *user == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -file, -user")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}

	var venues []domain.Venue
	if err := json.Unmarshal(data, &venues); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}

	client := redis.NewClient(&redis.Options{Addr: *redisAddr, DB: *redisDB})
	defer client.Close()

	ctx := context.Background()
	store := redisstore.New(client, nil, slog.Default())

	if err := store.Ping(ctx); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", *redisAddr, err)
	}

	var seeded, skipped int
	// The fixture is oldest-first; upserting in order leaves the last entry
	// newest in the recency ranking, matching real usage.
	for _, v := range venues {
		if !v.Valid() || v.PlaceID == "" {
			log.Printf("skipping invalid venue: %+v", v)
			skipped++
			continue
		}
		if _, err := store.Upsert(ctx, *user, v); err != nil {
			return fmt.Errorf("upserting %q: %w", v.Name, err)
		}
		seeded++
	}

	log.Printf("seeded %d venues for user %s (%d skipped)", seeded, *user, skipped)
	return nil
}
