//go:build places

package googleplaces

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
)

// These tests hit the real Google Places API and require a valid
// GOOGLE_PLACES_API_KEY env var.
// Run with: go test -tags=places ./internal/adapter/googleplaces/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	key := os.Getenv("GOOGLE_PLACES_API_KEY")
	if key == "" {
		t.Fatal("GOOGLE_PLACES_API_KEY must be set to run smoke tests")
	}
	return &Client{
		apiKey:     key,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://places.googleapis.com/v1/places",
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:    observability.NewMetricsForTesting(),
	}
}

func TestSmoke_SearchNearby(t *testing.T) {
	c := smokeClient(t)

	// Central Paris; should always have restaurants within 500m.
	venues, err := c.SearchNearby(context.Background(), domain.Coordinate{Lat: 48.8566, Lng: 2.3522}, 500)
	require.NoError(t, err)

	require.NotEmpty(t, venues)
	assert.NotEmpty(t, venues[0].PlaceID)
	assert.NotEmpty(t, venues[0].Name)
	assert.NotNil(t, venues[0].Location)
}

func TestSmoke_SearchTextAndDetails(t *testing.T) {
	c := smokeClient(t)

	predictions, err := c.SearchText(context.Background(), "pizza", &domain.Coordinate{Lat: 48.8566, Lng: 2.3522})
	require.NoError(t, err)
	require.NotEmpty(t, predictions)
	assert.Nil(t, predictions[0].Location)

	details, err := c.Details(context.Background(), predictions[0].PlaceID)
	require.NoError(t, err)
	require.NotNil(t, details)
	assert.NotNil(t, details.Location)
}
