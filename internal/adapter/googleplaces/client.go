// Package googleplaces implements domain.Directory against the Google
// Places API (New, v1).
package googleplaces

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mealtrail/venue-resolver/internal/domain"
	"github.com/mealtrail/venue-resolver/internal/observability"
)

const (
	// Nearby-search radius bounds in meters. Requests outside the range are
	// clamped, not rejected.
	minNearbyRadius     = 50
	maxNearbyRadius     = 500
	defaultNearbyRadius = 100

	// autocompleteBiasRadius is the circle around the coordinate hint used
	// to bias text-search predictions.
	autocompleteBiasRadius = 5000

	// Provider-side input limits; longer values yield an empty result.
	maxQueryLen   = 100
	maxPlaceIDLen = 100

	maxResultCount = 10

	nearbyFieldMask  = "places.id,places.displayName,places.formattedAddress,places.location"
	detailsFieldMask = "id,displayName,formattedAddress,location"
)

// includedTypes restricts results to venues a food diary cares about.
var includedTypes = []string{"restaurant", "cafe", "bar", "bakery", "meal_takeaway"}

// Client calls the Google Places API. It degrades on bad input by returning
// an empty result rather than an error.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a Places client.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://places.googleapis.com/v1/places",
		logger:  logger,
		metrics: metrics,
	}
}

// SearchNearby returns venues around center, each with a place id, name,
// address, and coordinate.
func (c *Client) SearchNearby(ctx context.Context, center domain.Coordinate, radiusMeters float64) ([]domain.Venue, error) {
	if !center.Valid() {
		c.logger.Debug("nearby search rejected", "reason", "invalid coordinate")
		return nil, nil
	}

	body := nearbyRequest{
		IncludedTypes:  includedTypes,
		MaxResultCount: maxResultCount,
	}
	body.LocationRestriction.Circle.Center = latLng{Latitude: center.Lat, Longitude: center.Lng}
	body.LocationRestriction.Circle.Radius = clampRadius(radiusMeters)

	var resp nearbyResponse
	if err := c.post(ctx, "nearby", c.baseURL+":searchNearby", nearbyFieldMask, body, &resp); err != nil {
		return nil, err
	}

	venues := make([]domain.Venue, 0, len(resp.Places))
	for _, p := range resp.Places {
		venues = append(venues, p.toVenue())
	}
	c.observeOutcome("nearby", len(venues))
	return venues, nil
}

// SearchText returns autocomplete predictions for a free-text query,
// optionally biased toward bias. Predictions carry no coordinate.
func (c *Client) SearchText(ctx context.Context, query string, bias *domain.Coordinate) ([]domain.Venue, error) {
	query = strings.TrimSpace(query)
	if query == "" || len(query) > maxQueryLen {
		c.logger.Debug("text search rejected", "reason", "empty or oversized query")
		return nil, nil
	}

	body := autocompleteRequest{
		Input:                query,
		IncludedPrimaryTypes: includedTypes,
	}
	if bias != nil && bias.Valid() {
		body.LocationBias = &circleBias{}
		body.LocationBias.Circle.Center = latLng{Latitude: bias.Lat, Longitude: bias.Lng}
		body.LocationBias.Circle.Radius = autocompleteBiasRadius
	}

	var resp autocompleteResponse
	if err := c.post(ctx, "text", c.baseURL+":autocomplete", "", body, &resp); err != nil {
		return nil, err
	}

	venues := make([]domain.Venue, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		p := s.PlacePrediction
		if p.PlaceID == "" {
			continue
		}
		venues = append(venues, domain.Venue{
			PlaceID: p.PlaceID,
			Name:    p.StructuredFormat.MainText.Text,
			Address: p.StructuredFormat.SecondaryText.Text,
		})
	}
	c.observeOutcome("text", len(venues))
	return venues, nil
}

// Details resolves a place id to a full venue record, or nil if the id is
// empty, oversized, or unknown to the provider.
func (c *Client) Details(ctx context.Context, placeID string) (*domain.Venue, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" || len(placeID) > maxPlaceIDLen {
		c.logger.Debug("details rejected", "reason", "empty or oversized place id")
		return nil, nil
	}

	start := time.Now()
	fullURL := c.baseURL + "/" + url.PathEscape(placeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create details request: %w", err)
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", detailsFieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues("details", "error").Inc()
		return nil, fmt.Errorf("details request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ProviderDuration.WithLabelValues("details").Observe(time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotFound {
		c.metrics.ProviderRequests.WithLabelValues("details", "empty").Inc()
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.metrics.ProviderRequests.WithLabelValues("details", "error").Inc()
		return nil, fmt.Errorf("places API error: status %d: %s", resp.StatusCode, body)
	}

	var p place
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		c.metrics.ProviderRequests.WithLabelValues("details", "error").Inc()
		return nil, fmt.Errorf("decode details response: %w", err)
	}

	c.metrics.ProviderRequests.WithLabelValues("details", "success").Inc()
	v := p.toVenue()
	return &v, nil
}

func (c *Client) post(ctx context.Context, method, fullURL, fieldMask string, body, out any) error {
	start := time.Now()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	if fieldMask != "" {
		req.Header.Set("X-Goog-FieldMask", fieldMask)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ProviderRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()
	c.metrics.ProviderDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		c.metrics.ProviderRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("places API error: status %d: %s", resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ProviderRequests.WithLabelValues(method, "error").Inc()
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func (c *Client) observeOutcome(method string, resultCount int) {
	if resultCount == 0 {
		c.metrics.ProviderRequests.WithLabelValues(method, "empty").Inc()
		return
	}
	c.metrics.ProviderRequests.WithLabelValues(method, "success").Inc()
}

func clampRadius(radius float64) float64 {
	if radius <= 0 {
		return defaultNearbyRadius
	}
	if radius < minNearbyRadius {
		return minNearbyRadius
	}
	if radius > maxNearbyRadius {
		return maxNearbyRadius
	}
	return radius
}

// Places API (New) request and response types.

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type nearbyRequest struct {
	LocationRestriction struct {
		Circle circle `json:"circle"`
	} `json:"locationRestriction"`
	IncludedTypes  []string `json:"includedTypes"`
	MaxResultCount int      `json:"maxResultCount"`
}

type circleBias struct {
	Circle circle `json:"circle"`
}

type autocompleteRequest struct {
	Input                string      `json:"input"`
	IncludedPrimaryTypes []string    `json:"includedPrimaryTypes"`
	LocationBias         *circleBias `json:"locationBias,omitempty"`
}

type localizedText struct {
	Text string `json:"text"`
}

type place struct {
	ID               string        `json:"id"`
	DisplayName      localizedText `json:"displayName"`
	FormattedAddress string        `json:"formattedAddress"`
	Location         *latLng       `json:"location"`
}

func (p place) toVenue() domain.Venue {
	v := domain.Venue{
		PlaceID: p.ID,
		Name:    p.DisplayName.Text,
		Address: p.FormattedAddress,
	}
	if p.Location != nil {
		v.Location = &domain.Coordinate{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	}
	return v
}

type nearbyResponse struct {
	Places []place `json:"places"`
}

type autocompleteResponse struct {
	Suggestions []suggestion `json:"suggestions"`
}

type suggestion struct {
	PlacePrediction struct {
		PlaceID          string `json:"placeId"`
		StructuredFormat struct {
			MainText      localizedText `json:"mainText"`
			SecondaryText localizedText `json:"secondaryText"`
		} `json:"structuredFormat"`
	} `json:"placePrediction"`
}
