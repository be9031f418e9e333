// Package kafka publishes venue-confirmed events for downstream consumers
// (analytics, entry enrichment). Publishing is best-effort: the resolver
// never blocks a selection on a broker problem.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mealtrail/venue-resolver/internal/domain"
)

// VenueConfirmedEvent is the wire format for a confirmed venue.
type VenueConfirmedEvent struct {
	UserID      string             `json:"user_id"`
	PlaceID     string             `json:"place_id"`
	Name        string             `json:"name"`
	Address     string             `json:"address,omitempty"`
	Location    *domain.Coordinate `json:"location,omitempty"`
	ConfirmedAt time.Time          `json:"confirmed_at"`
}

// Publisher produces venue-confirmed events to a Kafka topic.
// It implements resolver.EventSink.
type Publisher struct {
	writer *kafkago.Writer
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the given topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Publisher{writer: w, clock: clockwork.NewRealClock(), logger: logger}
}

// PublishVenueConfirmed serializes and publishes one confirmed venue.
func (p *Publisher) PublishVenueConfirmed(ctx context.Context, userID string, v domain.Venue) error {
	msg, err := serializeToMessage(userID, v, p.clock.Now().UTC())
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a confirmed venue into a Kafka message keyed
// by place id, so re-confirmations of the same venue land on one partition.
func serializeToMessage(userID string, v domain.Venue, confirmedAt time.Time) (kafkago.Message, error) {
	event := VenueConfirmedEvent{
		UserID:      userID,
		PlaceID:     v.PlaceID,
		Name:        v.Name,
		Address:     v.Address,
		Location:    v.Location,
		ConfirmedAt: confirmedAt,
	}
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize venue confirmed event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(v.PlaceID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "user_id", Value: []byte(userID)},
			{Key: "confirmed_at", Value: []byte(confirmedAt.Format(time.RFC3339))},
		},
	}, nil
}
