// internal/event/nats.go
// Package event provides the NATS JetStream implementation of event
// publishing. Review, registration, and watchlist activity is streamed so
// downstream consumers (activity feeds, analytics) can follow along without
// polling the API.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/reviewflix/reviewflix-go/internal/model"
)

// Publisher interface defines the event publishing operations required by the
// ReviewFlix service. Publishing is fire-and-forget: failures are logged by
// callers, never surfaced to API clients.
type Publisher interface {
	PublishReviewCreated(ctx context.Context, review model.Review) error
	PublishReviewDeleted(ctx context.Context, review model.Review) error
	PublishUserRegistered(ctx context.Context, user model.User) error
	PublishWatchlistUpdated(ctx context.Context, userID, movieID string, action model.WatchlistAction) error

	// Close closes the publisher connection
	Close() error
}

// noop is a no-op implementation of Publisher for when NATS is not
// configured. It lets the service run without event streaming.
type noop struct{}

func (n *noop) Close() error { return nil }

func (n *noop) PublishReviewCreated(ctx context.Context, review model.Review) error { return nil }

func (n *noop) PublishReviewDeleted(ctx context.Context, review model.Review) error { return nil }

func (n *noop) PublishUserRegistered(ctx context.Context, user model.User) error { return nil }

func (n *noop) PublishWatchlistUpdated(ctx context.Context, userID, movieID string, action model.WatchlistAction) error {
	return nil
}

// natsPub is the NATS JetStream implementation of Publisher.
type natsPub struct {
	nc *nats.Conn            // NATS connection
	js nats.JetStreamContext // JetStream context for stream operations
}

// NewPublisherFromEnv creates a new publisher based on environment
// configuration. It reads RVW_NATS_URL; when NATS is not configured or the
// connection fails, it returns a no-op publisher.
func NewPublisherFromEnv() Publisher {
	url := os.Getenv("RVW_NATS_URL")
	if url == "" {
		return &noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return &noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	if err := initStreams(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return &noop{}
	}

	return &natsPub{nc: nc, js: js}
}

// initStreams initializes the required NATS streams.
func initStreams(js nats.JetStreamContext) error {
	// RVW_ACTIVITY carries all review, registration, and watchlist events
	_, err := js.AddStream(&nats.StreamConfig{
		Name:      "RVW_ACTIVITY",
		Subjects:  []string{"reviewflix.>"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Discard:   nats.DiscardOld,
		Storage:   nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to create RVW_ACTIVITY stream: %w", err)
	}
	return nil
}

// Envelope is the standard event envelope structure. All events published to
// NATS are wrapped in this envelope for consistency.
type Envelope struct {
	Type          string      `json:"type"`          // Event type identifier
	Version       string      `json:"version"`       // Event schema version
	OccurredAt    time.Time   `json:"occurredAt"`    // When the event occurred
	CorrelationID string      `json:"correlationId"` // Correlation ID for tracing
	Payload       interface{} `json:"payload"`       // Event-specific data
}

// Close closes the NATS connection.
func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// publish wraps the payload in an envelope and publishes it on the subject.
func (p *natsPub) publish(subject string, payload interface{}) error {
	envelope := Envelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: uuid.New().String(),
		Payload:       payload,
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(subject, b)
	return err
}

// PublishReviewCreated publishes a review created event.
func (p *natsPub) PublishReviewCreated(ctx context.Context, review model.Review) error {
	return p.publish("reviewflix.reviews.created", review)
}

// PublishReviewDeleted publishes a review deleted event.
func (p *natsPub) PublishReviewDeleted(ctx context.Context, review model.Review) error {
	return p.publish("reviewflix.reviews.deleted", review)
}

// PublishUserRegistered publishes a user registered event. The payload is the
// public user record; the password hash is excluded by its serialization tag.
func (p *natsPub) PublishUserRegistered(ctx context.Context, user model.User) error {
	return p.publish("reviewflix.users.registered", user)
}

// PublishWatchlistUpdated publishes a watchlist mutation event.
func (p *natsPub) PublishWatchlistUpdated(ctx context.Context, userID, movieID string, action model.WatchlistAction) error {
	return p.publish("reviewflix.watchlist.updated", map[string]interface{}{
		"userId":  userID,
		"movieId": movieID,
		"action":  action,
	})
}
