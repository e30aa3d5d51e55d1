// Package events publishes subscriber lifecycle events for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	SubscriberCreated      = "subscriber.created"
	SubscriberVerified     = "subscriber.verified"
	SubscriberUnsubscribed = "subscriber.unsubscribed"
	NotificationFailed     = "notification.failed"
	ContactReceived        = "contact.received"
)

// Event is the JSON envelope written to the stream. Key partitions events;
// callers pass a stable, non-identifying key such as an email digest.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Key        string            `json:"-"`
	OccurredAt time.Time         `json:"occurred_at"`
	Data       map[string]string `json:"data,omitempty"`
}

func New(eventType, key string, data map[string]string) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events. Publishing is best-effort: callers log failures
// and never fail a request because of them.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// LogPublisher writes events to the process log. Used when no broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	slog.Debug("event published", "type", event.Type, "id", event.ID)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
