// Package bus implements the in-process event bus threading market data,
// order lifecycle, risk and bot-control events between the engine's
// components. Topics are hierarchical dot-path strings ("market.tick",
// "order.filled") and subscriptions may use a single trailing "*" wildcard.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the canonical envelope carried on the bus.
type Event struct {
	ID            string
	Topic         string
	Source        string
	CorrelationID string
	Timestamp     time.Time
	Data          any
}

// NewEvent stamps a new event with a generated ID and the current time.
func NewEvent(topic, source string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Topic:     topic,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithCorrelationID returns a copy of the event carrying a correlation id,
// used to thread a signal through risk evaluation, order submission and
// fill reporting for tracing and audit.
func (e Event) WithCorrelationID(id string) Event {
	e.CorrelationID = id
	return e
}

// SubscriptionID identifies an active subscription for later Unsubscribe.
type SubscriptionID string

// Bus is the publish/subscribe surface used across the engine room.
type Bus interface {
	Publish(ctx context.Context, evt Event) error
	Subscribe(ctx context.Context, pattern string) (SubscriptionID, <-chan Event, error)
	Unsubscribe(id SubscriptionID) error
	Close() error
}

// Emit is a convenience wrapper building and publishing an event in one
// call, stamping a correlation id when one is supplied.
func Emit(ctx context.Context, b Bus, topic, source string, data any, correlationID string) error {
	evt := NewEvent(topic, source, data)
	if correlationID != "" {
		evt = evt.WithCorrelationID(correlationID)
	}
	return b.Publish(ctx, evt)
}
