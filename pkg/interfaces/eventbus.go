package interfaces

import (
	"context"
	"time"
)

// Event is a notification that catalog state changed.
type Event interface {
	EventType() string
	OccurredAt() time.Time
}

// EventHandler reacts to one event type.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
	EventType() string
}

// EventBus fans events out to the handlers subscribed to their type. Publish
// returns once every handler ran; handler failures never reach the publisher.
type EventBus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType string, handler EventHandler) error
}
