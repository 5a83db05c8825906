package events

import (
	"context"
	"sync"
	"time"

	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

// InMemoryEventBus dispatches events synchronously to handlers registered in this
// process, in subscription order.
type InMemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]interfaces.EventHandler
	logger   interfaces.Logger
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger interfaces.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		handlers: make(map[string][]interfaces.EventHandler),
		logger:   logger,
	}
}

// Publish runs every handler subscribed to the event type. A failing handler is
// logged and the remaining handlers still run.
func (eb *InMemoryEventBus) Publish(ctx context.Context, event interfaces.Event) error {
	eb.mu.RLock()
	handlers := eb.handlers[event.EventType()]
	eb.mu.RUnlock()

	for _, handler := range handlers {
		start := time.Now()
		err := handler.Handle(ctx, event)
		if err != nil {
			eb.logger.Error("Event handler failed",
				interfaces.String("event_type", event.EventType()),
				interfaces.Error(err))
			continue
		}
		eb.logger.Debug("Event handled",
			interfaces.String("event_type", event.EventType()),
			interfaces.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// Subscribe registers a handler. The handler must declare the same event type.
func (eb *InMemoryEventBus) Subscribe(eventType string, handler interfaces.EventHandler) error {
	if handler == nil {
		return errors.BadRequest("handler is required")
	}
	if handler.EventType() != eventType {
		return errors.BadRequest("handler handles " + handler.EventType() + ", not " + eventType)
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()
	// Copy on write so Publish can iterate without holding the lock.
	current := eb.handlers[eventType]
	next := make([]interfaces.EventHandler, len(current), len(current)+1)
	copy(next, current)
	eb.handlers[eventType] = append(next, handler)

	eb.logger.Debug("Event handler subscribed", interfaces.String("event_type", eventType))
	return nil
}

// Subscribers returns how many handlers receive an event type.
func (eb *InMemoryEventBus) Subscribers(eventType string) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}
