package events_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/logger"
)

type recordingHandler struct {
	mu       sync.Mutex
	received []interfaces.Event
	err      error
}

func (h *recordingHandler) Handle(ctx context.Context, event interfaces.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.received = append(h.received, event)
	return h.err
}

func (h *recordingHandler) EventType() string { return events.CatalogChangedEventType }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func TestInMemoryEventBus_PublishContinuesAfterHandlerError(t *testing.T) {
	bus := events.NewInMemoryEventBus(logger.NewNoop())
	failing := &recordingHandler{err: errors.New("boom")}
	ok := &recordingHandler{}
	require.NoError(t, bus.Subscribe(events.CatalogChangedEventType, failing))
	require.NoError(t, bus.Subscribe(events.CatalogChangedEventType, ok))

	changes := events.ChangeSet{}
	changes.Add(events.EntityVariant, events.EntityAnime)
	err := bus.Publish(context.Background(), events.NewCatalogChangedEvent(changes))

	require.NoError(t, err)
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
	assert.Equal(t,
		[]events.EntityType{events.EntityAnime, events.EntityVariant},
		events.ChangedEntities(ok.received[0]))
}

func TestInMemoryEventBus_SubscribeRejectsMismatchedType(t *testing.T) {
	bus := events.NewInMemoryEventBus(logger.NewNoop())

	err := bus.Subscribe("episode.released", &recordingHandler{})

	require.Error(t, err)
	assert.Equal(t, 0, bus.Subscribers("episode.released"))
}

func TestInMemoryEventBus_NoSubscribers(t *testing.T) {
	bus := events.NewInMemoryEventBus(logger.NewNoop())

	err := bus.Publish(context.Background(), events.NewEvent(events.CatalogChangedEventType))

	require.NoError(t, err)
	assert.Equal(t, 0, bus.Subscribers(events.CatalogChangedEventType))
}

func TestNewCatalogChangedEvent(t *testing.T) {
	changes := events.ChangeSet{}
	changes.Add(events.EntityRule, events.EntityAnime, events.EntityRule)

	event := events.NewCatalogChangedEvent(changes)

	assert.Equal(t, events.CatalogChangedEventType, event.EventType())
	assert.False(t, event.OccurredAt().IsZero())
	assert.Equal(t, []events.EntityType{events.EntityAnime, events.EntityRule}, events.ChangedEntities(event))
}
