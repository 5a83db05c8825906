package service

import (
	"context"

	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

// CacheInvalidator clears read-side caches on every catalog change. Derived views are
// recomputed on the next read instead of being patched.
type CacheInvalidator struct {
	cache  interfaces.Cache
	logger interfaces.Logger
}

// NewCacheInvalidator creates a new cache invalidator
func NewCacheInvalidator(cache interfaces.Cache, logger interfaces.Logger) *CacheInvalidator {
	return &CacheInvalidator{cache: cache, logger: logger}
}

// Handle clears the cache.
func (h *CacheInvalidator) Handle(ctx context.Context, event interfaces.Event) error {
	if err := h.cache.Clear(ctx); err != nil {
		return err
	}
	h.logger.Debug("Read caches invalidated", interfaces.Any("entities", events.ChangedEntities(event)))
	return nil
}

// EventType returns the catalog change event type.
func (h *CacheInvalidator) EventType() string {
	return events.CatalogChangedEventType
}
