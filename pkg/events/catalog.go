package events

import (
	"sort"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
)

// CatalogChangedEventType is broadcast whenever catalog rows are written.
const CatalogChangedEventType = "catalog.changed"

// EntityType names a class of catalog rows carried in a change event.
type EntityType string

const (
	EntityAnime     EntityType = "anime"
	EntityMapping   EntityType = "episode_mapping"
	EntityVariant   EntityType = "episode_variant"
	EntitySimulcast EntityType = "simulcast"
	EntityRule      EntityType = "rule"
)

// ChangeSet accumulates the entity types touched by a unit of work.
type ChangeSet map[EntityType]struct{}

// Add marks entity types as changed.
func (c ChangeSet) Add(types ...EntityType) {
	for _, t := range types {
		c[t] = struct{}{}
	}
}

// Merge adds every type of other.
func (c ChangeSet) Merge(other ChangeSet) {
	for t := range other {
		c[t] = struct{}{}
	}
}

// Empty reports whether nothing changed.
func (c ChangeSet) Empty() bool {
	return len(c) == 0
}

// Sorted returns the entity types in a stable order.
func (c ChangeSet) Sorted() []EntityType {
	out := make([]EntityType, 0, len(c))
	for t := range c {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// NewCatalogChangedEvent builds the invalidation event for a change set.
func NewCatalogChangedEvent(changes ChangeSet) *Envelope {
	return NewEvent(CatalogChangedEventType, changes.Sorted()...)
}

// ChangedEntities extracts the entity types from a catalog change event.
func ChangedEntities(event interfaces.Event) []EntityType {
	if env, ok := event.(*Envelope); ok {
		return env.Entities
	}
	return nil
}
