// Package service reconciles raw platform episodes into the catalog and exposes the
// admin and read operations over it.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Transition is the outcome of a find-or-create step.
type Transition int

const (
	// TransitionCreate means no row matched and one was created.
	TransitionCreate Transition = iota
	// TransitionReuse means an existing row matched and was kept.
	TransitionReuse
	// TransitionMerge means the row collided with another one and was folded into it.
	TransitionMerge
)

// releaseTime normalizes a release timestamp to the precision the database keeps,
// so a replayed release compares equal to the stored one.
func releaseTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (t Transition) String() string {
	switch t {
	case TransitionCreate:
		return "create"
	case TransitionReuse:
		return "reuse"
	case TransitionMerge:
		return "merge"
	}
	return fmt.Sprintf("transition(%d)", int(t))
}

// tracer persists auditable trace actions and mirrors them to the log.
type tracer struct {
	logger interfaces.Logger
}

func (t tracer) record(ctx context.Context, repo repository.Repository, entity events.EntityType, id uuid.UUID, action, detail string, at time.Time) error {
	if err := repo.CreateTraceAction(ctx, &models.TraceAction{
		EntityType:     string(entity),
		EntityID:       id,
		Action:         action,
		Detail:         detail,
		ActionDateTime: at.UTC(),
	}); err != nil {
		return err
	}
	t.logger.Info("Trace action",
		interfaces.String("entity_type", string(entity)),
		interfaces.String("entity_id", id.String()),
		interfaces.String("action", action),
		interfaces.String("detail", detail))
	return nil
}

// publish broadcasts the invalidation event for a non-empty change set.
func publish(ctx context.Context, bus interfaces.EventBus, logger interfaces.Logger, changes events.ChangeSet) {
	if bus == nil || changes.Empty() {
		return
	}
	if err := bus.Publish(ctx, events.NewCatalogChangedEvent(changes)); err != nil {
		logger.Warn("Failed to publish catalog change", interfaces.Error(err))
	}
}
