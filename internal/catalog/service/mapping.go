package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// MappingSeed carries the values a new mapping starts with. Metadata fields only
// ever fill empty mapping fields, so the first variant to supply them wins.
type MappingSeed struct {
	Release     time.Time
	Title       string
	Description string
	Image       string
	Duration    int64
}

// MappingResolution is the result of resolving or re-keying a mapping.
type MappingResolution struct {
	Mapping    *models.EpisodeMapping
	Transition Transition
	Changed    bool
}

// MappingResolver finds or creates episode mappings and keeps their derived
// release timestamps consistent with their variants.
type MappingResolver struct {
	trace  tracer
	logger interfaces.Logger
}

// NewMappingResolver creates a new mapping resolver
func NewMappingResolver(logger interfaces.Logger) *MappingResolver {
	return &MappingResolver{trace: tracer{logger: logger}, logger: logger}
}

// Resolve returns the mapping of an anime slot, creating it on a miss with both
// release timestamps set to the seed release.
func (r *MappingResolver) Resolve(ctx context.Context, repo repository.Repository, animeID uuid.UUID, slot models.Slot, seed MappingSeed, at time.Time) (*MappingResolution, error) {
	existing, err := repo.FindMappingBySlot(ctx, animeID, slot)
	if err == nil {
		changed, err := r.enrich(ctx, repo, existing, seed, at)
		if err != nil {
			return nil, err
		}
		return &MappingResolution{Mapping: existing, Transition: TransitionReuse, Changed: changed}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	release := releaseTime(seed.Release)
	mapping := &models.EpisodeMapping{
		AnimeID:             animeID,
		Season:              slot.Season,
		EpisodeType:         slot.EpisodeType,
		Number:              slot.Number,
		ReleaseDateTime:     release,
		LastReleaseDateTime: release,
		LastUpdateDateTime:  at.UTC(),
		Title:               seed.Title,
		Description:         seed.Description,
		Image:               seed.Image,
		Duration:            seed.Duration,
		NeedsClassification: true,
	}
	inserted, err := repo.CreateMappingIfAbsent(ctx, mapping)
	if err != nil {
		return nil, err
	}
	if !inserted {
		winner, err := repo.FindMappingBySlot(ctx, animeID, slot)
		if err != nil {
			return nil, fmt.Errorf("mapping %s vanished after conflict: %w", slot, err)
		}
		changed, err := r.enrich(ctx, repo, winner, seed, at)
		if err != nil {
			return nil, err
		}
		return &MappingResolution{Mapping: winner, Transition: TransitionReuse, Changed: changed}, nil
	}

	r.logger.Debug("Episode mapping created",
		interfaces.String("mapping_id", mapping.ID.String()),
		interfaces.String("anime_id", animeID.String()),
		interfaces.String("slot", slot.String()))
	return &MappingResolution{Mapping: mapping, Transition: TransitionCreate, Changed: true}, nil
}

func (r *MappingResolver) enrich(ctx context.Context, repo repository.Repository, mapping *models.EpisodeMapping, seed MappingSeed, at time.Time) (bool, error) {
	if !fillMetadata(mapping, seed) {
		return false, nil
	}
	mapping.LastUpdateDateTime = at.UTC()
	return true, repo.UpdateMapping(ctx, mapping)
}

func fillMetadata(mapping *models.EpisodeMapping, seed MappingSeed) bool {
	changed := false
	if mapping.Title == "" && seed.Title != "" {
		mapping.Title = seed.Title
		changed = true
	}
	if mapping.Description == "" && seed.Description != "" {
		mapping.Description = seed.Description
		changed = true
	}
	if mapping.Image == "" && seed.Image != "" {
		mapping.Image = seed.Image
		changed = true
	}
	if mapping.Duration <= 0 && seed.Duration > 0 {
		mapping.Duration = seed.Duration
		changed = true
	}
	return changed
}

// Recompute sets releaseDateTime and lastReleaseDateTime to the min and max release
// of the mapping's current variants. A mapping without variants is left untouched.
// It reports whether the mapping changed.
func (r *MappingResolver) Recompute(ctx context.Context, repo repository.Repository, mapping *models.EpisodeMapping, at time.Time) (bool, error) {
	changed, err := r.recompute(ctx, repo, mapping)
	if err != nil || !changed {
		return false, err
	}
	mapping.LastUpdateDateTime = at.UTC()
	return true, repo.UpdateMapping(ctx, mapping)
}

func (r *MappingResolver) recompute(ctx context.Context, repo repository.Repository, mapping *models.EpisodeMapping) (bool, error) {
	variants, err := repo.ListVariantsByMapping(ctx, mapping.ID)
	if err != nil {
		return false, err
	}
	if len(variants) == 0 {
		return false, nil
	}
	first, last := variants[0].ReleaseDateTime, variants[0].ReleaseDateTime
	for _, v := range variants[1:] {
		if v.ReleaseDateTime.Before(first) {
			first = v.ReleaseDateTime
		}
		if v.ReleaseDateTime.After(last) {
			last = v.ReleaseDateTime
		}
	}
	first, last = first.UTC(), last.UTC()

	changed := false
	if !first.Equal(mapping.ReleaseDateTime) {
		mapping.ReleaseDateTime = first
		mapping.NeedsClassification = true
		changed = true
	}
	if !last.Equal(mapping.LastReleaseDateTime) {
		mapping.LastReleaseDateTime = last
		changed = true
	}
	return changed, nil
}

// absorb reattaches the variants and follows of stale to keeper, deletes stale and
// recomputes keeper.
func (r *MappingResolver) absorb(ctx context.Context, repo repository.Repository, stale, keeper *models.EpisodeMapping, at time.Time) error {
	if err := repo.MoveVariants(ctx, stale.ID, keeper.ID); err != nil {
		return err
	}
	if err := repo.MoveEpisodeFollows(ctx, stale.ID, keeper.ID); err != nil {
		return err
	}
	if err := repo.DeleteMapping(ctx, stale.ID); err != nil {
		return err
	}

	filled := fillMetadata(keeper, MappingSeed{
		Title:       stale.Title,
		Description: stale.Description,
		Image:       stale.Image,
		Duration:    stale.Duration,
	})
	recomputed, err := r.recompute(ctx, repo, keeper)
	if err != nil {
		return err
	}
	if !filled && !recomputed {
		return nil
	}
	keeper.LastUpdateDateTime = at.UTC()
	return repo.UpdateMapping(ctx, keeper)
}

// ReKey moves a mapping to another slot of its anime. When the slot is taken the
// variants are transplanted onto the existing mapping and the stale one is removed;
// otherwise the key fields are updated in place.
func (r *MappingResolver) ReKey(ctx context.Context, repo repository.Repository, mappingID uuid.UUID, slot models.Slot, at time.Time) (*MappingResolution, error) {
	if slot.Season <= 0 || slot.Number < 0 || !slot.EpisodeType.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("invalid slot %s", slot))
	}
	mapping, err := repo.GetMapping(ctx, mappingID)
	if err != nil {
		return nil, err
	}
	previous := mapping.Slot()
	if previous == slot {
		return &MappingResolution{Mapping: mapping, Transition: TransitionReuse}, nil
	}

	keeper, err := repo.FindMappingBySlot(ctx, mapping.AnimeID, slot)
	switch {
	case err == nil:
		if err := r.absorb(ctx, repo, mapping, keeper, at); err != nil {
			return nil, err
		}
		detail := fmt.Sprintf("%s merged into existing %s (%s)", previous, slot, keeper.ID)
		if err := r.trace.record(ctx, repo, events.EntityMapping, mapping.ID, models.TraceReKey, detail, at); err != nil {
			return nil, err
		}
		return &MappingResolution{Mapping: keeper, Transition: TransitionMerge, Changed: true}, nil
	case errors.IsNotFound(err):
		mapping.Season = slot.Season
		mapping.EpisodeType = slot.EpisodeType
		mapping.Number = slot.Number
		mapping.NeedsClassification = true
		mapping.LastUpdateDateTime = at.UTC()
		if err := repo.UpdateMapping(ctx, mapping); err != nil {
			return nil, err
		}
		detail := fmt.Sprintf("%s re-keyed to %s", previous, slot)
		if err := r.trace.record(ctx, repo, events.EntityMapping, mapping.ID, models.TraceReKey, detail, at); err != nil {
			return nil, err
		}
		return &MappingResolution{Mapping: mapping, Transition: TransitionReuse, Changed: true}, nil
	default:
		return nil, err
	}
}

// Delete removes a mapping with its variants and follows, then its anime if it was
// the last mapping. It reports whether the anime was deleted too.
func (r *MappingResolver) Delete(ctx context.Context, repo repository.Repository, mappingID uuid.UUID, at time.Time) (bool, error) {
	mapping, err := repo.GetMapping(ctx, mappingID)
	if err != nil {
		return false, err
	}
	if err := repo.DeleteVariantsByMapping(ctx, mapping.ID); err != nil {
		return false, err
	}
	if err := repo.DeleteEpisodeFollows(ctx, mapping.ID); err != nil {
		return false, err
	}
	if err := repo.DeleteMapping(ctx, mapping.ID); err != nil {
		return false, err
	}
	if err := r.trace.record(ctx, repo, events.EntityMapping, mapping.ID, models.TraceDelete, mapping.Slot().String(), at); err != nil {
		return false, err
	}
	return deleteAnimeIfEmpty(ctx, repo, r.trace, mapping.AnimeID, at)
}
