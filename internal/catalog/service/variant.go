package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/normalize"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// VariantInput is the platform-specific release to write.
type VariantInput struct {
	CountryCode string
	Platform    models.Platform
	PlatformID  string
	AudioLocale string
	Release     time.Time
	URL         string
	Uncensored  bool
}

// Identifier returns the unique key the variant is stored under.
func (in VariantInput) Identifier() string {
	return normalize.Identifier(in.CountryCode, in.Platform, in.PlatformID, in.AudioLocale, in.Uncensored)
}

// VariantResolution is the result of a variant upsert.
type VariantResolution struct {
	Variant    *models.EpisodeVariant
	Transition Transition
	// Changed reports a created variant or an updated release time or URL.
	Changed bool
	// MappingChanged reports that the owning mapping's derived timestamps moved.
	MappingChanged bool
}

// VariantWriter upserts episode variants keyed by identifier.
type VariantWriter struct {
	mappings *MappingResolver
	trace    tracer
	logger   interfaces.Logger
}

// NewVariantWriter creates a new variant writer
func NewVariantWriter(mappings *MappingResolver, logger interfaces.Logger) *VariantWriter {
	return &VariantWriter{mappings: mappings, trace: tracer{logger: logger}, logger: logger}
}

// Upsert writes a variant under mappingID. The identifier lookup is authoritative: an
// existing variant keeps its current mapping and is only updated when the release
// time or URL differ, in which case its mapping is recomputed.
func (w *VariantWriter) Upsert(ctx context.Context, repo repository.Repository, mappingID uuid.UUID, in VariantInput, at time.Time) (*VariantResolution, error) {
	identifier := in.Identifier()
	release := releaseTime(in.Release)

	existing, err := repo.FindVariantByIdentifier(ctx, identifier)
	if err == nil {
		return w.refresh(ctx, repo, existing, release, in.URL, at)
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	variant := &models.EpisodeVariant{
		MappingID:       mappingID,
		Identifier:      identifier,
		Platform:        in.Platform,
		AudioLocale:     normalize.CanonicalLocale(in.AudioLocale),
		ReleaseDateTime: release,
		URL:             in.URL,
		Uncensored:      in.Uncensored,
	}
	inserted, err := repo.CreateVariantIfAbsent(ctx, variant)
	if err != nil {
		return nil, err
	}
	if !inserted {
		winner, err := repo.FindVariantByIdentifier(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("variant %s vanished after conflict: %w", identifier, err)
		}
		return w.refresh(ctx, repo, winner, release, in.URL, at)
	}

	mappingChanged, err := w.recomputeOwner(ctx, repo, mappingID, at)
	if err != nil {
		return nil, err
	}
	return &VariantResolution{
		Variant:        variant,
		Transition:     TransitionCreate,
		Changed:        true,
		MappingChanged: mappingChanged,
	}, nil
}

func (w *VariantWriter) refresh(ctx context.Context, repo repository.Repository, variant *models.EpisodeVariant, release time.Time, url string, at time.Time) (*VariantResolution, error) {
	if variant.ReleaseDateTime.Equal(release) && variant.URL == url {
		return &VariantResolution{Variant: variant, Transition: TransitionReuse}, nil
	}

	w.logger.Info("Episode variant corrected by platform",
		interfaces.String("identifier", variant.Identifier),
		interfaces.Time("old_release", variant.ReleaseDateTime),
		interfaces.Time("new_release", release),
		interfaces.Bool("url_changed", variant.URL != url))

	variant.ReleaseDateTime = release
	variant.URL = url
	if err := repo.UpdateVariant(ctx, variant); err != nil {
		return nil, err
	}
	mappingChanged, err := w.recomputeOwner(ctx, repo, variant.MappingID, at)
	if err != nil {
		return nil, err
	}
	return &VariantResolution{
		Variant:        variant,
		Transition:     TransitionReuse,
		Changed:        true,
		MappingChanged: mappingChanged,
	}, nil
}

func (w *VariantWriter) recomputeOwner(ctx context.Context, repo repository.Repository, mappingID uuid.UUID, at time.Time) (bool, error) {
	mapping, err := repo.GetMapping(ctx, mappingID)
	if err != nil {
		return false, err
	}
	return w.mappings.Recompute(ctx, repo, mapping, at)
}

// SplitResult summarizes a variant split.
type SplitResult struct {
	Variant *models.EpisodeVariant
	Target  *models.EpisodeMapping
	Changes events.ChangeSet
}

// Split detaches a variant into the mapping at slot of the same anime, creating it
// when needed. Both mappings are recomputed and an emptied source mapping is deleted.
// The anime always keeps the target mapping, so a split never deletes it.
func (w *VariantWriter) Split(ctx context.Context, repo repository.Repository, variantID uuid.UUID, slot models.Slot, at time.Time) (*SplitResult, error) {
	if slot.Season <= 0 || slot.Number < 0 || !slot.EpisodeType.Valid() {
		return nil, errors.BadRequest(fmt.Sprintf("invalid slot %s", slot))
	}
	variant, err := repo.GetVariant(ctx, variantID)
	if err != nil {
		return nil, err
	}
	source, err := repo.GetMapping(ctx, variant.MappingID)
	if err != nil {
		return nil, err
	}
	if source.Slot() == slot {
		return nil, errors.BadRequest(fmt.Sprintf("variant %s already belongs to %s", variant.Identifier, slot))
	}

	target, err := w.mappings.Resolve(ctx, repo, source.AnimeID, slot, MappingSeed{Release: variant.ReleaseDateTime}, at)
	if err != nil {
		return nil, err
	}

	variant.MappingID = target.Mapping.ID
	if err := repo.UpdateVariant(ctx, variant); err != nil {
		return nil, err
	}
	if _, err := w.mappings.Recompute(ctx, repo, target.Mapping, at); err != nil {
		return nil, err
	}

	result := &SplitResult{Variant: variant, Target: target.Mapping, Changes: events.ChangeSet{}}
	result.Changes.Add(events.EntityVariant, events.EntityMapping)

	remaining, err := repo.ListVariantsByMapping(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		if _, err := w.mappings.Delete(ctx, repo, source.ID, at); err != nil {
			return nil, err
		}
	} else if _, err := w.mappings.Recompute(ctx, repo, source, at); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("%s split from %s into %s", variant.Identifier, source.Slot(), slot)
	if err := w.trace.record(ctx, repo, events.EntityVariant, variant.ID, models.TraceSplit, detail, at); err != nil {
		return nil, err
	}
	return result, nil
}
