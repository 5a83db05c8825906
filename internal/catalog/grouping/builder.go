package grouping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Builder loads persisted variants into a fresh Index.
type Builder struct {
	repo   repository.Repository
	window time.Duration
	logger interfaces.Logger
}

// NewBuilder creates a builder using window as the grouping tolerance.
func NewBuilder(repo repository.Repository, window time.Duration, logger interfaces.Logger) *Builder {
	return &Builder{repo: repo, window: window, logger: logger}
}

// Build indexes every variant released in [from, to) in release order.
func (b *Builder) Build(ctx context.Context, from, to time.Time) (*Index, error) {
	variants, err := b.repo.ListVariantsReleasedBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	mappingIDs := make([]uuid.UUID, 0, len(variants))
	seen := make(map[uuid.UUID]struct{}, len(variants))
	for _, v := range variants {
		if _, ok := seen[v.MappingID]; !ok {
			seen[v.MappingID] = struct{}{}
			mappingIDs = append(mappingIDs, v.MappingID)
		}
	}
	mappings, err := b.repo.GetMappings(ctx, mappingIDs)
	if err != nil {
		return nil, err
	}
	byMapping := make(map[uuid.UUID]*models.EpisodeMapping, len(mappings))
	animeIDs := make([]uuid.UUID, 0, len(mappings))
	seenAnime := make(map[uuid.UUID]struct{}, len(mappings))
	for _, m := range mappings {
		byMapping[m.ID] = m
		if _, ok := seenAnime[m.AnimeID]; !ok {
			seenAnime[m.AnimeID] = struct{}{}
			animeIDs = append(animeIDs, m.AnimeID)
		}
	}
	animes, err := b.repo.GetAnimes(ctx, animeIDs)
	if err != nil {
		return nil, err
	}
	byAnime := make(map[uuid.UUID]*models.Anime, len(animes))
	for _, a := range animes {
		byAnime[a.ID] = a
	}

	index := NewIndex(b.window)
	for _, v := range variants {
		mapping, ok := byMapping[v.MappingID]
		if !ok {
			return nil, fmt.Errorf("variant %s references missing mapping %s", v.Identifier, v.MappingID)
		}
		anime, ok := byAnime[mapping.AnimeID]
		if !ok {
			return nil, fmt.Errorf("mapping %s references missing anime %s", mapping.ID, mapping.AnimeID)
		}
		index.Insert(NewEntry(anime, mapping, v))
	}

	b.logger.Debug("Grouping index built",
		interfaces.Time("from", from),
		interfaces.Time("to", to),
		interfaces.Int("variants", len(variants)))
	return index, nil
}

// NewEntry flattens a variant and its owners into an index entry.
func NewEntry(anime *models.Anime, mapping *models.EpisodeMapping, variant *models.EpisodeVariant) Entry {
	return Entry{
		CountryCode: anime.CountryCode,
		Release:     variant.ReleaseDateTime.UTC(),
		AnimeID:     anime.ID,
		AnimeSlug:   anime.Slug,
		AnimeName:   anime.Name,
		Season:      mapping.Season,
		EpisodeType: mapping.EpisodeType,
		Number:      mapping.Number,
		MappingID:   mapping.ID,
		VariantID:   variant.ID,
		Platform:    variant.Platform,
		AudioLocale: variant.AudioLocale,
	}
}
