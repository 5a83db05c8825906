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

// maxMergeCandidates bounds the fuzzy lookup done for every newly created anime.
const maxMergeCandidates = 10

// AnimeInput is what a raw episode contributes to its anime.
type AnimeInput struct {
	CountryCode string
	Name        string
	Description string
	Image       string
	Banner      string
	Release     time.Time
}

// AnimeResolution is the result of resolving an anime.
type AnimeResolution struct {
	Anime      *models.Anime
	Transition Transition
	// Candidates are existing animes with a similar name, surfaced for admin merge.
	Candidates []*models.Anime
	Changed    bool
}

// AnimeResolver finds or creates animes by (country, slug) and merges them.
type AnimeResolver struct {
	mappings *MappingResolver
	trace    tracer
	logger   interfaces.Logger
}

// NewAnimeResolver creates a new anime resolver
func NewAnimeResolver(mappings *MappingResolver, logger interfaces.Logger) *AnimeResolver {
	return &AnimeResolver{
		mappings: mappings,
		trace:    tracer{logger: logger},
		logger:   logger,
	}
}

// Resolve returns the anime for a raw title, creating it on a miss. A create that
// loses a race on the unique slug resolves to the row that won.
func (r *AnimeResolver) Resolve(ctx context.Context, repo repository.Repository, in AnimeInput, at time.Time) (*AnimeResolution, error) {
	slug := normalize.Slug(normalize.ShortName(in.Name))
	if slug == "" {
		return nil, errors.Skip("anime name %q has no usable slug", in.Name)
	}

	existing, err := repo.FindAnimeBySlug(ctx, in.CountryCode, slug)
	if err == nil {
		changed, err := r.refresh(ctx, repo, existing, in, at)
		if err != nil {
			return nil, err
		}
		return &AnimeResolution{Anime: existing, Transition: TransitionReuse, Changed: changed}, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	release := releaseTime(in.Release)
	anime := &models.Anime{
		CountryCode:         in.CountryCode,
		Slug:                slug,
		Name:                normalize.DisplayName(in.Name),
		Description:         in.Description,
		Image:               in.Image,
		Banner:              in.Banner,
		ReleaseDateTime:     release,
		LastReleaseDateTime: release,
		LastUpdateDateTime:  at.UTC(),
	}
	inserted, err := repo.CreateAnimeIfAbsent(ctx, anime)
	if err != nil {
		return nil, err
	}
	if !inserted {
		winner, err := repo.FindAnimeBySlug(ctx, in.CountryCode, slug)
		if err != nil {
			return nil, fmt.Errorf("anime %s/%s vanished after conflict: %w", in.CountryCode, slug, err)
		}
		changed, err := r.refresh(ctx, repo, winner, in, at)
		if err != nil {
			return nil, err
		}
		return &AnimeResolution{Anime: winner, Transition: TransitionReuse, Changed: changed}, nil
	}

	candidates, err := repo.SearchAnimeByName(ctx, in.CountryCode, normalize.ShortName(in.Name), anime.ID, maxMergeCandidates)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		slugs := make([]string, 0, len(candidates))
		for _, c := range candidates {
			slugs = append(slugs, c.Slug)
		}
		r.logger.Info("New anime has merge candidates",
			interfaces.String("anime_id", anime.ID.String()),
			interfaces.String("slug", anime.Slug),
			interfaces.Any("candidates", slugs))
	}

	r.logger.Info("Anime created",
		interfaces.String("anime_id", anime.ID.String()),
		interfaces.String("country", anime.CountryCode),
		interfaces.String("slug", anime.Slug))

	return &AnimeResolution{Anime: anime, Transition: TransitionCreate, Candidates: candidates, Changed: true}, nil
}

// refresh fills empty enrichment fields and widens the release bounds.
func (r *AnimeResolver) refresh(ctx context.Context, repo repository.Repository, anime *models.Anime, in AnimeInput, at time.Time) (bool, error) {
	changed := false
	if anime.Description == "" && in.Description != "" {
		anime.Description = in.Description
		changed = true
	}
	if anime.Image == "" && in.Image != "" {
		anime.Image = in.Image
		changed = true
	}
	if anime.Banner == "" && in.Banner != "" {
		anime.Banner = in.Banner
		changed = true
	}
	if widenBounds(anime, releaseTime(in.Release)) {
		changed = true
	}
	if !changed {
		return false, nil
	}
	anime.LastUpdateDateTime = at.UTC()
	return true, repo.UpdateAnime(ctx, anime)
}

func widenBounds(anime *models.Anime, release time.Time) bool {
	if release.IsZero() {
		return false
	}
	changed := false
	if anime.ReleaseDateTime.IsZero() || release.Before(anime.ReleaseDateTime) {
		anime.ReleaseDateTime = release
		changed = true
	}
	if release.After(anime.LastReleaseDateTime) {
		anime.LastReleaseDateTime = release
		changed = true
	}
	return changed
}

// MergeCandidates lists animes of the same country whose names resemble the anime's.
func (r *AnimeResolver) MergeCandidates(ctx context.Context, repo repository.Repository, animeID uuid.UUID) ([]*models.Anime, error) {
	anime, err := repo.GetAnime(ctx, animeID)
	if err != nil {
		return nil, err
	}
	return repo.SearchAnimeByName(ctx, anime.CountryCode, normalize.ShortName(anime.Name), anime.ID, maxMergeCandidates)
}

// MergeResult summarizes an anime merge.
type MergeResult struct {
	Target   *models.Anime
	Moved    int
	Absorbed int
	Changes  events.ChangeSet
}

// Merge folds source into target. Every source mapping is moved onto the target;
// when the target already holds the slot, the source variants and follows are
// reattached to the target mapping and the source mapping is deleted. Anime follows
// and simulcast associations move with collisions dropped, then the source is deleted.
func (r *AnimeResolver) Merge(ctx context.Context, repo repository.Repository, sourceID, targetID uuid.UUID, at time.Time) (*MergeResult, error) {
	if sourceID == targetID {
		return nil, errors.BadRequest("cannot merge an anime into itself")
	}
	source, err := repo.GetAnime(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	target, err := repo.GetAnime(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if source.CountryCode != target.CountryCode {
		return nil, errors.BadRequest(fmt.Sprintf("cannot merge %s anime into %s anime", source.CountryCode, target.CountryCode))
	}

	mappings, err := repo.ListMappingsByAnime(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{Target: target, Changes: events.ChangeSet{}}
	result.Changes.Add(events.EntityAnime)
	for _, mapping := range mappings {
		keeper, err := repo.FindMappingBySlot(ctx, target.ID, mapping.Slot())
		switch {
		case err == nil:
			if err := r.mappings.absorb(ctx, repo, mapping, keeper, at); err != nil {
				return nil, err
			}
			result.Absorbed++
			result.Changes.Add(events.EntityMapping, events.EntityVariant)
		case errors.IsNotFound(err):
			mapping.AnimeID = target.ID
			mapping.NeedsClassification = true
			mapping.LastUpdateDateTime = at.UTC()
			if err := repo.UpdateMapping(ctx, mapping); err != nil {
				return nil, err
			}
			result.Moved++
			result.Changes.Add(events.EntityMapping)
		default:
			return nil, err
		}
	}

	if err := repo.MoveAnimeFollows(ctx, source.ID, target.ID); err != nil {
		return nil, err
	}
	if err := repo.MoveAnimeSimulcasts(ctx, source.ID, target.ID); err != nil {
		return nil, err
	}
	result.Changes.Add(events.EntitySimulcast)

	if err := r.recomputeBounds(ctx, repo, target, at); err != nil {
		return nil, err
	}
	if err := repo.DeleteAnime(ctx, source.ID); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("merged %s/%s into %s/%s: %d mappings moved, %d absorbed",
		source.CountryCode, source.Slug, target.CountryCode, target.Slug, result.Moved, result.Absorbed)
	if err := r.trace.record(ctx, repo, events.EntityAnime, target.ID, models.TraceMerge, detail, at); err != nil {
		return nil, err
	}
	return result, nil
}

// recomputeBounds sets the anime release bounds from its mappings.
func (r *AnimeResolver) recomputeBounds(ctx context.Context, repo repository.Repository, anime *models.Anime, at time.Time) error {
	mappings, err := repo.ListMappingsByAnime(ctx, anime.ID)
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		return nil
	}
	first, last := mappings[0].ReleaseDateTime, mappings[0].LastReleaseDateTime
	for _, m := range mappings[1:] {
		if m.ReleaseDateTime.Before(first) {
			first = m.ReleaseDateTime
		}
		if m.LastReleaseDateTime.After(last) {
			last = m.LastReleaseDateTime
		}
	}
	if first.Equal(anime.ReleaseDateTime) && last.Equal(anime.LastReleaseDateTime) {
		return nil
	}
	anime.ReleaseDateTime = first
	anime.LastReleaseDateTime = last
	anime.LastUpdateDateTime = at.UTC()
	return repo.UpdateAnime(ctx, anime)
}

// deleteAnimeIfEmpty removes an anime that lost its last mapping, with its follows and
// simulcast associations. It reports whether the anime was deleted.
func deleteAnimeIfEmpty(ctx context.Context, repo repository.Repository, trace tracer, animeID uuid.UUID, at time.Time) (bool, error) {
	count, err := repo.CountMappingsByAnime(ctx, animeID)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := repo.DeleteAnimeFollows(ctx, animeID); err != nil {
		return false, err
	}
	if err := repo.ClearAnimeSimulcasts(ctx, animeID); err != nil {
		return false, err
	}
	if err := repo.DeleteAnime(ctx, animeID); err != nil {
		return false, err
	}
	if err := trace.record(ctx, repo, events.EntityAnime, animeID, models.TraceDelete, "last mapping removed", at); err != nil {
		return false, err
	}
	return true, nil
}
