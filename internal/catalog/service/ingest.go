package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/normalize"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/internal/catalog/rules"
	"github.com/narwhalmedia/simulcast/pkg/config"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Archiver stores the original platform payload of an ingested episode.
type Archiver interface {
	Archive(ctx context.Context, raw models.RawEpisode, identifier string) error
}

// IngestResult describes the catalog rows one raw episode resolved to.
type IngestResult struct {
	Identifier   string
	AnimeID      uuid.UUID
	MappingID    uuid.UUID
	VariantID    uuid.UUID
	NewVariant   bool
	AppliedRules []uuid.UUID
	Changes      events.ChangeSet
}

// BatchResult summarizes the ingestion of one platform fetch.
type BatchResult struct {
	Fetched       int
	Ingested      int
	Skipped       int
	Failed        int
	NewVariantIDs []uuid.UUID
	Changes       events.ChangeSet
}

// Add folds another batch into r.
func (r *BatchResult) Add(other *BatchResult) {
	r.Fetched += other.Fetched
	r.Ingested += other.Ingested
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.NewVariantIDs = append(r.NewVariantIDs, other.NewVariantIDs...)
	if r.Changes == nil {
		r.Changes = events.ChangeSet{}
	}
	r.Changes.Merge(other.Changes)
}

// IngestService runs raw episodes through rules, anime, mapping and variant resolution.
type IngestService struct {
	repo      repository.Repository
	rules     *rules.Store
	animes    *AnimeResolver
	mappings  *MappingResolver
	variants  *VariantWriter
	archiver  Archiver
	eventBus  interfaces.EventBus
	blacklist map[string]struct{}
	logger    interfaces.Logger
	now       func() time.Time
}

// NewIngestService creates a new ingest service. archiver may be nil.
func NewIngestService(
	repo repository.Repository,
	ruleStore *rules.Store,
	archiver Archiver,
	eventBus interfaces.EventBus,
	cfg config.CatalogConfig,
	logger interfaces.Logger,
) *IngestService {
	mappings := NewMappingResolver(logger)
	blacklist := make(map[string]struct{}, len(cfg.Blacklist))
	for _, entry := range cfg.Blacklist {
		blacklist[strings.ToLower(strings.TrimSpace(entry))] = struct{}{}
	}
	return &IngestService{
		repo:      repo,
		rules:     ruleStore,
		animes:    NewAnimeResolver(mappings, logger),
		mappings:  mappings,
		variants:  NewVariantWriter(mappings, logger),
		archiver:  archiver,
		eventBus:  eventBus,
		blacklist: blacklist,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for bookkeeping timestamps.
func (s *IngestService) WithClock(now func() time.Time) *IngestService {
	s.now = now
	return s
}

// IngestBatch ingests raw episodes in order. Skip-worthy and failing records are
// logged and counted; they never stop the rest of the batch. One invalidation event
// is published for the whole batch. Only an unusable rule set fails the call.
func (s *IngestService) IngestBatch(ctx context.Context, raws []models.RawEpisode) (*BatchResult, error) {
	snapshot, err := s.rules.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Fetched: len(raws), Changes: events.ChangeSet{}}
	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			publish(ctx, s.eventBus, s.logger, result.Changes)
			return result, err
		}

		res, err := s.Ingest(ctx, snapshot, raw)
		if err != nil {
			if errors.IsSkip(err) {
				result.Skipped++
				s.logger.Info("Skipping raw episode",
					interfaces.String("platform", string(raw.Platform)),
					interfaces.String("platform_id", raw.PlatformID),
					interfaces.String("reason", err.Error()))
				continue
			}
			result.Failed++
			s.logger.Error("Failed to ingest raw episode",
				interfaces.String("platform", string(raw.Platform)),
				interfaces.String("platform_id", raw.PlatformID),
				interfaces.Error(err))
			continue
		}

		result.Ingested++
		result.Changes.Merge(res.Changes)
		if res.NewVariant {
			result.NewVariantIDs = append(result.NewVariantIDs, res.VariantID)
		}
	}

	publish(ctx, s.eventBus, s.logger, result.Changes)
	return result, nil
}

// Ingest reconciles one raw episode inside a single transaction.
func (s *IngestService) Ingest(ctx context.Context, snapshot *rules.Snapshot, raw models.RawEpisode) (*IngestResult, error) {
	if err := s.validate(raw); err != nil {
		return nil, err
	}

	normalized, err := rules.Apply(raw, snapshot.Applicable(raw.Platform, raw.SeriesID, raw.SeasonID))
	if err != nil {
		return nil, err
	}
	if s.blacklisted(normalize.Slug(normalize.ShortName(normalized.AnimeName))) {
		return nil, errors.Skip("anime %q is blacklisted", normalized.AnimeName)
	}

	at := s.now().UTC()
	input := VariantInput{
		CountryCode: strings.ToUpper(raw.CountryCode),
		Platform:    raw.Platform,
		PlatformID:  raw.PlatformID,
		AudioLocale: raw.AudioLocale,
		Release:     raw.ReleaseDateTime,
		URL:         raw.URL,
		Uncensored:  raw.Uncensored,
	}
	result := &IngestResult{
		Identifier:   input.Identifier(),
		AppliedRules: normalized.AppliedRules,
		Changes:      events.ChangeSet{},
	}

	err = s.repo.Transaction(ctx, func(tx repository.Repository) error {
		existing, err := tx.FindVariantByIdentifier(ctx, result.Identifier)
		switch {
		case err == nil:
			return s.replay(ctx, tx, existing, input, at, result)
		case errors.IsNotFound(err):
			return s.resolve(ctx, tx, raw, normalized, input, at, result)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.rules.MarkUsed(ctx, normalized.AppliedRules, at)
	if result.NewVariant && s.archiver != nil && len(raw.Original) > 0 {
		if err := s.archiver.Archive(ctx, raw, result.Identifier); err != nil {
			s.logger.Warn("Failed to archive raw episode",
				interfaces.String("identifier", result.Identifier),
				interfaces.Error(err))
		}
	}
	return result, nil
}

// replay handles a raw episode whose variant already exists. The variant stays on its
// current mapping; only a corrected release time or URL is written.
func (s *IngestService) replay(ctx context.Context, tx repository.Repository, existing *models.EpisodeVariant, input VariantInput, at time.Time, result *IngestResult) error {
	written, err := s.variants.Upsert(ctx, tx, existing.MappingID, input, at)
	if err != nil {
		return err
	}
	mapping, err := tx.GetMapping(ctx, written.Variant.MappingID)
	if err != nil {
		return err
	}
	result.AnimeID = mapping.AnimeID
	result.MappingID = mapping.ID
	result.VariantID = written.Variant.ID
	if written.Changed {
		result.Changes.Add(events.EntityVariant)
	}
	if written.MappingChanged {
		result.Changes.Add(events.EntityMapping)
		if err := s.widenAnime(ctx, tx, mapping, at, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *IngestService) resolve(ctx context.Context, tx repository.Repository, raw models.RawEpisode, normalized rules.Normalized, input VariantInput, at time.Time, result *IngestResult) error {
	anime, err := s.animes.Resolve(ctx, tx, AnimeInput{
		CountryCode: input.CountryCode,
		Name:        normalized.AnimeName,
		Description: raw.AnimeDescription,
		Image:       raw.AnimeImage,
		Banner:      raw.AnimeBanner,
		Release:     raw.ReleaseDateTime,
	}, at)
	if err != nil {
		return err
	}
	if anime.Changed {
		result.Changes.Add(events.EntityAnime)
	}

	slot := models.Slot{Season: normalized.Season, EpisodeType: normalized.EpisodeType, Number: normalized.Number}
	mapping, err := s.mappings.Resolve(ctx, tx, anime.Anime.ID, slot, MappingSeed{
		Release:     raw.ReleaseDateTime,
		Title:       raw.Title,
		Description: raw.Description,
		Image:       raw.Image,
		Duration:    raw.Duration,
	}, at)
	if err != nil {
		return err
	}
	if mapping.Changed {
		result.Changes.Add(events.EntityMapping)
	}

	written, err := s.variants.Upsert(ctx, tx, mapping.Mapping.ID, input, at)
	if err != nil {
		return err
	}
	if written.Changed {
		result.Changes.Add(events.EntityVariant)
	}
	if written.MappingChanged {
		result.Changes.Add(events.EntityMapping)
	}

	result.AnimeID = anime.Anime.ID
	result.MappingID = written.Variant.MappingID
	result.VariantID = written.Variant.ID
	result.NewVariant = written.Transition == TransitionCreate

	s.logger.Debug("Raw episode resolved",
		interfaces.String("identifier", result.Identifier),
		interfaces.String("anime", anime.Transition.String()),
		interfaces.String("mapping", mapping.Transition.String()),
		interfaces.String("variant", written.Transition.String()))
	return nil
}

func (s *IngestService) widenAnime(ctx context.Context, tx repository.Repository, mapping *models.EpisodeMapping, at time.Time, result *IngestResult) error {
	anime, err := tx.GetAnime(ctx, mapping.AnimeID)
	if err != nil {
		return err
	}
	if err := s.animes.recomputeBounds(ctx, tx, anime, at); err != nil {
		return err
	}
	result.Changes.Add(events.EntityAnime)
	return nil
}

// validate rejects records that fail a domain precondition with a skip error.
func (s *IngestService) validate(raw models.RawEpisode) error {
	if !raw.Platform.Valid() {
		return errors.Skip("unknown platform %q", raw.Platform)
	}
	if err := normalize.ValidateCountry(strings.ToUpper(raw.CountryCode)); err != nil {
		return errors.Skip("%v", err)
	}
	if err := normalize.ValidateLocale(raw.AudioLocale); err != nil {
		return errors.Skip("%v", err)
	}
	var missing []string
	if strings.TrimSpace(raw.PlatformID) == "" {
		missing = append(missing, "platform id")
	}
	if strings.TrimSpace(raw.SeriesID) == "" {
		missing = append(missing, "series id")
	}
	if strings.TrimSpace(raw.AnimeName) == "" {
		missing = append(missing, "anime name")
	}
	if raw.ReleaseDateTime.IsZero() {
		missing = append(missing, "release time")
	}
	if len(missing) > 0 {
		return errors.Skip("missing %s", strings.Join(missing, ", "))
	}
	if raw.EpisodeType != "" && !raw.EpisodeType.Valid() {
		return errors.Skip("unknown episode type %q", raw.EpisodeType)
	}
	if raw.Trailer {
		return errors.Skip("trailers are not episodes")
	}
	if raw.Duration <= 0 && strings.TrimSpace(raw.RawNumber) == "" {
		return errors.Skip("no duration and no number, likely a preview")
	}
	if s.blacklisted(fmt.Sprintf("%s:%s", raw.Platform, raw.SeriesID)) {
		return errors.Skip("series %s:%s is blacklisted", raw.Platform, raw.SeriesID)
	}
	return nil
}

func (s *IngestService) blacklisted(key string) bool {
	_, ok := s.blacklist[strings.ToLower(key)]
	return ok
}
