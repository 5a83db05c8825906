package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/internal/catalog/rules"
	"github.com/narwhalmedia/simulcast/internal/catalog/simulcast"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/events"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// JobRunSummary holds the last successful and failed run of a job. Either may be nil.
type JobRunSummary struct {
	Job         string
	LastSuccess *models.JobRun
	LastFailure *models.JobRun
}

// AdminService exposes operator commands over the catalog.
type AdminService struct {
	repo       repository.Repository
	animes     *AnimeResolver
	mappings   *MappingResolver
	variants   *VariantWriter
	classifier *simulcast.Classifier
	eventBus   interfaces.EventBus
	trace      tracer
	logger     interfaces.Logger
	now        func() time.Time
}

// NewAdminService creates a new admin service
func NewAdminService(
	repo repository.Repository,
	classifier *simulcast.Classifier,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
) *AdminService {
	mappings := NewMappingResolver(logger)
	return &AdminService{
		repo:       repo,
		animes:     NewAnimeResolver(mappings, logger),
		mappings:   mappings,
		variants:   NewVariantWriter(mappings, logger),
		classifier: classifier,
		eventBus:   eventBus,
		trace:      tracer{logger: logger},
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock replaces the time source used for bookkeeping timestamps.
func (s *AdminService) WithClock(now func() time.Time) *AdminService {
	s.now = now
	return s
}

// MergeAnimes merges source into target.
func (s *AdminService) MergeAnimes(ctx context.Context, sourceID, targetID uuid.UUID) (*MergeResult, error) {
	var result *MergeResult
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		result, err = s.animes.Merge(ctx, tx, sourceID, targetID, s.now())
		return err
	})
	if err != nil {
		s.logger.Error("Failed to merge animes",
			interfaces.String("source_id", sourceID.String()),
			interfaces.String("target_id", targetID.String()),
			interfaces.Error(err))
		return nil, err
	}
	publish(ctx, s.eventBus, s.logger, result.Changes)
	return result, nil
}

// MergeCandidates lists animes that look like duplicates of animeID.
func (s *AdminService) MergeCandidates(ctx context.Context, animeID uuid.UUID) ([]*models.Anime, error) {
	return s.animes.MergeCandidates(ctx, s.repo, animeID)
}

// ReKeyMapping moves a mapping to another slot of its anime.
func (s *AdminService) ReKeyMapping(ctx context.Context, mappingID uuid.UUID, slot models.Slot) (*MappingResolution, error) {
	var result *MappingResolution
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		result, err = s.mappings.ReKey(ctx, tx, mappingID, slot, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Changed {
		changes := events.ChangeSet{}
		changes.Add(events.EntityMapping, events.EntityVariant)
		publish(ctx, s.eventBus, s.logger, changes)
	}
	return result, nil
}

// SplitVariant detaches a variant into another slot of its anime.
func (s *AdminService) SplitVariant(ctx context.Context, variantID uuid.UUID, slot models.Slot) (*SplitResult, error) {
	var result *SplitResult
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		result, err = s.variants.Split(ctx, tx, variantID, slot, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}
	publish(ctx, s.eventBus, s.logger, result.Changes)
	return result, nil
}

// DeleteMapping deletes a mapping and cascades to its anime when it was the last one.
func (s *AdminService) DeleteMapping(ctx context.Context, mappingID uuid.UUID) (bool, error) {
	var animeDeleted bool
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		animeDeleted, err = s.mappings.Delete(ctx, tx, mappingID, s.now())
		return err
	})
	if err != nil {
		return false, err
	}
	changes := events.ChangeSet{}
	changes.Add(events.EntityMapping, events.EntityVariant)
	if animeDeleted {
		changes.Add(events.EntityAnime, events.EntitySimulcast)
	}
	publish(ctx, s.eventBus, s.logger, changes)
	return animeDeleted, nil
}

// Reclassify recomputes the simulcasts of an anime from scratch.
func (s *AdminService) Reclassify(ctx context.Context, animeID uuid.UUID) ([]*models.Simulcast, error) {
	var assigned []*models.Simulcast
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		assigned, err = s.classifier.Reclassify(ctx, tx, animeID)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(assigned))
		for _, sc := range assigned {
			names = append(names, sc.String())
		}
		return s.trace.record(ctx, tx, events.EntityAnime, animeID, models.TraceReclassify, strings.Join(names, ", "), s.now())
	})
	if err != nil {
		return nil, err
	}
	changes := events.ChangeSet{}
	changes.Add(events.EntitySimulcast)
	publish(ctx, s.eventBus, s.logger, changes)
	return assigned, nil
}

// ListRules lists every rule.
func (s *AdminService) ListRules(ctx context.Context) ([]*models.Rule, error) {
	return s.repo.ListRules(ctx)
}

// CreateRule validates and stores a rule.
func (s *AdminService) CreateRule(ctx context.Context, rule *models.Rule) error {
	rule.ActionValue = strings.TrimSpace(rule.ActionValue)
	if err := rules.Validate(rule); err != nil {
		return err
	}
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		if err := tx.CreateRule(ctx, rule); err != nil {
			return err
		}
		detail := fmt.Sprintf("created %s=%q for %s %s/%s", rule.Action, rule.ActionValue, rule.Platform, rule.SeriesID, rule.SeasonID)
		return s.trace.record(ctx, tx, events.EntityRule, rule.ID, models.TraceRuleEdit, detail, s.now())
	})
	if err != nil {
		return err
	}
	s.publishRuleChange(ctx)
	return nil
}

// UpdateRule changes the payload of a rule.
func (s *AdminService) UpdateRule(ctx context.Context, id uuid.UUID, value string) (*models.Rule, error) {
	var rule *models.Rule
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		var err error
		rule, err = tx.GetRule(ctx, id)
		if err != nil {
			return err
		}
		previous := rule.ActionValue
		rule.ActionValue = strings.TrimSpace(value)
		if err := rules.Validate(rule); err != nil {
			return err
		}
		if err := tx.UpdateRule(ctx, rule); err != nil {
			return err
		}
		detail := fmt.Sprintf("%s payload %q -> %q", rule.Action, previous, rule.ActionValue)
		return s.trace.record(ctx, tx, events.EntityRule, rule.ID, models.TraceRuleEdit, detail, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.publishRuleChange(ctx)
	return rule, nil
}

// DeleteRule removes a rule.
func (s *AdminService) DeleteRule(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Transaction(ctx, func(tx repository.Repository) error {
		rule, err := tx.GetRule(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteRule(ctx, id); err != nil {
			return err
		}
		detail := fmt.Sprintf("deleted %s for %s %s/%s", rule.Action, rule.Platform, rule.SeriesID, rule.SeasonID)
		return s.trace.record(ctx, tx, events.EntityRule, id, models.TraceRuleEdit, detail, s.now())
	})
	if err != nil {
		return err
	}
	s.publishRuleChange(ctx)
	return nil
}

func (s *AdminService) publishRuleChange(ctx context.Context) {
	changes := events.ChangeSet{}
	changes.Add(events.EntityRule)
	publish(ctx, s.eventBus, s.logger, changes)
}

// LastRuns returns the last successful and failed run of a job.
func (s *AdminService) LastRuns(ctx context.Context, job string) (*JobRunSummary, error) {
	summary := &JobRunSummary{Job: job}
	success, err := s.repo.LastJobRun(ctx, job, models.JobSucceeded)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	summary.LastSuccess = success
	failure, err := s.repo.LastJobRun(ctx, job, models.JobFailed)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	summary.LastFailure = failure
	return summary, nil
}

// TraceActions lists recent trace actions, for one entity when entityID is set.
func (s *AdminService) TraceActions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.TraceAction, error) {
	return s.repo.ListTraceActions(ctx, entityID, limit)
}

// FollowAnime records that a member follows an anime.
func (s *AdminService) FollowAnime(ctx context.Context, memberID, animeID uuid.UUID) error {
	if _, err := s.repo.GetAnime(ctx, animeID); err != nil {
		return err
	}
	return s.repo.FollowAnime(ctx, memberID, animeID)
}

// FollowEpisode records that a member follows an episode mapping.
func (s *AdminService) FollowEpisode(ctx context.Context, memberID, mappingID uuid.UUID) error {
	if _, err := s.repo.GetMapping(ctx, mappingID); err != nil {
		return err
	}
	return s.repo.FollowEpisode(ctx, memberID, mappingID)
}
