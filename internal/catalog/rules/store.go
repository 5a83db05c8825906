package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Repository is the persistence the store needs.
type Repository interface {
	ListRules(ctx context.Context) ([]*models.Rule, error)
	TouchRules(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Store loads rule snapshots and records their usage.
type Store struct {
	repo   Repository
	logger interfaces.Logger
}

// NewStore creates a new rule store
func NewStore(repo Repository, logger interfaces.Logger) *Store {
	return &Store{repo: repo, logger: logger}
}

// Snapshot loads and validates every rule. An invalid payload fails the whole
// load with a configuration error rather than silently ignoring the rule.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	stored, err := s.repo.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	snapshot, err := NewSnapshot(stored)
	if err != nil {
		s.logger.Error("Rule set rejected", interfaces.Error(err))
		return nil, err
	}
	s.logger.Debug("Rule snapshot loaded", interfaces.Int("rules", snapshot.Len()))
	return snapshot, nil
}

// MarkUsed stamps lastUsageDateTime on applied rules. Failures are logged only,
// since usage tracking never blocks ingestion.
func (s *Store) MarkUsed(ctx context.Context, ids []uuid.UUID, at time.Time) {
	if len(ids) == 0 {
		return
	}
	if err := s.repo.TouchRules(ctx, ids, at.UTC()); err != nil {
		s.logger.Warn("Failed to record rule usage",
			interfaces.Int("rules", len(ids)),
			interfaces.Error(err))
	}
}
