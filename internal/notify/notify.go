// Package notify turns grouped episodes into outbound notification batches.
package notify

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// batchNamespace seeds deterministic batch ids.
var batchNamespace = uuid.MustParse("6f1c0b7e-3d55-4a39-9a51-8d2b1e6c4f20")

// Batch is one ordered delivery unit for a country.
type Batch struct {
	ID          uuid.UUID               `json:"id"`
	CountryCode string                  `json:"country_code"`
	GeneratedAt time.Time               `json:"generated_at"`
	Groups      []models.GroupedEpisode `json:"groups"`
}

// Publisher delivers notification batches to an outbound channel.
type Publisher interface {
	Publish(ctx context.Context, batch *Batch) error
	Close() error
}

// NewBatch builds a batch whose id depends only on the country and the member
// variants, so redelivering the same groups is recognisable downstream.
func NewBatch(countryCode string, groups []models.GroupedEpisode, at time.Time) *Batch {
	var ids []string
	for _, g := range groups {
		for _, v := range g.VariantIDs {
			ids = append(ids, v.String())
		}
	}
	sort.Strings(ids)
	key := strings.ToUpper(countryCode) + ":" + strings.Join(ids, ",")
	return &Batch{
		ID:          uuid.NewSHA1(batchNamespace, []byte(key)),
		CountryCode: strings.ToUpper(countryCode),
		GeneratedAt: at.UTC(),
		Groups:      groups,
	}
}

// Service selects the groups worth announcing and hands them to a publisher.
type Service struct {
	publisher Publisher
	logger    interfaces.Logger
	now       func() time.Time
}

// NewService creates a new notification service
func NewService(publisher Publisher, logger interfaces.Logger) *Service {
	return &Service{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify publishes the groups of a country that contain at least one of the new
// variants, preserving the group order. It returns nil when nothing is new.
func (s *Service) Notify(ctx context.Context, countryCode string, groups []models.GroupedEpisode, newVariants []uuid.UUID) (*Batch, error) {
	if len(newVariants) == 0 || len(groups) == 0 {
		return nil, nil
	}
	fresh := make(map[uuid.UUID]struct{}, len(newVariants))
	for _, id := range newVariants {
		fresh[id] = struct{}{}
	}

	var selected []models.GroupedEpisode
	for _, g := range groups {
		for _, id := range g.VariantIDs {
			if _, ok := fresh[id]; ok {
				selected = append(selected, g)
				break
			}
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}

	batch := NewBatch(countryCode, selected, s.now())
	if err := s.publisher.Publish(ctx, batch); err != nil {
		s.logger.Error("Failed to publish notification batch",
			interfaces.Stringer("batch_id", batch.ID),
			interfaces.String("country", batch.CountryCode),
			interfaces.Error(err))
		return nil, err
	}
	s.logger.Info("Notification batch published",
		interfaces.Stringer("batch_id", batch.ID),
		interfaces.String("country", batch.CountryCode),
		interfaces.Int("groups", len(batch.Groups)))
	return batch, nil
}

// LogPublisher writes batches to the log. It is the default backend.
type LogPublisher struct {
	logger interfaces.Logger
}

// NewLogPublisher creates a publisher that only logs.
func NewLogPublisher(logger interfaces.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, batch *Batch) error {
	for _, g := range batch.Groups {
		platforms := make([]string, 0, len(g.Platforms))
		for _, platform := range g.Platforms {
			platforms = append(platforms, string(platform))
		}
		p.logger.Info("New episodes",
			interfaces.Stringer("batch_id", batch.ID),
			interfaces.String("country", batch.CountryCode),
			interfaces.String("anime", g.AnimeSlug),
			interfaces.Int("season", g.Season),
			interfaces.String("episode_type", string(g.EpisodeType)),
			interfaces.Int("from", g.MinNumber),
			interfaces.Int("to", g.MaxNumber),
			interfaces.String("platforms", strings.Join(platforms, ",")),
			interfaces.String("locales", strings.Join(g.AudioLocales, ",")),
			interfaces.Time("released_at", g.ReleaseDateTime))
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }
