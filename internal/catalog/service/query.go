package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/grouping"
	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// QueryService serves cached read views of the catalog.
type QueryService struct {
	repo    repository.Repository
	builder *grouping.Builder
	cache   interfaces.Cache
	ttl     time.Duration
	logger  interfaces.Logger
	now     func() time.Time
}

// NewQueryService creates a new query service
func NewQueryService(
	repo repository.Repository,
	builder *grouping.Builder,
	cache interfaces.Cache,
	ttl time.Duration,
	logger interfaces.Logger,
) *QueryService {
	return &QueryService{
		repo:    repo,
		builder: builder,
		cache:   cache,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock replaces the time source used for the reporting window.
func (s *QueryService) WithClock(now func() time.Time) *QueryService {
	s.now = now
	return s
}

// ListSimulcasts lists the simulcasts of a country, newest first.
func (s *QueryService) ListSimulcasts(ctx context.Context, countryCode string) ([]*models.Simulcast, error) {
	cacheKey := "simulcasts:" + countryCode
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		if simulcasts, ok := cached.([]*models.Simulcast); ok {
			return simulcasts, nil
		}
	}

	simulcasts, err := s.repo.ListSimulcasts(ctx, countryCode)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cacheKey, simulcasts, s.ttl)
	return simulcasts, nil
}

// ListAnimesBySimulcast lists the animes of a country in a simulcast.
func (s *QueryService) ListAnimesBySimulcast(ctx context.Context, countryCode string, simulcastID uuid.UUID) ([]*models.Anime, error) {
	cacheKey := fmt.Sprintf("simulcast:%s:%s", countryCode, simulcastID)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		if animes, ok := cached.([]*models.Anime); ok {
			return animes, nil
		}
	}

	animes, err := s.repo.ListAnimesBySimulcast(ctx, countryCode, simulcastID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cacheKey, animes, s.ttl)
	return animes, nil
}

// GroupedEpisodes returns the release groups of a country first released in [from, to).
func (s *QueryService) GroupedEpisodes(ctx context.Context, countryCode string, from, to time.Time) ([]models.GroupedEpisode, error) {
	from, to = from.UTC(), to.UTC()
	cacheKey := fmt.Sprintf("groups:%s:%d:%d", countryCode, from.Unix(), to.Unix())
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		if groups, ok := cached.([]models.GroupedEpisode); ok {
			return groups, nil
		}
	}

	index, err := s.builder.Build(ctx, from, to)
	if err != nil {
		return nil, err
	}
	groups := index.Groups(countryCode, from, to)
	s.cache.Set(ctx, cacheKey, groups, s.ttl)
	return groups, nil
}

// CurrentGroups returns the groups of the reporting window ending now, rounded up to
// the next minute so repeated reads share a cache entry.
func (s *QueryService) CurrentGroups(ctx context.Context, countryCode string) ([]models.GroupedEpisode, error) {
	from, to := grouping.ReportingWindow(s.now())
	return s.GroupedEpisodes(ctx, countryCode, from, to.Truncate(time.Minute).Add(time.Minute))
}
