package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/pkg/models"
)

// AnimeRepository defines methods for anime operations.
type AnimeRepository interface {
	GetAnime(ctx context.Context, id uuid.UUID) (*models.Anime, error)
	GetAnimes(ctx context.Context, ids []uuid.UUID) ([]*models.Anime, error)
	FindAnimeBySlug(ctx context.Context, countryCode, slug string) (*models.Anime, error)
	CreateAnimeIfAbsent(ctx context.Context, anime *models.Anime) (bool, error)
	UpdateAnime(ctx context.Context, anime *models.Anime) error
	DeleteAnime(ctx context.Context, id uuid.UUID) error
	SearchAnimeByName(ctx context.Context, countryCode, name string, excludeID uuid.UUID, limit int) ([]*models.Anime, error)
	ListAnimes(ctx context.Context, countryCode string) ([]*models.Anime, error)
}

// SimulcastRepository defines methods for simulcast buckets and their anime associations.
type SimulcastRepository interface {
	FindOrCreateSimulcast(ctx context.Context, season models.SeasonName, year int) (*models.Simulcast, error)
	ListSimulcasts(ctx context.Context, countryCode string) ([]*models.Simulcast, error)
	ListAnimeSimulcasts(ctx context.Context, animeID uuid.UUID) ([]*models.Simulcast, error)
	ListAnimesBySimulcast(ctx context.Context, countryCode string, simulcastID uuid.UUID) ([]*models.Anime, error)
	AddAnimeSimulcast(ctx context.Context, animeID, simulcastID uuid.UUID) (bool, error)
	ClearAnimeSimulcasts(ctx context.Context, animeID uuid.UUID) error
	MoveAnimeSimulcasts(ctx context.Context, fromAnimeID, toAnimeID uuid.UUID) error
}

// MappingRepository defines methods for episode mapping operations.
type MappingRepository interface {
	GetMapping(ctx context.Context, id uuid.UUID) (*models.EpisodeMapping, error)
	GetMappings(ctx context.Context, ids []uuid.UUID) ([]*models.EpisodeMapping, error)
	FindMappingBySlot(ctx context.Context, animeID uuid.UUID, slot models.Slot) (*models.EpisodeMapping, error)
	FindPreviousMapping(ctx context.Context, animeID uuid.UUID, slot models.Slot) (*models.EpisodeMapping, error)
	CreateMappingIfAbsent(ctx context.Context, mapping *models.EpisodeMapping) (bool, error)
	UpdateMapping(ctx context.Context, mapping *models.EpisodeMapping) error
	DeleteMapping(ctx context.Context, id uuid.UUID) error
	ListMappingsByAnime(ctx context.Context, animeID uuid.UUID) ([]*models.EpisodeMapping, error)
	ListMappingsNeedingClassification(ctx context.Context, limit int) ([]*models.EpisodeMapping, error)
	CountMappingsByAnime(ctx context.Context, animeID uuid.UUID) (int64, error)
}

// VariantRepository defines methods for episode variant operations.
type VariantRepository interface {
	GetVariant(ctx context.Context, id uuid.UUID) (*models.EpisodeVariant, error)
	FindVariantByIdentifier(ctx context.Context, identifier string) (*models.EpisodeVariant, error)
	CreateVariantIfAbsent(ctx context.Context, variant *models.EpisodeVariant) (bool, error)
	UpdateVariant(ctx context.Context, variant *models.EpisodeVariant) error
	ListVariantsByMapping(ctx context.Context, mappingID uuid.UUID) ([]*models.EpisodeVariant, error)
	ListVariantsReleasedBetween(ctx context.Context, from, to time.Time) ([]*models.EpisodeVariant, error)
	MoveVariants(ctx context.Context, fromMappingID, toMappingID uuid.UUID) error
	DeleteVariantsByMapping(ctx context.Context, mappingID uuid.UUID) error
}

// FollowRepository defines methods for member follow records.
type FollowRepository interface {
	FollowAnime(ctx context.Context, memberID, animeID uuid.UUID) error
	FollowEpisode(ctx context.Context, memberID, mappingID uuid.UUID) error
	ListAnimeFollows(ctx context.Context, animeID uuid.UUID) ([]*models.AnimeFollow, error)
	ListEpisodeFollows(ctx context.Context, mappingID uuid.UUID) ([]*models.EpisodeFollow, error)
	MoveAnimeFollows(ctx context.Context, fromAnimeID, toAnimeID uuid.UUID) error
	MoveEpisodeFollows(ctx context.Context, fromMappingID, toMappingID uuid.UUID) error
	DeleteAnimeFollows(ctx context.Context, animeID uuid.UUID) error
	DeleteEpisodeFollows(ctx context.Context, mappingID uuid.UUID) error
}

// RuleRepository defines methods for rule operations.
type RuleRepository interface {
	GetRule(ctx context.Context, id uuid.UUID) (*models.Rule, error)
	ListRules(ctx context.Context) ([]*models.Rule, error)
	CreateRule(ctx context.Context, rule *models.Rule) error
	UpdateRule(ctx context.Context, rule *models.Rule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
	TouchRules(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// AuditRepository defines methods for trace actions and job runs.
type AuditRepository interface {
	CreateTraceAction(ctx context.Context, action *models.TraceAction) error
	ListTraceActions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.TraceAction, error)
	CreateJobRun(ctx context.Context, run *models.JobRun) error
	UpdateJobRun(ctx context.Context, run *models.JobRun) error
	LastJobRun(ctx context.Context, job string, status models.JobStatus) (*models.JobRun, error)
}

// Repository aggregates all catalog repositories.
type Repository interface {
	AnimeRepository
	SimulcastRepository
	MappingRepository
	VariantRepository
	FollowRepository
	RuleRepository
	AuditRepository

	// Transaction runs fn against a repository bound to one database transaction.
	// The transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(repo Repository) error) error
}
