package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/models"
	"github.com/narwhalmedia/simulcast/pkg/repository"
)

// GormRepository implements Repository using GORM
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new GORM repository
func NewGormRepository(db *gorm.DB) Repository {
	return &GormRepository{db: db}
}

// Transaction runs fn inside a database transaction. Nested calls use savepoints.
func (r *GormRepository) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}

// Anime operations

func (r *GormRepository) GetAnime(ctx context.Context, id uuid.UUID) (*models.Anime, error) {
	anime, err := repository.FindByID[models.Anime](ctx, r.db, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("anime %s not found", id))
		}
		return nil, fmt.Errorf("failed to get anime: %w", err)
	}
	return anime, nil
}

func (r *GormRepository) GetAnimes(ctx context.Context, ids []uuid.UUID) ([]*models.Anime, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	animes, err := repository.FindBy[models.Anime](ctx, r.db, "", "id IN ?", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get animes: %w", err)
	}
	return animes, nil
}

func (r *GormRepository) FindAnimeBySlug(ctx context.Context, countryCode, slug string) (*models.Anime, error) {
	anime, err := repository.FindOneBy[models.Anime](ctx, r.db, "country_code = ? AND slug = ?", countryCode, slug)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("anime %s/%s not found", countryCode, slug))
		}
		return nil, fmt.Errorf("failed to find anime by slug: %w", err)
	}
	return anime, nil
}

func (r *GormRepository) CreateAnimeIfAbsent(ctx context.Context, anime *models.Anime) (bool, error) {
	inserted, err := repository.CreateIfAbsent(ctx, r.db, anime)
	if err != nil {
		return false, fmt.Errorf("failed to create anime: %w", err)
	}
	return inserted, nil
}

func (r *GormRepository) UpdateAnime(ctx context.Context, anime *models.Anime) error {
	if err := repository.Update(ctx, r.db, anime); err != nil {
		if errors.IsConflict(err) {
			return errors.Conflict(fmt.Sprintf("anime slug %s already taken in %s", anime.Slug, anime.CountryCode))
		}
		return fmt.Errorf("failed to update anime: %w", err)
	}
	return nil
}

func (r *GormRepository) DeleteAnime(ctx context.Context, id uuid.UUID) error {
	if err := repository.Delete[models.Anime](ctx, r.db, id); err != nil {
		if errors.IsNotFound(err) {
			return errors.NotFound(fmt.Sprintf("anime %s not found", id))
		}
		return fmt.Errorf("failed to delete anime: %w", err)
	}
	return nil
}

// nameMatchClause matches a stored name containing the needle pattern, or contained
// in the raw needle. Both sides treat % and _ literally.
const nameMatchClause = `(LOWER(name) LIKE ? ESCAPE '\' OR ? LIKE '%' || ` +
	`REPLACE(REPLACE(REPLACE(LOWER(name), '\', '\\'), '%', '\%'), '_', '\_') || '%' ESCAPE '\')`

// SearchAnimeByName returns animes of the country whose name contains name, or is
// contained in it, case-insensitively.
func (r *GormRepository) SearchAnimeByName(ctx context.Context, countryCode, name string, excludeID uuid.UUID, limit int) ([]*models.Anime, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, nil
	}
	var animes []*models.Anime
	q := r.db.WithContext(ctx).
		Where("country_code = ? AND id <> ?", countryCode, excludeID).
		Where(nameMatchClause, "%"+escapeLike(needle)+"%", needle).
		Order("name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&animes).Error; err != nil {
		return nil, fmt.Errorf("failed to search animes: %w", err)
	}
	return animes, nil
}

func (r *GormRepository) ListAnimes(ctx context.Context, countryCode string) ([]*models.Anime, error) {
	animes, err := repository.FindBy[models.Anime](ctx, r.db, "slug ASC", "country_code = ?", countryCode)
	if err != nil {
		return nil, fmt.Errorf("failed to list animes: %w", err)
	}
	return animes, nil
}

// Simulcast operations

func (r *GormRepository) FindOrCreateSimulcast(ctx context.Context, season models.SeasonName, year int) (*models.Simulcast, error) {
	if _, err := repository.CreateIfAbsent(ctx, r.db, &models.Simulcast{Season: season, Year: year}); err != nil {
		return nil, fmt.Errorf("failed to create simulcast: %w", err)
	}
	simulcast, err := repository.FindOneBy[models.Simulcast](ctx, r.db, "season = ? AND year = ?", season, year)
	if err != nil {
		return nil, fmt.Errorf("failed to get simulcast %s %d: %w", season, year, err)
	}
	return simulcast, nil
}

// ListSimulcasts returns the buckets holding at least one anime of the country, newest first.
func (r *GormRepository) ListSimulcasts(ctx context.Context, countryCode string) ([]*models.Simulcast, error) {
	var simulcasts []*models.Simulcast
	if err := r.db.WithContext(ctx).
		Where("id IN (?)", r.db.Model(&models.AnimeSimulcast{}).
			Select("anime_simulcasts.simulcast_id").
			Joins("JOIN animes ON animes.id = anime_simulcasts.anime_id").
			Where("animes.country_code = ?", countryCode)).
		Find(&simulcasts).Error; err != nil {
		return nil, fmt.Errorf("failed to list simulcasts: %w", err)
	}
	sortSimulcastsDesc(simulcasts)
	return simulcasts, nil
}

// ListAnimeSimulcasts returns the buckets of an anime, oldest first.
func (r *GormRepository) ListAnimeSimulcasts(ctx context.Context, animeID uuid.UUID) ([]*models.Simulcast, error) {
	var simulcasts []*models.Simulcast
	if err := r.db.WithContext(ctx).
		Joins("JOIN anime_simulcasts ON anime_simulcasts.simulcast_id = simulcasts.id").
		Where("anime_simulcasts.anime_id = ?", animeID).
		Find(&simulcasts).Error; err != nil {
		return nil, fmt.Errorf("failed to list anime simulcasts: %w", err)
	}
	sortSimulcastsAsc(simulcasts)
	return simulcasts, nil
}

func (r *GormRepository) ListAnimesBySimulcast(ctx context.Context, countryCode string, simulcastID uuid.UUID) ([]*models.Anime, error) {
	var animes []*models.Anime
	if err := r.db.WithContext(ctx).
		Joins("JOIN anime_simulcasts ON anime_simulcasts.anime_id = animes.id").
		Where("anime_simulcasts.simulcast_id = ? AND animes.country_code = ?", simulcastID, countryCode).
		Order("animes.slug ASC").
		Find(&animes).Error; err != nil {
		return nil, fmt.Errorf("failed to list animes by simulcast: %w", err)
	}
	return animes, nil
}

func (r *GormRepository) AddAnimeSimulcast(ctx context.Context, animeID, simulcastID uuid.UUID) (bool, error) {
	inserted, err := repository.CreateIfAbsent(ctx, r.db, &models.AnimeSimulcast{AnimeID: animeID, SimulcastID: simulcastID})
	if err != nil {
		return false, fmt.Errorf("failed to add anime simulcast: %w", err)
	}
	return inserted, nil
}

func (r *GormRepository) ClearAnimeSimulcasts(ctx context.Context, animeID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.AnimeSimulcast{}, "anime_id = ?", animeID).Error; err != nil {
		return fmt.Errorf("failed to clear anime simulcasts: %w", err)
	}
	return nil
}

// MoveAnimeSimulcasts unions the source associations into the target and drops the source rows.
func (r *GormRepository) MoveAnimeSimulcasts(ctx context.Context, fromAnimeID, toAnimeID uuid.UUID) error {
	links, err := repository.FindBy[models.AnimeSimulcast](ctx, r.db, "", "anime_id = ?", fromAnimeID)
	if err != nil {
		return fmt.Errorf("failed to list anime simulcasts: %w", err)
	}
	for _, link := range links {
		if _, err := r.AddAnimeSimulcast(ctx, toAnimeID, link.SimulcastID); err != nil {
			return err
		}
	}
	return r.ClearAnimeSimulcasts(ctx, fromAnimeID)
}

// Mapping operations

func (r *GormRepository) GetMapping(ctx context.Context, id uuid.UUID) (*models.EpisodeMapping, error) {
	mapping, err := repository.FindByID[models.EpisodeMapping](ctx, r.db, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("episode mapping %s not found", id))
		}
		return nil, fmt.Errorf("failed to get episode mapping: %w", err)
	}
	return mapping, nil
}

func (r *GormRepository) GetMappings(ctx context.Context, ids []uuid.UUID) ([]*models.EpisodeMapping, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	mappings, err := repository.FindBy[models.EpisodeMapping](ctx, r.db, "", "id IN ?", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode mappings: %w", err)
	}
	return mappings, nil
}

func (r *GormRepository) FindMappingBySlot(ctx context.Context, animeID uuid.UUID, slot models.Slot) (*models.EpisodeMapping, error) {
	mapping, err := repository.FindOneBy[models.EpisodeMapping](ctx, r.db,
		"anime_id = ? AND season = ? AND episode_type = ? AND number = ?",
		animeID, slot.Season, slot.EpisodeType, slot.Number)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("episode mapping %s not found", slot))
		}
		return nil, fmt.Errorf("failed to find episode mapping: %w", err)
	}
	return mapping, nil
}

// FindPreviousMapping returns the highest-numbered mapping below slot in the same
// season and episode type of the anime.
func (r *GormRepository) FindPreviousMapping(ctx context.Context, animeID uuid.UUID, slot models.Slot) (*models.EpisodeMapping, error) {
	var mapping models.EpisodeMapping
	err := r.db.WithContext(ctx).
		Where("anime_id = ? AND season = ? AND episode_type = ? AND number < ?",
			animeID, slot.Season, slot.EpisodeType, slot.Number).
		Order("number DESC").
		First(&mapping).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound(fmt.Sprintf("no mapping before %s", slot))
		}
		return nil, fmt.Errorf("failed to find previous mapping: %w", err)
	}
	return &mapping, nil
}

func (r *GormRepository) CreateMappingIfAbsent(ctx context.Context, mapping *models.EpisodeMapping) (bool, error) {
	inserted, err := repository.CreateIfAbsent(ctx, r.db, mapping)
	if err != nil {
		return false, fmt.Errorf("failed to create episode mapping: %w", err)
	}
	return inserted, nil
}

func (r *GormRepository) UpdateMapping(ctx context.Context, mapping *models.EpisodeMapping) error {
	if err := repository.Update(ctx, r.db, mapping); err != nil {
		if errors.IsConflict(err) {
			return errors.Conflict(fmt.Sprintf("episode mapping slot %s already taken", mapping.Slot()))
		}
		return fmt.Errorf("failed to update episode mapping: %w", err)
	}
	return nil
}

func (r *GormRepository) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	if err := repository.Delete[models.EpisodeMapping](ctx, r.db, id); err != nil {
		if errors.IsNotFound(err) {
			return errors.NotFound(fmt.Sprintf("episode mapping %s not found", id))
		}
		return fmt.Errorf("failed to delete episode mapping: %w", err)
	}
	return nil
}

func (r *GormRepository) ListMappingsByAnime(ctx context.Context, animeID uuid.UUID) ([]*models.EpisodeMapping, error) {
	mappings, err := repository.FindBy[models.EpisodeMapping](ctx, r.db,
		"season ASC, episode_type ASC, number ASC", "anime_id = ?", animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episode mappings: %w", err)
	}
	return mappings, nil
}

// ListMappingsNeedingClassification returns flagged mappings in release order so that
// earlier episodes of a sequence are classified before later ones.
func (r *GormRepository) ListMappingsNeedingClassification(ctx context.Context, limit int) ([]*models.EpisodeMapping, error) {
	var mappings []*models.EpisodeMapping
	q := r.db.WithContext(ctx).
		Where("needs_classification = ?", true).
		Order("release_date_time ASC, number ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&mappings).Error; err != nil {
		return nil, fmt.Errorf("failed to list mappings needing classification: %w", err)
	}
	return mappings, nil
}

func (r *GormRepository) CountMappingsByAnime(ctx context.Context, animeID uuid.UUID) (int64, error) {
	count, err := repository.Count[models.EpisodeMapping](ctx, r.db, "anime_id = ?", animeID)
	if err != nil {
		return 0, fmt.Errorf("failed to count episode mappings: %w", err)
	}
	return count, nil
}

// Variant operations

func (r *GormRepository) GetVariant(ctx context.Context, id uuid.UUID) (*models.EpisodeVariant, error) {
	variant, err := repository.FindByID[models.EpisodeVariant](ctx, r.db, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("episode variant %s not found", id))
		}
		return nil, fmt.Errorf("failed to get episode variant: %w", err)
	}
	return variant, nil
}

func (r *GormRepository) FindVariantByIdentifier(ctx context.Context, identifier string) (*models.EpisodeVariant, error) {
	variant, err := repository.FindOneBy[models.EpisodeVariant](ctx, r.db, "identifier = ?", identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("episode variant %s not found", identifier))
		}
		return nil, fmt.Errorf("failed to find episode variant: %w", err)
	}
	return variant, nil
}

func (r *GormRepository) CreateVariantIfAbsent(ctx context.Context, variant *models.EpisodeVariant) (bool, error) {
	inserted, err := repository.CreateIfAbsent(ctx, r.db, variant)
	if err != nil {
		return false, fmt.Errorf("failed to create episode variant: %w", err)
	}
	return inserted, nil
}

func (r *GormRepository) UpdateVariant(ctx context.Context, variant *models.EpisodeVariant) error {
	if err := repository.Update(ctx, r.db, variant); err != nil {
		return fmt.Errorf("failed to update episode variant: %w", err)
	}
	return nil
}

func (r *GormRepository) ListVariantsByMapping(ctx context.Context, mappingID uuid.UUID) ([]*models.EpisodeVariant, error) {
	variants, err := repository.FindBy[models.EpisodeVariant](ctx, r.db,
		"release_date_time ASC, identifier ASC", "mapping_id = ?", mappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episode variants: %w", err)
	}
	return variants, nil
}

// ListVariantsReleasedBetween returns variants released in [from, to), oldest first.
func (r *GormRepository) ListVariantsReleasedBetween(ctx context.Context, from, to time.Time) ([]*models.EpisodeVariant, error) {
	variants, err := repository.FindBy[models.EpisodeVariant](ctx, r.db,
		"release_date_time ASC, identifier ASC",
		"release_date_time >= ? AND release_date_time < ?", from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list episode variants by release: %w", err)
	}
	return variants, nil
}

// MoveVariants reattaches every variant of one mapping to another. Identifiers are
// globally unique so the move never collides.
func (r *GormRepository) MoveVariants(ctx context.Context, fromMappingID, toMappingID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Model(&models.EpisodeVariant{}).
		Where("mapping_id = ?", fromMappingID).
		Update("mapping_id", toMappingID).Error; err != nil {
		return fmt.Errorf("failed to move episode variants: %w", err)
	}
	return nil
}

func (r *GormRepository) DeleteVariantsByMapping(ctx context.Context, mappingID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.EpisodeVariant{}, "mapping_id = ?", mappingID).Error; err != nil {
		return fmt.Errorf("failed to delete episode variants: %w", err)
	}
	return nil
}

// Follow operations

func (r *GormRepository) FollowAnime(ctx context.Context, memberID, animeID uuid.UUID) error {
	if _, err := repository.CreateIfAbsent(ctx, r.db, &models.AnimeFollow{MemberID: memberID, AnimeID: animeID}); err != nil {
		return fmt.Errorf("failed to follow anime: %w", err)
	}
	return nil
}

func (r *GormRepository) FollowEpisode(ctx context.Context, memberID, mappingID uuid.UUID) error {
	if _, err := repository.CreateIfAbsent(ctx, r.db, &models.EpisodeFollow{MemberID: memberID, MappingID: mappingID}); err != nil {
		return fmt.Errorf("failed to follow episode: %w", err)
	}
	return nil
}

func (r *GormRepository) ListAnimeFollows(ctx context.Context, animeID uuid.UUID) ([]*models.AnimeFollow, error) {
	follows, err := repository.FindBy[models.AnimeFollow](ctx, r.db, "created_at ASC", "anime_id = ?", animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list anime follows: %w", err)
	}
	return follows, nil
}

func (r *GormRepository) ListEpisodeFollows(ctx context.Context, mappingID uuid.UUID) ([]*models.EpisodeFollow, error) {
	follows, err := repository.FindBy[models.EpisodeFollow](ctx, r.db, "created_at ASC", "mapping_id = ?", mappingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list episode follows: %w", err)
	}
	return follows, nil
}

// MoveAnimeFollows moves follows to the target anime, dropping those whose member
// already follows the target.
func (r *GormRepository) MoveAnimeFollows(ctx context.Context, fromAnimeID, toAnimeID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("anime_id = ? AND member_id IN (?)", fromAnimeID,
		r.db.Model(&models.AnimeFollow{}).Select("member_id").Where("anime_id = ?", toAnimeID)).
		Delete(&models.AnimeFollow{}).Error; err != nil {
		return fmt.Errorf("failed to drop colliding anime follows: %w", err)
	}
	if err := db.Model(&models.AnimeFollow{}).
		Where("anime_id = ?", fromAnimeID).
		Update("anime_id", toAnimeID).Error; err != nil {
		return fmt.Errorf("failed to move anime follows: %w", err)
	}
	return nil
}

// MoveEpisodeFollows moves follows to the target mapping, dropping those whose member
// already follows the target.
func (r *GormRepository) MoveEpisodeFollows(ctx context.Context, fromMappingID, toMappingID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("mapping_id = ? AND member_id IN (?)", fromMappingID,
		r.db.Model(&models.EpisodeFollow{}).Select("member_id").Where("mapping_id = ?", toMappingID)).
		Delete(&models.EpisodeFollow{}).Error; err != nil {
		return fmt.Errorf("failed to drop colliding episode follows: %w", err)
	}
	if err := db.Model(&models.EpisodeFollow{}).
		Where("mapping_id = ?", fromMappingID).
		Update("mapping_id", toMappingID).Error; err != nil {
		return fmt.Errorf("failed to move episode follows: %w", err)
	}
	return nil
}

func (r *GormRepository) DeleteAnimeFollows(ctx context.Context, animeID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.AnimeFollow{}, "anime_id = ?", animeID).Error; err != nil {
		return fmt.Errorf("failed to delete anime follows: %w", err)
	}
	return nil
}

func (r *GormRepository) DeleteEpisodeFollows(ctx context.Context, mappingID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.EpisodeFollow{}, "mapping_id = ?", mappingID).Error; err != nil {
		return fmt.Errorf("failed to delete episode follows: %w", err)
	}
	return nil
}

// Rule operations

func (r *GormRepository) GetRule(ctx context.Context, id uuid.UUID) (*models.Rule, error) {
	rule, err := repository.FindByID[models.Rule](ctx, r.db, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("rule %s not found", id))
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (r *GormRepository) ListRules(ctx context.Context) ([]*models.Rule, error) {
	var rules []*models.Rule
	if err := r.db.WithContext(ctx).
		Order("platform ASC, series_id ASC, season_id ASC, action ASC").
		Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	return rules, nil
}

func (r *GormRepository) CreateRule(ctx context.Context, rule *models.Rule) error {
	if err := repository.Create(ctx, r.db, rule); err != nil {
		if errors.IsConflict(err) {
			return errors.Conflict(fmt.Sprintf("rule %s for %s %s/%s already exists",
				rule.Action, rule.Platform, rule.SeriesID, rule.SeasonID))
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateRule(ctx context.Context, rule *models.Rule) error {
	if err := repository.Update(ctx, r.db, rule); err != nil {
		if errors.IsConflict(err) {
			return errors.Conflict(fmt.Sprintf("rule %s for %s %s/%s already exists",
				rule.Action, rule.Platform, rule.SeriesID, rule.SeasonID))
		}
		return fmt.Errorf("failed to update rule: %w", err)
	}
	return nil
}

func (r *GormRepository) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := repository.Delete[models.Rule](ctx, r.db, id); err != nil {
		if errors.IsNotFound(err) {
			return errors.NotFound(fmt.Sprintf("rule %s not found", id))
		}
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return nil
}

// TouchRules sets lastUsageDateTime without bumping updated_at.
func (r *GormRepository) TouchRules(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Rule{}).
		Where("id IN ?", ids).
		UpdateColumn("last_usage_date_time", at.UTC()).Error; err != nil {
		return fmt.Errorf("failed to touch rules: %w", err)
	}
	return nil
}

// Audit operations

func (r *GormRepository) CreateTraceAction(ctx context.Context, action *models.TraceAction) error {
	if err := repository.Create(ctx, r.db, action); err != nil {
		return fmt.Errorf("failed to create trace action: %w", err)
	}
	return nil
}

// ListTraceActions returns the most recent trace actions, optionally for one entity.
func (r *GormRepository) ListTraceActions(ctx context.Context, entityID uuid.UUID, limit int) ([]*models.TraceAction, error) {
	var actions []*models.TraceAction
	q := r.db.WithContext(ctx).Order("action_date_time DESC")
	if entityID != uuid.Nil {
		q = q.Where("entity_id = ?", entityID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&actions).Error; err != nil {
		return nil, fmt.Errorf("failed to list trace actions: %w", err)
	}
	return actions, nil
}

func (r *GormRepository) CreateJobRun(ctx context.Context, run *models.JobRun) error {
	if err := repository.Create(ctx, r.db, run); err != nil {
		return fmt.Errorf("failed to create job run: %w", err)
	}
	return nil
}

func (r *GormRepository) UpdateJobRun(ctx context.Context, run *models.JobRun) error {
	if err := repository.Update(ctx, r.db, run); err != nil {
		return fmt.Errorf("failed to update job run: %w", err)
	}
	return nil
}

func (r *GormRepository) LastJobRun(ctx context.Context, job string, status models.JobStatus) (*models.JobRun, error) {
	var run models.JobRun
	if err := r.db.WithContext(ctx).
		Where("job = ? AND status = ?", job, status).
		Order("started_at DESC").
		First(&run).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound(fmt.Sprintf("no %s run of %s", strings.ToLower(string(status)), job))
		}
		return nil, fmt.Errorf("failed to get last job run: %w", err)
	}
	return &run, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func sortSimulcastsAsc(simulcasts []*models.Simulcast) {
	sort.Slice(simulcasts, func(i, j int) bool { return simulcasts[i].Before(*simulcasts[j]) })
}

func sortSimulcastsDesc(simulcasts []*models.Simulcast) {
	sort.Slice(simulcasts, func(i, j int) bool { return simulcasts[j].Before(*simulcasts[i]) })
}
