// Package simulcast assigns seasonal buckets to animes from the release dates of their episodes.
package simulcast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/repository"
	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Bucket maps a release date to its calendar simulcast. December belongs to the
// WINTER bucket of the following year.
func Bucket(t time.Time) models.Simulcast {
	t = t.UTC()
	year := t.Year()
	switch t.Month() {
	case time.December:
		return models.Simulcast{Season: models.SeasonWinter, Year: year + 1}
	case time.January, time.February:
		return models.Simulcast{Season: models.SeasonWinter, Year: year}
	case time.March, time.April, time.May:
		return models.Simulcast{Season: models.SeasonSpring, Year: year}
	case time.June, time.July, time.August:
		return models.Simulcast{Season: models.SeasonSummer, Year: year}
	default:
		return models.Simulcast{Season: models.SeasonAutumn, Year: year}
	}
}

// Classifier records simulcast associations for mappings.
type Classifier struct {
	repo           repository.Repository
	simulcastRange time.Duration
	logger         interfaces.Logger
}

// NewClassifier creates a classifier. simulcastRange is the largest gap between two
// consecutive episodes for the later one to continue the earlier one's simulcast.
func NewClassifier(repo repository.Repository, simulcastRange time.Duration, logger interfaces.Logger) *Classifier {
	return &Classifier{
		repo:           repo,
		simulcastRange: simulcastRange,
		logger:         logger,
	}
}

// Classify returns the simulcast of a mapping and clears its classification flag.
//
// The date-derived bucket wins unless the previous episode of the same season and type
// was released within the simulcast range and the anime already belongs to an older
// bucket, in which case the older bucket is kept so a weekly show airing across a
// quarter boundary stays in one simulcast.
func (c *Classifier) Classify(ctx context.Context, repo repository.Repository, mapping *models.EpisodeMapping) (*models.Simulcast, error) {
	bucket := Bucket(mapping.ReleaseDateTime)

	assigned, err := repo.ListAnimeSimulcasts(ctx, mapping.AnimeID)
	if err != nil {
		return nil, err
	}

	var result *models.Simulcast
	if len(assigned) > 0 {
		latest := assigned[len(assigned)-1]
		if latest.Before(bucket) {
			continues, err := c.continuesPrevious(ctx, repo, mapping)
			if err != nil {
				return nil, err
			}
			if continues {
				result = latest
			}
		}
	}

	if result == nil {
		result, err = repo.FindOrCreateSimulcast(ctx, bucket.Season, bucket.Year)
		if err != nil {
			return nil, err
		}
		if _, err := repo.AddAnimeSimulcast(ctx, mapping.AnimeID, result.ID); err != nil {
			return nil, err
		}
	}

	if mapping.NeedsClassification {
		mapping.NeedsClassification = false
		if err := repo.UpdateMapping(ctx, mapping); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("Mapping classified",
		interfaces.String("mapping_id", mapping.ID.String()),
		interfaces.String("slot", mapping.Slot().String()),
		interfaces.String("bucket", bucket.String()),
		interfaces.String("simulcast", result.String()))
	return result, nil
}

func (c *Classifier) continuesPrevious(ctx context.Context, repo repository.Repository, mapping *models.EpisodeMapping) (bool, error) {
	previous, err := repo.FindPreviousMapping(ctx, mapping.AnimeID, mapping.Slot())
	if err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	gap := mapping.ReleaseDateTime.Sub(previous.ReleaseDateTime)
	if gap < 0 {
		gap = -gap
	}
	return gap <= c.simulcastRange, nil
}

// ClassifyPending classifies up to limit flagged mappings, each in its own transaction.
// It returns how many mappings were classified.
func (c *Classifier) ClassifyPending(ctx context.Context, limit int) (int, error) {
	pending, err := c.repo.ListMappingsNeedingClassification(ctx, limit)
	if err != nil {
		return 0, err
	}

	classified := 0
	for _, mapping := range pending {
		if err := ctx.Err(); err != nil {
			return classified, err
		}
		err := c.repo.Transaction(ctx, func(tx repository.Repository) error {
			_, err := c.Classify(ctx, tx, mapping)
			return err
		})
		if err != nil {
			c.logger.Error("Failed to classify mapping",
				interfaces.String("mapping_id", mapping.ID.String()),
				interfaces.Error(err))
			continue
		}
		classified++
	}

	if classified > 0 {
		c.logger.Info("Classified pending mappings",
			interfaces.Int("classified", classified),
			interfaces.Int("pending", len(pending)))
	}
	return classified, nil
}

// Reclassify drops every simulcast association of an anime and classifies its
// mappings again in release order.
func (c *Classifier) Reclassify(ctx context.Context, repo repository.Repository, animeID uuid.UUID) ([]*models.Simulcast, error) {
	if _, err := repo.GetAnime(ctx, animeID); err != nil {
		return nil, err
	}
	if err := repo.ClearAnimeSimulcasts(ctx, animeID); err != nil {
		return nil, err
	}

	mappings, err := repo.ListMappingsByAnime(ctx, animeID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(mappings, func(i, j int) bool {
		if !mappings[i].ReleaseDateTime.Equal(mappings[j].ReleaseDateTime) {
			return mappings[i].ReleaseDateTime.Before(mappings[j].ReleaseDateTime)
		}
		return mappings[i].Number < mappings[j].Number
	})

	for _, mapping := range mappings {
		if _, err := c.Classify(ctx, repo, mapping); err != nil {
			return nil, fmt.Errorf("failed to classify mapping %s: %w", mapping.ID, err)
		}
	}

	return repo.ListAnimeSimulcasts(ctx, animeID)
}
