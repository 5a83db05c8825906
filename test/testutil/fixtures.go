package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Release is a fixed reference instant for fixtures: Friday 2025-01-10 16:00 UTC.
var Release = time.Date(2025, time.January, 10, 16, 0, 0, 0, time.UTC)

// CreateTestAnime creates a test anime with default values.
func CreateTestAnime(countryCode, slug, name string) *models.Anime {
	return &models.Anime{
		ID:                  uuid.New(),
		CountryCode:         countryCode,
		Slug:                slug,
		Name:                name,
		ReleaseDateTime:     Release,
		LastReleaseDateTime: Release,
		LastUpdateDateTime:  Release,
	}
}

// CreateTestMapping creates a test mapping for an anime slot released at release.
func CreateTestMapping(animeID uuid.UUID, season int, episodeType models.EpisodeType, number int, release time.Time) *models.EpisodeMapping {
	return &models.EpisodeMapping{
		ID:                  uuid.New(),
		AnimeID:             animeID,
		Season:              season,
		EpisodeType:         episodeType,
		Number:              number,
		ReleaseDateTime:     release,
		LastReleaseDateTime: release,
		LastUpdateDateTime:  release,
	}
}

// CreateTestVariant creates a test variant attached to a mapping.
func CreateTestVariant(mappingID uuid.UUID, identifier string, platform models.Platform, audioLocale string, release time.Time) *models.EpisodeVariant {
	return &models.EpisodeVariant{
		ID:              uuid.New(),
		MappingID:       mappingID,
		Identifier:      identifier,
		Platform:        platform,
		AudioLocale:     audioLocale,
		ReleaseDateTime: release,
		URL:             fmt.Sprintf("https://example.test/%s", identifier),
	}
}

// CreateTestRawEpisode creates a Crunchyroll raw episode for France with default values.
func CreateTestRawEpisode(animeName, platformID string, number int, release time.Time) models.RawEpisode {
	return models.RawEpisode{
		CountryCode:     "FR",
		Platform:        models.PlatformCrunchyroll,
		PlatformID:      platformID,
		SeriesID:        "GRMG8ZQZR",
		SeasonID:        "GYE5CQNJ2",
		AnimeName:       animeName,
		AnimeImage:      "https://example.test/poster.jpg",
		AnimeBanner:     "https://example.test/banner.jpg",
		ReleaseDateTime: release,
		EpisodeType:     models.EpisodeTypeEpisode,
		RawSeason:       "1",
		RawNumber:       fmt.Sprintf("%d", number),
		Duration:        1420,
		Title:           fmt.Sprintf("Episode %d", number),
		AudioLocale:     "ja-JP",
		URL:             fmt.Sprintf("https://www.crunchyroll.com/fr/watch/%s", platformID),
		Original:        []byte(fmt.Sprintf(`{"id":%q}`, platformID)),
	}
}

// CreateTestRule creates a rule for the default Crunchyroll fixture series and season.
func CreateTestRule(action models.RuleAction, value string) *models.Rule {
	return &models.Rule{
		ID:          uuid.New(),
		Platform:    models.PlatformCrunchyroll,
		SeriesID:    "GRMG8ZQZR",
		SeasonID:    "GYE5CQNJ2",
		Action:      action,
		ActionValue: value,
	}
}
