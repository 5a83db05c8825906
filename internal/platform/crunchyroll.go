package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

type crunchyroll struct {
	client *FeedClient
	logger interfaces.Logger
}

func newCrunchyroll(client *FeedClient, logger interfaces.Logger) *crunchyroll {
	return &crunchyroll{client: client, logger: logger.WithFields(interfaces.String("platform", "crunchyroll"))}
}

type crunchyrollFeed struct {
	Data []json.RawMessage `json:"data"`
}

type crunchyrollEpisode struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Images      struct {
		Thumbnail string `json:"thumbnail"`
	} `json:"images"`
	Metadata struct {
		SeriesID          string    `json:"series_id"`
		SeriesTitle       string    `json:"series_title"`
		SeriesDescription string    `json:"series_description"`
		SeriesPosterTall  string    `json:"series_poster_tall"`
		SeriesPosterWide  string    `json:"series_poster_wide"`
		SeasonID          string    `json:"season_id"`
		SeasonNumber      int       `json:"season_number"`
		Episode           string    `json:"episode"`
		SequenceNumber    float64   `json:"sequence_number"`
		DurationMS        int64     `json:"duration_ms"`
		AudioLocale       string    `json:"audio_locale"`
		AvailableDate     time.Time `json:"premium_available_date"`
		IsClip            bool      `json:"is_clip"`
		IsMature          bool      `json:"is_mature"`
	} `json:"episode_metadata"`
}

func (c *crunchyroll) Platform() models.Platform { return models.PlatformCrunchyroll }

func (c *crunchyroll) Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error) {
	var feed crunchyrollFeed
	query := url.Values{"country": {countryCode}, "date": {dayQuery(asOf)}}
	if err := c.client.GetJSON(ctx, "/content/v2/episodes", query, &feed); err != nil {
		return nil, fmt.Errorf("crunchyroll: %w", err)
	}
	locale := strings.ToLower(countryCode)
	return collect(c.logger, countryCode, asOf, feed.Data, func(item json.RawMessage) ([]models.RawEpisode, error) {
		var e crunchyrollEpisode
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, err
		}
		return c.convert(e, locale)
	}), nil
}

func (c *crunchyroll) convert(e crunchyrollEpisode, locale string) ([]models.RawEpisode, error) {
	if e.Type != "episode" {
		return nil, notEligible("crunchyroll item %s has type %q", e.ID, e.Type)
	}
	m := e.Metadata
	episodeType := models.EpisodeTypeEpisode
	number := strings.TrimSpace(m.Episode)
	if number == "" {
		episodeType = models.EpisodeTypeSpecial
		number = formatNumber(m.SequenceNumber)
	}
	return []models.RawEpisode{{
		Platform:         models.PlatformCrunchyroll,
		PlatformID:       e.ID,
		SeriesID:         m.SeriesID,
		SeasonID:         m.SeasonID,
		AnimeName:        m.SeriesTitle,
		AnimeImage:       m.SeriesPosterTall,
		AnimeBanner:      m.SeriesPosterWide,
		AnimeDescription: m.SeriesDescription,
		ReleaseDateTime:  m.AvailableDate,
		EpisodeType:      episodeType,
		RawSeason:        fmt.Sprintf("%d", m.SeasonNumber),
		RawNumber:        number,
		Duration:         m.DurationMS / 1000,
		Title:            e.Title,
		Description:      e.Description,
		Image:            e.Images.Thumbnail,
		AudioLocale:      m.AudioLocale,
		URL:              fmt.Sprintf("https://www.crunchyroll.com/%s/watch/%s", locale, e.ID),
		Trailer:          m.IsClip,
	}}, nil
}
