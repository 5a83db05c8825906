package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

type disneyPlus struct {
	client *FeedClient
	logger interfaces.Logger
}

func newDisneyPlus(client *FeedClient, logger interfaces.Logger) *disneyPlus {
	return &disneyPlus{client: client, logger: logger.WithFields(interfaces.String("platform", "disneyplus"))}
}

type disneyFeed struct {
	Episodes []json.RawMessage `json:"episodes"`
}

type disneyEpisode struct {
	ContentID         string    `json:"contentId"`
	ProgramType       string    `json:"programType"`
	SeriesID          string    `json:"encodedSeriesId"`
	SeriesTitle       string    `json:"seriesTitle"`
	SeriesDescription string    `json:"seriesDescription"`
	SeriesTile        string    `json:"seriesTile"`
	SeriesBackground  string    `json:"seriesBackground"`
	SeasonID          string    `json:"seasonId"`
	SeasonSequence    int       `json:"seasonSequenceNumber"`
	EpisodeSequence   float64   `json:"episodeSequenceNumber"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Thumbnail         string    `json:"thumbnail"`
	RuntimeMillis     int64     `json:"runtimeMillis"`
	ReleaseDate       time.Time `json:"releaseDate"`
	AudioTracks       []string  `json:"audioTracks"`
}

func (d *disneyPlus) Platform() models.Platform { return models.PlatformDisneyPlus }

func (d *disneyPlus) Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error) {
	var feed disneyFeed
	query := url.Values{"region": {countryCode}, "date": {dayQuery(asOf)}}
	if err := d.client.GetJSON(ctx, "/explore/v1/anime/episodes", query, &feed); err != nil {
		return nil, fmt.Errorf("disneyplus: %w", err)
	}
	return collect(d.logger, countryCode, asOf, feed.Episodes, func(item json.RawMessage) ([]models.RawEpisode, error) {
		var e disneyEpisode
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, err
		}
		return d.convert(e)
	}), nil
}

func (d *disneyPlus) convert(e disneyEpisode) ([]models.RawEpisode, error) {
	if e.ProgramType != "episode" {
		return nil, notEligible("disneyplus item %s has program type %q", e.ContentID, e.ProgramType)
	}
	if len(e.AudioTracks) == 0 {
		return nil, notEligible("disneyplus item %s has no audio track", e.ContentID)
	}

	raws := make([]models.RawEpisode, 0, len(e.AudioTracks))
	for _, locale := range e.AudioTracks {
		raws = append(raws, models.RawEpisode{
			Platform:         models.PlatformDisneyPlus,
			PlatformID:       e.ContentID,
			SeriesID:         e.SeriesID,
			SeasonID:         e.SeasonID,
			AnimeName:        e.SeriesTitle,
			AnimeImage:       e.SeriesTile,
			AnimeBanner:      e.SeriesBackground,
			AnimeDescription: e.SeriesDescription,
			ReleaseDateTime:  e.ReleaseDate,
			EpisodeType:      models.EpisodeTypeEpisode,
			RawSeason:        fmt.Sprintf("%d", e.SeasonSequence),
			RawNumber:        formatNumber(e.EpisodeSequence),
			Duration:         e.RuntimeMillis / 1000,
			Title:            e.Title,
			Description:      e.Description,
			Image:            e.Thumbnail,
			AudioLocale:      locale,
			URL:              fmt.Sprintf("https://www.disneyplus.com/play/%s", e.ContentID),
		})
	}
	return raws, nil
}
