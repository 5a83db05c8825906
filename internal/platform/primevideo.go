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

type primeVideo struct {
	client *FeedClient
	logger interfaces.Logger
}

func newPrimeVideo(client *FeedClient, logger interfaces.Logger) *primeVideo {
	return &primeVideo{client: client, logger: logger.WithFields(interfaces.String("platform", "primevideo"))}
}

type primeFeed struct {
	Titles []json.RawMessage `json:"titles"`
}

type primeTitle struct {
	ASIN           string    `json:"asin"`
	Type           string    `json:"type"`
	SeriesASIN     string    `json:"seriesAsin"`
	SeriesName     string    `json:"seriesName"`
	SeriesSynopsis string    `json:"seriesSynopsis"`
	SeriesImage    string    `json:"seriesImage"`
	SeriesHero     string    `json:"seriesHeroImage"`
	SeasonASIN     string    `json:"seasonAsin"`
	SeasonNumber   string    `json:"seasonNumber"`
	EpisodeNumber  string    `json:"episodeNumber"`
	Title          string    `json:"title"`
	Synopsis       string    `json:"synopsis"`
	ImageURL       string    `json:"imageUrl"`
	RuntimeSeconds int64     `json:"runtimeSeconds"`
	ReleaseTime    time.Time `json:"releaseTime"`
	AudioLanguages []string  `json:"audioLanguages"`
}

func (p *primeVideo) Platform() models.Platform { return models.PlatformPrimeVideo }

func (p *primeVideo) Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error) {
	var feed primeFeed
	query := url.Values{"marketplace": {countryCode}, "releasedOn": {dayQuery(asOf)}}
	if err := p.client.GetJSON(ctx, "/catalog/anime/releases", query, &feed); err != nil {
		return nil, fmt.Errorf("primevideo: %w", err)
	}
	return collect(p.logger, countryCode, asOf, feed.Titles, func(item json.RawMessage) ([]models.RawEpisode, error) {
		var t primeTitle
		if err := json.Unmarshal(item, &t); err != nil {
			return nil, err
		}
		return p.convert(t, countryCode)
	}), nil
}

func (p *primeVideo) convert(t primeTitle, countryCode string) ([]models.RawEpisode, error) {
	switch strings.ToUpper(t.Type) {
	case "EPISODE":
	case "TRAILER", "BONUS":
		return nil, notEligible("primevideo title %s is a %s", t.ASIN, strings.ToLower(t.Type))
	default:
		return nil, notEligible("primevideo title %s has type %q", t.ASIN, t.Type)
	}

	raws := make([]models.RawEpisode, 0, len(t.AudioLanguages))
	for _, locale := range t.AudioLanguages {
		raws = append(raws, models.RawEpisode{
			Platform:         models.PlatformPrimeVideo,
			PlatformID:       t.ASIN,
			SeriesID:         t.SeriesASIN,
			SeasonID:         t.SeasonASIN,
			AnimeName:        t.SeriesName,
			AnimeImage:       t.SeriesImage,
			AnimeBanner:      t.SeriesHero,
			AnimeDescription: t.SeriesSynopsis,
			ReleaseDateTime:  t.ReleaseTime,
			EpisodeType:      models.EpisodeTypeEpisode,
			RawSeason:        t.SeasonNumber,
			RawNumber:        t.EpisodeNumber,
			Duration:         t.RuntimeSeconds,
			Title:            t.Title,
			Description:      t.Synopsis,
			Image:            t.ImageURL,
			AudioLocale:      strings.ReplaceAll(locale, "_", "-"),
			URL:              fmt.Sprintf("https://www.primevideo.com/region/%s/detail/%s", strings.ToLower(countryCode), t.ASIN),
		})
	}
	return raws, nil
}
