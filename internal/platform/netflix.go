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

type netflix struct {
	client *FeedClient
	logger interfaces.Logger
}

func newNetflix(client *FeedClient, logger interfaces.Logger) *netflix {
	return &netflix{client: client, logger: logger.WithFields(interfaces.String("platform", "netflix"))}
}

type netflixFeed struct {
	Items []json.RawMessage `json:"items"`
}

type netflixItem struct {
	Kind            string    `json:"kind"`
	ShowID          string    `json:"showId"`
	ShowTitle       string    `json:"showTitle"`
	ShowDescription string    `json:"showDescription"`
	BoxArt          string    `json:"boxArt"`
	Banner          string    `json:"storyArt"`
	SeasonID        string    `json:"seasonId"`
	SeasonNumber    int       `json:"seasonNumber"`
	EpisodeID       string    `json:"episodeId"`
	EpisodeNumber   int       `json:"episodeNumber"`
	Title           string    `json:"title"`
	Synopsis        string    `json:"synopsis"`
	Still           string    `json:"still"`
	RuntimeSeconds  int64     `json:"runtime"`
	AvailableFrom   time.Time `json:"availableFrom"`
	AudioLocales    []string  `json:"audioLocales"`
	Simulcast       bool      `json:"simulcast"`
}

func (n *netflix) Platform() models.Platform { return models.PlatformNetflix }

func (n *netflix) Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error) {
	var feed netflixFeed
	query := url.Values{"country": {countryCode}, "date": {dayQuery(asOf)}, "genre": {"anime"}}
	if err := n.client.GetJSON(ctx, "/v1/new-releases", query, &feed); err != nil {
		return nil, fmt.Errorf("netflix: %w", err)
	}
	return collect(n.logger, countryCode, asOf, feed.Items, func(item json.RawMessage) ([]models.RawEpisode, error) {
		var i netflixItem
		if err := json.Unmarshal(item, &i); err != nil {
			return nil, err
		}
		return n.convert(i)
	}), nil
}

func (n *netflix) convert(i netflixItem) ([]models.RawEpisode, error) {
	if !i.Simulcast {
		return nil, notEligible("netflix show %s is a catalog drop", i.ShowID)
	}

	var episodeType models.EpisodeType
	switch i.Kind {
	case "episode":
		episodeType = models.EpisodeTypeEpisode
	case "movie":
		episodeType = models.EpisodeTypeFilm
	case "trailer":
		return nil, notEligible("netflix item %s is a trailer", i.EpisodeID)
	default:
		return nil, notEligible("netflix item %s has kind %q", i.EpisodeID, i.Kind)
	}

	season, number := i.SeasonNumber, i.EpisodeNumber
	if episodeType == models.EpisodeTypeFilm {
		season, number = 1, 1
	}

	raws := make([]models.RawEpisode, 0, len(i.AudioLocales))
	for _, locale := range i.AudioLocales {
		raws = append(raws, models.RawEpisode{
			Platform:         models.PlatformNetflix,
			PlatformID:       i.EpisodeID,
			SeriesID:         i.ShowID,
			SeasonID:         i.SeasonID,
			AnimeName:        i.ShowTitle,
			AnimeImage:       i.BoxArt,
			AnimeBanner:      i.Banner,
			AnimeDescription: i.ShowDescription,
			ReleaseDateTime:  i.AvailableFrom,
			EpisodeType:      episodeType,
			RawSeason:        fmt.Sprintf("%d", season),
			RawNumber:        fmt.Sprintf("%d", number),
			Duration:         i.RuntimeSeconds,
			Title:            i.Title,
			Description:      i.Synopsis,
			Image:            i.Still,
			AudioLocale:      locale,
			URL:              fmt.Sprintf("https://www.netflix.com/watch/%s", i.EpisodeID),
		})
	}
	return raws, nil
}
