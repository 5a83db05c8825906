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

// adnLocales maps ADN language codes to audio locales.
var adnLocales = map[string]string{
	"vostf":  "ja-JP",
	"vostde": "ja-JP",
	"vf":     "fr-FR",
	"vde":    "de-DE",
}

var adnTypes = map[string]models.EpisodeType{
	"EPS":  models.EpisodeTypeEpisode,
	"OAV":  models.EpisodeTypeSpecial,
	"SPE":  models.EpisodeTypeSpecial,
	"FILM": models.EpisodeTypeFilm,
}

type adn struct {
	client *FeedClient
	logger interfaces.Logger
}

func newADN(client *FeedClient, logger interfaces.Logger) *adn {
	return &adn{client: client, logger: logger.WithFields(interfaces.String("platform", "adn"))}
}

type adnCalendar struct {
	Videos []json.RawMessage `json:"videos"`
}

type adnVideo struct {
	ID          int64     `json:"id"`
	Type        string    `json:"type"`
	Name        string    `json:"name"`
	Summary     string    `json:"summary"`
	ShortNumber string    `json:"shortNumber"`
	Season      string    `json:"season"`
	ReleaseDate time.Time `json:"releaseDate"`
	Duration    int64     `json:"duration"`
	Image       string    `json:"image"`
	URL         string    `json:"url"`
	Languages   []string  `json:"languages"`
	Uncensored  bool      `json:"uncensored"`
	Show        adnShow   `json:"show"`
}

type adnShow struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Image     string `json:"image2x"`
	Banner    string `json:"imageHorizontal2x"`
	Simulcast bool   `json:"simulcast"`
}

func (a *adn) Platform() models.Platform { return models.PlatformADN }

func (a *adn) Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error) {
	if err := checkCountry(models.PlatformADN, countryCode, "FR", "DE"); err != nil {
		return nil, err
	}
	var calendar adnCalendar
	query := url.Values{"date": {dayQuery(asOf)}}
	path := "/api/v1/video/calendar"
	if err := a.client.GetJSON(ctx, path, query, &calendar); err != nil {
		return nil, fmt.Errorf("adn: %w", err)
	}
	return collect(a.logger, countryCode, asOf, calendar.Videos, func(item json.RawMessage) ([]models.RawEpisode, error) {
		var v adnVideo
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, err
		}
		return a.convert(v)
	}), nil
}

func (a *adn) convert(v adnVideo) ([]models.RawEpisode, error) {
	if !v.Show.Simulcast {
		return nil, notEligible("adn show %d is not a simulcast", v.Show.ID)
	}
	episodeType, ok := adnTypes[strings.ToUpper(v.Type)]
	if !ok {
		return nil, notEligible("adn video %d has type %q", v.ID, v.Type)
	}

	season := strings.TrimSpace(v.Season)
	if season == "" {
		season = "1"
	}

	raws := make([]models.RawEpisode, 0, len(v.Languages))
	seen := make(map[string]bool, len(v.Languages))
	for _, language := range v.Languages {
		locale, ok := adnLocales[strings.ToLower(language)]
		if !ok || seen[locale] {
			continue
		}
		seen[locale] = true
		raws = append(raws, models.RawEpisode{
			Platform:         models.PlatformADN,
			PlatformID:       fmt.Sprintf("%d", v.ID),
			SeriesID:         fmt.Sprintf("%d", v.Show.ID),
			AnimeName:        v.Show.Title,
			AnimeImage:       v.Show.Image,
			AnimeBanner:      v.Show.Banner,
			AnimeDescription: v.Show.Summary,
			ReleaseDateTime:  v.ReleaseDate,
			EpisodeType:      episodeType,
			RawSeason:        season,
			RawNumber:        v.ShortNumber,
			Duration:         v.Duration,
			Title:            v.Name,
			Description:      v.Summary,
			Image:            v.Image,
			AudioLocale:      locale,
			Uncensored:       v.Uncensored,
			URL:              v.URL,
		})
	}
	if len(raws) == 0 {
		return nil, notEligible("adn video %d has no supported language", v.ID)
	}
	return raws, nil
}
