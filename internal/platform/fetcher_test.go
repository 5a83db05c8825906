package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/narwhalmedia/simulcast/pkg/config"
	apperrors "github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/logger"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

var asOf = time.Date(2025, time.January, 10, 18, 0, 0, 0, time.UTC)

func newFeed(t *testing.T, path, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "2025-01-10", firstNonEmpty(r.URL.Query().Get("date"), r.URL.Query().Get("releasedOn")))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func newTestFetcher(t *testing.T, platform models.Platform, server *httptest.Server) Fetcher {
	t.Helper()
	client := NewFeedClient(platform, config.PlatformConfig{BaseURL: server.URL}, RetryPolicy{Attempts: 1}, logger.NewNoop())
	fetcher, err := NewFetcher(platform, client, logger.NewNoop())
	require.NoError(t, err)
	return fetcher
}

const crunchyrollBody = `{"data":[
 {"id":"G4VUQ1ZKW","type":"episode","title":"That's How Love Starts, Ya Know!","description":"Momo meets Okarun.",
  "images":{"thumbnail":"https://img.test/ep1.jpg"},
  "episode_metadata":{"series_id":"GG5H5XQ0D","series_title":"DAN DA DAN","series_poster_tall":"https://img.test/poster.jpg",
   "season_id":"GRMG8ZQZR","season_number":1,"episode":"1","sequence_number":1,"duration_ms":1420000,
   "audio_locale":"ja-JP","premium_available_date":"2025-01-10T16:00:00Z"}},
 {"id":"CLIP00001","type":"episode","title":"PV","episode_metadata":{"series_id":"GG5H5XQ0D","series_title":"DAN DA DAN",
   "season_number":1,"episode":"","sequence_number":0,"duration_ms":90000,"audio_locale":"ja-JP",
   "premium_available_date":"2025-01-10T12:00:00Z","is_clip":true}},
 {"id":"MUSIC0001","type":"music_video","title":"OP"},
 {"id":"G4VUQ1ZK2","type":"episode","title":"Next week","episode_metadata":{"series_id":"GG5H5XQ0D","series_title":"DAN DA DAN",
   "season_number":1,"episode":"2","sequence_number":2,"duration_ms":1420000,"audio_locale":"ja-JP",
   "premium_available_date":"2025-01-17T16:00:00Z"}},
 {"id":"G4VUQ1ZK3","type":"episode","title":"Recap","episode_metadata":{"series_id":"GG5H5XQ0D","series_title":"DAN DA DAN",
   "season_number":1,"episode":"","sequence_number":6.5,"duration_ms":1420000,"audio_locale":"ja-JP",
   "premium_available_date":"2025-01-10T16:00:00Z"}}
]}`

func TestCrunchyroll_Fetch(t *testing.T) {
	// Arrange
	fetcher := newTestFetcher(t, models.PlatformCrunchyroll, newFeed(t, "/content/v2/episodes", crunchyrollBody))

	// Act
	raws, err := fetcher.Fetch(context.Background(), "fr", asOf)

	// Assert
	require.NoError(t, err)
	require.Len(t, raws, 3)

	episode := raws[0]
	assert.Equal(t, "FR", episode.CountryCode)
	assert.Equal(t, models.PlatformCrunchyroll, episode.Platform)
	assert.Equal(t, "G4VUQ1ZKW", episode.PlatformID)
	assert.Equal(t, "GG5H5XQ0D", episode.SeriesID)
	assert.Equal(t, "GRMG8ZQZR", episode.SeasonID)
	assert.Equal(t, "DAN DA DAN", episode.AnimeName)
	assert.Equal(t, "1", episode.RawSeason)
	assert.Equal(t, "1", episode.RawNumber)
	assert.Equal(t, int64(1420), episode.Duration)
	assert.Equal(t, models.EpisodeTypeEpisode, episode.EpisodeType)
	assert.Equal(t, "https://www.crunchyroll.com/fr/watch/G4VUQ1ZKW", episode.URL)
	assert.True(t, episode.ReleaseDateTime.Equal(time.Date(2025, time.January, 10, 16, 0, 0, 0, time.UTC)))
	assert.Contains(t, string(episode.Original), `"G4VUQ1ZKW"`)

	assert.True(t, raws[1].Trailer)

	recap := raws[2]
	assert.Equal(t, models.EpisodeTypeSpecial, recap.EpisodeType)
	assert.Equal(t, "6.5", recap.RawNumber)
}

const adnBody = `{"videos":[
 {"id":26120,"type":"EPS","name":"Episode 3","shortNumber":"3","season":"","releaseDate":"2025-01-10T17:00:00Z",
  "duration":1440,"url":"https://animationdigitalnetwork.com/video/26120","languages":["vostf","vf","vostf"],
  "show":{"id":1190,"title":"Frieren","simulcast":true}},
 {"id":26121,"type":"EPS","name":"Episode 1","shortNumber":"1","releaseDate":"2025-01-10T17:00:00Z",
  "duration":1440,"languages":["vostf"],"show":{"id":500,"title":"Old Show","simulcast":false}},
 {"id":26122,"type":"BA","name":"Bande-annonce","releaseDate":"2025-01-10T10:00:00Z",
  "languages":["vostf"],"show":{"id":1190,"title":"Frieren","simulcast":true}}
]}`

func TestADN_Fetch(t *testing.T) {
	// Arrange
	fetcher := newTestFetcher(t, models.PlatformADN, newFeed(t, "/api/v1/video/calendar", adnBody))

	// Act
	raws, err := fetcher.Fetch(context.Background(), "FR", asOf)

	// Assert
	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "ja-JP", raws[0].AudioLocale)
	assert.Equal(t, "fr-FR", raws[1].AudioLocale)
	for _, raw := range raws {
		assert.Equal(t, "26120", raw.PlatformID)
		assert.Equal(t, "1190", raw.SeriesID)
		assert.Equal(t, "1", raw.RawSeason)
		assert.Equal(t, "3", raw.RawNumber)
	}
}

func TestADN_Fetch_UnsupportedCountry(t *testing.T) {
	fetcher := newTestFetcher(t, models.PlatformADN, newFeed(t, "/api/v1/video/calendar", adnBody))

	_, err := fetcher.Fetch(context.Background(), "US", asOf)

	require.Error(t, err)
	assert.True(t, apperrors.IsSkip(err))
}

func TestNetflix_Fetch_SkipsCatalogDrops(t *testing.T) {
	body := `{"items":[
	 {"kind":"episode","showId":"81564899","showTitle":"Sakamoto Days","seasonId":"s1","seasonNumber":1,
	  "episodeId":"82000001","episodeNumber":2,"runtime":1420,"availableFrom":"2025-01-10T15:00:00Z",
	  "audioLocales":["ja-JP","fr-FR"],"simulcast":true},
	 {"kind":"episode","showId":"70000000","showTitle":"Binge Show","seasonNumber":1,"episodeId":"70000001",
	  "episodeNumber":1,"runtime":1420,"availableFrom":"2025-01-10T08:00:00Z","audioLocales":["ja-JP"],"simulcast":false}
	]}`
	fetcher := newTestFetcher(t, models.PlatformNetflix, newFeed(t, "/v1/new-releases", body))

	raws, err := fetcher.Fetch(context.Background(), "FR", asOf)

	require.NoError(t, err)
	require.Len(t, raws, 2)
	assert.Equal(t, "https://www.netflix.com/watch/82000001", raws[0].URL)
	assert.Equal(t, "2", raws[1].RawNumber)
}

func TestDisneyPlus_Fetch(t *testing.T) {
	body := `{"episodes":[
	 {"contentId":"c1","programType":"episode","encodedSeriesId":"s1","seriesTitle":"Tokyo Revengers","seasonId":"se3",
	  "seasonSequenceNumber":3,"episodeSequenceNumber":4,"runtimeMillis":1380000,"releaseDate":"2025-01-10T14:00:00Z",
	  "audioTracks":["ja-JP"]},
	 {"contentId":"c2","programType":"extra","encodedSeriesId":"s1","seriesTitle":"Tokyo Revengers",
	  "releaseDate":"2025-01-10T14:00:00Z","audioTracks":["ja-JP"]}
	]}`
	fetcher := newTestFetcher(t, models.PlatformDisneyPlus, newFeed(t, "/explore/v1/anime/episodes", body))

	raws, err := fetcher.Fetch(context.Background(), "FR", asOf)

	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "3", raws[0].RawSeason)
	assert.Equal(t, "4", raws[0].RawNumber)
	assert.Equal(t, int64(1380), raws[0].Duration)
}

func TestPrimeVideo_Fetch(t *testing.T) {
	body := `{"titles":[
	 {"asin":"B0D1","type":"EPISODE","seriesAsin":"B0S1","seriesName":"Blue Lock","seasonAsin":"B0SE2","seasonNumber":"2",
	  "episodeNumber":"14","runtimeSeconds":1420,"releaseTime":"2025-01-10T17:30:00Z","audioLanguages":["ja_JP"]},
	 {"asin":"B0T1","type":"TRAILER","seriesAsin":"B0S1","seriesName":"Blue Lock","releaseTime":"2025-01-10T09:00:00Z",
	  "audioLanguages":["ja_JP"]}
	]}`
	fetcher := newTestFetcher(t, models.PlatformPrimeVideo, newFeed(t, "/catalog/anime/releases", body))

	raws, err := fetcher.Fetch(context.Background(), "FR", asOf)

	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "ja-JP", raws[0].AudioLocale)
	assert.Equal(t, "https://www.primevideo.com/region/fr/detail/B0D1", raws[0].URL)
}

func TestFetch_UpstreamFailureIsWrapped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	fetcher := newTestFetcher(t, models.PlatformNetflix, server)

	_, err := fetcher.Fetch(context.Background(), "FR", asOf)

	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Contains(t, err.Error(), "netflix")
}

func TestNewFetcher_UnknownPlatform(t *testing.T) {
	_, err := NewFetcher(models.Platform("HIDI"), nil, logger.NewNoop())

	assert.True(t, apperrors.IsConfiguration(err))
}

func TestRegistry(t *testing.T) {
	// Arrange
	platforms := map[string]config.PlatformConfig{
		"crunchyroll": {Enabled: true, BaseURL: "https://feeds.test/crunchyroll"},
		"adn":         {Enabled: true, BaseURL: "https://feeds.test/adn"},
		"netflix":     {Enabled: false, BaseURL: "https://feeds.test/netflix"},
	}

	// Act
	registry, err := NewRegistry(platforms, DefaultRetryPolicy(), logger.NewNoop())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 2, registry.Len())
	fetchers := registry.Fetchers()
	require.Len(t, fetchers, 2)
	assert.Equal(t, models.PlatformADN, fetchers[0].Platform())
	assert.Equal(t, models.PlatformCrunchyroll, fetchers[1].Platform())

	_, err = registry.Get(models.PlatformNetflix)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRegistry_RequiresBaseURL(t *testing.T) {
	_, err := NewRegistry(map[string]config.PlatformConfig{"primevideo": {Enabled: true}}, DefaultRetryPolicy(), logger.NewNoop())

	assert.True(t, apperrors.IsConfiguration(err))
}
