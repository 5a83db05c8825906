// Package platform adapts the five streaming platform feeds to the raw episode
// contract consumed by ingestion.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/interfaces"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

// Fetcher retrieves the raw episodes a platform made available in a country on the
// day of asOf. A whole fetch that cannot apply, such as an unsupported country, fails
// with an error wrapping errors.ErrNotEligible.
type Fetcher interface {
	Platform() models.Platform
	Fetch(ctx context.Context, countryCode string, asOf time.Time) ([]models.RawEpisode, error)
}

// NewFetcher returns the adapter for a platform.
func NewFetcher(platform models.Platform, client *FeedClient, logger interfaces.Logger) (Fetcher, error) {
	switch platform {
	case models.PlatformADN:
		return newADN(client, logger), nil
	case models.PlatformCrunchyroll:
		return newCrunchyroll(client, logger), nil
	case models.PlatformNetflix:
		return newNetflix(client, logger), nil
	case models.PlatformDisneyPlus:
		return newDisneyPlus(client, logger), nil
	case models.PlatformPrimeVideo:
		return newPrimeVideo(client, logger), nil
	default:
		return nil, errors.Configuration("no fetcher for platform %q", platform)
	}
}

// notEligible marks a feed item or fetch as outside the simulcast catalog.
func notEligible(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errors.ErrNotEligible, fmt.Sprintf(format, args...))
}

func checkCountry(platform models.Platform, countryCode string, supported ...string) error {
	for _, c := range supported {
		if strings.EqualFold(c, countryCode) {
			return nil
		}
	}
	return notEligible("%s is not available in %s", platform.Name(), countryCode)
}

// convertFunc turns one feed item into raw episodes, one per audio track.
type convertFunc func(item json.RawMessage) ([]models.RawEpisode, error)

// collect converts feed items, dropping the ineligible and undecodable ones. The
// original item is attached to every raw episode it produced.
func collect(logger interfaces.Logger, countryCode string, asOf time.Time, items []json.RawMessage, convert convertFunc) []models.RawEpisode {
	raws := make([]models.RawEpisode, 0, len(items))
	var ineligible, broken int
	for _, item := range items {
		episodes, err := convert(item)
		if err != nil {
			if errors.IsSkip(err) {
				ineligible++
				logger.Debug("Feed item not eligible", interfaces.Error(err))
			} else {
				broken++
				logger.Warn("Failed to decode feed item", interfaces.Error(err))
			}
			continue
		}
		for _, episode := range episodes {
			if episode.ReleaseDateTime.After(asOf) {
				ineligible++
				continue
			}
			episode.CountryCode = strings.ToUpper(countryCode)
			episode.ReleaseDateTime = episode.ReleaseDateTime.UTC()
			episode.Original = item
			raws = append(raws, episode)
		}
	}
	logger.Debug("Feed converted",
		interfaces.String("country", countryCode),
		interfaces.Int("items", len(items)),
		interfaces.Int("episodes", len(raws)),
		interfaces.Int("ineligible", ineligible),
		interfaces.Int("broken", broken))
	return raws
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func dayQuery(asOf time.Time) string {
	return asOf.UTC().Format("2006-01-02")
}
