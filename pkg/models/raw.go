package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RawEpisode is a platform payload already decoded into a typed record, before
// rules and matching. RawSeason and RawNumber are kept as the platform sent them.
type RawEpisode struct {
	CountryCode      string          `json:"country_code"`
	Platform         Platform        `json:"platform"`
	PlatformID       string          `json:"platform_id"`
	SeriesID         string          `json:"series_id"`
	SeasonID         string          `json:"season_id"`
	AnimeName        string          `json:"anime_name"`
	AnimeImage       string          `json:"anime_image,omitempty"`
	AnimeBanner      string          `json:"anime_banner,omitempty"`
	AnimeDescription string          `json:"anime_description,omitempty"`
	ReleaseDateTime  time.Time       `json:"release_date_time"`
	EpisodeType      EpisodeType     `json:"episode_type"`
	RawSeason        string          `json:"raw_season"`
	RawNumber        string          `json:"raw_number"`
	Duration         int64           `json:"duration"`
	Title            string          `json:"title,omitempty"`
	Description      string          `json:"description,omitempty"`
	Image            string          `json:"image,omitempty"`
	AudioLocale      string          `json:"audio_locale"`
	Uncensored       bool            `json:"uncensored"`
	URL              string          `json:"url"`
	Trailer          bool            `json:"trailer,omitempty"`
	Original         json.RawMessage `json:"original,omitempty"`
}

// GroupedEpisode is a transient batch of mappings and variants announced as one
// release event. It is never persisted.
type GroupedEpisode struct {
	AnimeID             uuid.UUID   `json:"anime_id"`
	AnimeSlug           string      `json:"anime_slug"`
	AnimeName           string      `json:"anime_name"`
	CountryCode         string      `json:"country_code"`
	Season              int         `json:"season"`
	EpisodeType         EpisodeType `json:"episode_type"`
	MinNumber           int         `json:"min_number"`
	MaxNumber           int         `json:"max_number"`
	Platforms           []Platform  `json:"platforms"`
	AudioLocales        []string    `json:"audio_locales"`
	MappingIDs          []uuid.UUID `json:"mapping_ids"`
	VariantIDs          []uuid.UUID `json:"variant_ids"`
	ReleaseDateTime     time.Time   `json:"release_date_time"`
	LastReleaseDateTime time.Time   `json:"last_release_date_time"`
}

// ContainsVariant reports whether the group includes the variant id.
func (g *GroupedEpisode) ContainsVariant(id uuid.UUID) bool {
	for _, v := range g.VariantIDs {
		if v == id {
			return true
		}
	}
	return false
}
