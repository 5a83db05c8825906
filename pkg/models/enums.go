package models

import (
	"fmt"
	"strings"
)

// Platform identifies a streaming service by its fixed four-letter code.
type Platform string

const (
	PlatformADN         Platform = "ANIM"
	PlatformCrunchyroll Platform = "CRUN"
	PlatformNetflix     Platform = "NETF"
	PlatformDisneyPlus  Platform = "DISN"
	PlatformPrimeVideo  Platform = "PRIM"
)

// Platforms lists every supported platform in a stable order.
var Platforms = []Platform{
	PlatformADN,
	PlatformCrunchyroll,
	PlatformNetflix,
	PlatformDisneyPlus,
	PlatformPrimeVideo,
}

var platformNames = map[Platform]string{
	PlatformADN:         "adn",
	PlatformCrunchyroll: "crunchyroll",
	PlatformNetflix:     "netflix",
	PlatformDisneyPlus:  "disneyplus",
	PlatformPrimeVideo:  "primevideo",
}

// Valid reports whether p is a known platform code.
func (p Platform) Valid() bool {
	_, ok := platformNames[p]
	return ok
}

// Name returns the lowercase configuration name of the platform.
func (p Platform) Name() string {
	return platformNames[p]
}

// ParsePlatform accepts either the platform code or its configuration name.
func ParsePlatform(s string) (Platform, error) {
	candidate := strings.TrimSpace(s)
	if p := Platform(strings.ToUpper(candidate)); p.Valid() {
		return p, nil
	}
	for p, name := range platformNames {
		if strings.EqualFold(name, candidate) {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// EpisodeType is the kind of release a mapping represents.
type EpisodeType string

const (
	EpisodeTypeEpisode EpisodeType = "EPISODE"
	EpisodeTypeSpecial EpisodeType = "SPECIAL"
	EpisodeTypeFilm    EpisodeType = "FILM"
	EpisodeTypeSummary EpisodeType = "SUMMARY"
)

// Valid reports whether t is a known episode type.
func (t EpisodeType) Valid() bool {
	switch t {
	case EpisodeTypeEpisode, EpisodeTypeSpecial, EpisodeTypeFilm, EpisodeTypeSummary:
		return true
	}
	return false
}

// ParseEpisodeType parses a case-insensitive episode type name.
func ParseEpisodeType(s string) (EpisodeType, error) {
	t := EpisodeType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown episode type %q", s)
	}
	return t, nil
}

// SeasonName is the quarter of a simulcast bucket.
type SeasonName string

const (
	SeasonWinter SeasonName = "WINTER"
	SeasonSpring SeasonName = "SPRING"
	SeasonSummer SeasonName = "SUMMER"
	SeasonAutumn SeasonName = "AUTUMN"
)

// Index orders seasons within a year, starting at 0 for WINTER.
func (s SeasonName) Index() int {
	switch s {
	case SeasonWinter:
		return 0
	case SeasonSpring:
		return 1
	case SeasonSummer:
		return 2
	case SeasonAutumn:
		return 3
	}
	return -1
}

// RuleAction is an override directive applied to raw platform records.
type RuleAction string

const (
	RuleReplaceAnimeName    RuleAction = "REPLACE_ANIME_NAME"
	RuleReplaceEpisodeType  RuleAction = "REPLACE_EPISODE_TYPE"
	RuleReplaceSeasonNumber RuleAction = "REPLACE_SEASON_NUMBER"
	RuleAddToNumber         RuleAction = "ADD_TO_NUMBER"
)

// Priority is the application order of the action; lower runs first.
func (a RuleAction) Priority() int {
	switch a {
	case RuleReplaceAnimeName:
		return 0
	case RuleReplaceEpisodeType:
		return 1
	case RuleReplaceSeasonNumber:
		return 2
	case RuleAddToNumber:
		return 3
	}
	return 99
}

// Valid reports whether a is a known action.
func (a RuleAction) Valid() bool {
	return a.Priority() != 99
}
