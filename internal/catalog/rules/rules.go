// Package rules holds admin overrides applied to raw platform records before matching.
package rules

import (
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/narwhalmedia/simulcast/internal/catalog/normalize"
	apperrors "github.com/narwhalmedia/simulcast/pkg/errors"
	"github.com/narwhalmedia/simulcast/pkg/models"
)

type ruleKey struct {
	platform models.Platform
	seriesID string
	seasonID string
}

// Snapshot is an immutable, validated view of every rule, indexed by
// (platform, seriesId, seasonId). It is safe for concurrent use.
type Snapshot struct {
	byKey map[ruleKey][]models.Rule
	size  int
}

// NewSnapshot validates every rule payload and indexes the set. Matching rules are
// sorted by action priority so application order does not depend on storage order.
func NewSnapshot(rules []*models.Rule) (*Snapshot, error) {
	s := &Snapshot{byKey: make(map[ruleKey][]models.Rule)}
	for _, rule := range rules {
		if err := Validate(rule); err != nil {
			return nil, err
		}
		key := ruleKey{platform: rule.Platform, seriesID: rule.SeriesID, seasonID: rule.SeasonID}
		s.byKey[key] = append(s.byKey[key], *rule)
		s.size++
	}
	for key := range s.byKey {
		matched := s.byKey[key]
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Action.Priority() < matched[j].Action.Priority()
		})
	}
	return s, nil
}

// Empty returns a snapshot without rules.
func Empty() *Snapshot {
	return &Snapshot{byKey: map[ruleKey][]models.Rule{}}
}

// Len returns the number of rules in the snapshot.
func (s *Snapshot) Len() int {
	return s.size
}

// Applicable returns the rules for a platform series and season in priority order:
// anime name, then episode type, then season number, then number shift.
func (s *Snapshot) Applicable(platform models.Platform, seriesID, seasonID string) []models.Rule {
	if s == nil {
		return nil
	}
	matched := s.byKey[ruleKey{platform: platform, seriesID: seriesID, seasonID: seasonID}]
	out := make([]models.Rule, len(matched))
	copy(out, matched)
	return out
}

// Validate checks that the action is known and its payload is usable.
func Validate(rule *models.Rule) error {
	if !rule.Platform.Valid() {
		return apperrors.Configuration("rule %s: unknown platform %q", rule.ID, rule.Platform)
	}
	if strings.TrimSpace(rule.SeriesID) == "" {
		return apperrors.Configuration("rule %s: missing series id", rule.ID)
	}
	value := strings.TrimSpace(rule.ActionValue)
	switch rule.Action {
	case models.RuleReplaceAnimeName:
		if value == "" {
			return apperrors.Configuration("rule %s: %s requires a name", rule.ID, rule.Action)
		}
	case models.RuleReplaceEpisodeType:
		if _, err := models.ParseEpisodeType(value); err != nil {
			return apperrors.Configuration("rule %s: %s payload: %v", rule.ID, rule.Action, err)
		}
	case models.RuleReplaceSeasonNumber:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return apperrors.Configuration("rule %s: %s requires a positive season, got %q", rule.ID, rule.Action, rule.ActionValue)
		}
	case models.RuleAddToNumber:
		if _, err := strconv.Atoi(value); err != nil {
			return apperrors.Configuration("rule %s: %s requires an integer, got %q", rule.ID, rule.Action, rule.ActionValue)
		}
	default:
		return apperrors.Configuration("rule %s: unknown action %q", rule.ID, rule.Action)
	}
	return nil
}

// Normalized is a raw record after overrides: the values matching keys on.
type Normalized struct {
	AnimeName    string
	Season       int
	EpisodeType  models.EpisodeType
	Number       int
	AppliedRules []uuid.UUID
}

// Apply parses the raw season and number, then applies the rules in the order given.
// Parsing failures are skip-worthy; payloads are assumed validated by NewSnapshot.
func Apply(raw models.RawEpisode, rules []models.Rule) (Normalized, error) {
	season, err := normalize.ParseSeason(raw.RawSeason)
	if err != nil {
		return Normalized{}, apperrors.Skip("%s %s: %v", raw.Platform, raw.PlatformID, err)
	}
	number, err := normalize.ParseNumber(raw.RawNumber)
	if err != nil {
		return Normalized{}, apperrors.Skip("%s %s: %v", raw.Platform, raw.PlatformID, err)
	}
	episodeType := raw.EpisodeType
	if episodeType == "" {
		episodeType = models.EpisodeTypeEpisode
	}

	out := Normalized{
		AnimeName:   raw.AnimeName,
		Season:      season,
		EpisodeType: episodeType,
		Number:      number,
	}

	for _, rule := range rules {
		value := strings.TrimSpace(rule.ActionValue)
		switch rule.Action {
		case models.RuleReplaceAnimeName:
			out.AnimeName = value
		case models.RuleReplaceEpisodeType:
			parsed, err := models.ParseEpisodeType(value)
			if err != nil {
				return Normalized{}, apperrors.Configuration("rule %s: %v", rule.ID, err)
			}
			out.EpisodeType = parsed
		case models.RuleReplaceSeasonNumber:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Normalized{}, apperrors.Configuration("rule %s: invalid season %q", rule.ID, rule.ActionValue)
			}
			out.Season = n
		case models.RuleAddToNumber:
			n, err := strconv.Atoi(value)
			if err != nil {
				return Normalized{}, apperrors.Configuration("rule %s: invalid shift %q", rule.ID, rule.ActionValue)
			}
			out.Number += n
		default:
			return Normalized{}, apperrors.Configuration("rule %s: unknown action %q", rule.ID, rule.Action)
		}
		out.AppliedRules = append(out.AppliedRules, rule.ID)
	}

	if out.Number < 0 {
		return Normalized{}, apperrors.Skip("%s %s: shifted number %d is negative", raw.Platform, raw.PlatformID, out.Number)
	}
	return out, nil
}
