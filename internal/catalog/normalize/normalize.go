// Package normalize derives canonical names, slugs and variant identifiers from
// raw platform records. Every function is pure.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/narwhalmedia/simulcast/pkg/models"
)

var (
	reWhitespace    = regexp.MustCompile(`\s+`)
	reSeasonMarker  = regexp.MustCompile(`(?i)\s*\b(saison|season|staffel|temporada)\s*\d+\b`)
	reBracketNumber = regexp.MustCompile(`\s*[\(\[]\s*\d+\s*[\)\]]`)
	reTrailingPart  = regexp.MustCompile(`\s+-\s+.*$`)
	reTrailingPunct = regexp.MustCompile(`[\s\-:,.;]+$`)
	reNonAlnum      = regexp.MustCompile(`[^a-z0-9]+`)
	reHyphens       = regexp.MustCompile(`-{2,}`)
)

// CollapseWhitespace trims s and folds every whitespace run into one space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))
}

// DisplayName cleans a raw title for display: season markers and bracketed
// numbers are removed, subtitles are kept.
func DisplayName(raw string) string {
	s := CollapseWhitespace(raw)
	s = reSeasonMarker.ReplaceAllString(s, "")
	s = reBracketNumber.ReplaceAllString(s, "")
	return strings.TrimSpace(reTrailingPunct.ReplaceAllString(CollapseWhitespace(s), ""))
}

// ShortName derives the canonical short name used for matching.
//
// The subtitle heuristic drops the clause after the first ':' or ',' only when that
// clause has at least two words. It can mis-truncate long single-clause titles; the
// result is only a matching key and admins fix misses with rename rules or merges.
func ShortName(raw string) string {
	s := CollapseWhitespace(raw)
	s = reSeasonMarker.ReplaceAllString(s, "")
	s = reBracketNumber.ReplaceAllString(s, "")
	s = reTrailingPart.ReplaceAllString(CollapseWhitespace(s), "")

	if idx := strings.IndexAny(s, ":,"); idx >= 0 {
		head := strings.TrimSpace(s[:idx])
		tail := strings.TrimSpace(s[idx+1:])
		if head != "" && len(strings.Fields(tail)) >= 2 {
			s = head
		}
	}

	s = CollapseWhitespace(s)
	return strings.TrimSpace(reTrailingPunct.ReplaceAllString(s, ""))
}

// Slug lowercases s, folds accents, and joins alphanumeric runs with single hyphens.
func Slug(s string) string {
	lowered := strings.ToLower(strings.TrimSpace(s))
	folding := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(folding, lowered); err == nil {
		lowered = folded
	}
	slug := reNonAlnum.ReplaceAllString(lowered, "-")
	slug = reHyphens.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Identifier builds the variant key {COUNTRY}-{PLATFORM}-{platformId}-{LOCALE}, with a
// -UNC suffix for uncensored releases. The same inputs always give the same token.
func Identifier(countryCode string, platform models.Platform, platformID, audioLocale string, uncensored bool) string {
	id := fmt.Sprintf("%s-%s-%s-%s",
		strings.ToUpper(strings.TrimSpace(countryCode)),
		platform,
		strings.TrimSpace(platformID),
		CanonicalLocale(audioLocale))
	if uncensored {
		id += "-UNC"
	}
	return id
}

// CanonicalLocale formats a BCP 47 tag as language-REGION, e.g. "ja-JP". Unparseable
// input is returned trimmed.
func CanonicalLocale(locale string) string {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return strings.TrimSpace(locale)
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.No {
		return base.String()
	}
	return base.String() + "-" + region.String()
}

// ValidateCountry checks an ISO 3166-1 alpha-2 country code.
func ValidateCountry(code string) error {
	if len(code) != 2 {
		return fmt.Errorf("invalid country code %q", code)
	}
	region, err := language.ParseRegion(code)
	if err != nil || !region.IsCountry() {
		return fmt.Errorf("invalid country code %q", code)
	}
	return nil
}

// ValidateLocale checks a BCP 47 audio locale.
func ValidateLocale(locale string) error {
	if strings.TrimSpace(locale) == "" {
		return fmt.Errorf("missing audio locale")
	}
	if _, err := language.Parse(locale); err != nil {
		return fmt.Errorf("invalid audio locale %q: %w", locale, err)
	}
	return nil
}

// ParseSeason parses a raw season string; an empty value means season 1.
func ParseSeason(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid season %q", raw)
	}
	return n, nil
}

// ParseNumber parses a raw episode number. Fractional recaps such as "12.5" are rejected.
func ParseNumber(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid episode number %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative episode number %q", raw)
	}
	return n, nil
}
