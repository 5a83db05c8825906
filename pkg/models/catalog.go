package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Anime is the canonical title record for one country.
type Anime struct {
	ID                  uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	CountryCode         string    `json:"country_code" gorm:"type:varchar(8);not null;uniqueIndex:idx_animes_country_slug"`
	Slug                string    `json:"slug" gorm:"type:varchar(255);not null;uniqueIndex:idx_animes_country_slug"`
	Name                string    `json:"name" gorm:"type:varchar(255);not null;index"`
	Description         string    `json:"description,omitempty" gorm:"type:text"`
	Image               string    `json:"image"`
	Banner              string    `json:"banner"`
	ReleaseDateTime     time.Time `json:"release_date_time" gorm:"not null"`
	LastReleaseDateTime time.Time `json:"last_release_date_time" gorm:"not null"`
	LastUpdateDateTime  time.Time `json:"last_update_date_time" gorm:"not null;index"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (Anime) TableName() string { return "animes" }

func (a *Anime) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// EpisodeMapping is a canonical (anime, season, type, number) slot.
// ReleaseDateTime and LastReleaseDateTime are the min and max of its variants.
type EpisodeMapping struct {
	ID                  uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	AnimeID             uuid.UUID   `json:"anime_id" gorm:"type:uuid;not null;uniqueIndex:idx_mappings_slot"`
	Season              int         `json:"season" gorm:"not null;uniqueIndex:idx_mappings_slot"`
	EpisodeType         EpisodeType `json:"episode_type" gorm:"type:varchar(16);not null;uniqueIndex:idx_mappings_slot"`
	Number              int         `json:"number" gorm:"not null;uniqueIndex:idx_mappings_slot"`
	ReleaseDateTime     time.Time   `json:"release_date_time" gorm:"not null;index"`
	LastReleaseDateTime time.Time   `json:"last_release_date_time" gorm:"not null"`
	LastUpdateDateTime  time.Time   `json:"last_update_date_time" gorm:"not null"`
	Title               string      `json:"title,omitempty"`
	Description         string      `json:"description,omitempty" gorm:"type:text"`
	Image               string      `json:"image,omitempty"`
	Duration            int64       `json:"duration"`
	NeedsClassification bool        `json:"-" gorm:"not null;default:false;index"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (EpisodeMapping) TableName() string { return "episode_mappings" }

func (m *EpisodeMapping) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Slot returns the unique key of the mapping within its anime.
func (m *EpisodeMapping) Slot() Slot {
	return Slot{Season: m.Season, EpisodeType: m.EpisodeType, Number: m.Number}
}

// Slot is the (season, type, number) part of a mapping identity.
type Slot struct {
	Season      int
	EpisodeType EpisodeType
	Number      int
}

func (s Slot) String() string {
	return fmt.Sprintf("S%d %s %d", s.Season, s.EpisodeType, s.Number)
}

// EpisodeVariant is one platform, language and censorship specific release of a mapping.
type EpisodeVariant struct {
	ID              uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MappingID       uuid.UUID `json:"mapping_id" gorm:"type:uuid;not null;index"`
	Identifier      string    `json:"identifier" gorm:"type:varchar(255);not null;uniqueIndex"`
	Platform        Platform  `json:"platform" gorm:"type:varchar(8);not null"`
	AudioLocale     string    `json:"audio_locale" gorm:"type:varchar(16);not null"`
	ReleaseDateTime time.Time `json:"release_date_time" gorm:"not null;index"`
	URL             string    `json:"url"`
	Uncensored      bool      `json:"uncensored" gorm:"not null;default:false"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (EpisodeVariant) TableName() string { return "episode_variants" }

func (v *EpisodeVariant) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// Rule is an admin override applied to raw records of one platform series and season.
type Rule struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Platform          Platform   `json:"platform" gorm:"type:varchar(8);not null;uniqueIndex:idx_rules_key"`
	SeriesID          string     `json:"series_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_rules_key"`
	SeasonID          string     `json:"season_id" gorm:"type:varchar(255);not null;uniqueIndex:idx_rules_key"`
	Action            RuleAction `json:"action" gorm:"type:varchar(32);not null;uniqueIndex:idx_rules_key"`
	ActionValue       string     `json:"action_value"`
	LastUsageDateTime *time.Time `json:"last_usage_date_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Rule) TableName() string { return "rules" }

func (r *Rule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Simulcast is a (season, year) classification bucket.
type Simulcast struct {
	ID     uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Season SeasonName `json:"season" gorm:"type:varchar(8);not null;uniqueIndex:idx_simulcasts_bucket"`
	Year   int        `json:"year" gorm:"not null;uniqueIndex:idx_simulcasts_bucket"`
}

func (Simulcast) TableName() string { return "simulcasts" }

func (s *Simulcast) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Ordinal is a monotonically increasing position of the bucket in time.
func (s Simulcast) Ordinal() int {
	return s.Year*4 + s.Season.Index()
}

// Before reports whether s is a strictly older bucket than other.
func (s Simulcast) Before(other Simulcast) bool {
	return s.Ordinal() < other.Ordinal()
}

func (s Simulcast) String() string {
	return fmt.Sprintf("%s %d", s.Season, s.Year)
}

// AnimeSimulcast associates an anime with a simulcast bucket.
type AnimeSimulcast struct {
	AnimeID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	SimulcastID uuid.UUID `gorm:"type:uuid;primaryKey;index"`
}

func (AnimeSimulcast) TableName() string { return "anime_simulcasts" }
