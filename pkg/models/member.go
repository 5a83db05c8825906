package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AnimeFollow records that a member follows an anime.
type AnimeFollow struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MemberID  uuid.UUID `json:"member_id" gorm:"type:uuid;not null;uniqueIndex:idx_anime_follows_member"`
	AnimeID   uuid.UUID `json:"anime_id" gorm:"type:uuid;not null;uniqueIndex:idx_anime_follows_member;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (AnimeFollow) TableName() string { return "anime_follows" }

func (f *AnimeFollow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// EpisodeFollow records that a member marked a mapping as watched or followed.
type EpisodeFollow struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	MemberID  uuid.UUID `json:"member_id" gorm:"type:uuid;not null;uniqueIndex:idx_episode_follows_member"`
	MappingID uuid.UUID `json:"mapping_id" gorm:"type:uuid;not null;uniqueIndex:idx_episode_follows_member;index"`
	CreatedAt time.Time `json:"created_at"`
}

func (EpisodeFollow) TableName() string { return "episode_follows" }

func (f *EpisodeFollow) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
