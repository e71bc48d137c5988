package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Playlist struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name"`
	Description   string    `gorm:"size:2000" json:"description"`
	CoverKey      string    `gorm:"size:512" json:"-"`
	CoverMimeType string    `gorm:"size:120" json:"-"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	IsPublic      bool      `gorm:"not null" json:"is_public"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// SongIDs is the ordered membership, loaded from playlist_songs.
	SongIDs []uuid.UUID `gorm:"-" json:"song_ids"`
}

func (p *Playlist) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *Playlist) Contains(songID uuid.UUID) bool {
	for _, id := range p.SongIDs {
		if id == songID {
			return true
		}
	}
	return false
}

// PlaylistSong is one membership row. The autoincrement ID gives the
// insertion order; the unique index keeps a song from appearing twice.
type PlaylistSong struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	PlaylistID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_playlist_song"`
	SongID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_playlist_song;index"`
	CreatedAt  time.Time
}

// Favorite is one entry of a user's favorites set.
type Favorite struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	SongID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time
}

type PlaylistPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

func (p PlaylistPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsPublic == nil
}

func (p PlaylistPatch) Columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Name != nil {
		updates["name"] = *p.Name
	}
	if p.Description != nil {
		updates["description"] = *p.Description
	}
	if p.IsPublic != nil {
		updates["is_public"] = *p.IsPublic
	}
	return updates
}
