package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Song is a track's metadata. At least one of AudioKey (bytes we store) or
// StreamURL (bytes someone else serves) is required; both may be set.
type Song struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Artist        string    `gorm:"size:255;not null;index" json:"artist"`
	Album         string    `gorm:"size:255" json:"album"`
	Genre         string    `gorm:"size:64;index" json:"genre"`
	Duration      int       `json:"duration"` // seconds
	AudioKey      string    `gorm:"size:512" json:"-"`
	AudioMimeType string    `gorm:"size:120" json:"-"`
	CoverKey      string    `gorm:"size:512" json:"-"`
	CoverMimeType string    `gorm:"size:120" json:"-"`
	StreamURL     string    `gorm:"size:2048" json:"stream_url,omitempty"`
	IsOffline     bool      `json:"is_offline"`
	OwnerID       uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	Plays         int64     `gorm:"not null;default:0" json:"plays"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *Song) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Song) HasLocalAudio() bool {
	return s.AudioKey != ""
}

func (s *Song) HasPlayableSource() bool {
	return s.AudioKey != "" || s.StreamURL != ""
}

// SongPatch names the only fields an owner may change after upload.
// Nil means "leave as is".
type SongPatch struct {
	Title     *string `json:"title"`
	Artist    *string `json:"artist"`
	Album     *string `json:"album"`
	Genre     *string `json:"genre"`
	Duration  *int    `json:"duration"`
	StreamURL *string `json:"stream_url"`
	IsOffline *bool   `json:"is_offline"`
}

func (p SongPatch) Empty() bool {
	return p.Title == nil && p.Artist == nil && p.Album == nil && p.Genre == nil &&
		p.Duration == nil && p.StreamURL == nil && p.IsOffline == nil
}

// Columns returns the column updates for the fields that are set.
func (p SongPatch) Columns() map[string]interface{} {
	updates := map[string]interface{}{}
	if p.Title != nil {
		updates["title"] = *p.Title
	}
	if p.Artist != nil {
		updates["artist"] = *p.Artist
	}
	if p.Album != nil {
		updates["album"] = *p.Album
	}
	if p.Genre != nil {
		updates["genre"] = *p.Genre
	}
	if p.Duration != nil {
		updates["duration"] = *p.Duration
	}
	if p.StreamURL != nil {
		updates["stream_url"] = *p.StreamURL
	}
	if p.IsOffline != nil {
		updates["is_offline"] = *p.IsOffline
	}
	return updates
}

// Apply returns a copy of s with the patch applied.
func (p SongPatch) Apply(s Song) Song {
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Artist != nil {
		s.Artist = *p.Artist
	}
	if p.Album != nil {
		s.Album = *p.Album
	}
	if p.Genre != nil {
		s.Genre = *p.Genre
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.StreamURL != nil {
		s.StreamURL = *p.StreamURL
	}
	if p.IsOffline != nil {
		s.IsOffline = *p.IsOffline
	}
	return s
}

// SongFilter drives the catalogue listing. Page is 1-based.
type SongFilter struct {
	Page   int
	Limit  int
	Genre  string
	Artist string
	Search string
}

func (f SongFilter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.Limit
}
