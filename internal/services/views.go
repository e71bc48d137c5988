package services

import (
	"fmt"

	"github.com/soundvault/backend/internal/models"
)

// SongView is a song as clients see it, with links to its bytes.
type SongView struct {
	models.Song
	AudioURL string `json:"audio_url,omitempty"`
	CoverURL string `json:"cover_url,omitempty"`
}

func NewSongView(s models.Song) SongView {
	v := SongView{Song: s}
	if s.HasLocalAudio() {
		v.AudioURL = fmt.Sprintf("/media/%s", s.ID)
	} else {
		v.AudioURL = s.StreamURL
	}
	if s.CoverKey != "" {
		v.CoverURL = fmt.Sprintf("/api/v1/songs/%s/cover", s.ID)
	}
	return v
}

func NewSongViews(songs []models.Song) []SongView {
	views := make([]SongView, len(songs))
	for i, s := range songs {
		views[i] = NewSongView(s)
	}
	return views
}

// PlaylistView is a playlist with its songs resolved in playlist order.
// Songs that no longer exist are left out.
type PlaylistView struct {
	models.Playlist
	CoverURL string     `json:"cover_url,omitempty"`
	Songs    []SongView `json:"songs"`
}

// SongPage is one page of the catalogue.
type SongPage struct {
	Songs       []SongView `json:"songs"`
	Total       int64      `json:"total"`
	TotalPages  int        `json:"totalPages"`
	CurrentPage int        `json:"currentPage"`
}
