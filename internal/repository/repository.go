// Package repository persists users, songs, playlists and favorites.
// Two implementations exist: Gorm (postgres in production, sqlite in tests)
// and Mongo. Both report missing records as errs.ErrNotFound and unique
// violations as errs.ErrConflict.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsers(ctx context.Context) (int64, error)
}

type SongStore interface {
	CreateSong(ctx context.Context, song *models.Song) error
	GetSong(ctx context.Context, id uuid.UUID) (*models.Song, error)
	// GetSongsByIDs returns the songs in the order of ids, skipping ids
	// that no longer resolve.
	GetSongsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Song, error)
	ListSongs(ctx context.Context, filter models.SongFilter) ([]models.Song, int64, error)
	TopSongs(ctx context.Context, limit int) ([]models.Song, error)
	UpdateSong(ctx context.Context, id uuid.UUID, patch models.SongPatch) (*models.Song, error)
	// DeleteSong removes the song and every playlist membership and
	// favorite that points at it.
	DeleteSong(ctx context.Context, id uuid.UUID) error
	// IncrementPlays atomically adds one play and returns the new total.
	IncrementPlays(ctx context.Context, id uuid.UUID) (int64, error)
	CountSongs(ctx context.Context) (int64, error)
}

type PlaylistStore interface {
	CreatePlaylist(ctx context.Context, playlist *models.Playlist) error
	GetPlaylist(ctx context.Context, id uuid.UUID) (*models.Playlist, error)
	ListPlaylistsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playlist, error)
	UpdatePlaylist(ctx context.Context, id uuid.UUID, patch models.PlaylistPatch) (*models.Playlist, error)
	DeletePlaylist(ctx context.Context, id uuid.UUID) error
	// AddPlaylistSong appends songID unless it is already a member.
	AddPlaylistSong(ctx context.Context, playlistID, songID uuid.UUID) error
	RemovePlaylistSong(ctx context.Context, playlistID, songID uuid.UUID) error
	CountPlaylists(ctx context.Context) (int64, error)
}

type FavoriteStore interface {
	AddFavorite(ctx context.Context, userID, songID uuid.UUID) error
	RemoveFavorite(ctx context.Context, userID, songID uuid.UUID) error
	ListFavoriteIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Repository is the full persistence surface handed to the services.
type Repository interface {
	UserStore
	SongStore
	PlaylistStore
	FavoriteStore
	Close() error
}

// orderByIDs arranges songs to follow ids, dropping ids without a match.
func orderByIDs(ids []uuid.UUID, songs []models.Song) []models.Song {
	byID := make(map[uuid.UUID]models.Song, len(songs))
	for _, s := range songs {
		byID[s.ID] = s
	}
	ordered := make([]models.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

var (
	_ Repository = (*Gorm)(nil)
	_ Repository = (*Mongo)(nil)
)
