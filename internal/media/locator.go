// Package media resolves song and playlist ids to stored bytes and serves
// them over HTTP with single byte-range support.
package media

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/storage"
)

type Kind string

const (
	KindAudio         Kind = "audio"
	KindCover         Kind = "cover"
	KindPlaylistCover Kind = "playlist-cover"
)

type SongFinder interface {
	GetSong(ctx context.Context, id uuid.UUID) (*models.Song, error)
}

type PlaylistFinder interface {
	GetPlaylist(ctx context.Context, id uuid.UUID) (*models.Playlist, error)
}

// Resource is a located, stat'ed object ready to be served.
type Resource struct {
	Key         string
	Size        int64
	ContentType string

	store storage.Store
}

// Open returns a reader over length bytes from offset. The caller closes it.
func (r *Resource) Open(ctx context.Context, offset, length int64) (io.ReadCloser, error) {
	return r.store.Open(ctx, r.Key, offset, length)
}

type Locator struct {
	songs     SongFinder
	playlists PlaylistFinder
	store     storage.Store
}

func NewLocator(songs SongFinder, playlists PlaylistFinder, store storage.Store) *Locator {
	return &Locator{songs: songs, playlists: playlists, store: store}
}

// Locate finds the bytes of kind for id. An id that does not resolve, a
// record without bytes of that kind, and a key missing from the store all
// come back as errs.ErrNotFound.
func (l *Locator) Locate(ctx context.Context, kind Kind, id uuid.UUID) (*Resource, error) {
	var key, contentType string

	switch kind {
	case KindAudio, KindCover:
		song, err := l.songs.GetSong(ctx, id)
		if err != nil {
			return nil, err
		}
		if kind == KindAudio {
			key, contentType = song.AudioKey, song.AudioMimeType
			if contentType == "" {
				contentType = AudioMimeType(key)
			}
		} else {
			key, contentType = song.CoverKey, song.CoverMimeType
			if contentType == "" {
				contentType = ImageMimeType(key)
			}
		}
	case KindPlaylistCover:
		playlist, err := l.playlists.GetPlaylist(ctx, id)
		if err != nil {
			return nil, err
		}
		key, contentType = playlist.CoverKey, playlist.CoverMimeType
		if contentType == "" {
			contentType = ImageMimeType(key)
		}
	default:
		return nil, fmt.Errorf("media kind %q: %w", kind, errs.ErrInvalidInput)
	}

	if key == "" {
		return nil, fmt.Errorf("%s for %s: %w", kind, id, errs.ErrNotFound)
	}

	size, err := l.store.Stat(ctx, key)
	if err != nil {
		return nil, err
	}
	return &Resource{Key: key, Size: size, ContentType: contentType, store: l.store}, nil
}
