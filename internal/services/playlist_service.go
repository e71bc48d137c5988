package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/access"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/logger"
	"github.com/soundvault/backend/internal/media"
	"github.com/soundvault/backend/internal/metrics"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/repository"
	"github.com/soundvault/backend/internal/storage"
	"github.com/soundvault/backend/pkg/validation"
)

type CreatePlaylistInput struct {
	Name        string
	Description string
	IsPublic    bool
	Cover       *Upload
}

type PlaylistService struct {
	playlists repository.PlaylistStore
	songs     repository.SongStore
	store     storage.Store
	maxUpload int64
}

func NewPlaylistService(playlists repository.PlaylistStore, songs repository.SongStore, store storage.Store, maxUpload int64) *PlaylistService {
	return &PlaylistService{playlists: playlists, songs: songs, store: store, maxUpload: maxUpload}
}

func playlistView(p models.Playlist, byID map[uuid.UUID]models.Song) PlaylistView {
	v := PlaylistView{Playlist: p, Songs: make([]SongView, 0, len(p.SongIDs))}
	if p.CoverKey != "" {
		v.CoverURL = fmt.Sprintf("/api/v1/playlists/%s/cover", p.ID)
	}
	for _, id := range p.SongIDs {
		if s, ok := byID[id]; ok {
			v.Songs = append(v.Songs, NewSongView(s))
		}
	}
	return v
}

// views resolves the songs of all playlists with a single lookup.
func (s *PlaylistService) views(ctx context.Context, playlists ...models.Playlist) ([]PlaylistView, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, p := range playlists {
		for _, id := range p.SongIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	songs, err := s.songs.GetSongsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]models.Song, len(songs))
	for _, song := range songs {
		byID[song.ID] = song
	}

	out := make([]PlaylistView, len(playlists))
	for i, p := range playlists {
		out[i] = playlistView(p, byID)
	}
	return out, nil
}

func (s *PlaylistService) view(ctx context.Context, p *models.Playlist) (*PlaylistView, error) {
	views, err := s.views(ctx, *p)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *PlaylistService) Create(ctx context.Context, identity uuid.UUID, in CreatePlaylistInput) (*PlaylistView, error) {
	if identity == uuid.Nil {
		return nil, fmt.Errorf("playlist: %w", errs.ErrUnauthenticated)
	}
	in.Name = validation.SanitizeString(in.Name)
	in.Description = validation.SanitizeString(in.Description)
	switch {
	case in.Name == "":
		return nil, invalid("name is required")
	case !validation.ValidateLength(in.Name, maxTextLength):
		return nil, invalid("name too long")
	case !validation.ValidateLength(in.Description, 2000):
		return nil, invalid("description too long")
	case in.Cover != nil && !media.IsImageUpload(in.Cover.ContentType, in.Cover.Filename):
		return nil, invalid("cover must be an image file")
	}

	playlist := &models.Playlist{
		Name:        in.Name,
		Description: in.Description,
		IsPublic:    in.IsPublic,
		OwnerID:     identity,
	}
	if in.Cover != nil {
		key, err := saveUpload(ctx, s.store, s.maxUpload, storage.KindPlaylistCover, in.Cover)
		if err != nil {
			return nil, err
		}
		playlist.CoverKey = key
		playlist.CoverMimeType = media.ImageMimeType(in.Cover.Filename)
		if strings.HasPrefix(in.Cover.ContentType, "image/") {
			playlist.CoverMimeType = in.Cover.ContentType
		}
	}

	if err := s.playlists.CreatePlaylist(ctx, playlist); err != nil {
		releaseBytes(ctx, s.store, playlist.CoverKey)
		return nil, err
	}
	metrics.RecordMutation("playlist.create", "ok")
	return s.view(ctx, playlist)
}

func (s *PlaylistService) ListMine(ctx context.Context, identity uuid.UUID) ([]PlaylistView, error) {
	if identity == uuid.Nil {
		return nil, fmt.Errorf("playlists: %w", errs.ErrUnauthenticated)
	}
	playlists, err := s.playlists.ListPlaylistsByOwner(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, playlists...)
}

// Get returns a public playlist to anyone and a private one only to its
// owner. Everyone else gets NotFound.
func (s *PlaylistService) Get(ctx context.Context, viewer, id uuid.UUID) (*PlaylistView, error) {
	playlist, err := s.playlists.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if !playlist.IsPublic && access.Authorize(viewer, playlist.OwnerID) != access.Allow {
		return nil, fmt.Errorf("playlist: %w", errs.ErrNotFound)
	}
	return s.view(ctx, playlist)
}

// owned loads the playlist and checks identity may mutate it.
func (s *PlaylistService) owned(ctx context.Context, identity, id uuid.UUID, op string) (*models.Playlist, error) {
	playlist, err := s.playlists.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(identity, playlist.OwnerID, "playlist"); err != nil {
		metrics.RecordMutation(op, errs.Code(err))
		return nil, err
	}
	return playlist, nil
}

func (s *PlaylistService) Update(ctx context.Context, identity, id uuid.UUID, patch models.PlaylistPatch) (*PlaylistView, error) {
	if _, err := s.owned(ctx, identity, id, "playlist.update"); err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := validation.SanitizeString(*patch.Name)
		if name == "" || !validation.ValidateLength(name, maxTextLength) {
			return nil, invalid("name must be 1-255 characters")
		}
		patch.Name = &name
	}
	if patch.Description != nil {
		desc := validation.SanitizeString(*patch.Description)
		if !validation.ValidateLength(desc, 2000) {
			return nil, invalid("description too long")
		}
		patch.Description = &desc
	}
	if patch.Empty() {
		return nil, invalid("no updatable fields given")
	}

	updated, err := s.playlists.UpdatePlaylist(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	metrics.RecordMutation("playlist.update", "ok")
	return s.view(ctx, updated)
}

func (s *PlaylistService) Delete(ctx context.Context, identity, id uuid.UUID) error {
	playlist, err := s.owned(ctx, identity, id, "playlist.delete")
	if err != nil {
		return err
	}
	releaseBytes(ctx, s.store, playlist.CoverKey)
	if err := s.playlists.DeletePlaylist(ctx, id); err != nil && !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	metrics.RecordMutation("playlist.delete", "ok")
	logger.Info("playlist deleted", logger.String("playlist_id", id.String()))
	return nil
}

// AddSong appends a song. Adding a song that is already present changes
// nothing.
func (s *PlaylistService) AddSong(ctx context.Context, identity, playlistID, songID uuid.UUID) (*PlaylistView, error) {
	if _, err := s.owned(ctx, identity, playlistID, "playlist.add_song"); err != nil {
		return nil, err
	}
	if _, err := s.songs.GetSong(ctx, songID); err != nil {
		return nil, err
	}
	if err := s.playlists.AddPlaylistSong(ctx, playlistID, songID); err != nil {
		return nil, err
	}
	metrics.RecordMutation("playlist.add_song", "ok")
	return s.reload(ctx, playlistID)
}

// RemoveSong drops a song. Removing an absent song changes nothing.
func (s *PlaylistService) RemoveSong(ctx context.Context, identity, playlistID, songID uuid.UUID) (*PlaylistView, error) {
	if _, err := s.owned(ctx, identity, playlistID, "playlist.remove_song"); err != nil {
		return nil, err
	}
	if err := s.playlists.RemovePlaylistSong(ctx, playlistID, songID); err != nil {
		return nil, err
	}
	metrics.RecordMutation("playlist.remove_song", "ok")
	return s.reload(ctx, playlistID)
}

func (s *PlaylistService) reload(ctx context.Context, id uuid.UUID) (*PlaylistView, error) {
	playlist, err := s.playlists.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, playlist)
}
