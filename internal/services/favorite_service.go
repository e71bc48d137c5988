package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/metrics"
	"github.com/soundvault/backend/internal/repository"
)

// FavoriteService manages the authenticated user's own favorites set.
type FavoriteService struct {
	favorites repository.FavoriteStore
	songs     repository.SongStore
}

func NewFavoriteService(favorites repository.FavoriteStore, songs repository.SongStore) *FavoriteService {
	return &FavoriteService{favorites: favorites, songs: songs}
}

func requireIdentity(identity uuid.UUID) error {
	if identity == uuid.Nil {
		return fmt.Errorf("favorites: %w", errs.ErrUnauthenticated)
	}
	return nil
}

func (s *FavoriteService) List(ctx context.Context, identity uuid.UUID) ([]SongView, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	ids, err := s.favorites.ListFavoriteIDs(ctx, identity)
	if err != nil {
		return nil, err
	}
	songs, err := s.songs.GetSongsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return NewSongViews(songs), nil
}

func (s *FavoriteService) Add(ctx context.Context, identity, songID uuid.UUID) ([]SongView, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if _, err := s.songs.GetSong(ctx, songID); err != nil {
		return nil, err
	}
	if err := s.favorites.AddFavorite(ctx, identity, songID); err != nil {
		return nil, err
	}
	metrics.RecordMutation("favorite.add", "ok")
	return s.List(ctx, identity)
}

func (s *FavoriteService) Remove(ctx context.Context, identity, songID uuid.UUID) ([]SongView, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if err := s.favorites.RemoveFavorite(ctx, identity, songID); err != nil {
		return nil, err
	}
	metrics.RecordMutation("favorite.remove", "ok")
	return s.List(ctx, identity)
}
