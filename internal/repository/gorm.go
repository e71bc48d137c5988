package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the relational repository.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (r *Gorm) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, errs.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, errs.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

// Users

func (r *Gorm) CreateUser(ctx context.Context, user *models.User) error {
	var existing models.User
	err := r.db.WithContext(ctx).Where("username = ? OR email = ?", user.Username, user.Email).First(&existing).Error
	if err == nil {
		return fmt.Errorf("user already exists: %w", errs.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("failed to check existing user: %w", err)
	}
	return translate(r.db.WithContext(ctx).Create(user).Error, "failed to create user")
}

func (r *Gorm) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (r *Gorm) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err, "user")
	}
	return &user, nil
}

func (r *Gorm) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

// Songs

func (r *Gorm) CreateSong(ctx context.Context, song *models.Song) error {
	return translate(r.db.WithContext(ctx).Create(song).Error, "failed to create song")
}

func (r *Gorm) GetSong(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	var song models.Song
	if err := r.db.WithContext(ctx).First(&song, "id = ?", id).Error; err != nil {
		return nil, translate(err, "song")
	}
	return &song, nil
}

func (r *Gorm) GetSongsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Song, error) {
	if len(ids) == 0 {
		return []models.Song{}, nil
	}
	var songs []models.Song
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&songs).Error; err != nil {
		return nil, fmt.Errorf("failed to load songs: %w", err)
	}
	return orderByIDs(ids, songs), nil
}

func (r *Gorm) ListSongs(ctx context.Context, filter models.SongFilter) ([]models.Song, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Song{})
	if filter.Genre != "" {
		query = query.Where("genre = ?", filter.Genre)
	}
	if filter.Artist != "" {
		query = query.Where(`LOWER(artist) LIKE ? ESCAPE '\'`, like(filter.Artist))
	}
	if filter.Search != "" {
		term := like(filter.Search)
		query = query.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(artist) LIKE ? ESCAPE '\' OR LOWER(album) LIKE ? ESCAPE '\')`, term, term, term)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count songs: %w", err)
	}

	var songs []models.Song
	err := query.Order("created_at DESC").Order("id").
		Limit(filter.Limit).Offset(filter.Offset()).
		Find(&songs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list songs: %w", err)
	}
	return songs, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// like builds a case-insensitive substring pattern. User input is matched
// literally, the same as the regex-quoted mongo search.
func like(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(s)) + "%"
}

func (r *Gorm) TopSongs(ctx context.Context, limit int) ([]models.Song, error) {
	var songs []models.Song
	err := r.db.WithContext(ctx).Order("plays DESC").Order("created_at DESC").Limit(limit).Find(&songs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load top songs: %w", err)
	}
	return songs, nil
}

func (r *Gorm) UpdateSong(ctx context.Context, id uuid.UUID, patch models.SongPatch) (*models.Song, error) {
	if !patch.Empty() {
		result := r.db.WithContext(ctx).Model(&models.Song{}).Where("id = ?", id).Updates(patch.Columns())
		if result.Error != nil {
			return nil, translate(result.Error, "failed to update song")
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("song: %w", errs.ErrNotFound)
		}
	}
	return r.GetSong(ctx, id)
}

func (r *Gorm) DeleteSong(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("song_id = ?", id).Delete(&models.PlaylistSong{}).Error; err != nil {
			return fmt.Errorf("failed to remove playlist entries: %w", err)
		}
		if err := tx.Where("song_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return fmt.Errorf("failed to remove favorites: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Song{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete song: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("song: %w", errs.ErrNotFound)
		}
		return nil
	})
}

func (r *Gorm) IncrementPlays(ctx context.Context, id uuid.UUID) (int64, error) {
	var plays int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Song{}).Where("id = ?", id).
			UpdateColumn("plays", gorm.Expr("plays + 1"))
		if result.Error != nil {
			return fmt.Errorf("failed to increment plays: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("song: %w", errs.ErrNotFound)
		}
		// The row stays locked by our update until commit, so this read
		// sees exactly our increment.
		return tx.Model(&models.Song{}).Select("plays").Where("id = ?", id).Scan(&plays).Error
	})
	if err != nil {
		return 0, err
	}
	return plays, nil
}

func (r *Gorm) CountSongs(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Song{}).Count(&n).Error
	return n, err
}

// Playlists

func (r *Gorm) CreatePlaylist(ctx context.Context, playlist *models.Playlist) error {
	if err := r.db.WithContext(ctx).Create(playlist).Error; err != nil {
		return translate(err, "failed to create playlist")
	}
	if playlist.SongIDs == nil {
		playlist.SongIDs = []uuid.UUID{}
	}
	return nil
}

func (r *Gorm) GetPlaylist(ctx context.Context, id uuid.UUID) (*models.Playlist, error) {
	var playlist models.Playlist
	if err := r.db.WithContext(ctx).First(&playlist, "id = ?", id).Error; err != nil {
		return nil, translate(err, "playlist")
	}
	members, err := r.memberships(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	playlist.SongIDs = members[id]
	if playlist.SongIDs == nil {
		playlist.SongIDs = []uuid.UUID{}
	}
	return &playlist, nil
}

func (r *Gorm) memberships(ctx context.Context, playlistIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	var rows []models.PlaylistSong
	err := r.db.WithContext(ctx).Where("playlist_id IN ?", playlistIDs).Order("id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load playlist songs: %w", err)
	}
	out := make(map[uuid.UUID][]uuid.UUID, len(playlistIDs))
	for _, row := range rows {
		out[row.PlaylistID] = append(out[row.PlaylistID], row.SongID)
	}
	return out, nil
}

func (r *Gorm) ListPlaylistsByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&playlists).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list playlists: %w", err)
	}
	if len(playlists) == 0 {
		return playlists, nil
	}

	ids := make([]uuid.UUID, len(playlists))
	for i := range playlists {
		ids[i] = playlists[i].ID
	}
	members, err := r.memberships(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range playlists {
		playlists[i].SongIDs = members[playlists[i].ID]
		if playlists[i].SongIDs == nil {
			playlists[i].SongIDs = []uuid.UUID{}
		}
	}
	return playlists, nil
}

func (r *Gorm) UpdatePlaylist(ctx context.Context, id uuid.UUID, patch models.PlaylistPatch) (*models.Playlist, error) {
	if !patch.Empty() {
		result := r.db.WithContext(ctx).Model(&models.Playlist{}).Where("id = ?", id).Updates(patch.Columns())
		if result.Error != nil {
			return nil, translate(result.Error, "failed to update playlist")
		}
		if result.RowsAffected == 0 {
			return nil, fmt.Errorf("playlist: %w", errs.ErrNotFound)
		}
	}
	return r.GetPlaylist(ctx, id)
}

func (r *Gorm) DeletePlaylist(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistSong{}).Error; err != nil {
			return fmt.Errorf("failed to remove playlist entries: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Playlist{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete playlist: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("playlist: %w", errs.ErrNotFound)
		}
		return nil
	})
}

func (r *Gorm) AddPlaylistSong(ctx context.Context, playlistID, songID uuid.UUID) error {
	entry := models.PlaylistSong{PlaylistID: playlistID, SongID: songID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to add song to playlist: %w", err)
	}
	return nil
}

func (r *Gorm) RemovePlaylistSong(ctx context.Context, playlistID, songID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("playlist_id = ? AND song_id = ?", playlistID, songID).
		Delete(&models.PlaylistSong{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove song from playlist: %w", err)
	}
	return nil
}

func (r *Gorm) CountPlaylists(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Playlist{}).Count(&n).Error
	return n, err
}

// Favorites

func (r *Gorm) AddFavorite(ctx context.Context, userID, songID uuid.UUID) error {
	fav := models.Favorite{UserID: userID, SongID: songID}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&fav).Error
	if err != nil {
		return fmt.Errorf("failed to add favorite: %w", err)
	}
	return nil
}

func (r *Gorm) RemoveFavorite(ctx context.Context, userID, songID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND song_id = ?", userID, songID).
		Delete(&models.Favorite{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (r *Gorm) ListFavoriteIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var favs []models.Favorite
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Order("song_id").Find(&favs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	ids := make([]uuid.UUID, len(favs))
	for i, f := range favs {
		ids[i] = f.SongID
	}
	return ids, nil
}
