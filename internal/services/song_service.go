package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
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

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	maxTextLength   = 255
)

// Upload is one file of a multipart request. The caller owns Body.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CreateSongInput struct {
	Title     string
	Artist    string
	Album     string
	Genre     string
	Duration  int
	StreamURL string
	IsOffline bool
	Audio     *Upload
	Cover     *Upload
}

type SongService struct {
	songs     repository.SongStore
	store     storage.Store
	maxUpload int64
}

func NewSongService(songs repository.SongStore, store storage.Store, maxUpload int64) *SongService {
	return &SongService{songs: songs, store: store, maxUpload: maxUpload}
}

func invalid(msg string) error {
	return fmt.Errorf("%s: %w", msg, errs.ErrInvalidInput)
}

func (s *SongService) Get(ctx context.Context, id uuid.UUID) (*models.Song, error) {
	return s.songs.GetSong(ctx, id)
}

// List returns one page of the catalogue, newest first.
func (s *SongService) List(ctx context.Context, filter models.SongFilter) (*SongPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	filter.Genre = validation.SanitizeString(filter.Genre)
	filter.Artist = validation.SanitizeString(filter.Artist)
	filter.Search = validation.SanitizeString(filter.Search)

	songs, total, err := s.songs.ListSongs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &SongPage{
		Songs:       NewSongViews(songs),
		Total:       total,
		TotalPages:  int(math.Ceil(float64(total) / float64(filter.Limit))),
		CurrentPage: filter.Page,
	}, nil
}

// saveUpload stores u under a fresh key of kind and enforces the upload
// limit on the bytes actually read.
func saveUpload(ctx context.Context, store storage.Store, maxUpload int64, kind string, u *Upload) (string, error) {
	if u.Size > maxUpload {
		return "", fmt.Errorf("%s exceeds %d bytes: %w", u.Filename, maxUpload, errs.ErrTooLarge)
	}
	key := storage.BuildObjectKey(kind, u.Filename)
	n, err := store.Save(ctx, key, io.LimitReader(u.Body, maxUpload+1), u.ContentType)
	if err != nil {
		return "", fmt.Errorf("failed to store %s: %w", u.Filename, err)
	}
	if n > maxUpload {
		releaseBytes(ctx, store, key)
		return "", fmt.Errorf("%s exceeds %d bytes: %w", u.Filename, maxUpload, errs.ErrTooLarge)
	}
	return key, nil
}

// releaseBytes deletes stored objects, logging failures instead of
// returning them: the metadata change they accompany has to go ahead.
func releaseBytes(ctx context.Context, store storage.Store, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := store.Delete(ctx, key); err != nil {
			logger.Warn("failed to delete stored object", logger.String("key", key), logger.ErrorField(err))
		}
	}
}

func (s *SongService) validateCreate(in *CreateSongInput) error {
	in.Title = validation.SanitizeString(in.Title)
	in.Artist = validation.SanitizeString(in.Artist)
	in.Album = validation.SanitizeString(in.Album)
	in.Genre = validation.SanitizeString(in.Genre)
	in.StreamURL = strings.TrimSpace(in.StreamURL)

	switch {
	case in.Title == "":
		return invalid("title is required")
	case in.Artist == "":
		return invalid("artist is required")
	case !validation.ValidateLength(in.Title, maxTextLength),
		!validation.ValidateLength(in.Artist, maxTextLength),
		!validation.ValidateLength(in.Album, maxTextLength),
		!validation.ValidateLength(in.Genre, 64):
		return invalid("text field too long")
	case in.Duration < 0:
		return invalid("duration must not be negative")
	case in.StreamURL != "" && !validation.ValidateStreamURL(in.StreamURL):
		return invalid("stream_url must be an absolute http(s) URL")
	case in.Audio == nil && in.StreamURL == "":
		return invalid("audio file or stream URL required")
	case in.Audio != nil && !media.IsAudioUpload(in.Audio.ContentType, in.Audio.Filename):
		return invalid("audio must be an audio file")
	case in.Cover != nil && !media.IsImageUpload(in.Cover.ContentType, in.Cover.Filename):
		return invalid("cover must be an image file")
	}
	return nil
}

// Create stores the uploaded bytes and then the record. Any failure
// removes the bytes written so far.
func (s *SongService) Create(ctx context.Context, identity uuid.UUID, in CreateSongInput) (*models.Song, error) {
	if identity == uuid.Nil {
		return nil, fmt.Errorf("song: %w", errs.ErrUnauthenticated)
	}
	if err := s.validateCreate(&in); err != nil {
		metrics.RecordMutation("song.create", errs.Code(err))
		return nil, err
	}

	song := &models.Song{
		Title:     in.Title,
		Artist:    in.Artist,
		Album:     in.Album,
		Genre:     in.Genre,
		Duration:  in.Duration,
		StreamURL: in.StreamURL,
		IsOffline: in.IsOffline,
		OwnerID:   identity,
	}

	if in.Audio != nil {
		key, err := saveUpload(ctx, s.store, s.maxUpload, storage.KindAudio, in.Audio)
		if err != nil {
			metrics.RecordMutation("song.create", errs.Code(err))
			return nil, err
		}
		song.AudioKey = key
		song.AudioMimeType = media.AudioMimeType(in.Audio.Filename)
		if strings.HasPrefix(in.Audio.ContentType, "audio/") {
			song.AudioMimeType = in.Audio.ContentType
		}
	}
	if in.Cover != nil {
		key, err := saveUpload(ctx, s.store, s.maxUpload, storage.KindCover, in.Cover)
		if err != nil {
			releaseBytes(ctx, s.store, song.AudioKey)
			metrics.RecordMutation("song.create", errs.Code(err))
			return nil, err
		}
		song.CoverKey = key
		song.CoverMimeType = media.ImageMimeType(in.Cover.Filename)
		if strings.HasPrefix(in.Cover.ContentType, "image/") {
			song.CoverMimeType = in.Cover.ContentType
		}
	}

	if err := s.songs.CreateSong(ctx, song); err != nil {
		releaseBytes(ctx, s.store, song.AudioKey, song.CoverKey)
		metrics.RecordMutation("song.create", errs.Code(err))
		return nil, err
	}

	metrics.RecordMutation("song.create", "ok")
	logger.Info("song created",
		logger.String("song_id", song.ID.String()),
		logger.String("owner_id", identity.String()),
		logger.Bool("local_audio", song.HasLocalAudio()))
	return song, nil
}

func normalizeSongPatch(p *models.SongPatch) error {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := validation.SanitizeString(*v)
		return &t
	}
	p.Title = trim(p.Title)
	p.Artist = trim(p.Artist)
	p.Album = trim(p.Album)
	p.Genre = trim(p.Genre)
	p.StreamURL = trim(p.StreamURL)

	switch {
	case p.Empty():
		return invalid("no updatable fields given")
	case p.Title != nil && *p.Title == "":
		return invalid("title must not be empty")
	case p.Artist != nil && *p.Artist == "":
		return invalid("artist must not be empty")
	case p.Title != nil && !validation.ValidateLength(*p.Title, maxTextLength),
		p.Artist != nil && !validation.ValidateLength(*p.Artist, maxTextLength),
		p.Album != nil && !validation.ValidateLength(*p.Album, maxTextLength),
		p.Genre != nil && !validation.ValidateLength(*p.Genre, 64):
		return invalid("text field too long")
	case p.Duration != nil && *p.Duration < 0:
		return invalid("duration must not be negative")
	case p.StreamURL != nil && *p.StreamURL != "" && !validation.ValidateStreamURL(*p.StreamURL):
		return invalid("stream_url must be an absolute http(s) URL")
	}
	return nil
}

// Update applies a whitelisted patch. The song must keep a playable source.
func (s *SongService) Update(ctx context.Context, identity, id uuid.UUID, patch models.SongPatch) (*models.Song, error) {
	song, err := s.songs.GetSong(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := access.Require(identity, song.OwnerID, "song"); err != nil {
		metrics.RecordMutation("song.update", errs.Code(err))
		return nil, err
	}
	if err := normalizeSongPatch(&patch); err != nil {
		return nil, err
	}
	if after := patch.Apply(*song); !after.HasPlayableSource() {
		return nil, invalid("a song without stored audio needs a stream URL")
	}

	updated, err := s.songs.UpdateSong(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	metrics.RecordMutation("song.update", "ok")
	return updated, nil
}

// Delete removes the record with its playlist and favorite references,
// then the song's bytes.
func (s *SongService) Delete(ctx context.Context, identity, id uuid.UUID) error {
	song, err := s.songs.GetSong(ctx, id)
	if err != nil {
		return err
	}
	if err := access.Require(identity, song.OwnerID, "song"); err != nil {
		metrics.RecordMutation("song.delete", errs.Code(err))
		logger.Warn("song delete denied",
			logger.String("song_id", id.String()),
			logger.String("identity", identity.String()))
		return err
	}

	// Bytes are released only once the record is gone.
	if err := s.songs.DeleteSong(ctx, id); err != nil {
		// A concurrent delete already removed it.
		if errors.Is(err, errs.ErrNotFound) {
			releaseBytes(ctx, s.store, song.AudioKey, song.CoverKey)
			return nil
		}
		metrics.RecordMutation("song.delete", errs.Code(err))
		return err
	}
	releaseBytes(ctx, s.store, song.AudioKey, song.CoverKey)
	metrics.RecordMutation("song.delete", "ok")
	logger.Info("song deleted", logger.String("song_id", id.String()))
	return nil
}

// RecordPlay counts one playback. It needs no identity.
func (s *SongService) RecordPlay(ctx context.Context, id uuid.UUID) (int64, error) {
	plays, err := s.songs.IncrementPlays(ctx, id)
	if err != nil {
		return 0, err
	}
	metrics.PlaysRecorded.Inc()
	return plays, nil
}
