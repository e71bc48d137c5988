package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soundvault/backend/internal/logger"
	"github.com/soundvault/backend/internal/metrics"
	"github.com/soundvault/backend/internal/models"
)

const (
	statsCacheKey = "stats:overview"
	topSongsLimit = 10
)

type Stats struct {
	TotalSongs     int64      `json:"totalSongs"`
	TotalPlaylists int64      `json:"totalPlaylists"`
	TotalUsers     int64      `json:"totalUsers"`
	TopSongs       []SongView `json:"topSongs"`
}

type StatsSource interface {
	CountSongs(ctx context.Context) (int64, error)
	CountPlaylists(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	TopSongs(ctx context.Context, limit int) ([]models.Song, error)
}

type StatsService struct {
	source StatsSource
	redis  *redis.Client
	ttl    time.Duration
}

// NewStatsService builds the service. With a nil rdb or a zero ttl every
// call goes to the repository.
func NewStatsService(source StatsSource, rdb *redis.Client, ttl time.Duration) *StatsService {
	return &StatsService{source: source, redis: rdb, ttl: ttl}
}

func (s *StatsService) Get(ctx context.Context) (*Stats, error) {
	if cached, ok := s.cached(ctx); ok {
		metrics.StatsCacheHits.Inc()
		return cached, nil
	}
	metrics.StatsCacheMisses.Inc()

	var (
		stats Stats
		err   error
	)
	if stats.TotalSongs, err = s.source.CountSongs(ctx); err != nil {
		return nil, err
	}
	if stats.TotalPlaylists, err = s.source.CountPlaylists(ctx); err != nil {
		return nil, err
	}
	if stats.TotalUsers, err = s.source.CountUsers(ctx); err != nil {
		return nil, err
	}
	top, err := s.source.TopSongs(ctx, topSongsLimit)
	if err != nil {
		return nil, err
	}
	stats.TopSongs = NewSongViews(top)

	s.store(ctx, &stats)
	return &stats, nil
}

func (s *StatsService) cached(ctx context.Context) (*Stats, bool) {
	if s.redis == nil || s.ttl <= 0 {
		return nil, false
	}
	raw, err := s.redis.Get(ctx, statsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("stats cache read failed", logger.ErrorField(err))
		}
		return nil, false
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (s *StatsService) store(ctx context.Context, stats *Stats) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, statsCacheKey, raw, s.ttl).Err(); err != nil {
		logger.Warn("stats cache write failed", logger.ErrorField(err))
	}
}
