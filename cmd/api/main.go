package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/handlers"
	"github.com/soundvault/backend/internal/logger"
	"github.com/soundvault/backend/internal/media"
	"github.com/soundvault/backend/internal/middleware"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/repository"
	"github.com/soundvault/backend/internal/services"
	"github.com/soundvault/backend/internal/storage"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg := config.New()

	if err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		OutputPath: cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
		Compress:   true,
		Production: cfg.IsProduction(),
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if envErr != nil {
		logger.Info("No .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", logger.ErrorField(err))
	}

	ctx := context.Background()

	repo, err := openRepository(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize repository", logger.ErrorField(err))
	}
	defer repo.Close()

	redisClient := connectRedis(ctx, cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize byte storage", logger.ErrorField(err))
	}

	// Initialize services
	authService := services.NewAuthService(repo, redisClient, cfg)
	songService := services.NewSongService(repo, store, cfg.MaxUploadBytes)
	playlistService := services.NewPlaylistService(repo, repo, store, cfg.MaxUploadBytes)
	favoriteService := services.NewFavoriteService(repo, repo)
	statsService := services.NewStatsService(repo, redisClient, cfg.StatsCacheTTL)
	locator := media.NewLocator(repo, repo, store)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg))
	router.Use(middleware.RateLimiter(redisClient, cfg))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.Routes{
		Auth:         handlers.NewAuthHandler(authService),
		Songs:        handlers.NewSongHandler(songService, cfg.MaxUploadBytes),
		Playlists:    handlers.NewPlaylistHandler(playlistService, cfg.MaxUploadBytes),
		Favorites:    handlers.NewFavoriteHandler(favoriteService),
		Media:        handlers.NewMediaHandler(locator, songService),
		Stats:        handlers.NewStatsHandler(statsService),
		RequireAuth:  middleware.Auth(authService),
		OptionalAuth: middleware.OptionalAuth(authService),
		UploadLimit:  middleware.UploadRateLimit(redisClient, cfg),
	}.Register(router)

	// No WriteTimeout: streams of long tracks outlive any fixed deadline.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       120 * time.Second, // 2 min for large audio uploads
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		logger.Info("starting server", logger.String("port", cfg.Port), logger.String("db_driver", cfg.DBDriver), logger.String("storage", cfg.StorageBackend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", logger.ErrorField(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server exited")
}

func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return repository.NewMongo(connectCtx, cfg.MongoURI, cfg.MongoDatabase)
	default:
		db, err := models.InitDB(cfg)
		if err != nil {
			return nil, err
		}
		if err := models.Migrate(db); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repository.NewGorm(db), nil
	}
}

// connectRedis returns nil when redis is unreachable; every redis user
// degrades to working without it.
func connectRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	client := models.InitRedis(cfg)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without cache, blacklist and shared rate limits", logger.ErrorField(err))
		_ = client.Close()
		return nil
	}
	return client
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.StorageBackend != config.StorageS3 {
		return storage.NewLocal(cfg.UploadDir)
	}

	remote, err := storage.NewS3(ctx, storage.S3Config{
		Endpoint:        cfg.MediaS3Endpoint,
		Region:          cfg.MediaS3Region,
		AccessKeyID:     cfg.MediaS3AccessKeyID,
		SecretAccessKey: cfg.MediaS3SecretAccessKey,
		UsePathStyle:    cfg.MediaS3UsePathStyle,
		Bucket:          cfg.MediaBucket,
	})
	if err != nil {
		return nil, err
	}
	if cfg.MediaCacheDir == "" {
		return remote, nil
	}
	cache, err := storage.NewLocal(cfg.MediaCacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open media cache: %w", err)
	}
	return storage.NewCached(remote, cache), nil
}
