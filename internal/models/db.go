package models

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soundvault/backend/internal/config"
	applog "github.com/soundvault/backend/internal/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormConfig is shared by the postgres connection and the sqlite test databases.
func GormConfig(production bool) *gorm.Config {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	}
	if production {
		gormConfig.Logger = logger.Default.LogMode(logger.Error)
	}
	return gormConfig
}

// InitDB initializes the postgres connection
func InitDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)

	gormConfig := GormConfig(cfg.IsProduction())
	gormConfig.PrepareStmt = true

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	applog.Info("database connection established", applog.String("host", cfg.DBHost), applog.String("db", cfg.DBName))
	return db, nil
}

// InitRedis initializes the redis client. The client connects lazily;
// callers ping it to decide whether to use it.
func InitRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

// Migrate runs database migrations
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Song{},
		&Playlist{},
		&PlaylistSong{},
		&Favorite{},
	)
}
