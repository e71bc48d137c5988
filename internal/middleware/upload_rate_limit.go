package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/logger"
)

// UploadRateLimit caps how many uploads (songs and playlists) a user can
// create per day. It must run after Auth. Without redis it lets
// everything through.
func UploadRateLimit(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || cfg.UploadsPerDay <= 0 || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		userID := UserID(c)
		if userID == uuid.Nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		// Key resets daily at midnight UTC
		now := time.Now().UTC()
		key := fmt.Sprintf("upload_limit:%s:%s", userID.String(), now.Format("2006-01-02"))

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("upload limiter unavailable", logger.ErrorField(err))
			c.Next()
			return
		}
		if count == 1 {
			midnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
			redisClient.Expire(ctx, key, midnight.Sub(now))
		}

		if count > int64(cfg.UploadsPerDay) {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "Too many uploads today. Please try again tomorrow.",
				"code":                "upload_rate_limited",
				"retry_after_hours":   int(ttl.Hours()),
				"uploads_today":       count - 1,
				"max_uploads_per_day": cfg.UploadsPerDay,
			})
			return
		}

		c.Next()
	}
}
