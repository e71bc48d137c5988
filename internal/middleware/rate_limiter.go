package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/logger"
	"golang.org/x/time/rate"
)

// localLimiter is the per-process fallback used when redis is absent or
// failing. Limits then apply per instance instead of cluster-wide.
type localLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*localEntry
	rate      rate.Limit
	burst     int
	lastSweep time.Time
}

type localEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newLocalLimiter(requests int, window time.Duration) *localLimiter {
	if requests < 1 {
		requests = 1
	}
	return &localLimiter{
		limiters:  make(map[string]*localEntry),
		rate:      rate.Every(window / time.Duration(requests)),
		burst:     requests,
		lastSweep: time.Now(),
	}
}

func (l *localLimiter) Allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	if now.Sub(l.lastSweep) > 10*time.Minute {
		for k, e := range l.limiters {
			if now.Sub(e.lastAccess) > time.Hour {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}
	entry, ok := l.limiters[key]
	if !ok {
		entry = &localEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	return limiter.Allow()
}

func tooManyRequests(c *gin.Context, limit int, retryAfter time.Duration) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "Too many requests",
		"code":        "rate_limited",
		"retry_after": retryAfter.Seconds(),
	})
}

// RateLimiter limits requests per client IP with a fixed redis window.
// Without redis, or when redis errors, a local token bucket takes over.
func RateLimiter(redisClient *redis.Client, cfg *config.Config) gin.HandlerFunc {
	fallback := newLocalLimiter(cfg.RateLimitRequests, cfg.RateLimitDuration)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if redisClient == nil {
			if !fallback.Allow(clientIP) {
				tooManyRequests(c, cfg.RateLimitRequests, cfg.RateLimitDuration)
				return
			}
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("rate_limit:%s", clientIP)

		count, err := redisClient.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			err = redisClient.Expire(ctx, key, cfg.RateLimitDuration).Err()
		}
		if err != nil {
			logger.Warn("redis rate limiter unavailable, using local limiter", logger.ErrorField(err))
			if !fallback.Allow(clientIP) {
				tooManyRequests(c, cfg.RateLimitRequests, cfg.RateLimitDuration)
				return
			}
			c.Next()
			return
		}

		if count > int64(cfg.RateLimitRequests) {
			ttl, _ := redisClient.TTL(ctx, key).Result()
			c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(ttl).Unix()))
			tooManyRequests(c, cfg.RateLimitRequests, ttl)
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.RateLimitRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", int64(cfg.RateLimitRequests)-count))
		c.Next()
	}
}
