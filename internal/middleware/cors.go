package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/config"
)

// CORS creates a CORS middleware. Players need to send Range and read
// the framing headers of partial responses.
func CORS(cfg *config.Config) gin.HandlerFunc {
	allowHeaders := strings.Join(cfg.AllowedHeaders, ", ")
	allowMethods := strings.Join(cfg.AllowedMethods, ", ")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		normalizedOrigin := strings.TrimRight(strings.TrimSpace(origin), "/")

		allowed := false
		for _, allowedOrigin := range cfg.AllowedOrigins {
			normalizedAllowed := strings.TrimRight(strings.TrimSpace(allowedOrigin), "/")
			if normalizedAllowed == "*" || normalizedOrigin == normalizedAllowed {
				allowed = true
				break
			}
		}

		// For development, allow any origin
		if !allowed && origin != "" && cfg.Env == "development" {
			allowed = true
		}

		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges, X-RateLimit-Limit, X-RateLimit-Remaining")
		h.Set("Access-Control-Max-Age", "86400")

		if allowed && normalizedOrigin != "" {
			h.Set("Access-Control-Allow-Origin", normalizedOrigin)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
