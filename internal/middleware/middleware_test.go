package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/logger"
	jwtpkg "github.com/soundvault/backend/pkg/jwt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubValidator accepts exactly one token.
type stubValidator struct {
	token  string
	userID uuid.UUID
}

func (s stubValidator) ValidateAccessToken(ctx context.Context, token string) (*jwtpkg.Claims, error) {
	if token != s.token {
		return nil, fmt.Errorf("invalid token: %w", errs.ErrUnauthenticated)
	}
	return &jwtpkg.Claims{UserID: s.userID.String(), TokenType: jwtpkg.AccessToken}, nil
}

func identityRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/whoami", mw, func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c).String())
	})
	return r
}

func TestAuth(t *testing.T) {
	v := stubValidator{token: "good", userID: uuid.New()}
	r := identityRouter(Auth(v))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusOK && rec.Body.String() != v.userID.String() {
				t.Errorf("expected user %s, got %s", v.userID, rec.Body.String())
			}
			if tt.status == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), `"code":"unauthenticated"`) {
				t.Errorf("unexpected error body %s", rec.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	v := stubValidator{token: "good", userID: uuid.New()}
	r := identityRouter(OptionalAuth(v))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != uuid.Nil.String() {
		t.Errorf("anonymous: status %d body %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Body.String() != v.userID.String() {
		t.Errorf("identified: got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer expired")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	cfg := config.New()
	cfg.Env = "production"
	cfg.AllowedOrigins = []string{"https://app.example.com/"}

	r := gin.New()
	r.Use(CORS(cfg))
	r.GET("/media/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/media/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "Range") {
		t.Errorf("Range not allowed: %q", rec.Header().Get("Access-Control-Allow-Headers"))
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Content-Range") {
		t.Errorf("Content-Range not exposed: %q", rec.Header().Get("Access-Control-Expose-Headers"))
	}

	req = httptest.NewRequest(http.MethodGet, "/media/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin allowed in production: %q", got)
	}
}

func TestRateLimiterFallsBackToLocalLimiter(t *testing.T) {
	cfg := config.New()
	cfg.RateLimitRequests = 2
	cfg.RateLimitDuration = time.Hour

	r := gin.New()
	r.Use(RateLimiter(nil, cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK || statuses[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected statuses %v", statuses)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("other client should not share the bucket, got %d", rec.Code)
	}
}

func TestUploadRateLimitWithoutRedis(t *testing.T) {
	cfg := config.New()
	cfg.UploadsPerDay = 1

	r := gin.New()
	r.POST("/api/v1/songs", UploadRateLimit(nil, cfg), func(c *gin.Context) { c.Status(http.StatusCreated) })

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/songs", nil))
		if rec.Code != http.StatusCreated {
			t.Fatalf("request %d: expected 201, got %d", i, rec.Code)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.Set(zap.New(core))
	t.Cleanup(func() { logger.Set(nil) })

	r := gin.New()
	r.Use(RequestLogger())
	r.GET("/songs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/songs/42", nil))

	entries := logs.FilterMessage("request rejected").All()
	if len(entries) != 1 {
		t.Fatalf("expected one rejected entry, got %d", len(logs.All()))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/songs/42" || fields["status"] != int64(http.StatusNotFound) {
		t.Errorf("unexpected fields %v", fields)
	}
}
