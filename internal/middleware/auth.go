package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/soundvault/backend/internal/errs"
	jwtpkg "github.com/soundvault/backend/pkg/jwt"
)

const (
	userIDKey = "userID"
	claimsKey = "claims"
)

// TokenValidator verifies access tokens. AuthService implements it.
type TokenValidator interface {
	ValidateAccessToken(ctx context.Context, token string) (*jwtpkg.Claims, error)
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.Status(err), gin.H{
		"error": err.Error(),
		"code":  errs.Code(err),
	})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// identify resolves the request's bearer token. ok is false when no
// Authorization header was sent.
func identify(c *gin.Context, v TokenValidator) (ok bool, err error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return false, nil
	}
	token, valid := bearerToken(header)
	if !valid {
		return true, fmt.Errorf("malformed authorization header: %w", errs.ErrUnauthenticated)
	}
	claims, err := v.ValidateAccessToken(c.Request.Context(), token)
	if err != nil {
		return true, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return true, fmt.Errorf("invalid token subject: %w", errs.ErrUnauthenticated)
	}
	c.Set(userIDKey, userID)
	c.Set(claimsKey, claims)
	return true, nil
}

// Auth rejects requests without a valid access token and stores the
// caller's id under "userID".
func Auth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		sent, err := identify(c, v)
		if !sent {
			err = fmt.Errorf("authorization required: %w", errs.ErrUnauthenticated)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and
// lets anonymous requests through. A token that fails validation is
// still rejected.
func OptionalAuth(v TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := identify(c, v); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated caller, or uuid.Nil.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// Claims returns the validated access token claims, or nil.
func Claims(c *gin.Context) *jwtpkg.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*jwtpkg.Claims); ok {
			return claims
		}
	}
	return nil
}
