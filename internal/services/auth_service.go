package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/soundvault/backend/internal/config"
	"github.com/soundvault/backend/internal/errs"
	"github.com/soundvault/backend/internal/logger"
	"github.com/soundvault/backend/internal/models"
	"github.com/soundvault/backend/internal/repository"
	"github.com/soundvault/backend/pkg/crypto"
	jwtpkg "github.com/soundvault/backend/pkg/jwt"
	"github.com/soundvault/backend/pkg/validation"
)

// TokenPair is what a successful register, login or refresh hands back.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

type AuthService struct {
	users repository.UserStore
	redis *redis.Client
	cfg   *config.Config
}

// NewAuthService builds the service. rdb may be nil, in which case tokens
// cannot be revoked before they expire.
func NewAuthService(users repository.UserStore, rdb *redis.Client, cfg *config.Config) *AuthService {
	return &AuthService{
		users: users,
		redis: rdb,
		cfg:   cfg,
	}
}

// Register creates a new account and signs the user in.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (*models.User, *TokenPair, error) {
	username = validation.SanitizeString(username)
	email = strings.ToLower(validation.SanitizeString(email))

	if !validation.ValidateUsername(username) {
		return nil, nil, fmt.Errorf("username must be 3-30 letters, digits, '_' or '-': %w", errs.ErrInvalidInput)
	}
	if !validation.ValidateEmail(email) {
		return nil, nil, fmt.Errorf("invalid email format: %w", errs.ErrInvalidInput)
	}
	if !validation.ValidatePassword(password) {
		return nil, nil, fmt.Errorf("password must be at least %d characters: %w", validation.MinPasswordLength, errs.ErrInvalidInput)
	}

	hashedPassword, err := crypto.HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return nil, nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashedPassword,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return nil, nil, fmt.Errorf("username or email already registered: %w", errs.ErrConflict)
		}
		return nil, nil, err
	}

	tokens, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("user registered", logger.String("user_id", user.ID.String()))
	return user, tokens, nil
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	email = strings.ToLower(validation.SanitizeString(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, fmt.Errorf("invalid credentials: %w", errs.ErrUnauthenticated)
		}
		return nil, nil, err
	}

	if !crypto.CheckPassword(password, user.Password) {
		return nil, nil, fmt.Errorf("invalid credentials: %w", errs.ErrUnauthenticated)
	}

	tokens, err := s.issue(user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *AuthService) issue(userID uuid.UUID) (*TokenPair, error) {
	accessToken, err := jwtpkg.GenerateToken(userID.String(), jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return nil, err
	}
	refreshToken, err := jwtpkg.GenerateToken(userID.String(), jwtpkg.RefreshToken, s.cfg.JWTSecret, s.cfg.JWTRefreshTokenDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// RefreshToken generates a new access token from a refresh token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := jwtpkg.ValidateTokenType(refreshToken, s.cfg.JWTSecret, jwtpkg.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", errs.ErrUnauthenticated)
	}
	if s.isRevoked(ctx, claims.ID) {
		return nil, fmt.Errorf("refresh token revoked: %w", errs.ErrUnauthenticated)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", errs.ErrUnauthenticated)
	}
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("account no longer exists: %w", errs.ErrUnauthenticated)
		}
		return nil, err
	}

	accessToken, err := jwtpkg.GenerateToken(claims.UserID, jwtpkg.AccessToken, s.cfg.JWTSecret, s.cfg.JWTAccessTokenDuration)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: accessToken}, nil
}

// Logout revokes the access token and, when given, the refresh token.
func (s *AuthService) Logout(ctx context.Context, access *jwtpkg.Claims, refreshToken string) error {
	if s.redis == nil {
		logger.Warn("logout without redis: tokens stay valid until they expire")
		return nil
	}
	if err := s.revoke(ctx, access); err != nil {
		return err
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := jwtpkg.ValidateTokenType(refreshToken, s.cfg.JWTSecret, jwtpkg.RefreshToken)
	if err != nil || claims.UserID != access.UserID {
		return fmt.Errorf("invalid refresh token: %w", errs.ErrInvalidInput)
	}
	return s.revoke(ctx, claims)
}

func blacklistKey(jti string) string {
	return fmt.Sprintf("blacklist:token:%s", jti)
}

func (s *AuthService) revoke(ctx context.Context, claims *jwtpkg.Claims) error {
	ttl := claims.RemainingTTL()
	if ttl <= 0 || claims.ID == "" {
		return nil
	}
	if err := s.redis.Set(ctx, blacklistKey(claims.ID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// isRevoked consults the redis blacklist. If redis is unavailable the
// request is allowed to proceed.
func (s *AuthService) isRevoked(ctx context.Context, jti string) bool {
	if s.redis == nil || jti == "" {
		return false
	}
	exists, err := s.redis.Exists(ctx, blacklistKey(jti)).Result()
	if err != nil {
		logger.Warn("could not check token blacklist", logger.ErrorField(err))
		return false
	}
	return exists > 0
}

// ValidateAccessToken validates an access token and returns claims
func (s *AuthService) ValidateAccessToken(ctx context.Context, token string) (*jwtpkg.Claims, error) {
	claims, err := jwtpkg.ValidateTokenType(token, s.cfg.JWTSecret, jwtpkg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", errs.ErrUnauthenticated)
	}
	if s.isRevoked(ctx, claims.ID) {
		return nil, fmt.Errorf("token is revoked: %w", errs.ErrUnauthenticated)
	}
	return claims, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}
