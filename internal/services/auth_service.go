package services

import (
	"context"
	"strings"

	"relay-chat/config"
	relay_errors "relay-chat/pkg/errors"
	"relay-chat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// AuthService validates access tokens minted by the external auth service.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{jwtSecret: []byte(cfg.JWTSecret)}
}

type AccessClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the authenticated user id, preferring the userId claim
// over the registered subject.
func (c AccessClaims) Identity() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.Subject
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, relay_errors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.Identity() == "" {
		return AccessClaims{}, relay_errors.ErrUnauthorized
	}

	return *claims, nil
}

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
)

func WithUserContext(ctx context.Context, claims AccessClaims) context.Context {
	ctx = context.WithValue(ctx, userIDKey, claims.Identity())
	ctx = context.WithValue(ctx, logger.UserIdKey, claims.Identity())
	if claims.Username != "" {
		ctx = context.WithValue(ctx, usernameKey, claims.Username)
	}
	return ctx
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func UsernameFromContext(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(usernameKey).(string)
	return username, ok && username != ""
}
