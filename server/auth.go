package server

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/taskhub/taskhub/config"
)

type authContextKey string

// userIDContextKey carries the authenticated user's ID through the request context.
const userIDContextKey authContextKey = "auth_user_id"

const bearerPrefix = "Bearer "

// GenerateToken issues a signed HS256 access token for the given user.
// The subject claim carries the user ID; expiry comes from auth.token.ttl.
// It returns the compact token and its expiry time.
func GenerateToken(cfg *config.Config, userID uuid.UUID) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(cfg.Auth.Token.TTL)

	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    cfg.Auth.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Auth.Secret))
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

// AuthMiddleware guards routes with bearer token authentication. It validates
// the HS256 signature, expiry, and issuer, then stores the subject user ID in
// the request context for handlers and repositories. Failures surface as 401
// envelopes through the centralized error handler.
func AuthMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return NewUnauthorizedError("Missing authorization header")
			}
			if !strings.HasPrefix(header, bearerPrefix) {
				return NewUnauthorizedError("Authorization header must use the Bearer scheme")
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
			if tokenString == "" {
				return NewUnauthorizedError("Missing bearer token")
			}

			userID, err := parseToken(cfg, tokenString)
			if err != nil {
				return NewUnauthorizedError("Invalid or expired token")
			}

			ctx := context.WithValue(c.Request().Context(), userIDContextKey, userID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// parseToken validates the token and extracts the subject user ID.
func parseToken(cfg *config.Config, tokenString string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Auth.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(cfg.Auth.Secret), nil
	}, opts...)
	if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(claims.Subject)
}

// UserIDFromContext returns the authenticated user ID stored by AuthMiddleware.
// The second return is false for unauthenticated requests.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDContextKey).(uuid.UUID)
	return id, ok
}
