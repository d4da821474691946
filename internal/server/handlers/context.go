package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/iudanet/gophblog/internal/server/jwt"
)

// contextKey type for request context keys
type contextKey string

const (
	// ClaimsKey key of the verified token claims in the request context
	ClaimsKey contextKey = "claims"
)

// WithClaims stores verified token claims in ctx
func WithClaims(ctx context.Context, claims *jwt.Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// GetClaims returns the verified token claims of the request
func GetClaims(ctx context.Context) (*jwt.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*jwt.Claims)
	return claims, ok && claims != nil
}

// GetUserID returns the authenticated user id of the request
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := GetClaims(ctx)
	if !ok || claims.UserID == uuid.Nil {
		return uuid.Nil, false
	}
	return claims.UserID, true
}

// GetUsername returns the authenticated username of the request
func GetUsername(ctx context.Context) (string, bool) {
	claims, ok := GetClaims(ctx)
	if !ok {
		return "", false
	}
	return claims.Username, true
}
