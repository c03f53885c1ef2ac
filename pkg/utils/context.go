package utils

import (
	"context"

	"otp-auth/pkg/token"
)

type contextKey string

const sessionKey contextKey = "session"

// SetSessionContext stores verified session claims.
func SetSessionContext(ctx context.Context, claims token.Claims) context.Context {
	return context.WithValue(ctx, sessionKey, claims)
}

// GetSessionFromContext returns the claims set by the auth middleware.
func GetSessionFromContext(ctx context.Context) (token.Claims, bool) {
	claims, ok := ctx.Value(sessionKey).(token.Claims)
	return claims, ok
}
