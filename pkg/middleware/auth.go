package middleware

import (
	"errors"
	"net/http"
	"strings"

	"otp-auth/pkg/token"
	"otp-auth/pkg/utils"

	"go.uber.org/zap"
)

// SessionVerifier checks a bearer token.
type SessionVerifier interface {
	Verify(tokenStr string, purpose token.Purpose) (token.Claims, error)
}

// AuthSession rejects requests without a valid session token and stores its claims in the context.
func AuthSession(verifier SessionVerifier, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(raw), token.PurposeSession)
			if err != nil {
				msg := "Invalid session token"
				if errors.Is(err, token.ErrTokenExpired) {
					msg = "Session token has expired"
				}
				logger.Warn("Session rejected", zap.Error(err))
				utils.ResponseUnauthorized(w, msg)
				return
			}

			next.ServeHTTP(w, r.WithContext(utils.SetSessionContext(r.Context(), claims)))
		})
	}
}
