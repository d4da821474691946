package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/gophblog/internal/server/handlers"
	"github.com/iudanet/gophblog/internal/server/jwt"
)

// TokenVerifier checks a session token and returns its claims
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// TokenSource extracts the raw session token from a request
type TokenSource interface {
	Token(r *http.Request) string
}

// AuthMiddleware requires a valid session token. The token is read from the
// session cookie; an "Authorization: Bearer <token>" header is accepted when
// no cookie is present. Verified claims are stored in the request context.
func AuthMiddleware(logger *slog.Logger, verifier TokenVerifier, source TokenSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractToken(r, source)
			if !ok {
				logger.WarnContext(r.Context(), "invalid authorization header format")
				handlers.WriteError(logger, w, "invalid token format", http.StatusUnauthorized)
				return
			}
			if token == "" {
				logger.DebugContext(r.Context(), "missing session token", slog.String("path", r.URL.Path))
				handlers.WriteError(logger, w, "missing token", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid session token", slog.Any("error", err))
				handlers.WriteError(logger, w, "invalid token", http.StatusUnauthorized)
				return
			}

			logger.DebugContext(r.Context(), "user authenticated",
				slog.String("user_id", claims.UserID.String()),
				slog.String("username", claims.Username))

			next.ServeHTTP(w, r.WithContext(handlers.WithClaims(r.Context(), claims)))
		})
	}
}

// extractToken returns the cookie token, else the bearer token.
// ok is false for a malformed Authorization header.
func extractToken(r *http.Request, source TokenSource) (string, bool) {
	if token := source.Token(r); token != "" {
		return token, true
	}

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", true
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
