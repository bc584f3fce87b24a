package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/otp-auth-api/internal/httputil"
	"github.com/redmonkez12/otp-auth-api/internal/token"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const SessionContextKey ContextKey = "session"

// Middleware handles authentication for protected routes
type Middleware struct {
	tokens token.Issuer
}

func NewMiddleware(tokens token.Issuer) *Middleware {
	return &Middleware{tokens: tokens}
}

// RequireAuth validates the "Bearer <token>" session header and stores the
// decoded claims in the request context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeUnauthenticated, http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			httputil.RespondErrorWithCode(w, "invalid authorization header format", httputil.CodeInvalidAuthHeader, http.StatusUnauthorized)
			return
		}

		claims, err := m.tokens.VerifySession(strings.TrimSpace(parts[1]))
		if err != nil {
			if errors.Is(err, token.ErrTokenExpired) {
				httputil.RespondErrorWithCode(w, "token has expired", httputil.CodeTokenExpired, http.StatusUnauthorized)
				return
			}
			httputil.RespondErrorWithCode(w, "invalid token", httputil.CodeUnauthenticated, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SessionContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSessionFromContext extracts the session claims from the request context
func GetSessionFromContext(ctx context.Context) (*token.SessionClaims, bool) {
	claims, ok := ctx.Value(SessionContextKey).(*token.SessionClaims)
	return claims, ok
}
