package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielmulvad/tda-backend/cookies"
	"github.com/danielmulvad/tda-backend/token"
)

// ContextKey defines a dedicated type for context values set by the gate.
type ContextKey string

// ClaimsContextKey carries the validated session claims.
const ClaimsContextKey ContextKey = "sessionClaims"

// RequireAuth guards a handler behind a valid first-party access token. The
// token is read from the session cookie first, then from the Authorization
// bearer header. Missing and invalid tokens are both a 401.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := extractAccessToken(r)
		if raw == "" {
			returnError(w, http.StatusUnauthorized, "missing access token")
			return
		}

		claims, err := s.tokens.ValidateAccessToken(raw)
		if err != nil || claims.Subject != token.SubjectAccess {
			returnError(w, http.StatusUnauthorized, "invalid access token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func extractAccessToken(r *http.Request) string {
	if c, err := r.Cookie(cookies.AccessTokenName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return tok
	}
	return ""
}
