package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"lumina/internal/models"
)

type contextKey string

const identityKey contextKey = "identity"

// SessionSource exposes the active session
type SessionSource interface {
	Current() *models.Identity
	AccessToken() string
}

// AuthMiddleware requires a bearer token matching the active session
func AuthMiddleware(session SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondError(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			identity, ok := Authorize(session, parts[1])
			if !ok {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Authorize checks token against the active session and returns its identity
func Authorize(session SessionSource, token string) (*models.Identity, bool) {
	current := session.AccessToken()
	if token == "" || current == "" {
		return nil, false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(current)) != 1 {
		return nil, false
	}
	identity := session.Current()
	return identity, identity != nil
}

// GetIdentity extracts the identity from context
func GetIdentity(ctx context.Context) *models.Identity {
	identity, ok := ctx.Value(identityKey).(*models.Identity)
	if !ok {
		return nil
	}
	return identity
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.ID
	}
	return ""
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
