package httpadapter

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

const userIDHeader = "X-User-Id"

type userIDContextKey struct{}

func userIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey{}).(string)
	return userID
}

// authMiddleware checks the shared bearer token and requires a user
// identity header. An empty configured token disables the token check
// for local development; the user header stays mandatory because every
// search is scoped to an owner.
func authMiddleware(next http.Handler, bearerToken string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerToken != "" && !isAuthorizedBearerHeader(r.Header.Get("Authorization"), bearerToken) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or missing bearer token"})
			return
		}

		userID := strings.TrimSpace(r.Header.Get(userIDHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user identity"})
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey{}, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func isAuthorizedBearerHeader(header, token string) bool {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	presented := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return subtle.ConstantTimeCompare([]byte(presented), []byte(token)) == 1
}
