package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const claimsKey contextKey = "auth.claims"

// RequireUser rejects requests without a valid bearer token and stores the
// claims in the request context.
func RequireUser(manager *Manager) func(http.Handler) http.Handler {
	return requireRealm(manager, RealmUser, RealmAdmin)
}

// RequireAdmin admits only admin-realm tokens.
func RequireAdmin(manager *Manager) func(http.Handler) http.Handler {
	return requireRealm(manager, RealmAdmin)
}

func requireRealm(manager *Manager, realms ...string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, r := range realms {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w)
				return
			}
			claims, err := manager.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil || !allowed[claims.Realm] {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"UNAUTHORIZED","message":"missing or invalid token"}`))
}

// UserIDFrom extracts the authenticated user id from the request context.
func UserIDFrom(ctx context.Context) (uuid.UUID, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// ClaimsFrom extracts the full claims from the request context.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}
