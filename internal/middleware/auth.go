// Package middleware provides HTTP middlewares for authentication,
// request logging and metrics.
package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/LittleHelper/internal/models"
)

type ctxKey string

const userKey ctxKey = "user"

// TokenParser resolves an access token to an account id.
type TokenParser interface {
	Parse(raw string) (string, error)
}

// AccountLookup finds an account by id, returning nil when it does not exist.
type AccountLookup interface {
	FindByID(ctx context.Context, id string) (*models.Account, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the token's account id in the request context. When accounts is
// non-nil, tokens of accounts that no longer exist are rejected as well.
func BearerAuth(tokens TokenParser, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, raw, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
				writeMessage(w, http.StatusUnauthorized, "not authorized, no token")
				return
			}
			userID, err := tokens.Parse(strings.TrimSpace(raw))
			if err != nil {
				writeMessage(w, http.StatusUnauthorized, "not authorized, token failed")
				return
			}
			if accounts != nil {
				acc, err := accounts.FindByID(r.Context(), userID)
				if err != nil {
					writeMessage(w, http.StatusInternalServerError, "internal error")
					return
				}
				if acc == nil {
					writeMessage(w, http.StatusUnauthorized, "not authorized, user not found")
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// AdminKey admits only requests whose "admin-key" header equals key.
// An empty key disables the guarded routes entirely.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("admin-key")
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeMessage(w, http.StatusForbidden, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying the authenticated account id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// GetUserIDFromContext extracts the authenticated account id from the
// request context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
