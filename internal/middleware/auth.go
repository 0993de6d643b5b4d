package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fitforge/wearable-sync-go/internal/audit"
	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/httputil"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/repository"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

type contextKey string

const userContextKey contextKey = "authUser"

// Auth resolves a bearer API token to a user. Tokens are stored hashed, so
// the lookup never touches the raw value beyond hashing it.
func Auth(userRepo repository.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				httputil.WriteError(w, apperrors.Unauthorized("Missing bearer token"))
				return
			}

			user, err := userRepo.FindByTokenHash(r.Context(), util.HashToken(token))
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if user == nil {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventAuthFailure})
				httputil.WriteError(w, apperrors.Unauthorized("Invalid API token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUser returns the authenticated user set by Auth, or nil outside it.
func GetUser(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
