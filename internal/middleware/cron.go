package middleware

import (
	"net/http"

	"github.com/fitforge/wearable-sync-go/internal/audit"
	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/httputil"
	"github.com/fitforge/wearable-sync-go/internal/util"
)

// CronAuth gates operational endpoints behind a shared secret. With no
// secret configured the endpoints refuse to run rather than run open.
func CronAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httputil.WriteError(w, apperrors.NotConfigured("CRON_SECRET"))
				return
			}

			token := bearerToken(r)
			if token == "" || !util.ConstantTimeEqual(token, secret) {
				audit.LogFromRequest(r, audit.Event{Type: audit.EventCronAuthFailure})
				httputil.WriteError(w, apperrors.Unauthorized("Invalid cron secret"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
