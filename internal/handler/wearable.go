package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/audit"
	"github.com/fitforge/wearable-sync-go/internal/config"
	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/httputil"
	"github.com/fitforge/wearable-sync-go/internal/middleware"
	"github.com/fitforge/wearable-sync-go/internal/model"
	"github.com/fitforge/wearable-sync-go/internal/service"
)

// ConnectionAPI is the slice of the connection service these endpoints use.
type ConnectionAPI interface {
	List(ctx context.Context, userID string) ([]model.Connection, error)
	RecentEvents(ctx context.Context, userID string, limit int) ([]model.SyncEvent, error)
	BeginAuth(ctx context.Context, userID string, provider model.Provider) (redirectURL, stateToken string, err error)
	CompleteAuth(ctx context.Context, provider model.Provider, stateToken string, query url.Values) (*model.Connection, error)
	Disconnect(ctx context.Context, userID string, provider model.Provider) error
}

var _ ConnectionAPI = (*service.ConnectionService)(nil)

// WearableHandler owns the connection lifecycle endpoints: listing, the
// OAuth dance for both providers, and disconnect.
type WearableHandler struct {
	connections ConnectionAPI
	appBaseURL  string
}

func NewWearableHandler(connections ConnectionAPI, appBaseURL string) *WearableHandler {
	return &WearableHandler{connections: connections, appBaseURL: appBaseURL}
}

// List returns the user's connections. Token columns never serialize.
func (h *WearableHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	connections, err := h.connections.List(r.Context(), user.ID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"connections": connections})
}

// Log returns the user's recent sync events, newest first.
func (h *WearableHandler) Log(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	events, err := h.connections.RecentEvents(r.Context(), user.ID, 50)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Authorize starts the OAuth flow and redirects to the provider. The signed
// state travels in an HttpOnly cookie, set only once the provider handshake
// succeeded.
func (h *WearableHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	provider := model.Provider(chi.URLParam(r, "provider"))

	redirectURL, stateToken, err := h.connections.BeginAuth(r.Context(), user.ID, provider)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.StateCookieName,
		Value:    stateToken,
		Path:     "/",
		MaxAge:   int(config.StateTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, redirectURL, http.StatusFound)
}

// Callback lands the provider redirect. Every failure maps to a reason code
// in the frontend redirect rather than an error body, since the browser is
// mid-navigation here. The state cookie is cleared only on success, so a
// user who hits a transient failure can retry the same window.
func (h *WearableHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := model.Provider(chi.URLParam(r, "provider"))
	query := r.URL.Query()

	cookie, err := r.Cookie(config.StateCookieName)
	if err != nil || cookie.Value == "" {
		h.rejectCallback(w, r, provider, "expired_session", "state cookie missing")
		return
	}

	conn, err := h.connections.CompleteAuth(r.Context(), provider, cookie.Value, query)
	if err != nil {
		h.rejectCallback(w, r, provider, callbackReason(err), err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     config.StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	h.redirectToApp(w, r, url.Values{
		"status":   {"connected"},
		"provider": {string(conn.Provider)},
	})
}

// Disconnect deactivates the connection and wipes its tokens.
func (h *WearableHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	provider := model.Provider(chi.URLParam(r, "provider"))

	if err := h.connections.Disconnect(r.Context(), user.ID, provider); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"disconnected": true, "provider": provider})
}

func (h *WearableHandler) rejectCallback(w http.ResponseWriter, r *http.Request, provider model.Provider, reason, detail string) {
	log.Warn().
		Str("provider", string(provider)).
		Str("reason", reason).
		Str("detail", detail).
		Msg("oauth callback rejected")
	audit.LogFromRequest(r, audit.Event{
		Type:     audit.EventCallbackRejected,
		Provider: string(provider),
		Details:  map[string]interface{}{"reason": reason},
	})
	h.redirectToApp(w, r, url.Values{"status": {reason}})
}

func (h *WearableHandler) redirectToApp(w http.ResponseWriter, r *http.Request, params url.Values) {
	http.Redirect(w, r, h.appBaseURL+"/settings/wearables?"+params.Encode(), http.StatusFound)
}

// callbackReason folds the error taxonomy into the short reason codes the
// frontend settings page understands.
func callbackReason(err error) string {
	switch apperrors.GetCode(err) {
	case apperrors.ErrCodeMissingRequired:
		return "missing_params"
	case apperrors.ErrCodeStateExpired:
		return "expired_session"
	case apperrors.ErrCodeInvalidSignature, apperrors.ErrCodeStateMismatch:
		return "invalid_state"
	case apperrors.ErrCodeConflict:
		return "provider_mismatch"
	case apperrors.ErrCodeDatabase:
		return "storage_failed"
	}
	return "exchange_failed"
}
