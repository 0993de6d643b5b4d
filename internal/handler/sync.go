package handler

import (
	"context"
	"net/http"

	"github.com/fitforge/wearable-sync-go/internal/httputil"
	"github.com/fitforge/wearable-sync-go/internal/service"
)

// SyncRunner is the slice of the sync service this endpoint uses.
type SyncRunner interface {
	Run(ctx context.Context) service.SyncResult
}

var _ SyncRunner = (*service.SyncService)(nil)

// SyncHandler exposes the scheduled Fitbit pull for manual runs. It sits
// behind the cron secret, not user auth.
type SyncHandler struct {
	sync SyncRunner
}

func NewSyncHandler(sync SyncRunner) *SyncHandler {
	return &SyncHandler{sync: sync}
}

func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	result := h.sync.Run(r.Context())
	httputil.WriteJSON(w, http.StatusOK, result)
}
