package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fitforge/wearable-sync-go/internal/garmin"
	"github.com/fitforge/wearable-sync-go/internal/service"
)

// WebhookProcessor is the slice of the webhook service these endpoints use.
type WebhookProcessor interface {
	ProcessPayload(ctx context.Context, payload garmin.WebhookPayload)
	ProcessDeregistration(ctx context.Context, payload garmin.DeregistrationPayload)
}

var _ WebhookProcessor = (*service.WebhookService)(nil)

// WebhookHandler terminates Garmin's push notifications. Garmin retries on
// non-2xx and disables the webhook after repeated failures, so every path
// here answers 200 and failures surface only in logs and the sync event log.
type WebhookHandler struct {
	webhooks WebhookProcessor
}

func NewWebhookHandler(webhooks WebhookProcessor) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload garmin.WebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("garmin webhook: undecodable payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.webhooks.ProcessPayload(r.Context(), payload)
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	var payload garmin.DeregistrationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Warn().Err(err).Msg("garmin deregistration: undecodable payload")
		w.WriteHeader(http.StatusOK)
		return
	}

	h.webhooks.ProcessDeregistration(r.Context(), payload)
	w.WriteHeader(http.StatusOK)
}
