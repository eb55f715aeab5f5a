package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/webhook"
)

// maxWebhookBody caps the notification body read from the processor.
const maxWebhookBody = 1 << 20

func (h *Handlers) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	ack, err := h.reconciler.HandleNotification(r.Context(), raw)
	switch {
	case errors.Is(err, webhook.ErrMalformedPayload), errors.Is(err, webhook.ErrMissingPaymentID):
		respondError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.log.WithError(err).Error("handle webhook")
		respondError(w, http.StatusInternalServerError, "internal error")
	default:
		respondJSON(w, http.StatusOK, ack)
	}
}

// WebhookStatus lets operators check the endpoint is reachable.
func (h *Handlers) WebhookStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "webhook endpoint active",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
