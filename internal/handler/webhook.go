package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/avatarly/payments/internal/service"
)

const maxWebhookBody = 1 << 20

// WebhookHandler receives gateway deliveries. It reads the raw body before
// any decoding; the signature covers the exact bytes on the wire.
type WebhookHandler struct {
	webhooks *service.WebhookService
	logger   *slog.Logger
}

func NewWebhookHandler(webhooks *service.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, logger: logger}
}

// Handle processes POST /payments/webhook. Business-level rejections return
// 200 so the gateway stops retrying; only unsigned or malformed deliveries
// get an error status.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{"code": "VALIDATION_ERROR", "message": "unreadable body"})
		return
	}

	if err := h.webhooks.HandleDelivery(r.Context(), body, r.Header.Get("X-Razorpay-Signature")); err != nil {
		RespondError(w, h.logger, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
