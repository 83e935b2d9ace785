package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"eventhub/internal/services"
	"eventhub/internal/status"

	"github.com/pocketbase/pocketbase/core"
)

const callbackTokenHeader = "x-callback-token"

type WebhookAPI interface {
	HandleXenditCallback(ctx context.Context, payload []byte, callbackToken string) (services.WebhookOutcome, error)
}

type WebhookHandler struct {
	webhooks WebhookAPI
	log      *slog.Logger
}

func NewWebhookHandler(webhooks WebhookAPI, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks, log: logger}
}

// Xendit - POST /webhooks/xendit
// The raw body is passed through untouched; the service verifies it before parsing.
func (h *WebhookHandler) Xendit(e *core.RequestEvent) error {
	payload, err := io.ReadAll(http.MaxBytesReader(e.Response, e.Request.Body, maxBodyBytes))
	if err != nil {
		return respondError(e, h.log, status.ValidationWrap("unreadable body", err))
	}

	outcome, err := h.webhooks.HandleXenditCallback(e.Request.Context(), payload, e.Request.Header.Get(callbackTokenHeader))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"outcome": outcome,
	})
}
