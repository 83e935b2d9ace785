package handlers

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"eventhub/internal/services"
	"eventhub/models"

	"github.com/pocketbase/pocketbase/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ExportAPI interface {
	ExportParticipants(ctx context.Context, actor services.Actor, eventID string) ([]byte, string, error)
}

type PaymentAdminAPI interface {
	ApprovePayment(ctx context.Context, actor services.Actor, paymentID string) (*services.PaymentStatusView, error)
	RefundPayment(ctx context.Context, actor services.Actor, paymentID string, req services.RefundRequest) (*models.Transaction, error)
}

type AdminHandler struct {
	export   ExportAPI
	payments PaymentAdminAPI
	log      *slog.Logger
}

func NewAdminHandler(export ExportAPI, payments PaymentAdminAPI, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{export: export, payments: payments, log: logger}
}

// ExportParticipants - GET /admin/events/{eventId}/participants/export
func (h *AdminHandler) ExportParticipants(e *core.RequestEvent) error {
	data, name, err := h.export.ExportParticipants(e.Request.Context(), actorFrom(e), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	return e.Stream(http.StatusOK, xlsxContentType, bytes.NewReader(data))
}

// ApprovePayment - POST /admin/payments/{id}/approve
func (h *AdminHandler) ApprovePayment(e *core.RequestEvent) error {
	view, err := h.payments.ApprovePayment(e.Request.Context(), actorFrom(e), e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Payment approved",
		"data":    view,
	})
}

// RefundPayment - POST /admin/payments/{id}/refund
func (h *AdminHandler) RefundPayment(e *core.RequestEvent) error {
	var req services.RefundRequest
	if err := decodeStrict(e, &req); err != nil {
		return respondError(e, h.log, err)
	}

	tx, err := h.payments.RefundPayment(e.Request.Context(), actorFrom(e), e.Request.PathValue("id"), req)
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": tx})
}
