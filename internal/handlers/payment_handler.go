package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"eventhub/internal/services"
	"eventhub/models"

	"github.com/pocketbase/pocketbase/core"
)

type PaymentAPI interface {
	CreateTicketPayment(ctx context.Context, actor services.Actor, req services.TicketPurchaseRequest) (*services.PaymentIntent, error)
	GetPaymentStatus(ctx context.Context, actor services.Actor, paymentID string) (*services.PaymentStatusView, error)
	CancelPayment(ctx context.Context, actor services.Actor, paymentID string) (*services.PaymentStatusView, error)
	RegisterFree(ctx context.Context, actor services.Actor, eventID string) (*models.EventParticipant, error)
}

type PaymentHandler struct {
	payments PaymentAPI
	log      *slog.Logger
}

func NewPaymentHandler(payments PaymentAPI, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{payments: payments, log: logger}
}

// CreateTicket - POST /payments/ticket/create
func (h *PaymentHandler) CreateTicket(e *core.RequestEvent) error {
	var req services.TicketPurchaseRequest
	if err := decodeStrict(e, &req); err != nil {
		return respondError(e, h.log, err)
	}

	intent, err := h.payments.CreateTicketPayment(e.Request.Context(), actorFrom(e), req)
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusCreated, map[string]any{
		"status": "success",
		"data":   intent,
	})
}

// Status - GET /payments/{id}/status
func (h *PaymentHandler) Status(e *core.RequestEvent) error {
	view, err := h.payments.GetPaymentStatus(e.Request.Context(), actorFrom(e), e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": view})
}

// Cancel - POST /payments/{id}/cancel
func (h *PaymentHandler) Cancel(e *core.RequestEvent) error {
	view, err := h.payments.CancelPayment(e.Request.Context(), actorFrom(e), e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Payment cancelled",
		"data":    view,
	})
}

// RegisterFree - POST /events/{id}/register
func (h *PaymentHandler) RegisterFree(e *core.RequestEvent) error {
	p, err := h.payments.RegisterFree(e.Request.Context(), actorFrom(e), e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusCreated, map[string]any{"status": "success", "data": p})
}
