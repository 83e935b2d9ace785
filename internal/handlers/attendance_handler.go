package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"eventhub/internal/services"

	"github.com/pocketbase/pocketbase/core"
)

type AttendanceAPI interface {
	IssueToken(ctx context.Context, actor services.Actor, eventID string) (*services.IssuedToken, error)
	VerifyToken(ctx context.Context, actor services.Actor, req services.VerifyTokenRequest) (*services.AttendanceVerification, error)
}

type AttendanceHandler struct {
	attendance AttendanceAPI
	log        *slog.Logger
}

func NewAttendanceHandler(attendance AttendanceAPI, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance, log: logger}
}

// IssueToken - GET /events/{id}/attendance-token
func (h *AttendanceHandler) IssueToken(e *core.RequestEvent) error {
	tok, err := h.attendance.IssueToken(e.Request.Context(), actorFrom(e), e.Request.PathValue("id"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": tok})
}

// Verify - POST /attendance/verify
func (h *AttendanceHandler) Verify(e *core.RequestEvent) error {
	var req services.VerifyTokenRequest
	if err := decodeStrict(e, &req); err != nil {
		return respondError(e, h.log, err)
	}

	res, err := h.attendance.VerifyToken(e.Request.Context(), actorFrom(e), req)
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Attendance verified",
		"data":    res,
	})
}
