package handlers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"eventhub/internal/services"
	"eventhub/models"

	"github.com/pocketbase/pocketbase/core"
)

type CertificateAPI interface {
	GenerateAll(ctx context.Context, actor services.Actor, eventID string) (*services.BatchResult, error)
	GenerateForParticipant(ctx context.Context, actor services.Actor, eventID, participantID string) (*models.Certificate, error)
	Verify(ctx context.Context, number string) (*services.CertificateVerification, error)
	Download(ctx context.Context, actor services.Actor, number string) (io.ReadCloser, *models.CertificateDetails, error)
}

type CertificateHandler struct {
	certificates CertificateAPI
	log          *slog.Logger
}

func NewCertificateHandler(certificates CertificateAPI, logger *slog.Logger) *CertificateHandler {
	return &CertificateHandler{certificates: certificates, log: logger}
}

// GenerateAll - POST /admin/events/{eventId}/certificates/generate-all
func (h *CertificateHandler) GenerateAll(e *core.RequestEvent) error {
	res, err := h.certificates.GenerateAll(e.Request.Context(), actorFrom(e), e.Request.PathValue("eventId"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": res})
}

// Generate - POST /admin/events/{eventId}/participants/{participantId}/certificate
func (h *CertificateHandler) Generate(e *core.RequestEvent) error {
	cert, err := h.certificates.GenerateForParticipant(e.Request.Context(), actorFrom(e),
		e.Request.PathValue("eventId"), e.Request.PathValue("participantId"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusCreated, map[string]any{"status": "success", "data": cert})
}

// Verify - GET /certificates/verify/{certificateNumber}
func (h *CertificateHandler) Verify(e *core.RequestEvent) error {
	v, err := h.certificates.Verify(e.Request.Context(), e.Request.PathValue("certificateNumber"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"status": "success", "data": v})
}

// Download - GET /certificates/{certificateNumber}/download
func (h *CertificateHandler) Download(e *core.RequestEvent) error {
	rc, d, err := h.certificates.Download(e.Request.Context(), actorFrom(e), e.Request.PathValue("certificateNumber"))
	if err != nil {
		return respondError(e, h.log, err)
	}
	defer rc.Close()

	e.Response.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, d.CertificateNumber))
	return e.Stream(http.StatusOK, "application/pdf", rc)
}
