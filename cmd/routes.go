package cmd

import (
	"net/http"

	"eventhub/internal/handlers"
	"eventhub/security"
	"eventhub/utils"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

func registerRoutes(e *core.ServeEvent, c *container) {
	limiter := security.NewRateLimiter(c.redis, c.cfg.RateLimitPerMinute)

	paymentHandler := handlers.NewPaymentHandler(c.payments, c.log)
	webhookHandler := handlers.NewWebhookHandler(c.webhooks, c.log)
	attendanceHandler := handlers.NewAttendanceHandler(c.attendance, c.log)
	certificateHandler := handlers.NewCertificateHandler(c.certificates, c.log)
	adminHandler := handlers.NewAdminHandler(c.export, c.payments, c.log)

	// Gateway callbacks authenticate with the callback token, not a user session.
	e.Router.POST("/webhooks/xendit", webhookHandler.Xendit)

	// Payment endpoints
	e.Router.POST("/payments/ticket/create", paymentHandler.CreateTicket).
		Bind(apis.RequireAuth()).
		BindFunc(limiter.Middleware("purchase"))
	e.Router.GET("/payments/{id}/status", paymentHandler.Status).Bind(apis.RequireAuth())
	e.Router.POST("/payments/{id}/cancel", paymentHandler.Cancel).Bind(apis.RequireAuth())
	e.Router.POST("/events/{id}/register", paymentHandler.RegisterFree).
		Bind(apis.RequireAuth()).
		BindFunc(limiter.Middleware("purchase"))

	// Attendance endpoints
	e.Router.GET("/events/{id}/attendance-token", attendanceHandler.IssueToken).Bind(apis.RequireAuth())
	e.Router.POST("/attendance/verify", attendanceHandler.Verify).
		Bind(apis.RequireAuth()).
		BindFunc(limiter.Middleware("verify"))

	// Certificate endpoints
	e.Router.GET("/certificates/verify/{certificateNumber}", certificateHandler.Verify).
		BindFunc(limiter.Middleware("verify"))
	e.Router.GET("/certificates/{certificateNumber}/download", certificateHandler.Download).Bind(apis.RequireAuth())

	// Admin endpoints
	admin := e.Router.Group("/admin")
	admin.Bind(apis.RequireAuth())
	admin.BindFunc(handlers.RequireAdmin(c.log))
	admin.POST("/events/{eventId}/certificates/generate-all", certificateHandler.GenerateAll)
	admin.POST("/events/{eventId}/participants/{participantId}/certificate", certificateHandler.Generate)
	admin.GET("/events/{eventId}/participants/export", adminHandler.ExportParticipants)
	admin.POST("/payments/{id}/approve", adminHandler.ApprovePayment)
	admin.POST("/payments/{id}/refund", adminHandler.RefundPayment)

	// Health check
	e.Router.GET("/health", func(e *core.RequestEvent) error {
		if err := utils.RedisHealthCheck(e.Request.Context(), c.redis); err != nil {
			return e.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": "unhealthy",
				"error":  err.Error(),
			})
		}
		return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})
}
