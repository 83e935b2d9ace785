package monitoring

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

var (
	paymentOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_operations_total",
			Help: "Payment lifecycle operations by outcome",
		},
		[]string{"operation", "status"},
	)

	webhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Gateway webhook deliveries by reported status and processing outcome",
		},
		[]string{"status", "outcome"},
	)

	attendanceVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendance_verifications_total",
			Help: "Attendance token verifications by result",
		},
		[]string{"result"},
	)

	certificatesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificates_issued_total",
			Help: "Certificate generation attempts by outcome",
		},
		[]string{"outcome"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Latency of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"operation", "status"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "certificate_render_duration_seconds",
			Help:    "Duration of certificate rendering",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	redisPoolConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "redis_pool_connections",
			Help: "Redis connection pool usage",
		},
		[]string{"state"},
	)
)

// Monitor records domain metrics. A nil *Monitor is a no-op so services can run
// without metrics in tests.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

// Run samples Redis pool statistics until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	if m == nil || m.redis == nil {
		return
	}
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := m.redis.PoolStats()
			redisPoolConns.WithLabelValues("total").Set(float64(stats.TotalConns))
			redisPoolConns.WithLabelValues("idle").Set(float64(stats.IdleConns))
			redisPoolConns.WithLabelValues("stale").Set(float64(stats.StaleConns))
		}
	}
}

func (m *Monitor) TrackPayment(operation, status string) {
	if m == nil {
		return
	}
	paymentOperations.WithLabelValues(operation, status).Inc()
}

func (m *Monitor) TrackWebhook(status, outcome string) {
	if m == nil {
		return
	}
	webhookNotifications.WithLabelValues(status, outcome).Inc()
}

func (m *Monitor) TrackAttendance(result string) {
	if m == nil {
		return
	}
	attendanceVerifications.WithLabelValues(result).Inc()
}

func (m *Monitor) TrackCertificate(outcome string) {
	if m == nil {
		return
	}
	certificatesIssued.WithLabelValues(outcome).Inc()
}

func (m *Monitor) ObserveGateway(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	gatewayDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

func (m *Monitor) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	renderDuration.Observe(d.Seconds())
}

// Serve exposes /metrics on its own listener until ctx is cancelled.
func Serve(ctx context.Context, port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("metrics server stopped", "error", err)
	}
}
