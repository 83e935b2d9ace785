package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "")
	t.Setenv("CERTIFICATE_WORKERS", "")
	t.Setenv("APP_TIMEZONE", "")
	t.Setenv("PAYMENT_GATEWAY", "")

	cfg := LoadConfig()

	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 4, cfg.CertificateWorkers)
	assert.Equal(t, "Asia/Jakarta", cfg.Timezone)
	assert.Equal(t, "xendit", cfg.PaymentGateway)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("GATEWAY_TIMEOUT", "3s")
	t.Setenv("CERTIFICATE_WORKERS", "8")
	t.Setenv("ENABLE_METRICS", "false")
	t.Setenv("XENDIT_CALLBACK_TOKEN", "cb-token")
	t.Setenv("PAYMENT_GATEWAY", "stripe")

	cfg := LoadConfig()

	assert.Equal(t, 3*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 8, cfg.CertificateWorkers)
	assert.False(t, cfg.EnableMetrics)
	assert.Equal(t, "cb-token", cfg.XenditCallbackToken)
	assert.Equal(t, "stripe", cfg.PaymentGateway)
}

func TestGetEnvAsDuration_InvalidFallsBack(t *testing.T) {
	t.Setenv("RENDER_TIMEOUT", "soon")

	assert.Equal(t, 30*time.Second, getEnvAsDuration("RENDER_TIMEOUT", "30s"))
}

func TestLocation(t *testing.T) {
	cfg := &Config{Timezone: "UTC"}
	assert.Equal(t, time.UTC, cfg.Location())

	cfg.Timezone = "Nowhere/Invalid"
	assert.Equal(t, time.UTC, cfg.Location())
}
