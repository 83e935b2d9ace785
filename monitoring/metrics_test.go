package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMonitor_TrackWebhook(t *testing.T) {
	m := NewMonitor(nil)
	before := testutil.ToFloat64(webhookNotifications.WithLabelValues("PAID", "applied"))

	m.TrackWebhook("PAID", "applied")
	m.TrackWebhook("PAID", "applied")

	assert.Equal(t, before+2, testutil.ToFloat64(webhookNotifications.WithLabelValues("PAID", "applied")))
}

func TestMonitor_TrackCertificate(t *testing.T) {
	m := NewMonitor(nil)
	before := testutil.ToFloat64(certificatesIssued.WithLabelValues("failed"))

	m.TrackCertificate("failed")

	assert.Equal(t, before+1, testutil.ToFloat64(certificatesIssued.WithLabelValues("failed")))
}

func TestMonitor_NilIsNoop(t *testing.T) {
	var m *Monitor

	assert.NotPanics(t, func() {
		m.TrackPayment("create", "ok")
		m.TrackWebhook("PAID", "applied")
		m.TrackAttendance("verified")
		m.TrackCertificate("issued")
		m.ObserveGateway("create_invoice", errors.New("x"), time.Second)
		m.ObserveRender(time.Second)
	})
}
