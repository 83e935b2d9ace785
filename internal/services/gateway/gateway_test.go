package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventhub/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
	name Provider
}

func (m *mockGateway) Provider() Provider {
	if m.name != "" {
		return m.name
	}
	return ProviderXendit
}

func (m *mockGateway) CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Invoice, error) {
	args := m.Called(ctx, req)
	inv, _ := args.Get(0).(*Invoice)
	return inv, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, req *RefundRequest) (*Refund, error) {
	args := m.Called(ctx, req)
	rf, _ := args.Get(0).(*Refund)
	return rf, args.Error(1)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	_, err := r.Primary()
	assert.Error(t, err)

	g := &mockGateway{}
	r.Register(g)

	primary, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, ProviderXendit, primary.Provider())

	assert.Error(t, r.SetPrimary("stripe"))
	_, err = r.Get("stripe")
	assert.Error(t, err)
}

func TestRegistry_SetPrimary(t *testing.T) {
	r := NewRegistry()
	r.Register(&mockGateway{})
	r.Register(&mockGateway{name: "stripe"})

	primary, err := r.Primary()
	require.NoError(t, err)
	assert.Equal(t, ProviderXendit, primary.Provider())

	require.NoError(t, r.SetPrimary("stripe"))
	primary, err = r.Primary()
	require.NoError(t, err)
	assert.Equal(t, Provider("stripe"), primary.Provider())

	assert.Error(t, r.SetPrimary("paypal"))
	primary, err = r.Primary()
	require.NoError(t, err)
	assert.Equal(t, Provider("stripe"), primary.Provider())
}

func TestGuarded_PassesThrough(t *testing.T) {
	g := &mockGateway{}
	g.On("CreateInvoice", mock.Anything, mock.Anything).Return(&Invoice{ID: "inv_1"}, nil)

	inv, err := NewGuarded(g, time.Second, nil).CreateInvoice(context.Background(), &InvoiceRequest{ExternalID: "e"})

	require.NoError(t, err)
	assert.Equal(t, "inv_1", inv.ID)
	g.AssertExpectations(t)
}

func TestGuarded_TimeoutBecomesExternalError(t *testing.T) {
	g := &mockGateway{}
	g.On("CreateInvoice", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(nil, context.DeadlineExceeded)

	_, err := NewGuarded(g, 20*time.Millisecond, nil).CreateInvoice(context.Background(), &InvoiceRequest{})

	require.Error(t, err)
	assert.Equal(t, status.KindExternalService, status.KindOf(err))
	assert.Equal(t, status.CodeGatewayTimeout, status.CodeOf(err))
}

func TestGuarded_FailureBecomesExternalError(t *testing.T) {
	g := &mockGateway{}
	g.On("Refund", mock.Anything, mock.Anything).Return(nil, errors.New("502 bad gateway"))

	_, err := NewGuarded(g, time.Second, nil).Refund(context.Background(), &RefundRequest{})

	assert.Equal(t, status.KindExternalService, status.KindOf(err))
	assert.Equal(t, status.CodeGatewayUnavailable, status.CodeOf(err))
}

func TestNotification_Status(t *testing.T) {
	tests := map[string]NotificationStatus{
		"PAID":     NotificationPaid,
		"settled":  NotificationPaid,
		"FAILED":   NotificationFailed,
		"EXPIRED":  NotificationExpired,
		"PENDING":  NotificationUnknown,
		"REVERSED": NotificationUnknown,
	}
	for raw, want := range tests {
		t.Run(raw, func(t *testing.T) {
			n := &Notification{RawStatus: raw}
			assert.Equal(t, want, n.Status())
		})
	}
}
