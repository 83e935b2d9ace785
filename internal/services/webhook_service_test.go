package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const callbackToken = "cb-secret"

type webhookFixture struct {
	svc      *WebhookService
	store    *fakeStore
	locker   *fakeLocker
	notifier *recordingNotifier
}

func newWebhookFixture(t *testing.T, p models.Payment) *webhookFixture {
	t.Helper()
	st := newFakeStore()
	st.addUser(models.User{ID: "u1", Name: "Ayu", Email: "ayu@example.com"})
	st.addEvent(paidEvent(10))
	st.addPayment(p)

	locker := newFakeLocker()
	n := &recordingNotifier{}
	svc := NewWebhookService(st, staticVerifier(callbackToken), locker, n, nil, testLogger, 30*time.Second)
	svc.now = fixedClock(testNow)
	return &webhookFixture{svc: svc, store: st, locker: locker, notifier: n}
}

func pendingPayment() models.Payment {
	return models.Payment{
		ID:             "p1",
		UserID:         "u1",
		EventID:        "ev1",
		ExternalID:     "X1",
		Amount:         decimal.NewFromInt(100000),
		Currency:       "IDR",
		Status:         models.PaymentPending,
		Quantity:       1,
		PricePerTicket: decimal.NewFromInt(100000),
	}
}

func TestHandleXenditCallback_X1Scenario(t *testing.T) {
	f := newWebhookFixture(t, pendingPayment())

	outcome, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"external_id":"X1","status":"paid","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	p, err := f.store.GetPayment(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, p.Status)
	require.NotNil(t, p.PaidAt)

	txs := f.store.transactionsFor("p1")
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionPayment, txs[0].Type)
	assert.Equal(t, models.TransactionCompleted, txs[0].Status)
	assert.True(t, decimal.NewFromInt(100000).Equal(txs[0].Amount))
	assert.Equal(t, "X1", txs[0].ReferenceID)

	assert.Len(t, f.store.participantsOf("ev1"), 1)
	assert.Equal(t, []string{"payment_paid"}, f.notifier.kinds())
}

func TestHandleXenditCallback_Idempotent(t *testing.T) {
	f := newWebhookFixture(t, pendingPayment())
	payload := []byte(`{"id":"inv_123","external_id":"X1","status":"PAID","amount":100000,"paid_amount":100000,"payment_method":"BANK_TRANSFER","bank_code":"BCA","paid_at":"2026-10-01T08:59:00.000Z"}`)
	ctx := context.Background()

	first, err := f.svc.HandleXenditCallback(ctx, payload, callbackToken)
	require.NoError(t, err)
	second, err := f.svc.HandleXenditCallback(ctx, payload, callbackToken)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, first)
	assert.Equal(t, OutcomeDuplicate, second)
	assert.Len(t, f.store.transactionsFor("p1"), 1)
	assert.Len(t, f.store.participantsOf("ev1"), 1)
	assert.Len(t, f.notifier.kinds(), 1)

	p, err := f.store.GetPayment(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "inv_123", p.GatewayPaymentID)
	assert.Equal(t, "BANK_TRANSFER", p.PaymentMethod)
	assert.Equal(t, "BCA", p.PaymentChannel)
	assert.Equal(t, time.Date(2026, 10, 1, 8, 59, 0, 0, time.UTC), p.PaidAt.UTC())
}

func TestHandleXenditCallback_BadTokenTouchesNothing(t *testing.T) {
	f := newWebhookFixture(t, pendingPayment())

	_, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"external_id":"X1","status":"PAID","amount":100000}`), "wrong")

	require.Error(t, err)
	assert.True(t, errors.Is(err, status.ErrInvalidCallback))
	assert.Equal(t, status.KindAuthorization, status.KindOf(err))

	p, _ := f.store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentPending, p.Status)
	assert.Empty(t, f.store.transactionsFor("p1"))
}

func TestHandleXenditCallback_Errors(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantKind status.Kind
		wantCode string
	}{
		{"malformed json", `{"external_id":`, status.KindValidation, status.CodeInvalidRequest},
		{"missing status", `{"external_id":"X1","amount":100000}`, status.KindValidation, status.CodeInvalidRequest},
		{"unknown payment", `{"id":"inv_9","external_id":"X9","status":"PAID","amount":100000}`, status.KindNotFound, status.CodeNotFound},
		{"amount mismatch", `{"external_id":"X1","status":"PAID","amount":99999}`, status.KindValidation, status.CodeAmountMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(t, pendingPayment())

			_, err := f.svc.HandleXenditCallback(context.Background(), []byte(tt.payload), callbackToken)

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, status.KindOf(err))
			assert.Equal(t, tt.wantCode, status.CodeOf(err))
			p, _ := f.store.GetPayment(context.Background(), "p1")
			assert.Equal(t, models.PaymentPending, p.Status)
		})
	}
}

func TestHandleXenditCallback_FallsBackToGatewayID(t *testing.T) {
	p := pendingPayment()
	p.GatewayPaymentID = "inv_123"
	f := newWebhookFixture(t, p)

	outcome, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_123","external_id":"renamed","status":"PAID","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
}

func TestHandleXenditCallback_FailedAndExpired(t *testing.T) {
	tests := []struct {
		raw        string
		wantStatus models.PaymentStatus
		wantKind   string
	}{
		{"FAILED", models.PaymentFailed, "payment_failed"},
		{"EXPIRED", models.PaymentExpired, "payment_expired"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f := newWebhookFixture(t, pendingPayment())
			payload := []byte(`{"id":"inv_1","external_id":"X1","status":"` + tt.raw + `","amount":100000}`)

			outcome, err := f.svc.HandleXenditCallback(context.Background(), payload, callbackToken)
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, outcome)

			again, err := f.svc.HandleXenditCallback(context.Background(), payload, callbackToken)
			require.NoError(t, err)
			assert.Equal(t, OutcomeDuplicate, again)

			p, _ := f.store.GetPayment(context.Background(), "p1")
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, "invoice "+tt.raw, p.FailureReason)
			assert.Empty(t, f.store.transactionsFor("p1"))
			assert.Equal(t, []string{tt.wantKind}, f.notifier.kinds())
		})
	}
}

func TestHandleXenditCallback_PaidAfterExpiry(t *testing.T) {
	p := pendingPayment()
	p.Status = models.PaymentExpired
	f := newWebhookFixture(t, p)

	outcome, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_1","external_id":"X1","status":"SETTLED","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	got, _ := f.store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentPaid, got.Status)
}

func TestHandleXenditCallback_PaidForCancelledPaymentIgnored(t *testing.T) {
	p := pendingPayment()
	p.Status = models.PaymentCancelled
	f := newWebhookFixture(t, p)

	outcome, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_1","external_id":"X1","status":"PAID","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	assert.Empty(t, f.store.transactionsFor("p1"))
}

func TestHandleXenditCallback_UnknownStatusIgnored(t *testing.T) {
	f := newWebhookFixture(t, pendingPayment())

	outcome, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_1","external_id":"X1","status":"REVERSED","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	got, _ := f.store.GetPayment(context.Background(), "p1")
	assert.Equal(t, models.PaymentPending, got.Status)
}

func TestHandleXenditCallback_ApprovalDefersParticipant(t *testing.T) {
	p := pendingPayment()
	p.RequiresApproval = true
	f := newWebhookFixture(t, p)

	_, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_1","external_id":"X1","status":"PAID","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Empty(t, f.store.participantsOf("ev1"))
}

func TestHandleXenditCallback_LockHeld(t *testing.T) {
	f := newWebhookFixture(t, pendingPayment())
	release, ok, err := f.locker.Acquire(context.Background(), webhookLockKey("X1"), time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	defer release()

	_, err = f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_1","external_id":"X1","status":"PAID","amount":100000}`), callbackToken)

	assert.Equal(t, status.KindConflict, status.KindOf(err))
	assert.Equal(t, status.CodeBusy, status.CodeOf(err))
}

func TestHandleXenditCallback_RedisDownStillApplies(t *testing.T) {
	f := newWebhookFixture(t, pendingPayment())
	f.locker.err = errors.New("dial tcp: connection refused")

	outcome, err := f.svc.HandleXenditCallback(context.Background(),
		[]byte(`{"id":"inv_1","external_id":"X1","status":"PAID","amount":100000}`), callbackToken)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
}
