package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"eventhub/internal/notify"
	"eventhub/internal/services/gateway"
	"eventhub/internal/services/gateway/xendit"
	"eventhub/internal/status"
	"eventhub/internal/store"
	"eventhub/models"
	"eventhub/monitoring"
)

type WebhookOutcome string

const (
	OutcomeApplied   WebhookOutcome = "applied"
	OutcomeDuplicate WebhookOutcome = "duplicate"
	OutcomeIgnored   WebhookOutcome = "ignored"
)

type WebhookService struct {
	store    store.Store
	verifier Verifier
	locker   Locker
	notifier Notifier
	monitor  *monitoring.Monitor
	log      *slog.Logger
	lockTTL  time.Duration
	now      Clock
}

func NewWebhookService(st store.Store, verifier Verifier, locker Locker, notifier Notifier, monitor *monitoring.Monitor, logger *slog.Logger, lockTTL time.Duration) *WebhookService {
	return &WebhookService{
		store:    st,
		verifier: verifier,
		locker:   locker,
		notifier: notifier,
		monitor:  monitor,
		log:      logger,
		lockTTL:  lockTTL,
		now:      time.Now,
	}
}

// HandleXenditCallback applies an invoice callback to its payment. Redelivery of an
// already applied callback is a no-op reported as OutcomeDuplicate.
func (s *WebhookService) HandleXenditCallback(ctx context.Context, payload []byte, callbackToken string) (WebhookOutcome, error) {
	if !s.verifier.Verify(payload, callbackToken) {
		s.monitor.TrackWebhook("unknown", "rejected")
		s.log.Warn("webhook rejected: bad callback token")
		return "", status.Forbidden(status.CodeInvalidCallbackToken, "invalid callback token")
	}

	n, err := xendit.ParseCallback(payload)
	if err != nil {
		s.monitor.TrackWebhook("unknown", "malformed")
		return "", status.ValidationWrap("malformed callback payload", err)
	}

	p, err := s.findPayment(ctx, n)
	if err != nil {
		s.monitor.TrackWebhook(string(n.Status()), "unmatched")
		s.log.Warn("webhook for unknown payment", "external_id", n.ExternalID, "gateway_id", n.ID)
		return "", err
	}

	release, ok, err := s.locker.Acquire(ctx, webhookLockKey(p.ExternalID), s.lockTTL)
	switch {
	case err != nil:
		// the conditional updates below stay correct without the lock
		s.log.Warn("webhook lock unavailable, continuing", "external_id", p.ExternalID, "error", err)
	case !ok:
		s.monitor.TrackWebhook(string(n.Status()), "busy")
		return "", status.Conflict(status.CodeBusy, "callback for this payment is already being processed")
	}
	defer release()

	var outcome WebhookOutcome
	switch n.Status() {
	case gateway.NotificationPaid:
		outcome, err = s.applyPaid(ctx, p, n)
	case gateway.NotificationFailed:
		outcome, err = s.applyClosed(ctx, p, n, models.PaymentFailed)
	case gateway.NotificationExpired:
		outcome, err = s.applyClosed(ctx, p, n, models.PaymentExpired)
	default:
		s.log.Info("webhook status ignored", "external_id", p.ExternalID, "status", n.RawStatus)
		outcome = OutcomeIgnored
	}
	if err != nil {
		s.monitor.TrackWebhook(string(n.Status()), "error")
		s.log.Error("webhook processing failed", "external_id", p.ExternalID, "status", n.RawStatus, "error", err)
		return "", err
	}

	s.monitor.TrackWebhook(string(n.Status()), string(outcome))
	s.log.Info("webhook processed", "external_id", p.ExternalID, "status", n.RawStatus, "outcome", outcome)
	return outcome, nil
}

func (s *WebhookService) findPayment(ctx context.Context, n *gateway.Notification) (*models.Payment, error) {
	p, err := s.store.GetPaymentByExternalID(ctx, n.ExternalID)
	if err == nil || !errors.Is(err, status.ErrNotFound) || n.ID == "" {
		return p, err
	}
	return s.store.GetPaymentByGatewayID(ctx, n.ID)
}

func (s *WebhookService) applyPaid(ctx context.Context, p *models.Payment, n *gateway.Notification) (WebhookOutcome, error) {
	amount := n.PaidAmount
	if !amount.IsPositive() {
		amount = n.Amount
	}
	if !amount.Equal(p.Amount) {
		return "", status.Validation(status.CodeAmountMismatch, "callback amount "+amount.String()+" does not match payment amount "+p.Amount.String())
	}

	now := s.now()
	paidAt := n.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	ref := n.ReferenceID()

	outcome := OutcomeDuplicate
	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		exists, err := tx.TransactionExists(ctx, ref)
		if err != nil || exists {
			return err
		}

		ok, err := tx.TransitionPayment(ctx, p.ID,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentExpired},
			models.PaymentUpdate{
				Status:           models.PaymentPaid,
				PaidAt:           &paidAt,
				GatewayPaymentID: n.ID,
				PaymentMethod:    n.PaymentMethod,
				PaymentChannel:   n.Channel,
			})
		if err != nil {
			return err
		}
		if !ok {
			current, err := tx.GetPayment(ctx, p.ID)
			if err != nil {
				return err
			}
			if current.Status != models.PaymentPaid {
				// money arrived for a payment that was cancelled or failed; needs a manual refund
				s.log.Error("paid callback for closed payment", "payment_id", p.ID, "status", current.Status, "reference_id", ref)
				outcome = OutcomeIgnored
			}
			return nil
		}

		if err := tx.CreateTransaction(ctx, &models.Transaction{
			PaymentID:   p.ID,
			Type:        models.TransactionPayment,
			Amount:      amount,
			Status:      models.TransactionCompleted,
			ReferenceID: ref,
			ProcessedAt: &now,
		}); err != nil {
			return err
		}

		if !p.AwaitingApproval() {
			if _, err := tx.EnsureParticipant(ctx, participantFor(p)); err != nil {
				return err
			}
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return "", err
	}

	if outcome == OutcomeApplied {
		p.Status = models.PaymentPaid
		p.PaidAt = &paidAt
		s.monitor.TrackPayment("settle", string(models.PaymentPaid))
		s.notifier.Notify(ctx, p.UserID, notify.TypePaymentPaid, paymentMessage(p))
	}
	return outcome, nil
}

func (s *WebhookService) applyClosed(ctx context.Context, p *models.Payment, n *gateway.Notification, target models.PaymentStatus) (WebhookOutcome, error) {
	if p.Status == target {
		return OutcomeDuplicate, nil
	}

	ok, err := s.store.TransitionPayment(ctx, p.ID, []models.PaymentStatus{models.PaymentPending}, models.PaymentUpdate{
		Status:           target,
		GatewayPaymentID: n.ID,
		FailureReason:    n.FailureReason,
	})
	if err != nil {
		return "", err
	}
	if !ok {
		// lost to a concurrent transition or the payment already settled
		return OutcomeDuplicate, nil
	}

	p.Status = target
	p.FailureReason = n.FailureReason
	s.monitor.TrackPayment("settle", string(target))

	kind := notify.TypePaymentFailed
	if target == models.PaymentExpired {
		kind = notify.TypePaymentExpired
	}
	msg := paymentMessage(p)
	msg["reason"] = n.FailureReason
	s.notifier.Notify(ctx, p.UserID, kind, msg)
	return OutcomeApplied, nil
}
