package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"eventhub/internal/notify"
	"eventhub/internal/services/gateway"
	"eventhub/internal/status"
	"eventhub/internal/store"
	"eventhub/models"
	"eventhub/monitoring"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentConfig struct {
	InvoiceDuration time.Duration
	SuccessURL      string
	FailureURL      string
}

type PaymentService struct {
	store    store.Store
	gateways *gateway.Registry
	notifier Notifier
	monitor  *monitoring.Monitor
	log      *slog.Logger
	cfg      PaymentConfig
	now      Clock

	newExternalID func() string
}

func NewPaymentService(st store.Store, gateways *gateway.Registry, notifier Notifier, monitor *monitoring.Monitor, logger *slog.Logger, cfg PaymentConfig) *PaymentService {
	return &PaymentService{
		store:    st,
		gateways: gateways,
		notifier: notifier,
		monitor:  monitor,
		log:      logger,
		cfg:      cfg,
		now:      time.Now,
		newExternalID: func() string {
			return "evt-" + uuid.NewString()
		},
	}
}

type TicketPurchaseRequest struct {
	EventID       string `json:"event_id"`
	TicketType    string `json:"ticket_type"`
	Quantity      int    `json:"quantity"`
	DiscountCode  string `json:"discount_code"`
	AttendeeName  string `json:"attendee_name"`
	AttendeeEmail string `json:"attendee_email"`
}

func (r TicketPurchaseRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.EventID, validation.Required),
		validation.Field(&r.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&r.TicketType, validation.Length(0, 100)),
		validation.Field(&r.DiscountCode, validation.Length(0, 50)),
		validation.Field(&r.AttendeeName, validation.Length(0, 200)),
		validation.Field(&r.AttendeeEmail, is.EmailFormat),
	)
}

// PaymentIntent is returned to the buyer after a purchase is accepted.
type PaymentIntent struct {
	PaymentID  string               `json:"payment_id"`
	ExternalID string               `json:"external_id"`
	Status     models.PaymentStatus `json:"status"`
	Amount     decimal.Decimal      `json:"amount"`
	Currency   string               `json:"currency"`
	InvoiceURL string               `json:"invoice_url,omitempty"`
	ExpiresAt  *time.Time           `json:"expires_at,omitempty"`
}

func intentFor(p *models.Payment) *PaymentIntent {
	return &PaymentIntent{
		PaymentID:  p.ID,
		ExternalID: p.ExternalID,
		Status:     p.Status,
		Amount:     p.Amount,
		Currency:   p.Currency,
		InvoiceURL: p.InvoiceURL,
		ExpiresAt:  p.ExpiresAt,
	}
}

// CreateTicketPayment prices the purchase, opens an invoice at the gateway and records the
// pending payment. Nothing is persisted when the gateway call fails.
func (s *PaymentService) CreateTicketPayment(ctx context.Context, actor Actor, req TicketPurchaseRequest) (*PaymentIntent, error) {
	if actor.UserID == "" {
		return nil, status.Unauthenticated("authentication required")
	}
	req.DiscountCode = strings.TrimSpace(req.DiscountCode)
	if err := req.Validate(); err != nil {
		return nil, status.ValidationWrap("invalid ticket purchase", err)
	}

	ev, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := checkRegistrationOpen(ev, now); err != nil {
		return nil, err
	}
	if !ev.IsPaid {
		return nil, status.Validation(status.CodeInvalidRequest, "event is free, register instead of buying a ticket")
	}

	var code *models.DiscountCode
	if req.DiscountCode != "" {
		code, err = s.store.FindDiscountCode(ctx, ev.ID, req.DiscountCode)
		if errors.Is(err, status.ErrNotFound) {
			return nil, status.Validation(status.CodeInvalidRequest, "discount code is not valid")
		}
		if err != nil {
			return nil, err
		}
	}

	quote, err := quoteTickets(ev, req.TicketType, req.Quantity, code, now)
	if err != nil {
		return nil, err
	}
	if err := checkTicketLimits(ctx, s.store, ev, actor.UserID, req.Quantity, now); err != nil {
		return nil, err
	}

	buyer, err := s.store.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	p := &models.Payment{
		UserID:           actor.UserID,
		EventID:          ev.ID,
		ExternalID:       s.newExternalID(),
		Amount:           quote.Amount,
		Currency:         ev.Currency,
		Status:           models.PaymentPending,
		TicketType:       quote.TicketType,
		Quantity:         quote.Quantity,
		PricePerTicket:   quote.PricePerTicket,
		DiscountAmount:   quote.Discount,
		DiscountCode:     req.DiscountCode,
		RequiresApproval: ev.RequiresApproval,
		AttendeeName:     firstNonEmpty(req.AttendeeName, buyer.Name),
		AttendeeEmail:    firstNonEmpty(req.AttendeeEmail, buyer.Email),
	}

	if quote.Amount.IsZero() {
		return s.settleFreeOfCharge(ctx, ev, p, quote.DiscountCode, now)
	}

	gw, err := s.gateways.Primary()
	if err != nil {
		return nil, status.External(status.CodeGatewayUnavailable, "no payment gateway configured", err)
	}
	inv, err := gw.CreateInvoice(ctx, &gateway.InvoiceRequest{
		ExternalID:  p.ExternalID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		PayerEmail:  buyer.Email,
		Description: fmt.Sprintf("%d x %s ticket", p.Quantity, ev.Title),
		Duration:    s.cfg.InvoiceDuration,
		SuccessURL:  s.cfg.SuccessURL,
		FailureURL:  s.cfg.FailureURL,
		Items: []gateway.InvoiceItem{{
			Name:     ticketLabel(ev, quote.TicketType),
			Quantity: quote.Quantity,
			Price:    quote.PricePerTicket,
		}},
		Discount: quote.Discount,
	})
	if err != nil {
		s.monitor.TrackPayment("create", "gateway_error")
		s.log.Error("create invoice failed", "event_id", ev.ID, "user_id", actor.UserID, "external_id", p.ExternalID, "error", err)
		return nil, err
	}

	p.GatewayPaymentID = inv.ID
	p.InvoiceURL = inv.InvoiceURL
	expires := inv.ExpiresAt
	if expires.IsZero() {
		expires = now.Add(s.cfg.InvoiceDuration)
	}
	p.ExpiresAt = &expires

	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		if err := checkTicketLimits(ctx, tx, ev, actor.UserID, p.Quantity, now); err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		return redeemDiscount(ctx, tx, quote.DiscountCode)
	})
	if err != nil {
		// the invoice stays open at the gateway and lapses on its own
		s.monitor.TrackPayment("create", "rejected")
		s.log.Warn("payment not recorded after invoice creation", "external_id", p.ExternalID, "invoice_id", inv.ID, "error", err)
		return nil, err
	}

	s.monitor.TrackPayment("create", string(p.Status))
	s.log.Info("payment created", "payment_id", p.ID, "external_id", p.ExternalID, "amount", p.Amount.String(), "event_id", ev.ID)
	return intentFor(p), nil
}

// settleFreeOfCharge records a fully discounted purchase as paid without a gateway round trip.
func (s *PaymentService) settleFreeOfCharge(ctx context.Context, ev *models.Event, p *models.Payment, code *models.DiscountCode, now time.Time) (*PaymentIntent, error) {
	p.Status = models.PaymentPaid
	p.PaidAt = &now
	p.PaymentMethod = "discount"

	err := s.store.RunInTx(ctx, func(tx store.Store) error {
		if err := checkTicketLimits(ctx, tx, ev, p.UserID, p.Quantity, now); err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		if err := redeemDiscount(ctx, tx, code); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, &models.Transaction{
			PaymentID:   p.ID,
			Type:        models.TransactionPayment,
			Amount:      decimal.Zero,
			Status:      models.TransactionCompleted,
			ReferenceID: p.ExternalID,
			ProcessedAt: &now,
		}); err != nil {
			return err
		}
		if p.AwaitingApproval() {
			return nil
		}
		_, err := tx.EnsureParticipant(ctx, participantFor(p))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.monitor.TrackPayment("create", string(p.Status))
	s.notifier.Notify(ctx, p.UserID, notify.TypePaymentPaid, paymentMessage(p))
	return intentFor(p), nil
}

// PaymentStatusView is what a buyer sees when polling a payment.
type PaymentStatusView struct {
	PaymentID        string               `json:"payment_id"`
	Status           models.PaymentStatus `json:"status"`
	Amount           decimal.Decimal      `json:"amount"`
	Currency         string               `json:"currency"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
	RequiresApproval bool                 `json:"requires_approval"`
	ApprovedAt       *time.Time           `json:"approved_at,omitempty"`
	InvoiceURL       string               `json:"invoice_url,omitempty"`
}

func (s *PaymentService) GetPaymentStatus(ctx context.Context, actor Actor, paymentID string) (*PaymentStatusView, error) {
	p, err := s.ownedPayment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}
	return &PaymentStatusView{
		PaymentID:        p.ID,
		Status:           p.Status,
		Amount:           p.Amount,
		Currency:         p.Currency,
		PaidAt:           p.PaidAt,
		RequiresApproval: p.RequiresApproval,
		ApprovedAt:       p.ApprovedAt,
		InvoiceURL:       p.InvoiceURL,
	}, nil
}

// CancelPayment abandons a pending payment and releases its reserved tickets.
func (s *PaymentService) CancelPayment(ctx context.Context, actor Actor, paymentID string) (*PaymentStatusView, error) {
	p, err := s.ownedPayment(ctx, actor, paymentID)
	if err != nil {
		return nil, err
	}

	ok, err := s.store.TransitionPayment(ctx, p.ID, []models.PaymentStatus{models.PaymentPending}, models.PaymentUpdate{
		Status:        models.PaymentCancelled,
		FailureReason: "cancelled by " + actor.UserID,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, status.State(status.CodeInvalidState, fmt.Sprintf("payment is %s, only pending payments can be cancelled", p.Status))
	}

	s.monitor.TrackPayment("cancel", string(models.PaymentCancelled))
	s.log.Info("payment cancelled", "payment_id", p.ID, "by", actor.UserID)
	return s.GetPaymentStatus(ctx, actor, p.ID)
}

// ApprovePayment releases a paid ticket for an event that requires organiser approval.
func (s *PaymentService) ApprovePayment(ctx context.Context, actor Actor, paymentID string) (*PaymentStatusView, error) {
	if !actor.IsAdmin {
		return nil, status.Forbidden(status.CodeForbidden, "admin access required")
	}
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !p.RequiresApproval {
		return nil, status.State(status.CodeInvalidState, "payment does not require approval")
	}
	if p.Status != models.PaymentPaid {
		return nil, status.State(status.CodeInvalidState, fmt.Sprintf("payment is %s, only paid payments can be approved", p.Status))
	}

	now := s.now()
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		ok, err := tx.ApprovePayment(ctx, p.ID, actor.UserID, now)
		if err != nil {
			return err
		}
		if !ok {
			return status.Conflict(status.CodeInvalidState, "payment is already approved")
		}
		_, err = tx.EnsureParticipant(ctx, participantFor(p))
		return err
	})
	if err != nil {
		return nil, err
	}

	s.monitor.TrackPayment("approve", string(p.Status))
	s.notifier.Notify(ctx, p.UserID, notify.TypePaymentApproved, paymentMessage(p))
	return s.GetPaymentStatus(ctx, actor, p.ID)
}

type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (r RefundRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Reason, validation.Required, validation.Length(1, 500)),
	)
}

// RefundPayment refunds part or all of a paid payment. A zero amount refunds whatever
// has not been refunded yet.
func (s *PaymentService) RefundPayment(ctx context.Context, actor Actor, paymentID string, req RefundRequest) (*models.Transaction, error) {
	if !actor.IsAdmin {
		return nil, status.Forbidden(status.CodeForbidden, "admin access required")
	}
	if err := req.Validate(); err != nil {
		return nil, status.ValidationWrap("invalid refund", err)
	}
	if req.Amount.IsNegative() {
		return nil, status.Validation(status.CodeInvalidRequest, "refund amount must be positive")
	}

	gw, err := s.gateways.Primary()
	if err != nil {
		return nil, status.External(status.CodeGatewayUnavailable, "no payment gateway configured", err)
	}

	// The pending ledger row is written before the gateway is called so that a
	// concurrent refund sees it in the refunded total.
	var (
		p    *models.Payment
		tx   *models.Transaction
		full bool
	)
	err = s.store.RunInTx(ctx, func(st store.Store) error {
		var err error
		p, err = st.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPaid {
			return status.State(status.CodeInvalidState, fmt.Sprintf("payment is %s, only paid payments can be refunded", p.Status))
		}

		txs, err := st.ListTransactions(ctx, p.ID)
		if err != nil {
			return err
		}
		refunded := refundedTotal(txs)
		remaining := p.Amount.Sub(refunded)

		amount := req.Amount
		if amount.IsZero() {
			amount = remaining
		}
		if !amount.IsPositive() || amount.GreaterThan(remaining) {
			return status.Validation(status.CodeRefundExceeded,
				fmt.Sprintf("refund of %s exceeds the refundable %s", amount.String(), remaining.String()))
		}

		full = amount.Equal(remaining)
		kind := models.TransactionPartialRefund
		if full && refunded.IsZero() {
			kind = models.TransactionRefund
		}
		tx = &models.Transaction{
			PaymentID:   p.ID,
			Type:        kind,
			Amount:      amount,
			Status:      models.TransactionPending,
			ReferenceID: fmt.Sprintf("refund-%s-%d", p.ExternalID, len(txs)),
		}
		return st.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	rf, err := gw.Refund(ctx, &gateway.RefundRequest{
		InvoiceID:   p.GatewayPaymentID,
		ReferenceID: tx.ReferenceID,
		Amount:      tx.Amount,
		Reason:      req.Reason,
	})
	if err != nil {
		s.monitor.TrackPayment("refund", "gateway_error")
		now := s.now()
		if _, serr := s.store.SettleTransaction(context.WithoutCancel(ctx), tx.ID, models.TransactionFailed, now); serr != nil {
			s.log.Error("failed to release refund reservation", "payment_id", p.ID, "transaction_id", tx.ID, "error", serr)
		}
		return nil, err
	}

	// The gateway has accepted the refund, so recording it must not be cut short.
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	tx.Status = refundStatus(rf.Status)
	tx.ProcessedAt = &now
	err = s.store.RunInTx(ctx, func(st store.Store) error {
		if _, err := st.SettleTransaction(ctx, tx.ID, tx.Status, now); err != nil {
			return err
		}
		if !full || tx.Status == models.TransactionFailed || tx.Status == models.TransactionCancelled {
			return nil
		}
		if _, err := st.TransitionPayment(ctx, p.ID, []models.PaymentStatus{models.PaymentPaid}, models.PaymentUpdate{
			Status: models.PaymentRefunded,
		}); err != nil {
			return err
		}
		// Attended participants keep their seat so certificates stay issuable.
		_, err := st.ReleaseParticipant(ctx, p.ID)
		return err
	})
	if err != nil {
		s.log.Error("refund accepted by gateway but not recorded", "payment_id", p.ID, "refund_id", rf.ID, "error", err)
		return nil, err
	}

	s.monitor.TrackPayment("refund", string(tx.Status))
	s.log.Info("payment refunded", "payment_id", p.ID, "amount", tx.Amount.String(), "type", tx.Type,
		"refund_id", rf.ID, "by", actor.UserID)
	return tx, nil
}

// RegisterFree signs the actor up for a free event.
func (s *PaymentService) RegisterFree(ctx context.Context, actor Actor, eventID string) (*models.EventParticipant, error) {
	if actor.UserID == "" {
		return nil, status.Unauthenticated("authentication required")
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := checkRegistrationOpen(ev, now); err != nil {
		return nil, err
	}
	if ev.IsPaid {
		return nil, status.Validation(status.CodeInvalidRequest, "event requires a ticket purchase")
	}

	participant := &models.EventParticipant{EventID: ev.ID, ParticipantID: actor.UserID}
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetParticipant(ctx, ev.ID, actor.UserID); err == nil {
			return status.Conflict(status.CodeAlreadyRegistered, "already registered for this event")
		} else if !errors.Is(err, status.ErrNotFound) {
			return err
		}
		if err := checkCapacity(ctx, tx, ev, 1, now); err != nil {
			return err
		}
		created, err := tx.EnsureParticipant(ctx, participant)
		if err != nil {
			return err
		}
		if !created {
			return status.Conflict(status.CodeAlreadyRegistered, "already registered for this event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("free registration", "event_id", ev.ID, "user_id", actor.UserID)
	return participant, nil
}

func (s *PaymentService) ownedPayment(ctx context.Context, actor Actor, paymentID string) (*models.Payment, error) {
	if actor.UserID == "" && !actor.IsAdmin {
		return nil, status.Unauthenticated("authentication required")
	}
	p, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(p.UserID) {
		return nil, status.Forbidden(status.CodeForbidden, "payment belongs to another user")
	}
	return p, nil
}

func checkRegistrationOpen(ev *models.Event, now time.Time) error {
	if ev.Status != models.EventPublished {
		return status.Validation(status.CodeEventNotOpen, "event is not open for registration")
	}
	if !ev.RegistrationClose.IsZero() && now.After(ev.RegistrationClose) {
		return status.Validation(status.CodeRegistrationClosed, "registration deadline has passed")
	}
	return nil
}

// checkTicketLimits enforces the per-user ticket limit and the event capacity.
func checkTicketLimits(ctx context.Context, st store.Store, ev *models.Event, userID string, quantity int, now time.Time) error {
	if ev.MaxTicketsPerUser > 0 {
		held, err := st.UserTickets(ctx, ev.ID, userID, now)
		if err != nil {
			return err
		}
		if held+quantity > ev.MaxTicketsPerUser {
			return status.Validation(status.CodeTicketLimitExceeded,
				fmt.Sprintf("at most %d tickets per user, %d already held", ev.MaxTicketsPerUser, held))
		}
	}
	return checkCapacity(ctx, st, ev, quantity, now)
}

func checkCapacity(ctx context.Context, st store.Store, ev *models.Event, quantity int, now time.Time) error {
	if ev.Capacity == 0 {
		return nil
	}
	reserved, err := st.ReservedTickets(ctx, ev.ID, now)
	if err != nil {
		return err
	}
	if reserved+quantity > ev.Capacity {
		return status.Conflict(status.CodeCapacityExceeded,
			fmt.Sprintf("only %d of %d tickets left", max(ev.Capacity-reserved, 0), ev.Capacity))
	}
	return nil
}

func redeemDiscount(ctx context.Context, st store.Store, code *models.DiscountCode) error {
	if code == nil {
		return nil
	}
	ok, err := st.IncrementDiscountUsage(ctx, code.ID)
	if err != nil {
		return err
	}
	if !ok {
		return status.Validation(status.CodeInvalidRequest, "discount code is no longer available")
	}
	return nil
}

func refundedTotal(txs []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if t.Type == models.TransactionPayment || t.Status == models.TransactionFailed || t.Status == models.TransactionCancelled {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total
}

func refundStatus(raw string) models.TransactionStatus {
	switch strings.ToUpper(raw) {
	case "SUCCEEDED", "COMPLETED":
		return models.TransactionCompleted
	case "FAILED":
		return models.TransactionFailed
	case "CANCELLED":
		return models.TransactionCancelled
	default:
		return models.TransactionPending
	}
}

func participantFor(p *models.Payment) *models.EventParticipant {
	return &models.EventParticipant{
		EventID:       p.EventID,
		ParticipantID: p.UserID,
		PaymentID:     p.ID,
		Name:          p.AttendeeName,
		Email:         p.AttendeeEmail,
	}
}

func paymentMessage(p *models.Payment) map[string]any {
	return map[string]any{
		"payment_id":  p.ID,
		"event_id":    p.EventID,
		"external_id": p.ExternalID,
		"status":      p.Status,
		"amount":      p.Amount.String(),
	}
}

func ticketLabel(ev *models.Event, ticketType string) string {
	if ticketType == "" {
		return ev.Title
	}
	return ev.Title + " - " + ticketType
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
