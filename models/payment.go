package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentExpired   PaymentStatus = "expired"
	PaymentCancelled PaymentStatus = "cancelled"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Payment struct {
	ID               string          `json:"payment_id"`
	UserID           string          `json:"user_id"`
	EventID          string          `json:"event_id"`
	ExternalID       string          `json:"external_id"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Status           PaymentStatus   `json:"status"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentChannel   string          `json:"payment_channel,omitempty"`
	TicketType       string          `json:"ticket_type,omitempty"`
	Quantity         int             `json:"quantity"`
	PricePerTicket   decimal.Decimal `json:"price_per_ticket"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	DiscountCode     string          `json:"discount_code,omitempty"`
	RequiresApproval bool            `json:"requires_approval"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy       string          `json:"approved_by,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	FailureReason    string          `json:"failure_reason,omitempty"`
	InvoiceURL       string          `json:"invoice_url,omitempty"`
	AttendeeName     string          `json:"attendee_name,omitempty"`
	AttendeeEmail    string          `json:"attendee_email,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ExpiresAt        *time.Time      `json:"expires_at,omitempty"`
}

// ExpectedAmount is quantity × price_per_ticket − discount_amount.
func (p *Payment) ExpectedAmount() decimal.Decimal {
	return p.PricePerTicket.Mul(decimal.NewFromInt(int64(p.Quantity))).Sub(p.DiscountAmount)
}

// AwaitingApproval reports whether a paid payment still needs an admin decision.
func (p *Payment) AwaitingApproval() bool {
	return p.RequiresApproval && p.ApprovedAt == nil
}

// PaymentUpdate carries the columns written by a conditional status transition.
type PaymentUpdate struct {
	Status           PaymentStatus
	PaidAt           *time.Time
	GatewayPaymentID string
	PaymentMethod    string
	PaymentChannel   string
	FailureReason    string
}

type TransactionType string

const (
	TransactionPayment       TransactionType = "payment"
	TransactionRefund        TransactionType = "refund"
	TransactionPartialRefund TransactionType = "partial_refund"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// Transaction is an append-only ledger entry for a payment.
type Transaction struct {
	ID          string            `json:"id"`
	PaymentID   string            `json:"payment_id"`
	Type        TransactionType   `json:"transaction_type"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	ReferenceID string            `json:"reference_id"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
}
