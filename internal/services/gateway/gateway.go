package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Provider identifies a payment gateway.
type Provider string

const (
	ProviderXendit Provider = "xendit"
)

// InvoiceRequest is a hosted checkout request for one purchase.
type InvoiceRequest struct {
	ExternalID  string          `json:"external_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	PayerEmail  string          `json:"payer_email,omitempty"`
	Description string          `json:"description"`
	Duration    time.Duration   `json:"-"`
	SuccessURL  string          `json:"success_redirect_url,omitempty"`
	FailureURL  string          `json:"failure_redirect_url,omitempty"`
	Items       []InvoiceItem   `json:"items,omitempty"`
	// Discount is taken off the sum of Items; Amount already reflects it.
	Discount decimal.Decimal `json:"discount"`
}

type InvoiceItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Invoice is the gateway's answer to an InvoiceRequest.
type Invoice struct {
	ID         string
	ExternalID string
	Status     string
	InvoiceURL string
	ExpiresAt  time.Time
}

type RefundRequest struct {
	InvoiceID   string
	ReferenceID string
	Amount      decimal.Decimal
	Reason      string
}

type Refund struct {
	ID     string
	Status string
	Amount decimal.Decimal
}

// NotificationStatus is the normalised outcome carried by a callback.
type NotificationStatus string

const (
	NotificationPaid    NotificationStatus = "paid"
	NotificationFailed  NotificationStatus = "failed"
	NotificationExpired NotificationStatus = "expired"
	NotificationUnknown NotificationStatus = "unknown"
)

// Notification is a parsed gateway callback.
type Notification struct {
	ID            string
	ExternalID    string
	RawStatus     string
	Amount        decimal.Decimal
	PaidAmount    decimal.Decimal
	Currency      string
	PaymentMethod string
	Channel       string
	PaidAt        time.Time
	FailureReason string
}

// ReferenceID is the idempotency key recorded on the resulting transaction. Callbacks
// without a gateway id fall back to the merchant external id.
func (n *Notification) ReferenceID() string {
	if n.ID != "" {
		return n.ID
	}
	return n.ExternalID
}

// Status maps the gateway status onto the payment lifecycle.
func (n *Notification) Status() NotificationStatus {
	switch strings.ToUpper(n.RawStatus) {
	case "PAID", "SETTLED", "SUCCEEDED":
		return NotificationPaid
	case "FAILED":
		return NotificationFailed
	case "EXPIRED":
		return NotificationExpired
	default:
		return NotificationUnknown
	}
}

// Gateway is implemented by every payment provider client.
type Gateway interface {
	Provider() Provider
	CreateInvoice(ctx context.Context, req *InvoiceRequest) (*Invoice, error)
	Refund(ctx context.Context, req *RefundRequest) (*Refund, error)
}

// Registry holds the configured gateways and the one used for new purchases.
type Registry struct {
	mu      sync.RWMutex
	byName  map[Provider]Gateway
	primary Provider
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[Provider]Gateway)}
}

// Register adds g; the first registered gateway becomes primary.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[g.Provider()] = g
	if r.primary == "" {
		r.primary = g.Provider()
	}
}

func (r *Registry) Get(p Provider) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.byName[p]
	if !ok {
		return nil, fmt.Errorf("gateway %s not registered", p)
	}
	return g, nil
}

func (r *Registry) Primary() (Gateway, error) {
	r.mu.RLock()
	p := r.primary
	r.mu.RUnlock()

	if p == "" {
		return nil, fmt.Errorf("no primary gateway configured")
	}
	return r.Get(p)
}

func (r *Registry) SetPrimary(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byName[p]; !ok {
		return fmt.Errorf("gateway %s not registered", p)
	}
	r.primary = p
	return nil
}
