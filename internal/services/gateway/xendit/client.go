package xendit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"eventhub/internal/services/gateway"

	"github.com/shopspring/decimal"
)

type Config struct {
	BaseURL   string
	SecretKey string
}

type Client struct {
	// baseURL is the Xendit API root, e.g. https://api.xendit.co.
	baseURL string

	// secretKey authenticates as the basic-auth user name.
	secretKey string

	hc *http.Client
}

// APIError is a non-2xx reply from Xendit.
type APIError struct {
	StatusCode int
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("xendit: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) Provider() gateway.Provider {
	return gateway.ProviderXendit
}

type invoiceBody struct {
	ExternalID      string        `json:"external_id"`
	Amount          float64       `json:"amount"`
	Currency        string        `json:"currency,omitempty"`
	PayerEmail      string        `json:"payer_email,omitempty"`
	Description     string        `json:"description"`
	InvoiceDuration int64         `json:"invoice_duration,omitempty"`
	SuccessURL      string        `json:"success_redirect_url,omitempty"`
	FailureURL      string        `json:"failure_redirect_url,omitempty"`
	Items           []invoiceItem `json:"items,omitempty"`
	Fees            []invoiceFee  `json:"fees,omitempty"`
}

// invoiceFee is an extra line on the invoice; a negative value is a discount.
type invoiceFee struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}

type invoiceItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// CreateInvoice creates a hosted invoice (POST /v2/invoices).
func (c *Client) CreateInvoice(ctx context.Context, r *gateway.InvoiceRequest) (*gateway.Invoice, error) {
	body := invoiceBody{
		ExternalID:      r.ExternalID,
		Amount:          r.Amount.InexactFloat64(),
		Currency:        r.Currency,
		PayerEmail:      r.PayerEmail,
		Description:     r.Description,
		InvoiceDuration: int64(r.Duration / time.Second),
		SuccessURL:      r.SuccessURL,
		FailureURL:      r.FailureURL,
	}
	for _, it := range r.Items {
		body.Items = append(body.Items, invoiceItem{Name: it.Name, Quantity: it.Quantity, Price: it.Price.InexactFloat64()})
	}
	if r.Discount.IsPositive() && len(body.Items) > 0 {
		body.Fees = append(body.Fees, invoiceFee{Type: "Discount", Value: r.Discount.Neg().InexactFloat64()})
	}

	var reply struct {
		ID         string `json:"id"`
		ExternalID string `json:"external_id"`
		Status     string `json:"status"`
		InvoiceURL string `json:"invoice_url"`
		ExpiryDate string `json:"expiry_date"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/invoices", body, &reply); err != nil {
		return nil, fmt.Errorf("createInvoice: %w", err)
	}
	if reply.ID == "" || reply.InvoiceURL == "" {
		return nil, fmt.Errorf("createInvoice: incomplete reply for %s", r.ExternalID)
	}

	inv := &gateway.Invoice{
		ID:         reply.ID,
		ExternalID: reply.ExternalID,
		Status:     reply.Status,
		InvoiceURL: reply.InvoiceURL,
	}
	if reply.ExpiryDate != "" {
		if t, err := time.Parse(time.RFC3339, reply.ExpiryDate); err == nil {
			inv.ExpiresAt = t
		}
	}
	return inv, nil
}

// Refund requests a refund of a paid invoice (POST /refunds).
func (c *Client) Refund(ctx context.Context, r *gateway.RefundRequest) (*gateway.Refund, error) {
	body := map[string]any{
		"invoice_id":   r.InvoiceID,
		"reference_id": r.ReferenceID,
		"amount":       r.Amount.InexactFloat64(),
		"reason":       "REQUESTED_BY_CUSTOMER",
		"metadata":     map[string]string{"note": r.Reason},
	}

	var reply struct {
		ID     string          `json:"id"`
		Status string          `json:"status"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.do(ctx, http.MethodPost, "/refunds", body, &reply); err != nil {
		return nil, fmt.Errorf("refund: %w", err)
	}
	return &gateway.Refund{ID: reply.ID, Status: reply.Status, Amount: reply.Amount}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("http.NewReq: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		dec.Decode(apiErr)
		return apiErr
	}
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("json.Decode: %w", err)
	}
	return nil
}
