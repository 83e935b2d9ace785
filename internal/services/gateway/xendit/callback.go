package xendit

import (
	"crypto/hmac"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"eventhub/internal/services/gateway"

	"github.com/shopspring/decimal"
)

// CallbackTokenHeader carries the shared verification token on every callback.
const CallbackTokenHeader = "x-callback-token"

// CallbackVerifier checks the shared callback token in constant time.
type CallbackVerifier struct {
	token []byte
}

func NewCallbackVerifier(token string) *CallbackVerifier {
	return &CallbackVerifier{token: []byte(token)}
}

// Verify ignores the payload: Xendit authenticates invoice callbacks by token only.
func (v *CallbackVerifier) Verify(_ []byte, signature string) bool {
	if len(v.token) == 0 || signature == "" {
		return false
	}
	return hmac.Equal([]byte(signature), v.token)
}

// invoiceCallback is the invoice webhook body. Unknown fields are ignored because the
// gateway adds fields without notice.
type invoiceCallback struct {
	ID             string          `json:"id"`
	ExternalID     string          `json:"external_id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	Currency       string          `json:"currency"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentChannel string          `json:"payment_channel"`
	BankCode       string          `json:"bank_code"`
	PaidAt         string          `json:"paid_at"`
	Updated        string          `json:"updated"`
	FailureCode    string          `json:"failure_code"`
}

var ErrMalformedCallback = errors.New("xendit: malformed callback")

// ParseCallback decodes an invoice callback into a gateway notification.
func ParseCallback(payload []byte) (*gateway.Notification, error) {
	var cb invoiceCallback
	if err := json.Unmarshal(payload, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	var missing []string
	if cb.ExternalID == "" {
		missing = append(missing, "external_id")
	}
	if cb.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %v", ErrMalformedCallback, missing)
	}

	n := &gateway.Notification{
		ID:            cb.ID,
		ExternalID:    cb.ExternalID,
		RawStatus:     cb.Status,
		Amount:        cb.Amount,
		PaidAmount:    cb.PaidAmount,
		Currency:      cb.Currency,
		PaymentMethod: cb.PaymentMethod,
		Channel:       cb.PaymentChannel,
		FailureReason: cb.FailureCode,
	}
	if n.Channel == "" {
		n.Channel = cb.BankCode
	}
	if n.FailureReason == "" && n.Status() != gateway.NotificationPaid {
		n.FailureReason = "invoice " + cb.Status
	}

	for _, ts := range []string{cb.PaidAt, cb.Updated} {
		if ts == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			n.PaidAt = t
			break
		}
	}
	return n, nil
}
