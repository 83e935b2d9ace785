package services

import (
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is the resolved price of a ticket purchase. DiscountCode is the code that was
// applied, if any, and must be redeemed together with the payment.
type Quote struct {
	TicketType     string
	PricePerTicket decimal.Decimal
	Quantity       int
	Discount       decimal.Decimal
	Amount         decimal.Decimal
	DiscountCode   *models.DiscountCode
}

// quoteTickets prices quantity tickets of ticketType. Early bird and discount code
// reductions are summed and clamped to the subtotal.
func quoteTickets(ev *models.Event, ticketType string, quantity int, code *models.DiscountCode, now time.Time) (*Quote, error) {
	tt, ok := ev.FindTicketType(ticketType)
	if !ok {
		return nil, status.Validation(status.CodeInvalidRequest, "unknown ticket type "+ticketType)
	}
	if tt.Price.IsNegative() {
		return nil, status.Validation(status.CodeInvalidRequest, "ticket price is negative")
	}

	subtotal := tt.Price.Mul(decimal.NewFromInt(int64(quantity)))
	discount := decimal.Zero

	if ev.EarlyBirdEnabled && !ev.EarlyBirdDeadline.IsZero() && !now.After(ev.EarlyBirdDeadline) {
		discount = discount.Add(subtotal.Mul(ev.EarlyBirdDiscount).Div(hundred))
	}

	if code != nil {
		if code.EventID != ev.ID || !code.Usable(now) {
			return nil, status.Validation(status.CodeInvalidRequest, "discount code is not valid")
		}
		switch code.Kind {
		case models.DiscountPercent:
			discount = discount.Add(subtotal.Mul(code.Value).Div(hundred))
		case models.DiscountFixed:
			discount = discount.Add(code.Value)
		default:
			return nil, status.Validation(status.CodeInvalidRequest, "discount code is not valid")
		}
	}

	discount = decimal.Min(discount.Round(2), subtotal)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	return &Quote{
		TicketType:     tt.Name,
		PricePerTicket: tt.Price,
		Quantity:       quantity,
		Discount:       discount,
		Amount:         subtotal.Sub(discount),
		DiscountCode:   code,
	}, nil
}
