package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
	EventCancelled EventStatus = "cancelled"
)

type TicketType struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type Event struct {
	ID                  string          `json:"id"`
	Title               string          `json:"title"`
	Description         string          `json:"description"`
	Location            string          `json:"location"`
	OrganizerID         string          `json:"organizer_id"`
	Status              EventStatus     `json:"status"` // draft, published, cancelled
	Date                string          `json:"date"`
	StartTime           string          `json:"start_time"`
	EndTime             string          `json:"end_time"`
	Capacity            int             `json:"capacity"`
	RegistrationClose   time.Time       `json:"registration_deadline"`
	IsPaid              bool            `json:"is_paid"`
	TicketPrice         decimal.Decimal `json:"ticket_price"`
	Currency            string          `json:"currency"`
	TicketTypes         []TicketType    `json:"ticket_types"`
	EarlyBirdEnabled    bool            `json:"early_bird_enabled"`
	EarlyBirdDiscount   decimal.Decimal `json:"early_bird_discount"` // percent
	EarlyBirdDeadline   time.Time       `json:"early_bird_deadline"`
	MaxTicketsPerUser   int             `json:"max_tickets_per_user"`
	RequiresApproval    bool            `json:"requires_approval"`
	CertificateTemplate string          `json:"certificate_template"`

	// TemplateKey is the storage key of the certificate template, resolved by the store.
	TemplateKey string `json:"-"`
}

// Day parses the event calendar date in loc.
func (e *Event) Day(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, e.Date, loc)
}

// IsOnDay reports whether t falls on the event's calendar date in loc.
func (e *Event) IsOnDay(t time.Time, loc *time.Location) bool {
	return t.In(loc).Format(DateLayout) == e.Date
}

// EndOfDay returns the last instant of the event date in loc.
func (e *Event) EndOfDay(loc *time.Location) (time.Time, error) {
	day, err := e.Day(loc)
	if err != nil {
		return time.Time{}, err
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

func (e *Event) HasCertificateTemplate() bool {
	return e.CertificateTemplate != ""
}

// FindTicketType resolves a ticket type by name. An empty name selects the base ticket price.
func (e *Event) FindTicketType(name string) (TicketType, bool) {
	if name == "" {
		return TicketType{Name: "", Price: e.TicketPrice}, true
	}
	for _, tt := range e.TicketTypes {
		if tt.Name == name {
			return tt, true
		}
	}
	return TicketType{}, false
}

// Validate checks the scheduling invariants of an event.
func (e *Event) Validate(loc *time.Location) error {
	var errs []error

	day, err := e.Day(loc)
	if err != nil {
		errs = append(errs, fmt.Errorf("date: must be YYYY-MM-DD"))
	}

	start, serr := time.Parse(ClockLayout, e.StartTime)
	end, eerr := time.Parse(ClockLayout, e.EndTime)
	switch {
	case serr != nil:
		errs = append(errs, fmt.Errorf("start_time: must be HH:MM"))
	case eerr != nil:
		errs = append(errs, fmt.Errorf("end_time: must be HH:MM"))
	case !start.Before(end):
		errs = append(errs, fmt.Errorf("start_time: must be before end_time"))
	}

	if err == nil && !e.RegistrationClose.IsZero() {
		// the deadline may fall anywhere on the event day itself
		if !e.RegistrationClose.In(loc).Before(day.AddDate(0, 0, 1)) {
			errs = append(errs, fmt.Errorf("registration_deadline: must not be after the event date"))
		}
	}

	if e.Capacity < 0 {
		errs = append(errs, fmt.Errorf("capacity: must not be negative"))
	}
	if e.MaxTicketsPerUser < 0 {
		errs = append(errs, fmt.Errorf("max_tickets_per_user: must not be negative"))
	}
	if e.IsPaid && e.TicketPrice.IsNegative() {
		errs = append(errs, fmt.Errorf("ticket_price: must not be negative"))
	}
	if e.EarlyBirdEnabled {
		if e.EarlyBirdDiscount.LessThanOrEqual(decimal.Zero) || e.EarlyBirdDiscount.GreaterThan(decimal.NewFromInt(100)) {
			errs = append(errs, fmt.Errorf("early_bird_discount: must be a percentage between 0 and 100"))
		}
		if e.EarlyBirdDeadline.IsZero() {
			errs = append(errs, fmt.Errorf("early_bird_deadline: required when early bird is enabled"))
		}
	}

	return errors.Join(errs...)
}

// ValidateCapacity checks that capacity, if set, still covers the reserved seats.
func (e *Event) ValidateCapacity(reserved int) error {
	if e.Capacity > 0 && e.Capacity < reserved {
		return fmt.Errorf("capacity: %d is below the %d tickets already reserved", e.Capacity, reserved)
	}
	return nil
}

type DiscountKind string

const (
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

type DiscountCode struct {
	ID         string          `json:"id"`
	EventID    string          `json:"event_id"`
	Code       string          `json:"code"`
	Kind       DiscountKind    `json:"kind"`
	Value      decimal.Decimal `json:"value"`
	MaxUses    int             `json:"max_uses"`
	UsedCount  int             `json:"used_count"`
	ValidUntil time.Time       `json:"valid_until"`
	Active     bool            `json:"active"`
}

// Usable reports whether the code may still be redeemed at t.
func (d *DiscountCode) Usable(t time.Time) bool {
	if !d.Active {
		return false
	}
	if !d.ValidUntil.IsZero() && t.After(d.ValidUntil) {
		return false
	}
	return d.MaxUses == 0 || d.UsedCount < d.MaxUses
}
