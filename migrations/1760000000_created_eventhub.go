package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
	"github.com/pocketbase/pocketbase/tools/types"
)

const (
	ownerOrAdmin  = "user = @request.auth.id || @request.auth.role = 'admin'"
	adminOnly     = "@request.auth.role = 'admin'"
	organizerRule = "organizer = @request.auth.id || @request.auth.role = 'admin'"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		users.Fields.Add(&core.SelectField{
			Name:      "role",
			Values:    []string{"user", "organizer", "admin"},
			MaxSelect: 1,
		})
		if err := app.Save(users); err != nil {
			return err
		}

		// events
		events := core.NewBaseCollection("events")
		events.ListRule = types.Pointer("status = 'published' || " + organizerRule)
		events.ViewRule = types.Pointer("status = 'published' || " + organizerRule)
		events.CreateRule = types.Pointer("@request.auth.role = 'organizer' || " + adminOnly)
		events.UpdateRule = types.Pointer(organizerRule)
		events.DeleteRule = types.Pointer(adminOnly)
		events.Fields.Add(
			&core.TextField{Name: "title", Required: true, Max: 255},
			&core.TextField{Name: "description", Max: 10000},
			&core.TextField{Name: "location", Max: 255},
			&core.RelationField{Name: "organizer", CollectionId: users.Id, MaxSelect: 1, Required: true},
			&core.SelectField{Name: "status", Values: []string{"draft", "published", "cancelled"}, MaxSelect: 1, Required: true},
			&core.TextField{Name: "date", Required: true, Pattern: `^\d{4}-\d{2}-\d{2}$`},
			&core.TextField{Name: "start_time", Required: true, Pattern: `^\d{2}:\d{2}$`},
			&core.TextField{Name: "end_time", Required: true, Pattern: `^\d{2}:\d{2}$`},
			&core.NumberField{Name: "capacity", Min: types.Pointer(0.0), OnlyInt: true},
			&core.DateField{Name: "registration_deadline"},
			&core.BoolField{Name: "is_paid"},
			&core.NumberField{Name: "ticket_price", Min: types.Pointer(0.0)},
			&core.TextField{Name: "currency", Max: 3},
			&core.JSONField{Name: "ticket_types", MaxSize: 1 << 16},
			&core.BoolField{Name: "early_bird_enabled"},
			&core.NumberField{Name: "early_bird_discount", Min: types.Pointer(0.0), Max: types.Pointer(100.0)},
			&core.DateField{Name: "early_bird_deadline"},
			&core.NumberField{Name: "max_tickets_per_user", Min: types.Pointer(0.0), OnlyInt: true},
			&core.BoolField{Name: "requires_approval"},
			&core.FileField{
				Name:      "certificate_template",
				MaxSelect: 1,
				MaxSize:   10 << 20,
				MimeTypes: []string{"image/png", "image/jpeg"},
				Protected: true,
			},
			&core.FileField{
				Name:      "flyer",
				MaxSelect: 1,
				MaxSize:   5 << 20,
				MimeTypes: []string{"image/png", "image/jpeg", "image/webp"},
			},
		)
		addTimestamps(events)
		events.AddIndex("idx_events_date", false, "date", "")
		if err := app.Save(events); err != nil {
			return err
		}

		// discount_codes
		discounts := core.NewBaseCollection("discount_codes")
		discounts.ListRule = types.Pointer(adminOnly)
		discounts.ViewRule = types.Pointer(adminOnly)
		discounts.Fields.Add(
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "code", Required: true, Max: 64},
			&core.SelectField{Name: "kind", Values: []string{"percent", "fixed"}, MaxSelect: 1, Required: true},
			&core.NumberField{Name: "value", Min: types.Pointer(0.0)},
			&core.NumberField{Name: "max_uses", Min: types.Pointer(0.0), OnlyInt: true},
			&core.NumberField{Name: "used_count", Min: types.Pointer(0.0), OnlyInt: true},
			&core.DateField{Name: "valid_until"},
			&core.BoolField{Name: "active"},
		)
		addTimestamps(discounts)
		discounts.AddIndex("idx_discount_codes_event_code", true, "event, code", "")
		if err := app.Save(discounts); err != nil {
			return err
		}

		// payments
		payments := core.NewBaseCollection("payments")
		payments.ListRule = types.Pointer(ownerOrAdmin)
		payments.ViewRule = types.Pointer(ownerOrAdmin)
		payments.Fields.Add(
			&core.RelationField{Name: "user", CollectionId: users.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "external_id", Required: true, Max: 100},
			&core.TextField{Name: "gateway_payment_id", Max: 100},
			&core.NumberField{Name: "amount", Min: types.Pointer(0.0)},
			&core.TextField{Name: "currency", Max: 3},
			&core.SelectField{Name: "status", Values: []string{"pending", "paid", "failed", "expired", "cancelled", "refunded"}, MaxSelect: 1, Required: true},
			&core.TextField{Name: "payment_method", Max: 64},
			&core.TextField{Name: "payment_channel", Max: 64},
			&core.TextField{Name: "ticket_type", Max: 100},
			&core.NumberField{Name: "quantity", Min: types.Pointer(1.0), OnlyInt: true},
			&core.NumberField{Name: "price_per_ticket", Min: types.Pointer(0.0)},
			&core.NumberField{Name: "discount_amount", Min: types.Pointer(0.0)},
			&core.TextField{Name: "discount_code", Max: 64},
			&core.BoolField{Name: "requires_approval"},
			&core.DateField{Name: "approved_at"},
			&core.TextField{Name: "approved_by", Max: 64},
			&core.DateField{Name: "paid_at"},
			&core.TextField{Name: "failure_reason", Max: 500},
			&core.URLField{Name: "invoice_url"},
			&core.TextField{Name: "attendee_name", Max: 255},
			&core.EmailField{Name: "attendee_email"},
			&core.DateField{Name: "expires_at"},
		)
		addTimestamps(payments)
		payments.AddIndex("idx_payments_external_id", true, "external_id", "")
		payments.AddIndex("idx_payments_gateway_payment_id", true, "gateway_payment_id", "gateway_payment_id != ''")
		payments.AddIndex("idx_payments_event_status", false, "event, status", "")
		if err := app.Save(payments); err != nil {
			return err
		}

		// transactions
		transactions := core.NewBaseCollection("transactions")
		transactions.ListRule = types.Pointer(adminOnly)
		transactions.ViewRule = types.Pointer(adminOnly)
		transactions.Fields.Add(
			&core.RelationField{Name: "payment", CollectionId: payments.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.SelectField{Name: "transaction_type", Values: []string{"payment", "refund", "partial_refund"}, MaxSelect: 1, Required: true},
			&core.NumberField{Name: "amount", Min: types.Pointer(0.0)},
			&core.SelectField{Name: "status", Values: []string{"pending", "completed", "failed", "cancelled"}, MaxSelect: 1, Required: true},
			&core.TextField{Name: "reference_id", Required: true, Max: 100},
			&core.DateField{Name: "processed_at"},
		)
		addTimestamps(transactions)
		transactions.AddIndex("idx_transactions_reference_id", true, "reference_id", "")
		if err := app.Save(transactions); err != nil {
			return err
		}

		// event_participants
		participants := core.NewBaseCollection("event_participants")
		participants.ListRule = types.Pointer("participant = @request.auth.id || event.organizer = @request.auth.id || " + adminOnly)
		participants.ViewRule = participants.ListRule
		participants.Fields.Add(
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.RelationField{Name: "participant", CollectionId: users.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.RelationField{Name: "payment", CollectionId: payments.Id, MaxSelect: 1},
			&core.DateField{Name: "attendance_verified_at"},
			&core.BoolField{Name: "has_received_certificate"},
		)
		addTimestamps(participants)
		participants.AddIndex("idx_event_participants_event_participant", true, "event, participant", "")
		if err := app.Save(participants); err != nil {
			return err
		}

		// attendance_tokens
		tokens := core.NewBaseCollection("attendance_tokens")
		tokens.Fields.Add(
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.RelationField{Name: "participant", CollectionId: participants.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "token_digest", Required: true, Hidden: true, Max: 128},
			&core.TextField{Name: "valid_on", Required: true, Pattern: `^\d{4}-\d{2}-\d{2}$`},
			&core.DateField{Name: "expires_at", Required: true},
			&core.DateField{Name: "verified_at"},
		)
		addTimestamps(tokens)
		tokens.AddIndex("idx_attendance_tokens_digest", true, "token_digest", "")
		if err := app.Save(tokens); err != nil {
			return err
		}

		// certificates
		certificates := core.NewBaseCollection("certificates")
		certificates.ListRule = types.Pointer("participant = @request.auth.id || " + adminOnly)
		certificates.ViewRule = certificates.ListRule
		certificates.Fields.Add(
			&core.RelationField{Name: "event", CollectionId: events.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.RelationField{Name: "participant", CollectionId: users.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.RelationField{Name: "event_participant", CollectionId: participants.Id, MaxSelect: 1, Required: true, CascadeDelete: true},
			&core.TextField{Name: "certificate_number", Required: true, Max: 64},
			&core.TextField{Name: "certificate_path", Required: true, Max: 500},
			&core.DateField{Name: "issued_at", Required: true},
		)
		addTimestamps(certificates)
		certificates.AddIndex("idx_certificates_number", true, "certificate_number", "")
		certificates.AddIndex("idx_certificates_event_participant", true, "event_participant", "")
		return app.Save(certificates)
	}, func(app core.App) error {
		for _, name := range []string{
			"certificates",
			"attendance_tokens",
			"event_participants",
			"transactions",
			"payments",
			"discount_codes",
			"events",
		} {
			c, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				continue
			}
			if err := app.Delete(c); err != nil {
				return err
			}
		}

		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		users.Fields.RemoveByName("role")
		return app.Save(users)
	})
}

func addTimestamps(c *core.Collection) {
	c.Fields.Add(
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
}
