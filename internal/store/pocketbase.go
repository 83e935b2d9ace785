package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"eventhub/internal/status"
	"eventhub/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

// Collection names.
const (
	CollectionUsers         = "users"
	CollectionEvents        = "events"
	CollectionDiscountCodes = "discount_codes"
	CollectionParticipants  = "event_participants"
	CollectionPayments      = "payments"
	CollectionTransactions  = "transactions"
	CollectionTokens        = "attendance_tokens"
	CollectionCertificates  = "certificates"
)

// PocketBaseStore implements Store on top of the PocketBase record API and dbx for
// the conditional updates that must not go through record hooks.
type PocketBaseStore struct {
	app core.App
}

func NewPocketBaseStore(app core.App) *PocketBaseStore {
	return &PocketBaseStore{app: app}
}

func (s *PocketBaseStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	return s.app.RunInTransaction(func(txApp core.App) error {
		return fn(&PocketBaseStore{app: txApp})
	})
}

// events

func (s *PocketBaseStore) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	rec, err := s.app.FindRecordById(CollectionEvents, id)
	if err != nil {
		return nil, notFound("event", err)
	}
	return eventFromRecord(rec)
}

func (s *PocketBaseStore) FindDiscountCode(ctx context.Context, eventID, code string) (*models.DiscountCode, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		CollectionDiscountCodes,
		"event = {:event} && code = {:code}",
		dbx.Params{"event": eventID, "code": code},
	)
	if err != nil {
		return nil, notFound("discount code", err)
	}
	return &models.DiscountCode{
		ID:         rec.Id,
		EventID:    rec.GetString("event"),
		Code:       rec.GetString("code"),
		Kind:       models.DiscountKind(rec.GetString("kind")),
		Value:      decimalField(rec, "value"),
		MaxUses:    rec.GetInt("max_uses"),
		UsedCount:  rec.GetInt("used_count"),
		ValidUntil: rec.GetDateTime("valid_until").Time(),
		Active:     rec.GetBool("active"),
	}, nil
}

func (s *PocketBaseStore) IncrementDiscountUsage(ctx context.Context, id string) (bool, error) {
	res, err := s.app.DB().NewQuery(
		"UPDATE discount_codes SET used_count = used_count + 1 WHERE id = {:id} AND (max_uses = 0 OR used_count < max_uses)",
	).Bind(dbx.Params{"id": id}).WithContext(ctx).Execute()
	return affected(res, err)
}

const reservedPaymentsClause = "(status = 'paid' OR (status = 'pending' AND (expires_at = '' OR expires_at > {:now})))"

func (s *PocketBaseStore) ReservedTickets(ctx context.Context, eventID string, now time.Time) (int, error) {
	var n int
	err := s.app.DB().NewQuery(
		"SELECT (SELECT COALESCE(SUM(quantity), 0) FROM payments WHERE event = {:event} AND " + reservedPaymentsClause + ")" +
			" + (SELECT COUNT(*) FROM event_participants WHERE event = {:event} AND payment = '')",
	).Bind(dbx.Params{"event": eventID, "now": dateTimeString(now)}).WithContext(ctx).Row(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count reserved tickets: %w", err)
	}
	return n, nil
}

func (s *PocketBaseStore) UserTickets(ctx context.Context, eventID, userID string, now time.Time) (int, error) {
	var n int
	err := s.app.DB().NewQuery(
		"SELECT (SELECT COALESCE(SUM(quantity), 0) FROM payments WHERE event = {:event} AND user = {:user} AND " + reservedPaymentsClause + ")" +
			" + (SELECT COUNT(*) FROM event_participants WHERE event = {:event} AND participant = {:user} AND payment = '')",
	).Bind(dbx.Params{"event": eventID, "user": userID, "now": dateTimeString(now)}).WithContext(ctx).Row(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count user tickets: %w", err)
	}
	return n, nil
}

// payments

func (s *PocketBaseStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	rec, err := s.newRecord(CollectionPayments)
	if err != nil {
		return err
	}
	rec.Set("user", p.UserID)
	rec.Set("event", p.EventID)
	rec.Set("external_id", p.ExternalID)
	rec.Set("gateway_payment_id", p.GatewayPaymentID)
	rec.Set("amount", p.Amount.InexactFloat64())
	rec.Set("currency", p.Currency)
	rec.Set("status", string(p.Status))
	rec.Set("payment_method", p.PaymentMethod)
	rec.Set("payment_channel", p.PaymentChannel)
	rec.Set("ticket_type", p.TicketType)
	rec.Set("quantity", p.Quantity)
	rec.Set("price_per_ticket", p.PricePerTicket.InexactFloat64())
	rec.Set("discount_amount", p.DiscountAmount.InexactFloat64())
	rec.Set("discount_code", p.DiscountCode)
	rec.Set("requires_approval", p.RequiresApproval)
	rec.Set("invoice_url", p.InvoiceURL)
	rec.Set("attendee_name", p.AttendeeName)
	rec.Set("attendee_email", p.AttendeeEmail)
	setTime(rec, "paid_at", p.PaidAt)
	setTime(rec, "expires_at", p.ExpiresAt)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("store: save payment: %w", err)
	}
	p.ID = rec.Id
	p.CreatedAt = rec.GetDateTime("created").Time()
	return nil
}

func (s *PocketBaseStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	rec, err := s.app.FindRecordById(CollectionPayments, id)
	if err != nil {
		return nil, notFound("payment", err)
	}
	return paymentFromRecord(rec), nil
}

func (s *PocketBaseStore) GetPaymentByExternalID(ctx context.Context, externalID string) (*models.Payment, error) {
	rec, err := s.app.FindFirstRecordByData(CollectionPayments, "external_id", externalID)
	if err != nil {
		return nil, notFound("payment", err)
	}
	return paymentFromRecord(rec), nil
}

func (s *PocketBaseStore) GetPaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error) {
	rec, err := s.app.FindFirstRecordByData(CollectionPayments, "gateway_payment_id", gatewayID)
	if err != nil {
		return nil, notFound("payment", err)
	}
	return paymentFromRecord(rec), nil
}

func (s *PocketBaseStore) TransitionPayment(ctx context.Context, id string, from []models.PaymentStatus, upd models.PaymentUpdate) (bool, error) {
	cols := dbx.Params{
		"status":  string(upd.Status),
		"updated": dateTimeString(time.Now()),
	}
	if upd.PaidAt != nil {
		cols["paid_at"] = dateTimeString(*upd.PaidAt)
	}
	if upd.GatewayPaymentID != "" {
		cols["gateway_payment_id"] = upd.GatewayPaymentID
	}
	if upd.PaymentMethod != "" {
		cols["payment_method"] = upd.PaymentMethod
	}
	if upd.PaymentChannel != "" {
		cols["payment_channel"] = upd.PaymentChannel
	}
	if upd.FailureReason != "" {
		cols["failure_reason"] = upd.FailureReason
	}

	states := make([]any, 0, len(from))
	for _, st := range from {
		states = append(states, string(st))
	}

	res, err := s.app.DB().Update(
		CollectionPayments,
		cols,
		dbx.And(dbx.HashExp{"id": id}, dbx.In("status", states...)),
	).WithContext(ctx).Execute()
	return affected(res, err)
}

func (s *PocketBaseStore) ApprovePayment(ctx context.Context, id, approverID string, at time.Time) (bool, error) {
	res, err := s.app.DB().Update(
		CollectionPayments,
		dbx.Params{
			"approved_at": dateTimeString(at),
			"approved_by": approverID,
			"updated":     dateTimeString(time.Now()),
		},
		dbx.HashExp{"id": id, "requires_approval": true, "approved_at": ""},
	).WithContext(ctx).Execute()
	return affected(res, err)
}

// transactions

func (s *PocketBaseStore) TransactionExists(ctx context.Context, referenceID string) (bool, error) {
	var n int
	err := s.app.DB().NewQuery(
		"SELECT COUNT(*) FROM transactions WHERE reference_id = {:ref}",
	).Bind(dbx.Params{"ref": referenceID}).WithContext(ctx).Row(&n)
	if err != nil {
		return false, fmt.Errorf("store: lookup transaction: %w", err)
	}
	return n > 0, nil
}

func (s *PocketBaseStore) CreateTransaction(ctx context.Context, tx *models.Transaction) error {
	rec, err := s.newRecord(CollectionTransactions)
	if err != nil {
		return err
	}
	rec.Set("payment", tx.PaymentID)
	rec.Set("transaction_type", string(tx.Type))
	rec.Set("amount", tx.Amount.InexactFloat64())
	rec.Set("status", string(tx.Status))
	rec.Set("reference_id", tx.ReferenceID)
	setTime(rec, "processed_at", tx.ProcessedAt)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("store: save transaction: %w", err)
	}
	tx.ID = rec.Id
	return nil
}

func (s *PocketBaseStore) SettleTransaction(ctx context.Context, id string, st models.TransactionStatus, at time.Time) (bool, error) {
	res, err := s.app.DB().Update(
		CollectionTransactions,
		dbx.Params{
			"status":       string(st),
			"processed_at": dateTimeString(at),
			"updated":      dateTimeString(time.Now()),
		},
		dbx.HashExp{"id": id, "status": string(models.TransactionPending)},
	).WithContext(ctx).Execute()
	return affected(res, err)
}

func (s *PocketBaseStore) ListTransactions(ctx context.Context, paymentID string) ([]models.Transaction, error) {
	recs, err := s.app.FindRecordsByFilter(
		CollectionTransactions,
		"payment = {:payment}",
		"created",
		0,
		0,
		dbx.Params{"payment": paymentID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: list transactions: %w", err)
	}
	out := make([]models.Transaction, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.Transaction{
			ID:          rec.Id,
			PaymentID:   rec.GetString("payment"),
			Type:        models.TransactionType(rec.GetString("transaction_type")),
			Amount:      decimalField(rec, "amount"),
			Status:      models.TransactionStatus(rec.GetString("status")),
			ReferenceID: rec.GetString("reference_id"),
			ProcessedAt: timePtr(rec.GetDateTime("processed_at")),
		})
	}
	return out, nil
}

// participants

func (s *PocketBaseStore) EnsureParticipant(ctx context.Context, p *models.EventParticipant) (bool, error) {
	existing, err := s.GetParticipant(ctx, p.EventID, p.ParticipantID)
	if err == nil {
		*p = *existing
		return false, nil
	}
	if !errors.Is(err, status.ErrNotFound) {
		return false, err
	}

	rec, err := s.newRecord(CollectionParticipants)
	if err != nil {
		return false, err
	}
	rec.Set("event", p.EventID)
	rec.Set("participant", p.ParticipantID)
	rec.Set("payment", p.PaymentID)
	rec.Set("has_received_certificate", false)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		// the unique (event, participant) index lost a race; return the winner
		if existing, ferr := s.GetParticipant(ctx, p.EventID, p.ParticipantID); ferr == nil {
			*p = *existing
			return false, nil
		}
		return false, fmt.Errorf("store: save participant: %w", err)
	}
	p.ID = rec.Id
	p.CreatedAt = rec.GetDateTime("created").Time()
	return true, nil
}

func (s *PocketBaseStore) GetParticipant(ctx context.Context, eventID, userID string) (*models.EventParticipant, error) {
	rec, err := s.app.FindFirstRecordByFilter(
		CollectionParticipants,
		"event = {:event} && participant = {:user}",
		dbx.Params{"event": eventID, "user": userID},
	)
	if err != nil {
		return nil, notFound("participant", err)
	}
	return s.participantWithUser(rec), nil
}

func (s *PocketBaseStore) GetParticipantByID(ctx context.Context, id string) (*models.EventParticipant, error) {
	rec, err := s.app.FindRecordById(CollectionParticipants, id)
	if err != nil {
		return nil, notFound("participant", err)
	}
	return s.participantWithUser(rec), nil
}

func (s *PocketBaseStore) ListParticipants(ctx context.Context, eventID string) ([]models.EventParticipant, error) {
	recs, err := s.app.FindRecordsByFilter(
		CollectionParticipants,
		"event = {:event}",
		"created",
		0,
		0,
		dbx.Params{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}

	userIDs := make([]string, 0, len(recs))
	for _, rec := range recs {
		userIDs = append(userIDs, rec.GetString("participant"))
	}
	users := map[string]*core.Record{}
	if len(userIDs) > 0 {
		found, err := s.app.FindRecordsByIds(CollectionUsers, userIDs)
		if err != nil {
			return nil, fmt.Errorf("store: load participant users: %w", err)
		}
		for _, u := range found {
			users[u.Id] = u
		}
	}

	out := make([]models.EventParticipant, 0, len(recs))
	for _, rec := range recs {
		p := participantFromRecord(rec)
		if u, ok := users[p.ParticipantID]; ok {
			p.Name = u.GetString("name")
			p.Email = u.GetString("email")
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *PocketBaseStore) ReleaseParticipant(ctx context.Context, paymentID string) (bool, error) {
	res, err := s.app.DB().Delete(
		CollectionParticipants,
		dbx.HashExp{"payment": paymentID, "attendance_verified_at": ""},
	).WithContext(ctx).Execute()
	return affected(res, err)
}

func (s *PocketBaseStore) MarkAttended(ctx context.Context, participantID string, at time.Time) (bool, error) {
	res, err := s.app.DB().Update(
		CollectionParticipants,
		dbx.Params{
			"attendance_verified_at": dateTimeString(at),
			"updated":                dateTimeString(time.Now()),
		},
		dbx.HashExp{"id": participantID, "attendance_verified_at": ""},
	).WithContext(ctx).Execute()
	return affected(res, err)
}

func (s *PocketBaseStore) MarkCertified(ctx context.Context, participantID string) (bool, error) {
	res, err := s.app.DB().Update(
		CollectionParticipants,
		dbx.Params{
			"has_received_certificate": true,
			"updated":                  dateTimeString(time.Now()),
		},
		dbx.And(
			dbx.HashExp{"id": participantID, "has_received_certificate": false},
			dbx.NewExp("attendance_verified_at != ''"),
		),
	).WithContext(ctx).Execute()
	return affected(res, err)
}

// attendance tokens

func (s *PocketBaseStore) CreateAttendanceToken(ctx context.Context, t *models.AttendanceToken) error {
	rec, err := s.newRecord(CollectionTokens)
	if err != nil {
		return err
	}
	rec.Set("event", t.EventID)
	rec.Set("participant", t.ParticipantID)
	rec.Set("token_digest", t.Digest)
	rec.Set("valid_on", t.ValidOn)
	setTime(rec, "expires_at", &t.ExpiresAt)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("store: save attendance token: %w", err)
	}
	t.ID = rec.Id
	return nil
}

func (s *PocketBaseStore) FindAttendanceToken(ctx context.Context, digest string) (*models.AttendanceToken, error) {
	rec, err := s.app.FindFirstRecordByData(CollectionTokens, "token_digest", digest)
	if err != nil {
		return nil, notFound("attendance token", err)
	}
	return &models.AttendanceToken{
		ID:            rec.Id,
		EventID:       rec.GetString("event"),
		ParticipantID: rec.GetString("participant"),
		Digest:        rec.GetString("token_digest"),
		ValidOn:       rec.GetString("valid_on"),
		ExpiresAt:     rec.GetDateTime("expires_at").Time(),
		VerifiedAt:    timePtr(rec.GetDateTime("verified_at")),
	}, nil
}

func (s *PocketBaseStore) MarkTokenVerified(ctx context.Context, id string, at time.Time) error {
	_, err := s.app.DB().Update(
		CollectionTokens,
		dbx.Params{
			"verified_at": dateTimeString(at),
			"updated":     dateTimeString(time.Now()),
		},
		dbx.HashExp{"id": id},
	).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("store: mark token verified: %w", err)
	}
	return nil
}

// certificates

func (s *PocketBaseStore) CreateCertificate(ctx context.Context, c *models.Certificate) error {
	rec, err := s.newRecord(CollectionCertificates)
	if err != nil {
		return err
	}
	rec.Set("event", c.EventID)
	rec.Set("participant", c.ParticipantID)
	rec.Set("event_participant", c.EventParticipantID)
	rec.Set("certificate_number", c.CertificateNumber)
	rec.Set("certificate_path", c.CertificatePath)
	setTime(rec, "issued_at", &c.IssuedAt)

	if err := s.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("store: save certificate: %w", err)
	}
	c.ID = rec.Id
	return nil
}

func (s *PocketBaseStore) GetCertificate(ctx context.Context, number string) (*models.CertificateDetails, error) {
	rec, err := s.app.FindFirstRecordByData(CollectionCertificates, "certificate_number", number)
	if err != nil {
		return nil, notFound("certificate", err)
	}
	d := &models.CertificateDetails{
		Certificate: models.Certificate{
			ID:                 rec.Id,
			EventID:            rec.GetString("event"),
			ParticipantID:      rec.GetString("participant"),
			EventParticipantID: rec.GetString("event_participant"),
			CertificateNumber:  rec.GetString("certificate_number"),
			CertificatePath:    rec.GetString("certificate_path"),
			IssuedAt:           rec.GetDateTime("issued_at").Time(),
		},
	}
	if ev, err := s.app.FindRecordById(CollectionEvents, d.EventID); err == nil {
		d.EventTitle = ev.GetString("title")
		d.EventDate = ev.GetString("date")
		d.EventLocation = ev.GetString("location")
	}
	if u, err := s.app.FindRecordById(CollectionUsers, d.ParticipantID); err == nil {
		d.ParticipantName = u.GetString("name")
	}
	return d, nil
}

// users

func (s *PocketBaseStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	rec, err := s.app.FindRecordById(CollectionUsers, id)
	if err != nil {
		return nil, notFound("user", err)
	}
	return &models.User{ID: rec.Id, Name: rec.GetString("name"), Email: rec.GetString("email")}, nil
}

// helpers

func (s *PocketBaseStore) newRecord(collection string) (*core.Record, error) {
	coll, err := s.app.FindCachedCollectionByNameOrId(collection)
	if err != nil {
		return nil, fmt.Errorf("store: collection %s: %w", collection, err)
	}
	return core.NewRecord(coll), nil
}

func (s *PocketBaseStore) participantWithUser(rec *core.Record) *models.EventParticipant {
	p := participantFromRecord(rec)
	if u, err := s.app.FindRecordById(CollectionUsers, p.ParticipantID); err == nil {
		p.Name = u.GetString("name")
		p.Email = u.GetString("email")
	}
	return p
}

func eventFromRecord(rec *core.Record) (*models.Event, error) {
	e := &models.Event{
		ID:                  rec.Id,
		Title:               rec.GetString("title"),
		Description:         rec.GetString("description"),
		Location:            rec.GetString("location"),
		OrganizerID:         rec.GetString("organizer"),
		Status:              models.EventStatus(rec.GetString("status")),
		Date:                rec.GetString("date"),
		StartTime:           rec.GetString("start_time"),
		EndTime:             rec.GetString("end_time"),
		Capacity:            rec.GetInt("capacity"),
		RegistrationClose:   rec.GetDateTime("registration_deadline").Time(),
		IsPaid:              rec.GetBool("is_paid"),
		TicketPrice:         decimalField(rec, "ticket_price"),
		Currency:            rec.GetString("currency"),
		EarlyBirdEnabled:    rec.GetBool("early_bird_enabled"),
		EarlyBirdDiscount:   decimalField(rec, "early_bird_discount"),
		EarlyBirdDeadline:   rec.GetDateTime("early_bird_deadline").Time(),
		MaxTicketsPerUser:   rec.GetInt("max_tickets_per_user"),
		RequiresApproval:    rec.GetBool("requires_approval"),
		CertificateTemplate: rec.GetString("certificate_template"),
	}
	if e.CertificateTemplate != "" {
		e.TemplateKey = rec.BaseFilesPath() + "/" + e.CertificateTemplate
	}
	if raw := rec.GetString("ticket_types"); raw != "" && raw != "null" {
		if err := rec.UnmarshalJSONField("ticket_types", &e.TicketTypes); err != nil {
			return nil, fmt.Errorf("store: event %s ticket_types: %w", rec.Id, err)
		}
	}
	return e, nil
}

// EventFromRecord exposes the record mapping to record hooks.
func EventFromRecord(rec *core.Record) (*models.Event, error) {
	return eventFromRecord(rec)
}

func paymentFromRecord(rec *core.Record) *models.Payment {
	return &models.Payment{
		ID:               rec.Id,
		UserID:           rec.GetString("user"),
		EventID:          rec.GetString("event"),
		ExternalID:       rec.GetString("external_id"),
		GatewayPaymentID: rec.GetString("gateway_payment_id"),
		Amount:           decimalField(rec, "amount"),
		Currency:         rec.GetString("currency"),
		Status:           models.PaymentStatus(rec.GetString("status")),
		PaymentMethod:    rec.GetString("payment_method"),
		PaymentChannel:   rec.GetString("payment_channel"),
		TicketType:       rec.GetString("ticket_type"),
		Quantity:         rec.GetInt("quantity"),
		PricePerTicket:   decimalField(rec, "price_per_ticket"),
		DiscountAmount:   decimalField(rec, "discount_amount"),
		DiscountCode:     rec.GetString("discount_code"),
		RequiresApproval: rec.GetBool("requires_approval"),
		ApprovedAt:       timePtr(rec.GetDateTime("approved_at")),
		ApprovedBy:       rec.GetString("approved_by"),
		PaidAt:           timePtr(rec.GetDateTime("paid_at")),
		FailureReason:    rec.GetString("failure_reason"),
		InvoiceURL:       rec.GetString("invoice_url"),
		AttendeeName:     rec.GetString("attendee_name"),
		AttendeeEmail:    rec.GetString("attendee_email"),
		CreatedAt:        rec.GetDateTime("created").Time(),
		ExpiresAt:        timePtr(rec.GetDateTime("expires_at")),
	}
}

func participantFromRecord(rec *core.Record) *models.EventParticipant {
	return &models.EventParticipant{
		ID:                     rec.Id,
		EventID:                rec.GetString("event"),
		ParticipantID:          rec.GetString("participant"),
		PaymentID:              rec.GetString("payment"),
		AttendanceVerifiedAt:   timePtr(rec.GetDateTime("attendance_verified_at")),
		HasReceivedCertificate: rec.GetBool("has_received_certificate"),
		CreatedAt:              rec.GetDateTime("created").Time(),
	}
}

func decimalField(rec *core.Record, key string) decimal.Decimal {
	return decimal.NewFromFloat(rec.GetFloat(key))
}

func timePtr(dt types.DateTime) *time.Time {
	if dt.IsZero() {
		return nil
	}
	t := dt.Time()
	return &t
}

func setTime(rec *core.Record, key string, t *time.Time) {
	if t == nil {
		return
	}
	rec.Set(key, t.UTC())
}

func dateTimeString(t time.Time) string {
	dt, _ := types.ParseDateTime(t.UTC())
	return dt.String()
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("store: conditional update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: rows affected: %w", err)
	}
	return n > 0, nil
}

func notFound(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return status.NotFound(what + " not found")
	}
	return fmt.Errorf("store: find %s: %w", what, err)
}
