package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"eventhub/internal/render"
	"eventhub/internal/services/gateway"
	"eventhub/internal/status"
	"eventhub/internal/store"
	"eventhub/models"

	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeStore is an in-memory store.Store. RunInTx serialises transactions and rolls the
// whole state back when fn fails.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  int
	data fakeData
}

type fakeData struct {
	events       map[string]models.Event
	discounts    map[string]models.DiscountCode
	payments     map[string]models.Payment
	transactions []models.Transaction
	participants map[string]models.EventParticipant
	tokens       map[string]models.AttendanceToken
	certificates map[string]models.Certificate
	users        map[string]models.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: fakeData{
		events:       map[string]models.Event{},
		discounts:    map[string]models.DiscountCode{},
		payments:     map[string]models.Payment{},
		participants: map[string]models.EventParticipant{},
		tokens:       map[string]models.AttendanceToken{},
		certificates: map[string]models.Certificate{},
		users:        map[string]models.User{},
	}}
}

func (d fakeData) clone() fakeData {
	c := fakeData{
		events:       make(map[string]models.Event, len(d.events)),
		discounts:    make(map[string]models.DiscountCode, len(d.discounts)),
		payments:     make(map[string]models.Payment, len(d.payments)),
		transactions: append([]models.Transaction(nil), d.transactions...),
		participants: make(map[string]models.EventParticipant, len(d.participants)),
		tokens:       make(map[string]models.AttendanceToken, len(d.tokens)),
		certificates: make(map[string]models.Certificate, len(d.certificates)),
		users:        make(map[string]models.User, len(d.users)),
	}
	for k, v := range d.events {
		c.events[k] = v
	}
	for k, v := range d.discounts {
		c.discounts[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.participants {
		c.participants[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	for k, v := range d.certificates {
		c.certificates[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	return c
}

func (s *fakeStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%03d", prefix, s.seq)
}

func (s *fakeStore) RunInTx(ctx context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// seeding helpers

func (s *fakeStore) addUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.users[u.ID] = u
}

func (s *fakeStore) addEvent(ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.events[ev.ID] = ev
}

func (s *fakeStore) addDiscount(d models.DiscountCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.discounts[d.ID] = d
}

func (s *fakeStore) addParticipant(p models.EventParticipant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.participants[p.ID] = p
}

func (s *fakeStore) addPayment(p models.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.payments[p.ID] = p
}

func (s *fakeStore) paymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.payments)
}

func (s *fakeStore) transactionsFor(paymentID string) []models.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Transaction
	for _, t := range s.data.transactions {
		if t.PaymentID == paymentID {
			out = append(out, t)
		}
	}
	return out
}

func (s *fakeStore) certificateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.certificates)
}

func (s *fakeStore) participantsOf(eventID string) []models.EventParticipant {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EventParticipant
	for _, p := range s.data.participants {
		if p.EventID == eventID {
			out = append(out, p)
		}
	}
	return out
}

// store.Store

func (s *fakeStore) GetEvent(_ context.Context, id string) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.data.events[id]
	if !ok {
		return nil, status.NotFound("event not found")
	}
	return &ev, nil
}

func (s *fakeStore) FindDiscountCode(_ context.Context, eventID, code string) (*models.DiscountCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.data.discounts {
		if d.EventID == eventID && strings.EqualFold(d.Code, code) {
			return &d, nil
		}
	}
	return nil, status.NotFound("discount code not found")
}

func (s *fakeStore) IncrementDiscountUsage(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data.discounts[id]
	if !ok || (d.MaxUses > 0 && d.UsedCount >= d.MaxUses) {
		return false, nil
	}
	d.UsedCount++
	s.data.discounts[id] = d
	return true, nil
}

func reserves(p models.Payment, now time.Time) bool {
	switch p.Status {
	case models.PaymentPaid:
		return true
	case models.PaymentPending:
		return p.ExpiresAt == nil || p.ExpiresAt.After(now)
	}
	return false
}

func (s *fakeStore) ReservedTickets(_ context.Context, eventID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.data.payments {
		if p.EventID == eventID && reserves(p, now) {
			n += p.Quantity
		}
	}
	for _, p := range s.data.participants {
		if p.EventID == eventID && p.PaymentID == "" {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) UserTickets(_ context.Context, eventID, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.data.payments {
		if p.EventID == eventID && p.UserID == userID && reserves(p, now) {
			n += p.Quantity
		}
	}
	for _, p := range s.data.participants {
		if p.EventID == eventID && p.ParticipantID == userID && p.PaymentID == "" {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) CreatePayment(_ context.Context, p *models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.payments {
		if existing.ExternalID == p.ExternalID {
			return fmt.Errorf("duplicate external_id %s", p.ExternalID)
		}
	}
	p.ID = s.nextID("pay")
	s.data.payments[p.ID] = *p
	return nil
}

func (s *fakeStore) GetPayment(_ context.Context, id string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.payments[id]
	if !ok {
		return nil, status.NotFound("payment not found")
	}
	return &p, nil
}

func (s *fakeStore) findPayment(match func(models.Payment) bool) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.data.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, status.NotFound("payment not found")
}

func (s *fakeStore) GetPaymentByExternalID(_ context.Context, externalID string) (*models.Payment, error) {
	return s.findPayment(func(p models.Payment) bool { return p.ExternalID == externalID })
}

func (s *fakeStore) GetPaymentByGatewayID(_ context.Context, gatewayID string) (*models.Payment, error) {
	return s.findPayment(func(p models.Payment) bool { return gatewayID != "" && p.GatewayPaymentID == gatewayID })
}

func (s *fakeStore) TransitionPayment(_ context.Context, id string, from []models.PaymentStatus, upd models.PaymentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.payments[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, st := range from {
		if p.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	p.Status = upd.Status
	if upd.PaidAt != nil {
		p.PaidAt = upd.PaidAt
	}
	if upd.GatewayPaymentID != "" {
		p.GatewayPaymentID = upd.GatewayPaymentID
	}
	if upd.PaymentMethod != "" {
		p.PaymentMethod = upd.PaymentMethod
	}
	if upd.PaymentChannel != "" {
		p.PaymentChannel = upd.PaymentChannel
	}
	if upd.FailureReason != "" {
		p.FailureReason = upd.FailureReason
	}
	s.data.payments[id] = p
	return true, nil
}

func (s *fakeStore) ApprovePayment(_ context.Context, id, approverID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.payments[id]
	if !ok || !p.RequiresApproval || p.ApprovedAt != nil {
		return false, nil
	}
	p.ApprovedAt = &at
	p.ApprovedBy = approverID
	s.data.payments[id] = p
	return true, nil
}

func (s *fakeStore) TransactionExists(_ context.Context, referenceID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.data.transactions {
		if t.ReferenceID == referenceID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateTransaction(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.data.transactions {
		if t.ReferenceID == tx.ReferenceID {
			return fmt.Errorf("duplicate reference_id %s", tx.ReferenceID)
		}
	}
	tx.ID = s.nextID("txn")
	s.data.transactions = append(s.data.transactions, *tx)
	return nil
}

func (s *fakeStore) SettleTransaction(_ context.Context, id string, st models.TransactionStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.data.transactions {
		if t.ID == id {
			if t.Status != models.TransactionPending {
				return false, nil
			}
			t.Status = st
			t.ProcessedAt = &at
			s.data.transactions[i] = t
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ReleaseParticipant(_ context.Context, paymentID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.data.participants {
		if p.PaymentID == paymentID && p.AttendanceVerifiedAt == nil {
			delete(s.data.participants, id)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) ListTransactions(_ context.Context, paymentID string) ([]models.Transaction, error) {
	return s.transactionsFor(paymentID), nil
}

func (s *fakeStore) EnsureParticipant(_ context.Context, p *models.EventParticipant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.data.participants {
		if existing.EventID == p.EventID && existing.ParticipantID == p.ParticipantID {
			*p = existing
			return false, nil
		}
	}
	p.ID = s.nextID("ep")
	if u, ok := s.data.users[p.ParticipantID]; ok {
		p.Name = u.Name
		p.Email = u.Email
	}
	s.data.participants[p.ID] = *p
	return true, nil
}

func (s *fakeStore) GetParticipant(_ context.Context, eventID, userID string) (*models.EventParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.data.participants {
		if p.EventID == eventID && p.ParticipantID == userID {
			return &p, nil
		}
	}
	return nil, status.NotFound("participant not found")
}

func (s *fakeStore) GetParticipantByID(_ context.Context, id string) (*models.EventParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.participants[id]
	if !ok {
		return nil, status.NotFound("participant not found")
	}
	return &p, nil
}

func (s *fakeStore) ListParticipants(_ context.Context, eventID string) ([]models.EventParticipant, error) {
	return s.participantsOf(eventID), nil
}

func (s *fakeStore) MarkAttended(_ context.Context, participantID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.participants[participantID]
	if !ok || p.AttendanceVerifiedAt != nil {
		return false, nil
	}
	p.AttendanceVerifiedAt = &at
	s.data.participants[participantID] = p
	return true, nil
}

func (s *fakeStore) MarkCertified(_ context.Context, participantID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.data.participants[participantID]
	if !ok || p.HasReceivedCertificate || p.AttendanceVerifiedAt == nil {
		return false, nil
	}
	p.HasReceivedCertificate = true
	s.data.participants[participantID] = p
	return true, nil
}

func (s *fakeStore) CreateAttendanceToken(_ context.Context, t *models.AttendanceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.nextID("tok")
	s.data.tokens[t.Digest] = *t
	return nil
}

func (s *fakeStore) FindAttendanceToken(_ context.Context, digest string) (*models.AttendanceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.data.tokens[digest]
	if !ok {
		return nil, status.NotFound("attendance token not found")
	}
	return &t, nil
}

func (s *fakeStore) MarkTokenVerified(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for digest, t := range s.data.tokens {
		if t.ID == id {
			t.VerifiedAt = &at
			s.data.tokens[digest] = t
		}
	}
	return nil
}

func (s *fakeStore) CreateCertificate(_ context.Context, c *models.Certificate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.certificates[c.CertificateNumber]; ok {
		return fmt.Errorf("duplicate certificate number %s", c.CertificateNumber)
	}
	for _, existing := range s.data.certificates {
		if existing.EventParticipantID == c.EventParticipantID {
			return fmt.Errorf("duplicate certificate for %s", c.EventParticipantID)
		}
	}
	c.ID = s.nextID("cert")
	s.data.certificates[c.CertificateNumber] = *c
	return nil
}

func (s *fakeStore) GetCertificate(_ context.Context, number string) (*models.CertificateDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data.certificates[number]
	if !ok {
		return nil, status.NotFound("certificate not found")
	}
	d := &models.CertificateDetails{Certificate: c}
	if ev, ok := s.data.events[c.EventID]; ok {
		d.EventTitle = ev.Title
		d.EventDate = ev.Date
		d.EventLocation = ev.Location
	}
	if u, ok := s.data.users[c.ParticipantID]; ok {
		d.ParticipantName = u.Name
	}
	return d, nil
}

func (s *fakeStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	if !ok {
		return nil, status.NotFound("user not found")
	}
	return &u, nil
}

// memStorage is an in-memory store.Storage.
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}}
}

func (m *memStorage) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return nil
}

func (m *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[key]
	if !ok {
		return nil, status.NotFound("file not found")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, key)
	return nil
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

// fakeRenderer fails for the participant names listed in failFor.
type fakeRenderer struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   int
}

func (r *fakeRenderer) Render(_ context.Context, _ string, data render.CertificateData) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failFor[data.ParticipantName] {
		return nil, fmt.Errorf("template drawing failed for %s", data.ParticipantName)
	}
	return []byte("%PDF-1.3 " + data.CertificateNumber), nil
}

type sentNotification struct {
	UserID string
	Kind   string
	Data   map[string]any
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID, kind string, data map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Kind: kind, Data: data})
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Kind)
	}
	return out
}

// fakeLocker grants every key once at a time; err simulates Redis being down.
type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: map[string]bool{}}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	if l.err != nil {
		return func() {}, false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return func() {}, false, nil
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true, nil
}

type staticVerifier string

func (v staticVerifier) Verify(_ []byte, signature string) bool {
	return string(v) != "" && signature == string(v)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Provider() gateway.Provider {
	return gateway.ProviderXendit
}

func (m *mockGateway) CreateInvoice(ctx context.Context, req *gateway.InvoiceRequest) (*gateway.Invoice, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, *gateway.InvoiceRequest) *gateway.Invoice); ok {
		return fn(ctx, req), args.Error(1)
	}
	inv, _ := args.Get(0).(*gateway.Invoice)
	return inv, args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.Refund, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, *gateway.RefundRequest) *gateway.Refund); ok {
		return fn(ctx, req), args.Error(1)
	}
	rf, _ := args.Get(0).(*gateway.Refund)
	return rf, args.Error(1)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
