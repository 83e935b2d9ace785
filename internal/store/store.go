package store

import (
	"context"
	"io"
	"time"

	"eventhub/models"
)

// Store is the repository boundary used by the services. Every method returns fully
// materialised models; lookups that miss return a status.NotFound error.
type Store interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	FindDiscountCode(ctx context.Context, eventID, code string) (*models.DiscountCode, error)
	// IncrementDiscountUsage bumps used_count unless max_uses was reached concurrently.
	IncrementDiscountUsage(ctx context.Context, id string) (bool, error)

	// ReservedTickets counts paid tickets, unexpired pending tickets and free registrations.
	ReservedTickets(ctx context.Context, eventID string, now time.Time) (int, error)
	UserTickets(ctx context.Context, eventID, userID string, now time.Time) (int, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
	GetPaymentByExternalID(ctx context.Context, externalID string) (*models.Payment, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayID string) (*models.Payment, error)
	// TransitionPayment applies upd only while the payment is in one of from.
	TransitionPayment(ctx context.Context, id string, from []models.PaymentStatus, upd models.PaymentUpdate) (bool, error)
	ApprovePayment(ctx context.Context, id, approverID string, at time.Time) (bool, error)

	TransactionExists(ctx context.Context, referenceID string) (bool, error)
	CreateTransaction(ctx context.Context, tx *models.Transaction) error
	ListTransactions(ctx context.Context, paymentID string) ([]models.Transaction, error)
	// SettleTransaction moves a pending transaction to its final status.
	SettleTransaction(ctx context.Context, id string, st models.TransactionStatus, at time.Time) (bool, error)

	// EnsureParticipant inserts the (event, participant) row unless it exists already.
	EnsureParticipant(ctx context.Context, p *models.EventParticipant) (bool, error)
	GetParticipant(ctx context.Context, eventID, userID string) (*models.EventParticipant, error)
	GetParticipantByID(ctx context.Context, id string) (*models.EventParticipant, error)
	ListParticipants(ctx context.Context, eventID string) ([]models.EventParticipant, error)
	// ReleaseParticipant removes the participant created by paymentID unless attendance
	// was already verified.
	ReleaseParticipant(ctx context.Context, paymentID string) (bool, error)
	// MarkAttended sets attendance_verified_at if it is still empty.
	MarkAttended(ctx context.Context, participantID string, at time.Time) (bool, error)
	// MarkCertified flips has_received_certificate false -> true for a verified participant.
	MarkCertified(ctx context.Context, participantID string) (bool, error)

	CreateAttendanceToken(ctx context.Context, t *models.AttendanceToken) error
	FindAttendanceToken(ctx context.Context, digest string) (*models.AttendanceToken, error)
	MarkTokenVerified(ctx context.Context, id string, at time.Time) error

	CreateCertificate(ctx context.Context, c *models.Certificate) error
	GetCertificate(ctx context.Context, number string) (*models.CertificateDetails, error)

	GetUser(ctx context.Context, id string) (*models.User, error)

	// RunInTx runs fn against a Store bound to a single database transaction.
	RunInTx(ctx context.Context, fn func(tx Store) error) error
}

// Storage keeps binary artifacts such as rendered certificates and uploaded templates.
type Storage interface {
	Put(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}
