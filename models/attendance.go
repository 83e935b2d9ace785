package models

import (
	"time"
)

type EventParticipant struct {
	ID                     string     `json:"id"`
	EventID                string     `json:"event_id"`
	ParticipantID          string     `json:"participant_id"`
	PaymentID              string     `json:"payment_id,omitempty"`
	Name                   string     `json:"name"`
	Email                  string     `json:"email"`
	AttendanceVerifiedAt   *time.Time `json:"attendance_verified_at,omitempty"`
	HasReceivedCertificate bool       `json:"has_received_certificate"`
	CreatedAt              time.Time  `json:"created_at"`
}

func (p *EventParticipant) Attended() bool {
	return p.AttendanceVerifiedAt != nil
}

// EligibleForCertificate reports whether a certificate may still be issued.
func (p *EventParticipant) EligibleForCertificate() bool {
	return p.Attended() && !p.HasReceivedCertificate
}

// AttendanceToken is the issuance record of a check-in token. Only the digest is stored.
type AttendanceToken struct {
	ID            string     `json:"id"`
	EventID       string     `json:"event_id"`
	ParticipantID string     `json:"participant_id"` // event_participants id
	Digest        string     `json:"-"`
	ValidOn       string     `json:"valid_on"`
	ExpiresAt     time.Time  `json:"expires_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
}

type Certificate struct {
	ID                 string    `json:"id"`
	EventID            string    `json:"event_id"`
	ParticipantID      string    `json:"participant_id"` // users id
	EventParticipantID string    `json:"event_participant_id"`
	CertificateNumber  string    `json:"certificate_number"`
	CertificatePath    string    `json:"certificate_path"`
	IssuedAt           time.Time `json:"issued_at"`
}

// CertificateDetails is a certificate joined with the data needed to display it.
type CertificateDetails struct {
	Certificate
	ParticipantName string `json:"participant_name"`
	EventTitle      string `json:"event_title"`
	EventDate       string `json:"event_date"`
	EventLocation   string `json:"event_location"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
