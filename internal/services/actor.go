package services

import (
	"context"
	"time"

	"eventhub/internal/render"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	UserID  string
	IsAdmin bool
}

// CanAccess reports whether the actor owns the resource or is an admin.
func (a Actor) CanAccess(ownerID string) bool {
	return a.IsAdmin || (a.UserID != "" && a.UserID == ownerID)
}

// Notifier pushes realtime messages to a user. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, userID, kind string, data map[string]any)
}

// Verifier authenticates an inbound gateway callback.
type Verifier interface {
	Verify(payload []byte, signature string) bool
}

// Renderer produces the certificate document for a template.
type Renderer interface {
	Render(ctx context.Context, templateKey string, data render.CertificateData) ([]byte, error)
}

// Clock returns the current time; tests pin it.
type Clock func() time.Time
