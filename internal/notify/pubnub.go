package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pubnub "github.com/pubnub/go/v7"
)

// Message types pushed to buyers and attendees.
const (
	TypePaymentPaid       = "payment_paid"
	TypePaymentFailed     = "payment_failed"
	TypePaymentExpired    = "payment_expired"
	TypePaymentApproved   = "payment_approved"
	TypeAttendanceChecked = "attendance_verified"
	TypeCertificateIssued = "certificate_issued"
)

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

// PubNubNotifier publishes realtime updates to the per-user channel user-<id>.
type PubNubNotifier struct {
	pn  *pubnub.PubNub
	log *slog.Logger
}

func NewPubNubNotifier(cfg Config, logger *slog.Logger) *PubNubNotifier {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	return &PubNubNotifier{pn: pubnub.NewPubNub(pnCfg), log: logger}
}

func UserChannel(userID string) string {
	return fmt.Sprintf("user-%s", userID)
}

// Notify is best effort: the state change it reports is already committed, so a publish
// failure is only logged.
func (n *PubNubNotifier) Notify(ctx context.Context, userID, kind string, data map[string]any) {
	msg := map[string]any{"type": kind}
	for k, v := range data {
		msg[k] = v
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, st, err := n.pn.PublishWithContext(ctx).
		Channel(UserChannel(userID)).
		Message(msg).
		Execute()
	if err != nil {
		n.log.Error("pubnub publish failed", "channel", UserChannel(userID), "type", kind, "status", st.StatusCode, "error", err)
	}
}

// Nop discards notifications; used when PubNub keys are not configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, string, map[string]any) {}
