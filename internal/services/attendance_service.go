package services

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"eventhub/internal/notify"
	"eventhub/internal/status"
	"eventhub/internal/store"
	"eventhub/models"
	"eventhub/monitoring"
	"eventhub/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"golang.org/x/crypto/blake2b"
)

const attendanceTokenBytes = 32

// Verification results reported to the check-in desk.
const (
	ResultVerified        = "verified"
	ResultNotFound        = "not_found"
	ResultExpired         = "expired"
	ResultAlreadyVerified = "already_verified"
)

type AttendanceService struct {
	store    store.Store
	notifier Notifier
	monitor  *monitoring.Monitor
	log      *slog.Logger
	loc      *time.Location
	now      Clock
}

func NewAttendanceService(st store.Store, notifier Notifier, monitor *monitoring.Monitor, logger *slog.Logger, loc *time.Location) *AttendanceService {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceService{
		store:    st,
		notifier: notifier,
		monitor:  monitor,
		log:      logger,
		loc:      loc,
		now:      time.Now,
	}
}

// IssuedToken carries the plain token. It is returned once and never stored.
type IssuedToken struct {
	Token     string    `json:"token"`
	EventID   string    `json:"event_id"`
	ValidOn   string    `json:"valid_on"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken hands a participant a check-in token valid for the rest of the event day.
func (s *AttendanceService) IssueToken(ctx context.Context, actor Actor, eventID string) (*IssuedToken, error) {
	if actor.UserID == "" {
		return nil, status.Unauthenticated("authentication required")
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participant, err := s.store.GetParticipant(ctx, ev.ID, actor.UserID)
	if err != nil {
		return nil, err
	}
	if participant.Attended() {
		return nil, status.Conflict(status.CodeAlreadyVerified, "attendance already verified")
	}

	now := s.now()
	if !ev.IsOnDay(now, s.loc) {
		return nil, status.Expired("attendance tokens are only issued on the event date")
	}
	expires, err := ev.EndOfDay(s.loc)
	if err != nil {
		return nil, status.Internal("event date is malformed", err)
	}

	token, err := utils.GenerateToken(attendanceTokenBytes)
	if err != nil {
		return nil, status.Internal("generate token", err)
	}
	rec := &models.AttendanceToken{
		EventID:       ev.ID,
		ParticipantID: participant.ID,
		Digest:        digestToken(token),
		ValidOn:       ev.Date,
		ExpiresAt:     expires,
	}
	if err := s.store.CreateAttendanceToken(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info("attendance token issued", "event_id", ev.ID, "participant_id", participant.ID)
	return &IssuedToken{Token: token, EventID: ev.ID, ValidOn: rec.ValidOn, ExpiresAt: rec.ExpiresAt}, nil
}

type VerifyTokenRequest struct {
	Token string `json:"token"`
}

func (r VerifyTokenRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Token, validation.Required, validation.Length(2*attendanceTokenBytes, 2*attendanceTokenBytes), is.Hexadecimal),
	)
}

type AttendanceVerification struct {
	Result        string    `json:"result"`
	EventID       string    `json:"event_id"`
	ParticipantID string    `json:"participant_id"`
	UserID        string    `json:"user_id"`
	VerifiedAt    time.Time `json:"verified_at"`
}

// VerifyToken checks a participant in. It succeeds at most once per participant.
func (s *AttendanceService) VerifyToken(ctx context.Context, actor Actor, req VerifyTokenRequest) (*AttendanceVerification, error) {
	res, err := s.verify(ctx, actor, req)
	s.monitor.TrackAttendance(attendanceResult(err))
	return res, err
}

func (s *AttendanceService) verify(ctx context.Context, actor Actor, req VerifyTokenRequest) (*AttendanceVerification, error) {
	if actor.UserID == "" && !actor.IsAdmin {
		return nil, status.Unauthenticated("authentication required")
	}
	req.Token = strings.ToLower(strings.TrimSpace(req.Token))
	if err := req.Validate(); err != nil {
		return nil, status.ValidationWrap("invalid token", err)
	}

	rec, err := s.store.FindAttendanceToken(ctx, digestToken(req.Token))
	if err != nil {
		return nil, err
	}
	ev, err := s.store.GetEvent(ctx, rec.EventID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && ev.OrganizerID != actor.UserID {
		return nil, status.Forbidden(status.CodeForbidden, "only the organizer or an admin can verify attendance")
	}

	now := s.now()
	if rec.ValidOn != ev.Date || !ev.IsOnDay(now, s.loc) || now.After(rec.ExpiresAt) {
		return nil, status.Expired("token is not valid today")
	}

	participant, err := s.store.GetParticipantByID(ctx, rec.ParticipantID)
	if err != nil {
		return nil, err
	}
	if participant.Attended() {
		return nil, status.Conflict(status.CodeAlreadyVerified, "attendance already verified")
	}

	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		ok, err := tx.MarkAttended(ctx, participant.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return status.Conflict(status.CodeAlreadyVerified, "attendance already verified")
		}
		return tx.MarkTokenVerified(ctx, rec.ID, now)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("attendance verified", "event_id", ev.ID, "participant_id", participant.ID, "by", actor.UserID)
	s.notifier.Notify(ctx, participant.ParticipantID, notify.TypeAttendanceChecked, map[string]any{
		"event_id":    ev.ID,
		"verified_at": now,
	})

	return &AttendanceVerification{
		Result:        ResultVerified,
		EventID:       ev.ID,
		ParticipantID: participant.ID,
		UserID:        participant.ParticipantID,
		VerifiedAt:    now,
	}, nil
}

func digestToken(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func attendanceResult(err error) string {
	switch {
	case err == nil:
		return ResultVerified
	case errors.Is(err, status.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, status.ErrExpired):
		return ResultExpired
	case errors.Is(err, status.ErrAlreadyVerified):
		return ResultAlreadyVerified
	default:
		return string(status.KindOf(err))
	}
}
