package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"eventhub/internal/notify"
	"eventhub/internal/render"
	"eventhub/internal/status"
	"eventhub/internal/store"
	"eventhub/models"
	"eventhub/monitoring"
	"eventhub/utils"

	"golang.org/x/sync/errgroup"
)

type CertificateConfig struct {
	Workers       int
	RenderTimeout time.Duration
	Location      *time.Location
}

type CertificateService struct {
	store    store.Store
	storage  store.Storage
	renderer Renderer
	notifier Notifier
	monitor  *monitoring.Monitor
	log      *slog.Logger
	cfg      CertificateConfig
	now      Clock

	newNumber func(eventDate string) (string, error)
}

func NewCertificateService(st store.Store, storage store.Storage, renderer Renderer, notifier Notifier, monitor *monitoring.Monitor, logger *slog.Logger, cfg CertificateConfig) *CertificateService {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &CertificateService{
		store:     st,
		storage:   storage,
		renderer:  renderer,
		notifier:  notifier,
		monitor:   monitor,
		log:       logger,
		cfg:       cfg,
		now:       time.Now,
		newNumber: certificateNumber,
	}
}

// certificateNumber returns CERT-<YYYYMMDD>-<12 upper hex>.
func certificateNumber(eventDate string) (string, error) {
	suffix, err := utils.GenerateCode(6)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CERT-%s-%s", strings.ReplaceAll(eventDate, "-", ""), suffix), nil
}

func certificateKey(eventID, number string) string {
	return fmt.Sprintf("certificates/%s/%s.pdf", eventID, number)
}

// GenerateForParticipant issues the certificate of one verified participant.
func (s *CertificateService) GenerateForParticipant(ctx context.Context, actor Actor, eventID, participantID string) (*models.Certificate, error) {
	if !actor.IsAdmin {
		return nil, status.Forbidden(status.CodeForbidden, "admin access required")
	}
	ev, err := s.certifiableEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetParticipantByID(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.EventID != ev.ID {
		return nil, status.NotFound("participant not found")
	}

	cert, err := s.issue(ctx, ev, p)
	s.monitor.TrackCertificate(certificateOutcome(err))
	return cert, err
}

type BatchFailure struct {
	ParticipantID string `json:"participant_id"`
	Error         string `json:"error"`
}

type BatchResult struct {
	Eligible  int            `json:"eligible"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []BatchFailure `json:"failures"`
}

// GenerateAll issues certificates for every verified participant that has none yet.
// Only a missing template fails the whole batch; per-participant errors are collected.
func (s *CertificateService) GenerateAll(ctx context.Context, actor Actor, eventID string) (*BatchResult, error) {
	if !actor.IsAdmin {
		return nil, status.Forbidden(status.CodeForbidden, "admin access required")
	}
	ev, err := s.certifiableEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, ev.ID)
	if err != nil {
		return nil, err
	}

	res := &BatchResult{Failures: []BatchFailure{}}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)

	for i := range participants {
		p := &participants[i]
		if !p.EligibleForCertificate() {
			continue
		}
		res.Eligible++

		g.Go(func() error {
			_, err := s.issue(ctx, ev, p)
			s.monitor.TrackCertificate(certificateOutcome(err))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.Failures = append(res.Failures, BatchFailure{ParticipantID: p.ID, Error: err.Error()})
				return nil
			}
			res.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool {
		return res.Failures[i].ParticipantID < res.Failures[j].ParticipantID
	})
	s.log.Info("certificate batch finished", "event_id", ev.ID, "eligible", res.Eligible, "succeeded", res.Succeeded, "failed", res.Failed)
	return res, nil
}

func (s *CertificateService) certifiableEvent(ctx context.Context, eventID string) (*models.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !ev.HasCertificateTemplate() {
		return nil, status.State(status.CodeTemplateMissing, "event has no certificate template")
	}
	return ev, nil
}

func (s *CertificateService) issue(ctx context.Context, ev *models.Event, p *models.EventParticipant) (*models.Certificate, error) {
	if !p.Attended() {
		return nil, status.State(status.CodeNotAttended, "attendance has not been verified")
	}
	if p.HasReceivedCertificate {
		return nil, status.Conflict(status.CodeDuplicateCertificate, "certificate already issued")
	}

	name := p.Name
	if name == "" {
		u, err := s.store.GetUser(ctx, p.ParticipantID)
		if err != nil {
			return nil, err
		}
		name = u.Name
	}
	day, err := ev.Day(s.cfg.Location)
	if err != nil {
		return nil, status.Internal("event date is malformed", err)
	}
	number, err := s.newNumber(ev.Date)
	if err != nil {
		return nil, status.Internal("generate certificate number", err)
	}
	now := s.now()

	rctx, cancel := context.WithTimeout(ctx, s.cfg.RenderTimeout)
	start := time.Now()
	pdf, err := s.renderer.Render(rctx, ev.TemplateKey, render.CertificateData{
		ParticipantName:   name,
		EventTitle:        ev.Title,
		EventDate:         day,
		EventLocation:     ev.Location,
		CertificateNumber: number,
		IssuedAt:          now,
	})
	cancel()
	s.monitor.ObserveRender(time.Since(start))
	if err != nil {
		return nil, status.External(status.CodeRenderFailed, "certificate rendering failed", err)
	}

	key := certificateKey(ev.ID, number)
	if err := s.storage.Put(ctx, key, pdf); err != nil {
		return nil, status.Internal("store certificate file", err)
	}

	cert := &models.Certificate{
		EventID:            ev.ID,
		ParticipantID:      p.ParticipantID,
		EventParticipantID: p.ID,
		CertificateNumber:  number,
		CertificatePath:    key,
		IssuedAt:           now,
	}
	err = s.store.RunInTx(ctx, func(tx store.Store) error {
		ok, err := tx.MarkCertified(ctx, p.ID)
		if err != nil {
			return err
		}
		if !ok {
			return status.Conflict(status.CodeDuplicateCertificate, "certificate already issued")
		}
		return tx.CreateCertificate(ctx, cert)
	})
	if err != nil {
		if derr := s.storage.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Warn("orphaned certificate file", "key", key, "error", derr)
		}
		return nil, err
	}

	p.HasReceivedCertificate = true
	s.log.Info("certificate issued", "event_id", ev.ID, "participant_id", p.ID, "number", number)
	s.notifier.Notify(ctx, p.ParticipantID, notify.TypeCertificateIssued, map[string]any{
		"event_id":           ev.ID,
		"certificate_number": number,
	})
	return cert, nil
}

// CertificateVerification is the public view of a certificate.
type CertificateVerification struct {
	Valid             bool      `json:"valid"`
	CertificateNumber string    `json:"certificate_number"`
	ParticipantName   string    `json:"participant_name"`
	EventTitle        string    `json:"event_title"`
	EventDate         string    `json:"event_date"`
	EventLocation     string    `json:"event_location,omitempty"`
	IssuedAt          time.Time `json:"issued_at"`
}

func (s *CertificateService) Verify(ctx context.Context, number string) (*CertificateVerification, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, status.Validation(status.CodeInvalidRequest, "certificate number is required")
	}
	d, err := s.store.GetCertificate(ctx, number)
	if err != nil {
		return nil, err
	}
	return &CertificateVerification{
		Valid:             true,
		CertificateNumber: d.CertificateNumber,
		ParticipantName:   d.ParticipantName,
		EventTitle:        d.EventTitle,
		EventDate:         d.EventDate,
		EventLocation:     d.EventLocation,
		IssuedAt:          d.IssuedAt,
	}, nil
}

// Download opens the stored PDF of a certificate owned by the actor. The caller closes it.
func (s *CertificateService) Download(ctx context.Context, actor Actor, number string) (io.ReadCloser, *models.CertificateDetails, error) {
	if actor.UserID == "" && !actor.IsAdmin {
		return nil, nil, status.Unauthenticated("authentication required")
	}
	d, err := s.store.GetCertificate(ctx, number)
	if err != nil {
		return nil, nil, err
	}
	if !actor.CanAccess(d.ParticipantID) {
		return nil, nil, status.Forbidden(status.CodeForbidden, "certificate belongs to another user")
	}
	rc, err := s.storage.Open(ctx, d.CertificatePath)
	if err != nil {
		return nil, nil, err
	}
	return rc, d, nil
}

func certificateOutcome(err error) string {
	if err == nil {
		return "issued"
	}
	return status.CodeOf(err)
}
