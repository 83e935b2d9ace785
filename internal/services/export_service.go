package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"eventhub/internal/status"
	"eventhub/internal/store"
	"eventhub/models"

	"github.com/xuri/excelize/v2"
)

const participantSheet = "Participants"

var participantColumns = []string{
	"No", "Name", "Email", "Payment", "Registered At", "Attendance Verified At", "Certificate Issued",
}

type ExportService struct {
	store store.Store
	log   *slog.Logger
	loc   *time.Location
}

func NewExportService(st store.Store, logger *slog.Logger, loc *time.Location) *ExportService {
	if loc == nil {
		loc = time.UTC
	}
	return &ExportService{store: st, log: logger, loc: loc}
}

// ExportParticipants renders the participant list of an event as an xlsx workbook.
func (s *ExportService) ExportParticipants(ctx context.Context, actor Actor, eventID string) ([]byte, string, error) {
	if !actor.IsAdmin {
		return nil, "", status.Forbidden(status.CodeForbidden, "admin access required")
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, "", err
	}
	participants, err := s.store.ListParticipants(ctx, ev.ID)
	if err != nil {
		return nil, "", err
	}

	data, err := s.workbook(participants)
	if err != nil {
		return nil, "", status.Internal("build participant export", err)
	}

	s.log.Info("participants exported", "event_id", ev.ID, "rows", len(participants), "by", actor.UserID)
	return data, fmt.Sprintf("participants-%s-%s.xlsx", ev.ID, ev.Date), nil
}

func (s *ExportService) workbook(participants []models.EventParticipant) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", participantSheet); err != nil {
		return nil, err
	}

	header := make([]any, len(participantColumns))
	for i, c := range participantColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(participantSheet, "A1", &header); err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, _ := excelize.ColumnNumberToName(len(participantColumns))
	if err := f.SetCellStyle(participantSheet, "A1", last+"1", bold); err != nil {
		return nil, err
	}

	for i, p := range participants {
		verified := ""
		if p.AttendanceVerifiedAt != nil {
			verified = p.AttendanceVerifiedAt.In(s.loc).Format(time.DateTime)
		}
		certified := "No"
		if p.HasReceivedCertificate {
			certified = "Yes"
		}
		payment := p.PaymentID
		if payment == "" {
			payment = "free"
		}
		row := []any{
			i + 1,
			p.Name,
			p.Email,
			payment,
			p.CreatedAt.In(s.loc).Format(time.DateTime),
			verified,
			certified,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(participantSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(participantSheet, "B", "C", 30)
	_ = f.SetColWidth(participantSheet, "D", "F", 22)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
