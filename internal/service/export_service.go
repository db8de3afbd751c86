package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/repository"
	"github.com/atelierworks/atelier-api/pkg/export"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

// ExportFormat selects the rendered output type.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportAttendanceRepository interface {
	List(ctx context.Context, filter repository.AttendanceFilter) ([]models.AttendanceRecord, int, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportDocument is a rendered export with its serving metadata.
type ExportDocument struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders month rosters and attendance sheets for staff
// download.
type ExportService struct {
	occurrences *OccurrenceService
	attendance  exportAttendanceRepository
	csv         tableRenderer
	pdf         tableRenderer
	logger      *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(occurrences *OccurrenceService, attendance exportAttendanceRepository, csv, pdf tableRenderer, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{occurrences: occurrences, attendance: attendance, csv: csv, pdf: pdf, logger: logger}
}

// MonthRoster renders the professor's resolved occurrence list for the month.
func (s *ExportService) MonthRoster(ctx context.Context, professorID string, year int, month time.Month, format ExportFormat) (*ExportDocument, error) {
	occurrences, err := s.occurrences.ListForProfessor(ctx, professorID, year, month)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Roster %04d-%02d", year, int(month)),
		Columns: []string{"Date", "Start", "End", "Origin", "Capacity", "Taken", "Left", "Status"},
	}
	for _, occ := range occurrences {
		table.Rows = append(table.Rows, []string{
			occ.Start.Format("2006-01-02"),
			occ.Start.Format("15:04"),
			occ.End.Format("15:04"),
			string(occ.Origin),
			strconv.Itoa(occ.Capacity),
			strconv.Itoa(occ.Taken),
			strconv.Itoa(occ.CapacityLeft),
			string(occ.Status),
		})
	}

	name := fmt.Sprintf("roster_%s_%04d-%02d", professorID, year, int(month))
	return s.render(table, name, format)
}

// AttendanceSheet renders the professor's attendance records for the month.
func (s *ExportService) AttendanceSheet(ctx context.Context, professorID string, year int, month time.Month, format ExportFormat) (*ExportDocument, error) {
	monthStart, monthEnd := models.MonthRange(year, month)
	records, _, err := s.attendance.List(ctx, repository.AttendanceFilter{
		ProfessorID: professorID,
		From:        &monthStart,
		To:          &monthEnd,
		PageSize:    100,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance records")
	}

	table := export.Table{
		Title:   fmt.Sprintf("Attendance %04d-%02d", year, int(month)),
		Columns: []string{"Date", "Student", "Origin", "Status", "Marked By", "Marked At"},
	}
	for _, rec := range records {
		markedBy, markedAt := "", ""
		if rec.MarkedBy != nil {
			markedBy = *rec.MarkedBy
		}
		if rec.MarkedAt != nil {
			markedAt = rec.MarkedAt.Format(time.RFC3339)
		}
		table.Rows = append(table.Rows, []string{
			rec.Date.Format("2006-01-02 15:04"),
			rec.StudentID,
			string(rec.Origin),
			string(rec.Status),
			markedBy,
			markedAt,
		})
	}

	name := fmt.Sprintf("attendance_%s_%04d-%02d", professorID, year, int(month))
	return s.render(table, name, format)
}

func (s *ExportService) render(table export.Table, name string, format ExportFormat) (*ExportDocument, error) {
	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportDocument{Filename: name + ".csv", ContentType: "text/csv", Payload: payload}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(table)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportDocument{Filename: name + ".pdf", ContentType: "application/pdf", Payload: payload}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
}
