package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sekolahku/sekolahku-api/internal/models"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
	"github.com/sekolahku/sekolahku-api/pkg/export"
)

// ExportFormat enumerates supported export encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type enrollmentLister interface {
	List(ctx context.Context) ([]models.Enrollment, error)
}

type attendanceLister interface {
	ListAll(ctx context.Context) ([]models.AttendanceRecord, error)
}

// ExportFile is a rendered document ready to be sent to the client.
type ExportFile struct {
	FileName    string
	ContentType string
	Content     []byte
}

// ExportService renders enrollment and attendance data as CSV or PDF.
type ExportService struct {
	enrollments enrollmentLister
	attendance  attendanceLister
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	logger      *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(enrollments enrollmentLister, attendance attendanceLister, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		enrollments: enrollments,
		attendance:  attendance,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		logger:      logger,
	}
}

// Enrollments renders the full application list in the requested format.
func (s *ExportService) Enrollments(ctx context.Context, format ExportFormat) (*ExportFile, error) {
	enrollments, err := s.enrollments.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments for export")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Full Name", "Date of Birth", "Address", "Parent Name", "Parent Phone", "Target Class", "Status", "Notes", "Submitted At"},
	}
	for _, e := range enrollments {
		notes := ""
		if e.Notes != nil {
			notes = *e.Notes
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":            strconv.FormatInt(e.ID, 10),
			"Full Name":     e.FullName,
			"Date of Birth": e.DOB,
			"Address":       e.Address,
			"Parent Name":   e.ParentName,
			"Parent Phone":  e.ParentPhone,
			"Target Class":  e.TargetClass,
			"Status":        string(e.Status),
			"Notes":         notes,
			"Submitted At":  e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	return s.render(dataset, "enrollments", "Enrollment Applications", format)
}

// Attendance renders the full attendance log in the requested format.
func (s *ExportService) Attendance(ctx context.Context, format ExportFormat) (*ExportFile, error) {
	records, err := s.attendance.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance for export")
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Student", "Class", "Date", "Status", "Notes"},
	}
	for _, r := range records {
		notes := ""
		if r.Notes != nil {
			notes = *r.Notes
		}
		class := ""
		if r.Class != nil {
			class = *r.Class
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":      strconv.FormatInt(r.ID, 10),
			"Student": r.StudentName,
			"Class":   class,
			"Date":    r.Date,
			"Status":  string(r.Status),
			"Notes":   notes,
		})
	}

	return s.render(dataset, "attendance", "Attendance Log", format)
}

func (s *ExportService) render(dataset export.Dataset, baseName, title string, format ExportFormat) (*ExportFile, error) {
	stamp := time.Now().UTC().Format("20060102")
	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("%s-%s.csv", baseName, stamp),
			ContentType: "text/csv",
			Content:     content,
		}, nil
	case ExportFormatPDF:
		content, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportFile{
			FileName:    fmt.Sprintf("%s-%s.pdf", baseName, stamp),
			ContentType: "application/pdf",
			Content:     content,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv or pdf")
	}
}
