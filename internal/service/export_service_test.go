package service

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sekolahku/sekolahku-api/internal/models"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

type stubEnrollmentLister struct {
	enrollments []models.Enrollment
}

func (s *stubEnrollmentLister) List(ctx context.Context) ([]models.Enrollment, error) {
	return s.enrollments, nil
}

type stubAttendanceLister struct {
	records []models.AttendanceRecord
}

func (s *stubAttendanceLister) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	return s.records, nil
}

func TestExportServiceEnrollmentsCSV(t *testing.T) {
	notes := "Approved and user created: siti"
	svc := NewExportService(&stubEnrollmentLister{enrollments: []models.Enrollment{
		{
			ID:          5,
			FullName:    "Siti Rahma",
			DOB:         "2010-04-12",
			Address:     "Jl. Melati 5",
			ParentName:  "Budi Rahma",
			ParentPhone: "0812000111",
			TargetClass: "7A",
			Status:      models.EnrollmentStatusApproved,
			Notes:       &notes,
			CreatedAt:   time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
		},
	}}, &stubAttendanceLister{}, zap.NewNop())

	file, err := svc.Enrollments(context.Background(), ExportFormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.True(t, strings.HasSuffix(file.FileName, ".csv"))

	content := string(file.Content)
	assert.Contains(t, content, "Full Name")
	assert.Contains(t, content, "Siti Rahma")
	assert.Contains(t, content, "approved")
	assert.Contains(t, content, notes)
}

func TestExportServiceAttendancePDF(t *testing.T) {
	class := "7A"
	svc := NewExportService(&stubEnrollmentLister{}, &stubAttendanceLister{records: []models.AttendanceRecord{
		{
			Attendance:  models.Attendance{ID: 1, StudentID: 42, Date: "2026-08-28", Status: models.AttendanceStatusPresent},
			StudentName: "Siti Rahma",
			Class:       &class,
		},
	}}, zap.NewNop())

	file, err := svc.Attendance(context.Background(), ExportFormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Content), "%PDF"))
}

func TestExportServiceUnknownFormat(t *testing.T) {
	svc := NewExportService(&stubEnrollmentLister{}, &stubAttendanceLister{}, zap.NewNop())

	_, err := svc.Enrollments(context.Background(), "xlsx")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}
