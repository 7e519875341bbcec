package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/sekolahku-api/internal/models"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

type attendanceRepository interface {
	FindByStudentAndDate(ctx context.Context, studentID int64, date string) (*models.Attendance, error)
	Create(ctx context.Context, record *models.Attendance) error
	ListByStudent(ctx context.Context, studentID int64) ([]models.AttendanceRecord, error)
	ListAll(ctx context.Context) ([]models.AttendanceRecord, error)
}

// SubmitAttendanceRequest is the student self-report payload.
type SubmitAttendanceRequest struct {
	Status models.AttendanceStatus `json:"status" validate:"omitempty,oneof=present sick excused absent"`
	Notes  *string                 `json:"notes"`
}

// TodayAttendanceResponse reports whether today's record exists.
type TodayAttendanceResponse struct {
	HasAttendance bool               `json:"has_attendance"`
	Attendance    *models.Attendance `json:"attendance,omitempty"`
}

// AttendanceService manages daily attendance records.
type AttendanceService struct {
	repo      attendanceRepository
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(repo attendanceRepository, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, validator: validate, logger: logger, now: time.Now}
}

// Submit records today's attendance for a student. One record per student
// per calendar day.
func (s *AttendanceService) Submit(ctx context.Context, studentID int64, req SubmitAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	today := s.today()
	if _, err := s.repo.FindByStudentAndDate(ctx, studentID, today); err == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "attendance already marked for today")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing attendance")
	}

	status := req.Status
	if status == "" {
		status = models.AttendanceStatusPresent
	}
	record := &models.Attendance{
		StudentID: studentID,
		Date:      today,
		Status:    status,
		Notes:     req.Notes,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit attendance")
	}
	return record, nil
}

// Records returns the caller's own history for students, or the full log
// for teachers and admins.
func (s *AttendanceService) Records(ctx context.Context, claims *models.JWTClaims) ([]models.AttendanceRecord, error) {
	var (
		records []models.AttendanceRecord
		err     error
	)
	if claims.Role == models.RoleStudent {
		records, err = s.repo.ListByStudent(ctx, claims.UserID)
	} else {
		records, err = s.repo.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// Today reports whether the student already has a record for today.
func (s *AttendanceService) Today(ctx context.Context, studentID int64) (*TodayAttendanceResponse, error) {
	record, err := s.repo.FindByStudentAndDate(ctx, studentID, s.today())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &TodayAttendanceResponse{HasAttendance: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check today's attendance")
	}
	return &TodayAttendanceResponse{HasAttendance: true, Attendance: record}, nil
}

func (s *AttendanceService) today() string {
	return s.now().UTC().Format("2006-01-02")
}
