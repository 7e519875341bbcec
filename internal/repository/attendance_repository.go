package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/sekolahku-api/internal/models"
)

// AttendanceRepository handles persistence for daily attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByStudentAndDate returns the record for one student on one day, or
// sql.ErrNoRows.
func (r *AttendanceRepository) FindByStudentAndDate(ctx context.Context, studentID int64, date string) (*models.Attendance, error) {
	const query = `SELECT id, student_id, date, status, notes, created_at FROM attendance WHERE student_id = $1 AND date = $2 LIMIT 1`
	var record models.Attendance
	if err := r.db.GetContext(ctx, &record, query, studentID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find attendance: %w", err)
	}
	return &record, nil
}

// Create inserts a new attendance record.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (student_id, date, status, notes, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		record.StudentID, record.Date, record.Status, record.Notes, record.CreatedAt,
	).Scan(&record.ID); err != nil {
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

// ListByStudent returns one student's history, newest first.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.student_id, a.date, a.status, a.notes, a.created_at, u.name AS student_name, u.class
FROM attendance a
LEFT JOIN users u ON u.id = a.student_id
WHERE a.student_id = $1
ORDER BY a.date DESC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list student attendance: %w", err)
	}
	return records, nil
}

// ListAll returns every record joined with the roster, newest first.
func (r *AttendanceRepository) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.student_id, a.date, a.status, a.notes, a.created_at, u.name AS student_name, u.class
FROM attendance a
LEFT JOIN users u ON u.id = a.student_id
ORDER BY a.date DESC, u.name`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return records, nil
}
