package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sekolahku/sekolahku-api/internal/models"
)

// Sentinel errors surfaced by the approval transaction. The service layer
// maps them onto HTTP-aware domain errors.
var (
	ErrEnrollmentNotPending = errors.New("pending enrollment not found or already processed")
	ErrUsernameTaken        = errors.New("username already exists")
)

const pqUniqueViolation = "23505"

// EnrollmentRepository handles persistence of enrollment applications.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns all enrollment applications, newest first.
func (r *EnrollmentRepository) List(ctx context.Context) ([]models.Enrollment, error) {
	const query = `SELECT id, full_name, dob, address, parent_name, parent_phone, target_class, status, notes, created_at
FROM enrollments ORDER BY created_at DESC`
	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = `SELECT id, full_name, dob, address, parent_name, parent_phone, target_class, status, notes, created_at
FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new application, assigning id and creation timestamp.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusPending
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (full_name, dob, address, parent_name, parent_phone, target_class, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		enrollment.FullName, enrollment.DOB, enrollment.Address, enrollment.ParentName,
		enrollment.ParentPhone, enrollment.TargetClass, enrollment.Status, enrollment.CreatedAt,
	).Scan(&enrollment.ID); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update replaces every mutable field of the row. Returns sql.ErrNoRows when
// the id does not exist. No state-machine checks here: this is the
// administrative override path, distinct from Approve.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments
SET full_name = $2, dob = $3, address = $4, parent_name = $5, parent_phone = $6, target_class = $7, status = $8, notes = $9
WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query,
		enrollment.ID, enrollment.FullName, enrollment.DOB, enrollment.Address, enrollment.ParentName,
		enrollment.ParentPhone, enrollment.TargetClass, enrollment.Status, enrollment.Notes,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update enrollment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an application. Returns sql.ErrNoRows when nothing matched.
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete enrollment rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Approve converts a pending application into a provisioned student account
// inside a single transaction. The pending re-check runs under FOR UPDATE so
// a concurrent approval of the same id blocks until this one commits and
// then fails with ErrEnrollmentNotPending. A username collision raised at
// insert time rolls everything back and returns ErrUsernameTaken.
func (r *EnrollmentRepository) Approve(ctx context.Context, id int64, username, passwordHash string) (user *models.User, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approval transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollment models.Enrollment
	const lockQuery = `SELECT id, full_name, dob, address, parent_name, parent_phone, target_class, status, notes, created_at
FROM enrollments WHERE id = $1 AND status = $2 FOR UPDATE`
	if err = tx.GetContext(ctx, &enrollment, lockQuery, id, models.EnrollmentStatusPending); err != nil {
		if err == sql.ErrNoRows {
			err = ErrEnrollmentNotPending
			return nil, err
		}
		return nil, fmt.Errorf("lock pending enrollment: %w", err)
	}

	now := time.Now().UTC()
	created := &models.User{
		Username:     username,
		PasswordHash: passwordHash,
		Name:         enrollment.FullName,
		Role:         models.RoleStudent,
		Class:        &enrollment.TargetClass,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	const insertQuery = `INSERT INTO users (username, password_hash, name, role, class, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	if err = tx.QueryRowxContext(ctx, insertQuery,
		created.Username, created.PasswordHash, created.Name, created.Role, created.Class,
		created.CreatedAt, created.UpdatedAt,
	).Scan(&created.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
			err = ErrUsernameTaken
			return nil, err
		}
		return nil, fmt.Errorf("insert student user: %w", err)
	}

	notes := fmt.Sprintf("Approved and user created: %s", username)
	const updateQuery = `UPDATE enrollments SET status = $2, notes = $3 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, updateQuery, id, models.EnrollmentStatusApproved, notes); err != nil {
		return nil, fmt.Errorf("mark enrollment approved: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval transaction: %w", err)
	}
	return created, nil
}
