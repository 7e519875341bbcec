package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sekolahku-api/internal/models"
)

func newEnrollmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func enrollmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "full_name", "dob", "address", "parent_name", "parent_phone", "target_class", "status", "notes", "created_at"})
}

func TestEnrollmentRepositoryList(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := enrollmentRows().
		AddRow(int64(2), "Siti Rahma", "2010-04-12", "Jl. Melati 5", "Budi Rahma", "0812000111", "7A", models.EnrollmentStatusPending, nil, time.Now()).
		AddRow(int64(1), "Andi Wijaya", "2010-01-30", "Jl. Kenanga 2", "Dewi Wijaya", "0812000222", "7B", models.EnrollmentStatusApproved, "Approved and user created: andi", time.Now().Add(-time.Hour))
	mock.ExpectQuery("SELECT id, full_name, dob, address, parent_name, parent_phone, target_class, status, notes, created_at\nFROM enrollments ORDER BY created_at DESC").
		WillReturnRows(rows)

	enrollments, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.Equal(t, int64(2), enrollments[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO enrollments")).
		WithArgs("Siti Rahma", "2010-04-12", "Jl. Melati 5", "Budi Rahma", "0812000111", "7A", models.EnrollmentStatusPending, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	enrollment := &models.Enrollment{
		FullName:    "Siti Rahma",
		DOB:         "2010-04-12",
		Address:     "Jl. Melati 5",
		ParentName:  "Budi Rahma",
		ParentPhone: "0812000111",
		TargetClass: "7A",
	}
	require.NoError(t, repo.Create(context.Background(), enrollment))
	require.Equal(t, int64(7), enrollment.ID)
	require.Equal(t, models.EnrollmentStatusPending, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateNotFound(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Enrollment{ID: 99, Status: models.EnrollmentStatusPending})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveCommitsBothWrites(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(5), models.EnrollmentStatusPending).
		WillReturnRows(enrollmentRows().
			AddRow(int64(5), "Siti Rahma", "2010-04-12", "Jl. Melati 5", "Budi Rahma", "0812000111", "7A", models.EnrollmentStatusPending, nil, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("siti", "hashed-password", "Siti Rahma", models.RoleStudent, "7A", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, notes = $3 WHERE id = $1")).
		WithArgs(int64(5), models.EnrollmentStatusApproved, "Approved and user created: siti").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	user, err := repo.Approve(context.Background(), 5, "siti", "hashed-password")
	require.NoError(t, err)
	require.Equal(t, int64(42), user.ID)
	require.Equal(t, models.RoleStudent, user.Role)
	require.NotNil(t, user.Class)
	require.Equal(t, "7A", *user.Class)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveNotPendingRollsBack(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(5), models.EnrollmentStatusPending).
		WillReturnRows(enrollmentRows())
	mock.ExpectRollback()

	user, err := repo.Approve(context.Background(), 5, "siti", "hashed-password")
	require.ErrorIs(t, err, ErrEnrollmentNotPending)
	require.Nil(t, user)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveUsernameConflictRollsBack(t *testing.T) {
	db, mock, cleanup := newEnrollmentRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(5), models.EnrollmentStatusPending).
		WillReturnRows(enrollmentRows().
			AddRow(int64(5), "Siti Rahma", "2010-04-12", "Jl. Melati 5", "Budi Rahma", "0812000111", "7A", models.EnrollmentStatusPending, nil, time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: pq.ErrorCode(pqUniqueViolation)})
	mock.ExpectRollback()

	user, err := repo.Approve(context.Background(), 5, "siti", "hashed-password")
	require.ErrorIs(t, err, ErrUsernameTaken)
	require.Nil(t, user)
	require.NoError(t, mock.ExpectationsWereMet())
}
