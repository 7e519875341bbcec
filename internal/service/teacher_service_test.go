package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahku/sekolahku-api/internal/models"
	"github.com/sekolahku/sekolahku-api/internal/repository"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

type mockTeacherRepo struct {
	teachers map[int64]models.User
	nextID   int64
	taken    map[string]bool
}

func (m *mockTeacherRepo) ListTeachers(ctx context.Context) ([]models.TeacherInfo, error) {
	out := make([]models.TeacherInfo, 0, len(m.teachers))
	for _, u := range m.teachers {
		out = append(out, models.TeacherInfo{ID: u.ID, Username: u.Username, Name: u.Name})
	}
	return out, nil
}

func (m *mockTeacherRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	return m.taken[username], nil
}

func (m *mockTeacherRepo) Create(ctx context.Context, user *models.User) error {
	if m.teachers == nil {
		m.teachers = make(map[int64]models.User)
	}
	m.nextID++
	user.ID = m.nextID
	m.teachers[user.ID] = *user
	return nil
}

func (m *mockTeacherRepo) UpdateTeacher(ctx context.Context, id int64, username, name string, passwordHash *string) error {
	u, ok := m.teachers[id]
	if !ok {
		return sql.ErrNoRows
	}
	if m.taken[username] && username != u.Username {
		return repository.ErrUsernameTaken
	}
	u.Username = username
	u.Name = name
	if passwordHash != nil {
		u.PasswordHash = *passwordHash
	}
	m.teachers[id] = u
	return nil
}

func (m *mockTeacherRepo) DeleteTeacher(ctx context.Context, id int64) error {
	if _, ok := m.teachers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.teachers, id)
	return nil
}

func newTeacherService(repo *mockTeacherRepo) *TeacherService {
	return NewTeacherService(repo, validator.New(), zap.NewNop())
}

func TestTeacherServiceCreate(t *testing.T) {
	repo := &mockTeacherRepo{taken: map[string]bool{}}
	svc := newTeacherService(repo)

	res, err := svc.Create(context.Background(), CreateTeacherRequest{
		Username: "pak.budi",
		Password: "secret123",
		Name:     "Budi Santoso",
	})
	require.NoError(t, err)
	assert.Equal(t, "Teacher added successfully.", res.Message)

	created := repo.teachers[res.ID]
	assert.Equal(t, models.RoleTeacher, created.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret123")))
}

func TestTeacherServiceCreateDuplicateUsername(t *testing.T) {
	svc := newTeacherService(&mockTeacherRepo{taken: map[string]bool{"pak.budi": true}})

	_, err := svc.Create(context.Background(), CreateTeacherRequest{
		Username: "pak.budi",
		Password: "secret123",
		Name:     "Budi Santoso",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "username already exists", appErr.Message)
}

func TestTeacherServiceUpdateKeepsPasswordWhenOmitted(t *testing.T) {
	repo := &mockTeacherRepo{teachers: map[int64]models.User{
		1: {ID: 1, Username: "pak.budi", Name: "Budi Santoso", PasswordHash: "existing-hash", Role: models.RoleTeacher},
	}}
	svc := newTeacherService(repo)

	err := svc.Update(context.Background(), 1, UpdateTeacherRequest{Username: "pak.budi", Name: "Budi S."})
	require.NoError(t, err)
	assert.Equal(t, "existing-hash", repo.teachers[1].PasswordHash)
	assert.Equal(t, "Budi S.", repo.teachers[1].Name)
}

func TestTeacherServiceUpdateDuplicateUsername(t *testing.T) {
	repo := &mockTeacherRepo{
		teachers: map[int64]models.User{
			1: {ID: 1, Username: "pak.budi", Name: "Budi Santoso", Role: models.RoleTeacher},
		},
		taken: map[string]bool{"bu.sari": true},
	}
	svc := newTeacherService(repo)

	err := svc.Update(context.Background(), 1, UpdateTeacherRequest{Username: "bu.sari", Name: "Budi Santoso"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusConflict, appErr.Status)
	assert.Equal(t, "username already exists", appErr.Message)
}

func TestTeacherServiceUpdateNotFound(t *testing.T) {
	svc := newTeacherService(&mockTeacherRepo{})

	err := svc.Update(context.Background(), 404, UpdateTeacherRequest{Username: "ghost", Name: "Ghost"})
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestTeacherServiceDeleteNotFound(t *testing.T) {
	svc := newTeacherService(&mockTeacherRepo{})

	err := svc.Delete(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
