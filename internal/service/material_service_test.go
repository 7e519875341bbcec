package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sekolahku/sekolahku-api/internal/models"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

type mockMaterialRepo struct {
	materials map[int64]models.Material
	nextID    int64
	createErr error
}

func (m *mockMaterialRepo) List(ctx context.Context) ([]models.MaterialDetail, error) {
	out := make([]models.MaterialDetail, 0, len(m.materials))
	for _, mat := range m.materials {
		out = append(out, models.MaterialDetail{Material: mat})
	}
	return out, nil
}

func (m *mockMaterialRepo) FindByID(ctx context.Context, id int64) (*models.Material, error) {
	if mat, ok := m.materials[id]; ok {
		return &mat, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockMaterialRepo) Create(ctx context.Context, material *models.Material) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.materials == nil {
		m.materials = make(map[int64]models.Material)
	}
	m.nextID++
	material.ID = m.nextID
	m.materials[material.ID] = *material
	return nil
}

func (m *mockMaterialRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.materials[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.materials, id)
	return nil
}

type mockUploadStorage struct {
	saved   []string
	deleted []string
}

func (m *mockUploadStorage) SaveStream(originalName string, r io.Reader) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	stored := "stored-" + originalName
	m.saved = append(m.saved, stored)
	return stored, nil
}

func (m *mockUploadStorage) Open(filename string) (*os.File, error) {
	return nil, errors.New("not used in tests")
}

func (m *mockUploadStorage) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

var testAllowedExtensions = []string{".pdf", ".docx", ".mp4"}

func newMaterialService(repo *mockMaterialRepo, store *mockUploadStorage) *MaterialService {
	return NewMaterialService(repo, store, testAllowedExtensions, validator.New(), zap.NewNop())
}

func TestMaterialServiceUploadWithFile(t *testing.T) {
	repo := &mockMaterialRepo{}
	store := &mockUploadStorage{}
	svc := newMaterialService(repo, store)

	res, err := svc.Upload(context.Background(), 9, UploadMaterialRequest{Title: "Algebra Basics"}, "algebra.pdf", strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, []string{"stored-algebra.pdf"}, store.saved)

	stored := repo.materials[res.ID]
	require.NotNil(t, stored.FilePath)
	assert.Equal(t, "stored-algebra.pdf", *stored.FilePath)
	require.NotNil(t, stored.FileName)
	assert.Equal(t, "algebra.pdf", *stored.FileName)
	assert.Equal(t, int64(9), stored.UploadedBy)
}

func TestMaterialServiceUploadWithoutFile(t *testing.T) {
	repo := &mockMaterialRepo{}
	svc := newMaterialService(repo, &mockUploadStorage{})

	res, err := svc.Upload(context.Background(), 9, UploadMaterialRequest{Title: "Reading List"}, "", nil)
	require.NoError(t, err)
	assert.Nil(t, repo.materials[res.ID].FilePath)
}

func TestMaterialServiceUploadTitleRequired(t *testing.T) {
	svc := newMaterialService(&mockMaterialRepo{}, &mockUploadStorage{})

	_, err := svc.Upload(context.Background(), 9, UploadMaterialRequest{}, "", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, appErrors.FromError(err).Status)
}

func TestMaterialServiceUploadRejectsExtension(t *testing.T) {
	store := &mockUploadStorage{}
	svc := newMaterialService(&mockMaterialRepo{}, store)

	_, err := svc.Upload(context.Background(), 9, UploadMaterialRequest{Title: "Bad"}, "malware.exe", strings.NewReader("x"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
	assert.Equal(t, "file type not allowed", appErr.Message)
	assert.Empty(t, store.saved)
}

func TestMaterialServiceUploadCleansUpOnDBFailure(t *testing.T) {
	repo := &mockMaterialRepo{createErr: errors.New("db down")}
	store := &mockUploadStorage{}
	svc := newMaterialService(repo, store)

	_, err := svc.Upload(context.Background(), 9, UploadMaterialRequest{Title: "Algebra"}, "algebra.pdf", strings.NewReader("content"))
	require.Error(t, err)
	assert.Equal(t, []string{"stored-algebra.pdf"}, store.deleted)
}

func TestMaterialServiceDeleteRemovesStoredFile(t *testing.T) {
	path := "stored-algebra.pdf"
	repo := &mockMaterialRepo{materials: map[int64]models.Material{
		1: {ID: 1, Title: "Algebra", FilePath: &path},
	}}
	store := &mockUploadStorage{}
	svc := newMaterialService(repo, store)

	require.NoError(t, svc.Delete(context.Background(), 1))
	assert.Equal(t, []string{path}, store.deleted)
	assert.Empty(t, repo.materials)
}

func TestMaterialServiceDeleteNotFound(t *testing.T) {
	svc := newMaterialService(&mockMaterialRepo{}, &mockUploadStorage{})

	err := svc.Delete(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}
