package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	internalmiddleware "github.com/sekolahku/sekolahku-api/internal/middleware"
	"github.com/sekolahku/sekolahku-api/internal/models"
	"github.com/sekolahku/sekolahku-api/internal/repository"
	"github.com/sekolahku/sekolahku-api/internal/service"
)

type enrollmentRepoStub struct {
	enrollments map[int64]models.Enrollment
	nextID      int64
}

func (s *enrollmentRepoStub) List(ctx context.Context) ([]models.Enrollment, error) {
	out := make([]models.Enrollment, 0, len(s.enrollments))
	for _, e := range s.enrollments {
		out = append(out, e)
	}
	return out, nil
}

func (s *enrollmentRepoStub) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	if e, ok := s.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (s *enrollmentRepoStub) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if s.enrollments == nil {
		s.enrollments = make(map[int64]models.Enrollment)
	}
	s.nextID++
	enrollment.ID = s.nextID
	s.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (s *enrollmentRepoStub) Update(ctx context.Context, enrollment *models.Enrollment) error {
	if _, ok := s.enrollments[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	s.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (s *enrollmentRepoStub) Delete(ctx context.Context, id int64) error {
	if _, ok := s.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.enrollments, id)
	return nil
}

func (s *enrollmentRepoStub) Approve(ctx context.Context, id int64, username, passwordHash string) (*models.User, error) {
	e, ok := s.enrollments[id]
	if !ok || e.Status != models.EnrollmentStatusPending {
		return nil, repository.ErrEnrollmentNotPending
	}
	e.Status = models.EnrollmentStatusApproved
	s.enrollments[id] = e
	return &models.User{ID: 100, Username: username, Role: models.RoleStudent}, nil
}

type usernameCheckerStub struct {
	taken map[string]bool
}

func (s *usernameCheckerStub) UsernameExists(ctx context.Context, username string) (bool, error) {
	return s.taken[username], nil
}

type attendanceListerStub struct{}

func (attendanceListerStub) ListAll(ctx context.Context) ([]models.AttendanceRecord, error) {
	return nil, nil
}

func buildEnrollmentRouter(repo *enrollmentRepoStub, role models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)

	enrollmentSvc := service.NewEnrollmentService(repo, &usernameCheckerStub{taken: map[string]bool{"taken": true}}, nil, 0, nil, validator.New(), zap.NewNop())
	exportSvc := service.NewExportService(repo, attendanceListerStub{}, zap.NewNop())
	h := NewEnrollmentHandler(enrollmentSvc, exportSvc)

	router := gin.New()
	if role != "" {
		router.Use(func(c *gin.Context) {
			c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: 1, Role: role})
			c.Next()
		})
	}

	router.POST("/enrollments", h.Submit)
	admin := router.Group("")
	admin.Use(internalmiddleware.RequireRoles(models.RoleAdmin))
	admin.GET("/enrollments", h.List)
	admin.GET("/enrollments/export", h.Export)
	admin.GET("/enrollments/:id", h.Get)
	admin.POST("/enrollments/:id/approve", h.Approve)
	return router
}

func performRequest(router *gin.Engine, method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const validApplication = `{
	"full_name": "Siti Rahma",
	"dob": "2010-04-12",
	"address": "Jl. Melati 5",
	"parent_name": "Budi Rahma",
	"parent_phone": "0812000111",
	"target_class": "7A"
}`

func TestEnrollmentHandlerSubmit(t *testing.T) {
	router := buildEnrollmentRouter(&enrollmentRepoStub{}, "")

	resp := performRequest(router, http.MethodPost, "/enrollments", validApplication)
	require.Equal(t, http.StatusCreated, resp.Code)
	require.Contains(t, resp.Body.String(), "Enrollment application submitted successfully. We will contact you soon!")
}

func TestEnrollmentHandlerSubmitMissingField(t *testing.T) {
	router := buildEnrollmentRouter(&enrollmentRepoStub{}, "")

	resp := performRequest(router, http.MethodPost, "/enrollments", `{"full_name": "Siti Rahma"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEnrollmentHandlerListRequiresAdminRole(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: map[int64]models.Enrollment{1: {ID: 1, Status: models.EnrollmentStatusPending}}}

	resp := performRequest(buildEnrollmentRouter(repo, models.RoleStudent), http.MethodGet, "/enrollments", "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = performRequest(buildEnrollmentRouter(repo, models.RoleTeacher), http.MethodGet, "/enrollments", "")
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = performRequest(buildEnrollmentRouter(repo, models.RoleAdmin), http.MethodGet, "/enrollments", "")
	require.Equal(t, http.StatusOK, resp.Code)
}

func TestEnrollmentHandlerGetNotFound(t *testing.T) {
	router := buildEnrollmentRouter(&enrollmentRepoStub{}, models.RoleAdmin)

	resp := performRequest(router, http.MethodGet, "/enrollments/404", "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestEnrollmentHandlerGetRejectsNonNumericID(t *testing.T) {
	router := buildEnrollmentRouter(&enrollmentRepoStub{}, models.RoleAdmin)

	resp := performRequest(router, http.MethodGet, "/enrollments/abc", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEnrollmentHandlerApprove(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: map[int64]models.Enrollment{
		5: {ID: 5, FullName: "Siti Rahma", TargetClass: "7A", Status: models.EnrollmentStatusPending},
	}}
	router := buildEnrollmentRouter(repo, models.RoleAdmin)

	resp := performRequest(router, http.MethodPost, "/enrollments/5/approve", `{"username": "siti", "password": "secret123"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "Enrollment approved and student user 'siti' created successfully.")
}

func TestEnrollmentHandlerApproveMissingCredentials(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: map[int64]models.Enrollment{
		5: {ID: 5, Status: models.EnrollmentStatusPending},
	}}
	router := buildEnrollmentRouter(repo, models.RoleAdmin)

	resp := performRequest(router, http.MethodPost, "/enrollments/5/approve", `{"username": "siti"}`)
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestEnrollmentHandlerApproveAlreadyProcessed(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: map[int64]models.Enrollment{
		5: {ID: 5, Status: models.EnrollmentStatusApproved},
	}}
	router := buildEnrollmentRouter(repo, models.RoleAdmin)

	resp := performRequest(router, http.MethodPost, "/enrollments/5/approve", `{"username": "siti", "password": "secret123"}`)
	require.Equal(t, http.StatusNotFound, resp.Code)
	require.Contains(t, resp.Body.String(), "pending enrollment not found or already processed")
}

func TestEnrollmentHandlerApproveUsernameTaken(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: map[int64]models.Enrollment{
		5: {ID: 5, Status: models.EnrollmentStatusPending},
	}}
	router := buildEnrollmentRouter(repo, models.RoleAdmin)

	resp := performRequest(router, http.MethodPost, "/enrollments/5/approve", `{"username": "taken", "password": "secret123"}`)
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Contains(t, resp.Body.String(), "username already exists")
}

func TestEnrollmentHandlerExportCSV(t *testing.T) {
	repo := &enrollmentRepoStub{enrollments: map[int64]models.Enrollment{
		1: {ID: 1, FullName: "Siti Rahma", Status: models.EnrollmentStatusPending},
	}}
	router := buildEnrollmentRouter(repo, models.RoleAdmin)

	resp := performRequest(router, http.MethodGet, "/enrollments/export?format=csv", "")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
	require.Contains(t, resp.Body.String(), "Siti Rahma")
}
