package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahku/sekolahku-api/internal/models"
	"github.com/sekolahku/sekolahku-api/internal/repository"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

const enrollmentListCacheKey = "enrollments:list"

type enrollmentRepository interface {
	List(ctx context.Context) ([]models.Enrollment, error)
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id int64) error
	Approve(ctx context.Context, id int64, username, passwordHash string) (*models.User, error)
}

type usernameChecker interface {
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// SubmitEnrollmentRequest is the public application payload.
type SubmitEnrollmentRequest struct {
	FullName    string `json:"full_name" validate:"required"`
	DOB         string `json:"dob" validate:"required"`
	Address     string `json:"address" validate:"required"`
	ParentName  string `json:"parent_name" validate:"required"`
	ParentPhone string `json:"parent_phone" validate:"required"`
	TargetClass string `json:"target_class" validate:"required"`
}

// UpdateEnrollmentRequest is the administrative full-replace payload.
type UpdateEnrollmentRequest struct {
	FullName    string                  `json:"full_name" validate:"required"`
	DOB         string                  `json:"dob" validate:"required"`
	Address     string                  `json:"address" validate:"required"`
	ParentName  string                  `json:"parent_name" validate:"required"`
	ParentPhone string                  `json:"parent_phone" validate:"required"`
	TargetClass string                  `json:"target_class" validate:"required"`
	Status      models.EnrollmentStatus `json:"status" validate:"required,oneof=pending approved rejected"`
	Notes       *string                 `json:"notes"`
}

// ApproveEnrollmentRequest carries the credentials for the new student account.
type ApproveEnrollmentRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// SubmitEnrollmentResponse acknowledges a stored application.
type SubmitEnrollmentResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// ApproveEnrollmentResponse reports the provisioned account.
type ApproveEnrollmentResponse struct {
	Message string `json:"message"`
}

// EnrollmentService manages the enrollment application lifecycle and the
// approve-and-provision-account transaction.
type EnrollmentService struct {
	repo      enrollmentRepository
	users     usernameChecker
	cache     *redis.Client
	cacheTTL  time.Duration
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService. The cache client is
// optional; when nil every read goes straight to the repository.
func NewEnrollmentService(repo enrollmentRepository, users usernameChecker, cache *redis.Client, cacheTTL time.Duration, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &EnrollmentService{repo: repo, users: users, cache: cache, cacheTTL: cacheTTL, metrics: metrics, validator: validate, logger: logger}
}

// Submit stores a new application with status pending.
func (s *EnrollmentService) Submit(ctx context.Context, req SubmitEnrollmentRequest) (*SubmitEnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "all fields are required")
	}

	enrollment := &models.Enrollment{
		FullName:    req.FullName,
		DOB:         req.DOB,
		Address:     req.Address,
		ParentName:  req.ParentName,
		ParentPhone: req.ParentPhone,
		TargetClass: req.TargetClass,
		Status:      models.EnrollmentStatusPending,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit enrollment")
	}
	s.invalidateListCache(ctx)

	return &SubmitEnrollmentResponse{
		ID:      enrollment.ID,
		Message: "Enrollment application submitted successfully. We will contact you soon!",
	}, nil
}

// List returns every application, newest first, through the cache when one
// is configured.
func (s *EnrollmentService) List(ctx context.Context) ([]models.Enrollment, error) {
	if cached, ok := s.readListCache(ctx); ok {
		return cached, nil
	}

	enrollments, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	s.writeListCache(ctx, enrollments)
	return enrollments, nil
}

// Get returns one application by id.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	return enrollment, nil
}

// Update performs an unconditional full replace of the application. It is
// the administrative override path and deliberately skips the pending
// state-machine check that Approve enforces.
func (s *EnrollmentService) Update(ctx context.Context, id int64, req UpdateEnrollmentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "all fields (except notes) are required for update")
	}

	if req.Status == models.EnrollmentStatusApproved {
		// An edit can flip status to approved without provisioning an
		// account, leaving an approved application with no credentials.
		s.logger.Warn("enrollment marked approved via edit without account provisioning",
			zap.Int64("enrollment_id", id))
	}

	enrollment := &models.Enrollment{
		ID:          id,
		FullName:    req.FullName,
		DOB:         req.DOB,
		Address:     req.Address,
		ParentName:  req.ParentName,
		ParentPhone: req.ParentPhone,
		TargetClass: req.TargetClass,
		Status:      req.Status,
		Notes:       req.Notes,
	}
	if err := s.repo.Update(ctx, enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}
	s.invalidateListCache(ctx)
	return nil
}

// Delete removes an application. Accounts created from a previously approved
// application are untouched; the notes column is the only audit trail.
func (s *EnrollmentService) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete enrollment")
	}
	s.invalidateListCache(ctx)
	return nil
}

// Approve converts a pending application into a student account. Both writes
// commit atomically; when the transaction loses a race (same enrollment or
// same username) the caller gets a conflict and no partial state survives.
func (s *EnrollmentService) Approve(ctx context.Context, id int64, req ApproveEnrollmentRequest) (*ApproveEnrollmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and password are required to approve enrollment and create a user")
	}

	// Friendly pre-check. The insert inside the transaction still guards
	// against a concurrent registration of the same username.
	taken, err := s.users.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check username")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user, err := s.repo.Approve(ctx, id, req.Username, string(passwordHash))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEnrollmentNotPending):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pending enrollment not found or already processed")
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, appErrors.Clone(appErrors.ErrConflict, "username already exists")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete approval process")
		}
	}
	s.invalidateListCache(ctx)

	s.logger.Info("enrollment approved",
		zap.Int64("enrollment_id", id),
		zap.Int64("student_id", user.ID),
		zap.String("username", user.Username))

	return &ApproveEnrollmentResponse{
		Message: fmt.Sprintf("Enrollment approved and student user '%s' created successfully.", user.Username),
	}, nil
}

func (s *EnrollmentService) readListCache(ctx context.Context) ([]models.Enrollment, bool) {
	if s.cache == nil {
		return nil, false
	}
	start := time.Now()
	raw, err := s.cache.Get(ctx, enrollmentListCacheKey).Bytes()
	hit := err == nil
	s.metrics.RecordCacheOperation(hit, time.Since(start))
	if err != nil {
		if err != redis.Nil {
			s.logger.Warn("enrollment list cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var enrollments []models.Enrollment
	if err := json.Unmarshal(raw, &enrollments); err != nil {
		s.logger.Warn("enrollment list cache decode failed", zap.Error(err))
		return nil, false
	}
	return enrollments, true
}

func (s *EnrollmentService) writeListCache(ctx context.Context, enrollments []models.Enrollment) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(enrollments)
	if err != nil {
		return
	}
	start := time.Now()
	if err := s.cache.Set(ctx, enrollmentListCacheKey, raw, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("enrollment list cache write failed", zap.Error(err))
		return
	}
	s.metrics.ObserveCacheWrite(time.Since(start))
}

func (s *EnrollmentService) invalidateListCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, enrollmentListCacheKey).Err(); err != nil {
		s.logger.Warn("enrollment list cache invalidation failed", zap.Error(err))
	}
}
