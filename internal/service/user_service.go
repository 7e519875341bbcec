package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/sekolahku/sekolahku-api/internal/models"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

type studentLister interface {
	ListStudents(ctx context.Context) ([]models.StudentInfo, error)
}

// UserService exposes roster reads shared by teachers and admins.
type UserService struct {
	repo   studentLister
	logger *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo studentLister, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, logger: logger}
}

// ListStudents returns the student roster ordered by class, then name.
func (s *UserService) ListStudents(ctx context.Context) ([]models.StudentInfo, error) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}
