package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sekolahku/sekolahku-api/internal/models"
	appErrors "github.com/sekolahku/sekolahku-api/pkg/errors"
)

type materialRepository interface {
	List(ctx context.Context) ([]models.MaterialDetail, error)
	FindByID(ctx context.Context, id int64) (*models.Material, error)
	Create(ctx context.Context, material *models.Material) error
	Delete(ctx context.Context, id int64) error
}

type uploadStorage interface {
	SaveStream(originalName string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

// UploadMaterialRequest carries the multipart form fields.
type UploadMaterialRequest struct {
	Title       string  `validate:"required"`
	Description *string
	Subject     *string
	Class       *string
}

// UploadMaterialResponse acknowledges the stored material.
type UploadMaterialResponse struct {
	ID      int64  `json:"id"`
	Message string `json:"message"`
}

// MaterialService manages learning material uploads.
type MaterialService struct {
	repo        materialRepository
	storage     uploadStorage
	allowedExts map[string]struct{}
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMaterialService constructs MaterialService.
func NewMaterialService(repo materialRepository, storage uploadStorage, allowedExtensions []string, validate *validator.Validate, logger *zap.Logger) *MaterialService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &MaterialService{repo: repo, storage: storage, allowedExts: exts, validator: validate, logger: logger}
}

// List returns all materials with uploader names.
func (s *MaterialService) List(ctx context.Context) ([]models.MaterialDetail, error) {
	materials, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list materials")
	}
	return materials, nil
}

// Upload validates the form, stores the optional file, and persists the
// row. The stored file is removed again when the database write fails.
func (s *MaterialService) Upload(ctx context.Context, uploaderID int64, req UploadMaterialRequest, fileName string, file io.Reader) (*UploadMaterialResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "title is required")
	}

	material := &models.Material{
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Class:       req.Class,
		UploadedBy:  uploaderID,
	}

	if file != nil && fileName != "" {
		if !s.extensionAllowed(fileName) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
		}
		stored, err := s.storage.SaveStream(fileName, file)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
		}
		material.FilePath = &stored
		material.FileName = &fileName
	}

	if err := s.repo.Create(ctx, material); err != nil {
		if material.FilePath != nil {
			if cleanupErr := s.storage.Delete(*material.FilePath); cleanupErr != nil {
				s.logger.Warn("failed to clean up orphaned upload", zap.Error(cleanupErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save material")
	}

	return &UploadMaterialResponse{ID: material.ID, Message: "Material uploaded successfully"}, nil
}

// Download opens the stored file for a material.
func (s *MaterialService) Download(ctx context.Context, id int64) (*models.Material, *os.File, error) {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}
	if material.FilePath == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "material has no file attached")
	}
	file, err := s.storage.Open(*material.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open material file")
	}
	return material, file, nil
}

// Delete removes the stored file (best effort) and then the row.
func (s *MaterialService) Delete(ctx context.Context, id int64) error {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load material")
	}

	if material.FilePath != nil {
		if err := s.storage.Delete(*material.FilePath); err != nil {
			s.logger.Warn("failed to delete material file", zap.Error(err), zap.Int64("material_id", id))
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "material not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete material")
	}
	return nil
}

func (s *MaterialService) extensionAllowed(fileName string) bool {
	if len(s.allowedExts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	_, ok := s.allowedExts[ext]
	return ok
}
