package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sekolahku/sekolahku-api/internal/models"
)

// MaterialRepository handles persistence for learning materials.
type MaterialRepository struct {
	db *sqlx.DB
}

// NewMaterialRepository constructs the repository.
func NewMaterialRepository(db *sqlx.DB) *MaterialRepository {
	return &MaterialRepository{db: db}
}

// List returns all materials with uploader names, newest first.
func (r *MaterialRepository) List(ctx context.Context) ([]models.MaterialDetail, error) {
	const query = `SELECT m.id, m.title, m.description, m.file_path, m.file_name, m.subject, m.class, m.uploaded_by, m.created_at,
u.name AS uploaded_by_name
FROM materials m
LEFT JOIN users u ON u.id = m.uploaded_by
ORDER BY m.created_at DESC`
	var materials []models.MaterialDetail
	if err := r.db.SelectContext(ctx, &materials, query); err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	return materials, nil
}

// FindByID returns a material by id, or sql.ErrNoRows.
func (r *MaterialRepository) FindByID(ctx context.Context, id int64) (*models.Material, error) {
	const query = `SELECT id, title, description, file_path, file_name, subject, class, uploaded_by, created_at FROM materials WHERE id = $1`
	var material models.Material
	if err := r.db.GetContext(ctx, &material, query, id); err != nil {
		return nil, err
	}
	return &material, nil
}

// Create inserts a material row and fills in the assigned id.
func (r *MaterialRepository) Create(ctx context.Context, material *models.Material) error {
	if material.CreatedAt.IsZero() {
		material.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO materials (title, description, file_path, file_name, subject, class, uploaded_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		material.Title, material.Description, material.FilePath, material.FileName,
		material.Subject, material.Class, material.UploadedBy, material.CreatedAt,
	).Scan(&material.ID); err != nil {
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// Delete removes a material row. Returns sql.ErrNoRows when nothing matched.
func (r *MaterialRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM materials WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete material rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
