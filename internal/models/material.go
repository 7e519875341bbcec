package models

import "time"

// Material is an uploaded learning resource.
type Material struct {
	ID          int64     `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description,omitempty"`
	FilePath    *string   `db:"file_path" json:"-"`
	FileName    *string   `db:"file_name" json:"file_name,omitempty"`
	Subject     *string   `db:"subject" json:"subject,omitempty"`
	Class       *string   `db:"class" json:"class,omitempty"`
	UploadedBy  int64     `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// MaterialDetail includes the uploader's display name.
type MaterialDetail struct {
	Material
	UploadedByName *string `db:"uploaded_by_name" json:"uploaded_by_name,omitempty"`
}
