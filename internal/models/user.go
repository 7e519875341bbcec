package models

import "time"

// UserRole gates which operations a caller may invoke.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
	RoleStudent UserRole = "student"
)

// User represents a login-capable identity stored in the users table.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Name         string    `db:"name" json:"name"`
	Role         UserRole  `db:"role" json:"role"`
	Class        *string   `db:"class" json:"class,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// StudentInfo is the roster projection exposed to teachers and admins.
type StudentInfo struct {
	ID       int64   `db:"id" json:"id"`
	Username string  `db:"username" json:"username"`
	Name     string  `db:"name" json:"name"`
	Class    *string `db:"class" json:"class,omitempty"`
}

// TeacherInfo is the roster projection for teacher management.
type TeacherInfo struct {
	ID       int64  `db:"id" json:"id"`
	Username string `db:"username" json:"username"`
	Name     string `db:"name" json:"name"`
}
