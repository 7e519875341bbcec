package models

import "time"

// EnrollmentStatus tracks the review state of an application.
type EnrollmentStatus string

const (
	EnrollmentStatusPending  EnrollmentStatus = "pending"
	EnrollmentStatusApproved EnrollmentStatus = "approved"
	EnrollmentStatusRejected EnrollmentStatus = "rejected"
)

// Valid reports whether the status is one of the known review states.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusApproved, EnrollmentStatusRejected:
		return true
	}
	return false
}

// Enrollment is a new-student application record.
type Enrollment struct {
	ID          int64            `db:"id" json:"id"`
	FullName    string           `db:"full_name" json:"full_name"`
	DOB         string           `db:"dob" json:"dob"`
	Address     string           `db:"address" json:"address"`
	ParentName  string           `db:"parent_name" json:"parent_name"`
	ParentPhone string           `db:"parent_phone" json:"parent_phone"`
	TargetClass string           `db:"target_class" json:"target_class"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	Notes       *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
