package models

import "time"

// AttendanceStatus enumerates the daily attendance states.
type AttendanceStatus string

const (
	AttendanceStatusPresent AttendanceStatus = "present"
	AttendanceStatusSick    AttendanceStatus = "sick"
	AttendanceStatusExcused AttendanceStatus = "excused"
	AttendanceStatusAbsent  AttendanceStatus = "absent"
)

// Valid reports whether the status is a known attendance state.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusSick, AttendanceStatusExcused, AttendanceStatusAbsent:
		return true
	}
	return false
}

// Attendance is one student's record for one calendar day.
type Attendance struct {
	ID        int64            `db:"id" json:"id"`
	StudentID int64            `db:"student_id" json:"student_id"`
	Date      string           `db:"date" json:"date"`
	Status    AttendanceStatus `db:"status" json:"status"`
	Notes     *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// AttendanceRecord joins the record with the student roster fields.
type AttendanceRecord struct {
	Attendance
	StudentName string  `db:"student_name" json:"student_name"`
	Class       *string `db:"class" json:"class,omitempty"`
}
