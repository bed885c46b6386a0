package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Valid reports whether the status is known.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusPending, EnrollmentStatusActive, EnrollmentStatusCompleted, EnrollmentStatusDropped:
		return true
	}
	return false
}

// Enrollment binds a user to a program and optionally a course.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"user_id"`
	ProgramID   string           `db:"program_id" json:"program_id"`
	CourseID    *string          `db:"course_id" json:"course_id,omitempty"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CORNumber   string           `db:"cor_number" json:"cor_number"`
	Documents   types.JSONText   `db:"documents" json:"documents,omitempty"`
	EnrolledAt  time.Time        `db:"enrolled_at" json:"enrolled_at"`
	CompletedAt *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with user and program info.
type EnrollmentDetail struct {
	Enrollment
	UserName     string  `db:"user_name" json:"user_name"`
	UserEmail    string  `db:"user_email" json:"user_email"`
	ProgramTitle string  `db:"program_title" json:"program_title"`
	CourseTitle  *string `db:"course_title" json:"course_title,omitempty"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	ProgramID string
	Status    EnrollmentStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
