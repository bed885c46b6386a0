package models

import "time"

// ProgramStatus controls whether a program accepts enrollments.
type ProgramStatus string

const (
	ProgramStatusActive   ProgramStatus = "active"
	ProgramStatusInactive ProgramStatus = "inactive"
)

// Program is a training offering applicants enroll into.
type Program struct {
	ID             string        `db:"id" json:"id"`
	Title          string        `db:"title" json:"title"`
	Category       string        `db:"category" json:"category"`
	Description    *string       `db:"description" json:"description,omitempty"`
	Duration       *string       `db:"duration" json:"duration,omitempty"`
	Slots          int           `db:"slots" json:"slots"`
	Scholarship    *string       `db:"scholarship" json:"scholarship,omitempty"`
	Qualifications *string       `db:"qualifications" json:"qualifications,omitempty"`
	Requirements   *string       `db:"requirements" json:"requirements,omitempty"`
	Status         ProgramStatus `db:"status" json:"status"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// ProgramFilter scopes program listings.
type ProgramFilter struct {
	Status   ProgramStatus
	Category string
	Search   string
	Page     int
	PageSize int
}
