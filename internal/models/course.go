package models

import "time"

// CourseStatus represents the lifecycle of a course.
type CourseStatus string

const (
	CourseStatusActive    CourseStatus = "active"
	CourseStatusInactive  CourseStatus = "inactive"
	CourseStatusCompleted CourseStatus = "completed"
)

// Course belongs to a program and is taught by a faculty member.
type Course struct {
	ID           string       `db:"id" json:"id"`
	ProgramID    string       `db:"program_id" json:"program_id"`
	DepartmentID *string      `db:"department_id" json:"department_id,omitempty"`
	InstructorID *string      `db:"instructor_id" json:"instructor_id,omitempty"`
	Code         string       `db:"code" json:"code"`
	Title        string       `db:"title" json:"title"`
	Description  *string      `db:"description" json:"description,omitempty"`
	Schedule     *string      `db:"schedule" json:"schedule,omitempty"`
	Room         *string      `db:"room" json:"room,omitempty"`
	Capacity     int          `db:"capacity" json:"capacity"`
	Status       CourseStatus `db:"status" json:"status"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseDetail enriches Course with program and instructor names.
type CourseDetail struct {
	Course
	ProgramTitle   string  `db:"program_title" json:"program_title"`
	InstructorName *string `db:"instructor_name" json:"instructor_name,omitempty"`
}

// CourseFilter scopes course listings.
type CourseFilter struct {
	Status       CourseStatus
	ProgramID    string
	Search       string
	InstructorID string
	StudentID    string
	Page         int
	PageSize     int
}
