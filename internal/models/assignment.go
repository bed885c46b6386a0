package models

import "time"

// AssignmentType enumerates assessment kinds.
type AssignmentType string

const (
	AssignmentTypeQuiz      AssignmentType = "quiz"
	AssignmentTypeExam      AssignmentType = "exam"
	AssignmentTypeHomework  AssignmentType = "homework"
	AssignmentTypeProject   AssignmentType = "project"
	AssignmentTypePractical AssignmentType = "practical"
)

// AssignmentStatus gates student visibility.
type AssignmentStatus string

const (
	AssignmentStatusDraft     AssignmentStatus = "draft"
	AssignmentStatusPublished AssignmentStatus = "published"
	AssignmentStatusArchived  AssignmentStatus = "archived"
)

// Assignment belongs to a course.
type Assignment struct {
	ID           string           `db:"id" json:"id"`
	CourseID     string           `db:"course_id" json:"course_id"`
	CreatedBy    string           `db:"created_by" json:"created_by"`
	Title        string           `db:"title" json:"title"`
	Description  *string          `db:"description" json:"description,omitempty"`
	Instructions *string          `db:"instructions" json:"instructions,omitempty"`
	Type         AssignmentType   `db:"type" json:"type"`
	TotalPoints  float64          `db:"total_points" json:"total_points"`
	DueDate      time.Time        `db:"due_date" json:"due_date"`
	Status       AssignmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// IsPastDue reports whether the reference instant lies after the due date.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// AssignmentDetail adds course context.
type AssignmentDetail struct {
	Assignment
	CourseTitle      string `db:"course_title" json:"course_title"`
	SubmissionsCount int    `db:"submissions_count" json:"submissions_count"`
}

// AssignmentFilter scopes assignment listings.
type AssignmentFilter struct {
	CourseID     string
	Status       AssignmentStatus
	Type         AssignmentType
	InstructorID string
	StudentID    string
	Page         int
	PageSize     int
}
