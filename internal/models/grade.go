package models

import "time"

// Grade stores a score for a student's assignment within an enrollment.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	EnrollmentID string    `db:"enrollment_id" json:"enrollment_id"`
	AssignmentID string    `db:"assignment_id" json:"assignment_id"`
	SubmissionID *string   `db:"submission_id" json:"submission_id,omitempty"`
	UserID       string    `db:"user_id" json:"user_id"`
	GradedBy     string    `db:"graded_by" json:"graded_by"`
	Score        float64   `db:"score" json:"score"`
	TotalPoints  float64   `db:"total_points" json:"total_points"`
	Percentage   float64   `db:"percentage" json:"percentage"`
	LetterGrade  string    `db:"letter_grade" json:"letter_grade"`
	Feedback     *string   `db:"feedback" json:"feedback,omitempty"`
	GradedAt     time.Time `db:"graded_at" json:"graded_at"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeDetail adds assignment and student context.
type GradeDetail struct {
	Grade
	AssignmentTitle string `db:"assignment_title" json:"assignment_title"`
	CourseID        string `db:"course_id" json:"course_id"`
	CourseTitle     string `db:"course_title" json:"course_title"`
	UserName        string `db:"user_name" json:"user_name"`
}

// GradeFilter scopes grade listings.
type GradeFilter struct {
	UserID       string
	AssignmentID string
	CourseID     string
	InstructorID string
	Page         int
	PageSize     int
}

// StudentGradeStats aggregates a student's grade history.
type StudentGradeStats struct {
	StudentID         string  `json:"student_id"`
	TotalGraded       int     `json:"total_graded"`
	AveragePercentage float64 `json:"average_percentage"`
	HighestPercentage float64 `json:"highest_percentage"`
	LowestPercentage  float64 `json:"lowest_percentage"`
	PassingRate       float64 `json:"passing_rate"`
}
