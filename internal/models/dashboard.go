package models

import "time"

// CourseProgress is a student's completion of a course's published assignments.
type CourseProgress struct {
	CourseID             string  `db:"course_id" json:"course_id"`
	Code                 string  `db:"code" json:"code"`
	Title                string  `db:"title" json:"title"`
	InstructorName       *string `db:"instructor_name" json:"instructor_name,omitempty"`
	TotalAssignments     int     `db:"total_assignments" json:"total_assignments"`
	CompletedAssignments int     `db:"completed_assignments" json:"completed_assignments"`
	Progress             float64 `db:"-" json:"progress"`
}

// FacultyCourseSummary counts students and assignments of a course taught by the caller.
type FacultyCourseSummary struct {
	CourseID         string `db:"course_id" json:"course_id"`
	Code             string `db:"code" json:"code"`
	Title            string `db:"title" json:"title"`
	StudentsCount    int    `db:"students_count" json:"students_count"`
	AssignmentsCount int    `db:"assignments_count" json:"assignments_count"`
}

// KeyCount is a grouped count.
type KeyCount struct {
	Key   string `db:"key" json:"key"`
	Count int    `db:"count" json:"count"`
}

// MonthCount is a count bucketed by month start.
type MonthCount struct {
	Month time.Time `db:"month" json:"month"`
	Count int       `db:"count" json:"count"`
}

// CatalogTotals counts top-level records for the admin overview.
type CatalogTotals struct {
	Users    int `db:"users"`
	Programs int `db:"programs"`
	Courses  int `db:"courses"`
}
