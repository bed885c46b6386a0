package dto

import (
	"time"

	"github.com/noah-isme/tclass-api/internal/models"
)

// StudentDashboardResponse is the student home read model.
type StudentDashboardResponse struct {
	StudentID           string                    `json:"student_id"`
	Courses             []models.CourseProgress   `json:"courses"`
	UpcomingAssignments []models.AssignmentDetail `json:"upcoming_assignments"`
	RecentGrades        []models.GradeDetail      `json:"recent_grades"`
	Stats               models.StudentGradeStats  `json:"stats"`
	Announcements       []models.Announcement     `json:"announcements"`
	GeneratedAt         time.Time                 `json:"generated_at"`
}

// FacultyDashboardResponse is the faculty home read model.
type FacultyDashboardResponse struct {
	InstructorID      string                        `json:"instructor_id"`
	Courses           []models.FacultyCourseSummary `json:"courses"`
	ToGrade           int                           `json:"to_grade"`
	TotalStudents     int                           `json:"total_students"`
	RecentSubmissions []models.SubmissionDetail     `json:"recent_submissions"`
	Announcements     []models.Announcement         `json:"announcements"`
	GeneratedAt       time.Time                     `json:"generated_at"`
}

// AdminTotals aggregates catalog and population counts.
type AdminTotals struct {
	Users               int            `json:"users"`
	UsersByRole         map[string]int `json:"users_by_role"`
	Programs            int            `json:"programs"`
	Courses             int            `json:"courses"`
	Enrollments         int            `json:"enrollments"`
	EnrollmentsByStatus map[string]int `json:"enrollments_by_status"`
}

// EnrollmentTrendPoint is the number of enrollments created in a calendar month.
type EnrollmentTrendPoint struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}

// AdminDashboardResponse is the admin home read model.
type AdminDashboardResponse struct {
	Totals             AdminTotals               `json:"totals"`
	PendingEnrollments []models.EnrollmentDetail `json:"pending_enrollments"`
	EnrollmentTrend    []EnrollmentTrendPoint    `json:"enrollment_trend"`
	RecentEnrollments  []models.EnrollmentDetail `json:"recent_enrollments"`
	GeneratedAt        time.Time                 `json:"generated_at"`
}
