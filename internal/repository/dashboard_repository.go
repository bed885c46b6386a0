package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tclass-api/internal/models"
)

// courseStudents counts distinct students actively enrolled in course c.
const courseStudents = `SELECT COUNT(DISTINCT en.user_id) FROM enrollments en WHERE en.status = 'active' AND (en.course_id = c.id OR (en.course_id IS NULL AND en.program_id = c.program_id))`

// DashboardRepository runs the aggregate queries behind the role dashboards.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// StudentCourses lists the student's courses with published and completed assignment counts.
func (r *DashboardRepository) StudentCourses(ctx context.Context, studentID string) ([]models.CourseProgress, error) {
	query := `SELECT c.id AS course_id, c.code, c.title, u.name AS instructor_name,
(SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id AND a.status = 'published') AS total_assignments,
(SELECT COUNT(*) FROM assignments a JOIN submissions s ON s.assignment_id = a.id WHERE a.course_id = c.id AND a.status = 'published' AND s.user_id = $1 AND s.status IN ('submitted', 'late', 'graded')) AS completed_assignments
FROM courses c
LEFT JOIN users u ON u.id = c.instructor_id
WHERE ` + strings.ReplaceAll(enrolledInCourse, "?", "$1") + `
ORDER BY c.title ASC`
	courses := make([]models.CourseProgress, 0)
	if err := r.db.SelectContext(ctx, &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("student dashboard courses: %w", err)
	}
	return courses, nil
}

// FacultyCourses lists courses taught by the instructor with student and assignment counts.
func (r *DashboardRepository) FacultyCourses(ctx context.Context, instructorID string) ([]models.FacultyCourseSummary, error) {
	query := `SELECT c.id AS course_id, c.code, c.title,
(` + courseStudents + `) AS students_count,
(SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id) AS assignments_count
FROM courses c
WHERE c.instructor_id = $1
ORDER BY c.title ASC`
	courses := make([]models.FacultyCourseSummary, 0)
	if err := r.db.SelectContext(ctx, &courses, query, instructorID); err != nil {
		return nil, fmt.Errorf("faculty dashboard courses: %w", err)
	}
	return courses, nil
}

// CountToGrade counts submissions in status submitted across the instructor's courses.
func (r *DashboardRepository) CountToGrade(ctx context.Context, instructorID string) (int, error) {
	const query = `SELECT COUNT(*) FROM submissions s
JOIN assignments a ON a.id = s.assignment_id
JOIN courses c ON c.id = a.course_id
WHERE c.instructor_id = $1 AND s.status = 'submitted'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID); err != nil {
		return 0, fmt.Errorf("count submissions to grade: %w", err)
	}
	return count, nil
}

// CountFacultyStudents counts distinct students actively enrolled in any of the instructor's courses.
func (r *DashboardRepository) CountFacultyStudents(ctx context.Context, instructorID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT en.user_id) FROM enrollments en
JOIN courses c ON en.course_id = c.id OR (en.course_id IS NULL AND en.program_id = c.program_id)
WHERE c.instructor_id = $1 AND en.status = 'active'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, instructorID); err != nil {
		return 0, fmt.Errorf("count faculty students: %w", err)
	}
	return count, nil
}

// UsersByRole counts users per held role.
func (r *DashboardRepository) UsersByRole(ctx context.Context) ([]models.KeyCount, error) {
	const query = `SELECT role AS key, COUNT(*) AS count FROM users, unnest(roles) AS role GROUP BY role ORDER BY role`
	counts := make([]models.KeyCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count users by role: %w", err)
	}
	return counts, nil
}

// EnrollmentsByStatus counts enrollments per status.
func (r *DashboardRepository) EnrollmentsByStatus(ctx context.Context) ([]models.KeyCount, error) {
	const query = `SELECT status AS key, COUNT(*) AS count FROM enrollments GROUP BY status ORDER BY status`
	counts := make([]models.KeyCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count enrollments by status: %w", err)
	}
	return counts, nil
}

// CatalogTotals returns the number of users, programs and courses.
func (r *DashboardRepository) CatalogTotals(ctx context.Context) (models.CatalogTotals, error) {
	const query = `SELECT (SELECT COUNT(*) FROM users) AS users, (SELECT COUNT(*) FROM programs) AS programs, (SELECT COUNT(*) FROM courses) AS courses`
	var totals models.CatalogTotals
	if err := r.db.GetContext(ctx, &totals, query); err != nil {
		return models.CatalogTotals{}, fmt.Errorf("count catalog: %w", err)
	}
	return totals, nil
}

// EnrollmentsPerMonth buckets enrollments created since the given instant by creation month.
func (r *DashboardRepository) EnrollmentsPerMonth(ctx context.Context, since time.Time) ([]models.MonthCount, error) {
	const query = `SELECT date_trunc('month', created_at) AS month, COUNT(*) AS count FROM enrollments WHERE created_at >= $1 GROUP BY 1 ORDER BY 1`
	counts := make([]models.MonthCount, 0)
	if err := r.db.SelectContext(ctx, &counts, query, since); err != nil {
		return nil, fmt.Errorf("enrollment trend: %w", err)
	}
	return counts, nil
}
