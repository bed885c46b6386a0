package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/models"
)

func TestDashboardRepositoryStudentCourses(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE EXISTS (SELECT 1 FROM enrollments en WHERE en.user_id = $1 AND en.status = 'active'")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "code", "title", "instructor_name", "total_assignments", "completed_assignments"}).
			AddRow("course-1", "WLD-101", "Welding Basics", "Engr. Reyes", 4, 3))

	courses, err := repo.StudentCourses(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, 4, courses[0].TotalAssignments)
	assert.Equal(t, 3, courses[0].CompletedAssignments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepositoryAdminAggregates(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDashboardRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users, unnest(roles) AS role GROUP BY role")).
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("admin", 1).AddRow("student", 40))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT (SELECT COUNT(*) FROM users) AS users")).
		WillReturnRows(sqlmock.NewRows([]string{"users", "programs", "courses"}).AddRow(41, 3, 12))
	since := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("date_trunc('month', created_at)")).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"month", "count"}).AddRow(since, 7))

	roles, err := repo.UsersByRole(context.Background())
	require.NoError(t, err)
	assert.Len(t, roles, 2)

	totals, err := repo.CatalogTotals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.CatalogTotals{Users: 41, Programs: 3, Courses: 12}, totals)

	months, err := repo.EnrollmentsPerMonth(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, 7, months[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
