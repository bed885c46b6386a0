package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type fakeDashboardRepo struct {
	courses      []models.CourseProgress
	faculty      []models.FacultyCourseSummary
	toGrade      int
	students     int
	byRole       []models.KeyCount
	byStatus     []models.KeyCount
	catalog      models.CatalogTotals
	months       []models.MonthCount
	since        time.Time
	studentCalls int
	err          error
}

func (f *fakeDashboardRepo) StudentCourses(ctx context.Context, studentID string) ([]models.CourseProgress, error) {
	f.studentCalls++
	out := make([]models.CourseProgress, len(f.courses))
	copy(out, f.courses)
	return out, f.err
}

func (f *fakeDashboardRepo) FacultyCourses(ctx context.Context, instructorID string) ([]models.FacultyCourseSummary, error) {
	return f.faculty, nil
}

func (f *fakeDashboardRepo) CountToGrade(ctx context.Context, instructorID string) (int, error) {
	return f.toGrade, nil
}

func (f *fakeDashboardRepo) CountFacultyStudents(ctx context.Context, instructorID string) (int, error) {
	return f.students, nil
}

func (f *fakeDashboardRepo) UsersByRole(ctx context.Context) ([]models.KeyCount, error) {
	return f.byRole, nil
}

func (f *fakeDashboardRepo) EnrollmentsByStatus(ctx context.Context) ([]models.KeyCount, error) {
	return f.byStatus, nil
}

func (f *fakeDashboardRepo) CatalogTotals(ctx context.Context) (models.CatalogTotals, error) {
	return f.catalog, nil
}

func (f *fakeDashboardRepo) EnrollmentsPerMonth(ctx context.Context, since time.Time) ([]models.MonthCount, error) {
	f.since = since
	return f.months, nil
}

type fakeUpcoming struct{ limit int }

func (f *fakeUpcoming) ListUpcoming(ctx context.Context, studentID string, now time.Time, limit int) ([]models.AssignmentDetail, error) {
	f.limit = limit
	return []models.AssignmentDetail{{Assignment: models.Assignment{ID: "a-next", DueDate: now.Add(time.Hour)}}}, nil
}

type fakeGradeReader struct{ percentages []float64 }

func (f fakeGradeReader) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	return []models.GradeDetail{{Grade: models.Grade{ID: "g-1", UserID: filter.UserID}}}, 1, nil
}

func (f fakeGradeReader) Percentages(ctx context.Context, userID string) ([]float64, error) {
	return f.percentages, nil
}

type fakeSubmissionLister struct{ filter models.SubmissionFilter }

func (f *fakeSubmissionLister) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	f.filter = filter
	return []models.SubmissionDetail{{Submission: models.Submission{ID: "s-1"}}}, 1, nil
}

type fakeEnrollmentLister struct{ filters []models.EnrollmentFilter }

func (f *fakeEnrollmentLister) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	f.filters = append(f.filters, filter)
	return []models.EnrollmentDetail{{Enrollment: models.Enrollment{ID: "e-1", Status: filter.Status}}}, 1, nil
}

type fakeAnnouncementLister struct{ filters []models.AnnouncementFilter }

func (f *fakeAnnouncementLister) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	f.filters = append(f.filters, filter)
	return []models.Announcement{{ID: "ann-1"}}, 1, nil
}

var dashboardNow = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

func newTestDashboardService(repo *fakeDashboardRepo, cache *CacheService) (*DashboardService, *fakeAnnouncementLister, *fakeEnrollmentLister) {
	announcements := &fakeAnnouncementLister{}
	enrollments := &fakeEnrollmentLister{}
	svc := NewDashboardService(DashboardServiceParams{
		Repo:          repo,
		Assignments:   &fakeUpcoming{},
		Grades:        fakeGradeReader{percentages: []float64{90, 60}},
		Submissions:   &fakeSubmissionLister{},
		Enrollments:   enrollments,
		Announcements: announcements,
		Cache:         cache,
		Logger:        zap.NewNop(),
	})
	svc.now = func() time.Time { return dashboardNow }
	return svc, announcements, enrollments
}

func TestCourseProgressPercent(t *testing.T) {
	assert.Equal(t, 0.0, CourseProgressPercent(0, 0))
	assert.Equal(t, 0.0, CourseProgressPercent(3, 0))
	assert.Equal(t, 50.0, CourseProgressPercent(2, 4))
	assert.Equal(t, 33.33, CourseProgressPercent(1, 3))
	assert.Equal(t, 100.0, CourseProgressPercent(5, 5))
}

func TestEnrollmentTrendZeroFills(t *testing.T) {
	buckets := []models.MonthCount{
		{Month: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), Count: 4},
		{Month: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Count: 2},
	}
	trend := EnrollmentTrend(buckets, dashboardNow, 6)
	assert.Equal(t, []dto.EnrollmentTrendPoint{
		{Month: "2024-10", Count: 0},
		{Month: "2024-11", Count: 4},
		{Month: "2024-12", Count: 0},
		{Month: "2025-01", Count: 0},
		{Month: "2025-02", Count: 0},
		{Month: "2025-03", Count: 2},
	}, trend)
}

func TestDashboardServiceStudentComposesAndCaches(t *testing.T) {
	repo := &fakeDashboardRepo{courses: []models.CourseProgress{
		{CourseID: "c-1", TotalAssignments: 4, CompletedAssignments: 3},
		{CourseID: "c-2"},
	}}
	cache := NewCacheService(&stubCacheRepo{}, nil, time.Minute, zap.NewNop(), true)
	svc, announcements, _ := newTestDashboardService(repo, cache)
	ctx := context.Background()

	summary, hit, err := svc.Student(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, summary.Courses, 2)
	assert.Equal(t, 75.0, summary.Courses[0].Progress)
	assert.Equal(t, 0.0, summary.Courses[1].Progress)
	assert.Len(t, summary.UpcomingAssignments, 1)
	assert.Equal(t, 2, summary.Stats.TotalGraded)
	assert.Equal(t, 75.0, summary.Stats.AveragePercentage)
	require.Len(t, announcements.filters, 1)
	assert.Equal(t, []models.AnnouncementAudience{"all", "students"}, announcements.filters[0].Audiences)
	assert.True(t, announcements.filters[0].ActiveOnly)

	cached, hit, err := svc.Student(ctx, "stu-1")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, summary.Courses, cached.Courses)
	assert.Equal(t, 1, repo.studentCalls)

	require.NoError(t, cache.Invalidate(ctx, DashboardCachePattern))
	_, hit, err = svc.Student(ctx, "stu-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.studentCalls)
}

func TestDashboardServiceFaculty(t *testing.T) {
	repo := &fakeDashboardRepo{faculty: []models.FacultyCourseSummary{{CourseID: "c-1", StudentsCount: 12}}, toGrade: 7, students: 12}
	svc, announcements, _ := newTestDashboardService(repo, nil)

	summary, hit, err := svc.Faculty(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 7, summary.ToGrade)
	assert.Equal(t, 12, summary.TotalStudents)
	assert.Len(t, summary.RecentSubmissions, 1)
	assert.Equal(t, []models.AnnouncementAudience{"all", "faculty"}, announcements.filters[0].Audiences)
}

func TestDashboardServiceAdmin(t *testing.T) {
	repo := &fakeDashboardRepo{
		byRole:   []models.KeyCount{{Key: "student", Count: 40}, {Key: "faculty", Count: 5}, {Key: "admin", Count: 1}},
		byStatus: []models.KeyCount{{Key: "pending", Count: 3}, {Key: "active", Count: 30}},
		catalog:  models.CatalogTotals{Users: 45, Programs: 4, Courses: 11},
		months:   []models.MonthCount{{Month: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), Count: 9}},
	}
	svc, _, enrollments := newTestDashboardService(repo, nil)
	svc.metrics = NewMetricsService()

	summary, _, err := svc.Admin(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().DBQueryCount)
	assert.Equal(t, 45, summary.Totals.Users)
	assert.Equal(t, 40, summary.Totals.UsersByRole["student"])
	assert.Equal(t, 33, summary.Totals.Enrollments)
	assert.Equal(t, 4, summary.Totals.Programs)
	assert.Equal(t, time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), repo.since)
	require.Len(t, summary.EnrollmentTrend, 6)
	assert.Equal(t, dto.EnrollmentTrendPoint{Month: "2025-02", Count: 9}, summary.EnrollmentTrend[4])
	require.Len(t, enrollments.filters, 2)
	assert.Equal(t, models.EnrollmentStatusPending, enrollments.filters[0].Status)
	assert.Equal(t, models.EnrollmentStatusPending, summary.PendingEnrollments[0].Status)
}

func TestDashboardServiceErrors(t *testing.T) {
	svc, _, _ := newTestDashboardService(&fakeDashboardRepo{err: errors.New("db down")}, nil)

	_, _, err := svc.Student(context.Background(), "")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, _, err = svc.Student(context.Background(), "stu-1")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}
