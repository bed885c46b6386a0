package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type dashboardRepository interface {
	StudentCourses(ctx context.Context, studentID string) ([]models.CourseProgress, error)
	FacultyCourses(ctx context.Context, instructorID string) ([]models.FacultyCourseSummary, error)
	CountToGrade(ctx context.Context, instructorID string) (int, error)
	CountFacultyStudents(ctx context.Context, instructorID string) (int, error)
	UsersByRole(ctx context.Context) ([]models.KeyCount, error)
	EnrollmentsByStatus(ctx context.Context) ([]models.KeyCount, error)
	CatalogTotals(ctx context.Context) (models.CatalogTotals, error)
	EnrollmentsPerMonth(ctx context.Context, since time.Time) ([]models.MonthCount, error)
}

type upcomingAssignmentLister interface {
	ListUpcoming(ctx context.Context, studentID string, now time.Time, limit int) ([]models.AssignmentDetail, error)
}

type gradeReader interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error)
	Percentages(ctx context.Context, userID string) ([]float64, error)
}

type submissionLister interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
}

type enrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
}

type announcementLister interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL    time.Duration
	RecentLimit int
	TrendMonths int
}

// DashboardService orchestrates composition of dashboard payloads.
type DashboardService struct {
	repo          dashboardRepository
	assignments   upcomingAssignmentLister
	grades        gradeReader
	submissions   submissionLister
	enrollments   enrollmentLister
	announcements announcementLister
	cache         *CacheService
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
	cfg           DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo          dashboardRepository
	Assignments   upcomingAssignmentLister
	Grades        gradeReader
	Submissions   submissionLister
	Enrollments   enrollmentLister
	Announcements announcementLister
	Cache         *CacheService
	Metrics       *MetricsService
	Logger        *zap.Logger
	Config        DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.TrendMonths <= 0 {
		cfg.TrendMonths = 6
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:          params.Repo,
		assignments:   params.Assignments,
		grades:        params.Grades,
		submissions:   params.Submissions,
		enrollments:   params.Enrollments,
		announcements: params.Announcements,
		cache:         params.Cache,
		metrics:       params.Metrics,
		logger:        logger,
		now:           time.Now,
		cfg:           cfg,
	}
}

// Student returns the student dashboard and indicates cache utilisation.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, bool, error) {
	if studentID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}
	key := DashboardKey("student", studentID)
	var cached dto.StudentDashboardResponse
	if hit, err := s.tryCache(ctx, key, &cached); err != nil {
		return nil, false, err
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	summary, err := s.composeStudent(ctx, studentID)
	s.metrics.ObserveDBQuery("dashboard_student", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to build student dashboard")
	}
	s.persistCache(ctx, key, summary)
	return summary, false, nil
}

// Faculty returns the faculty dashboard and indicates cache utilisation.
func (s *DashboardService) Faculty(ctx context.Context, instructorID string) (*dto.FacultyDashboardResponse, bool, error) {
	if instructorID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "instructor id is required")
	}
	key := DashboardKey("faculty", instructorID)
	var cached dto.FacultyDashboardResponse
	if hit, err := s.tryCache(ctx, key, &cached); err != nil {
		return nil, false, err
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	summary, err := s.composeFaculty(ctx, instructorID)
	s.metrics.ObserveDBQuery("dashboard_faculty", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to build faculty dashboard")
	}
	s.persistCache(ctx, key, summary)
	return summary, false, nil
}

// Admin returns the admin dashboard and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	key := DashboardKey("admin")
	var cached dto.AdminDashboardResponse
	if hit, err := s.tryCache(ctx, key, &cached); err != nil {
		return nil, false, err
	} else if hit {
		return &cached, true, nil
	}

	start := time.Now()
	summary, err := s.composeAdmin(ctx)
	s.metrics.ObserveDBQuery("dashboard_admin", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Internal(err, "failed to build admin dashboard")
	}
	s.persistCache(ctx, key, summary)
	return summary, false, nil
}

func (s *DashboardService) composeStudent(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, error) {
	now := s.now().UTC()
	courses, err := s.repo.StudentCourses(ctx, studentID)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		courses[i].Progress = CourseProgressPercent(courses[i].CompletedAssignments, courses[i].TotalAssignments)
	}
	upcoming, err := s.assignments.ListUpcoming(ctx, studentID, now, s.cfg.RecentLimit)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.grades.List(ctx, models.GradeFilter{UserID: studentID, PageSize: s.cfg.RecentLimit})
	if err != nil {
		return nil, err
	}
	percentages, err := s.grades.Percentages(ctx, studentID)
	if err != nil {
		return nil, err
	}
	announcements, err := s.activeAnnouncements(ctx, models.AnnouncementAudienceStudents)
	if err != nil {
		return nil, err
	}
	return &dto.StudentDashboardResponse{
		StudentID:           studentID,
		Courses:             courses,
		UpcomingAssignments: upcoming,
		RecentGrades:        recent,
		Stats:               StudentStats(studentID, percentages),
		Announcements:       announcements,
		GeneratedAt:         now,
	}, nil
}

func (s *DashboardService) composeFaculty(ctx context.Context, instructorID string) (*dto.FacultyDashboardResponse, error) {
	courses, err := s.repo.FacultyCourses(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	toGrade, err := s.repo.CountToGrade(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	students, err := s.repo.CountFacultyStudents(ctx, instructorID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.submissions.List(ctx, models.SubmissionFilter{InstructorID: instructorID, PageSize: s.cfg.RecentLimit})
	if err != nil {
		return nil, err
	}
	announcements, err := s.activeAnnouncements(ctx, models.AnnouncementAudienceFaculty)
	if err != nil {
		return nil, err
	}
	return &dto.FacultyDashboardResponse{
		InstructorID:      instructorID,
		Courses:           courses,
		ToGrade:           toGrade,
		TotalStudents:     students,
		RecentSubmissions: recent,
		Announcements:     announcements,
		GeneratedAt:       s.now().UTC(),
	}, nil
}

func (s *DashboardService) composeAdmin(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	now := s.now().UTC()
	byRole, err := s.repo.UsersByRole(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.repo.EnrollmentsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := s.repo.CatalogTotals(ctx)
	if err != nil {
		return nil, err
	}
	since := monthStart(now).AddDate(0, -(s.cfg.TrendMonths - 1), 0)
	buckets, err := s.repo.EnrollmentsPerMonth(ctx, since)
	if err != nil {
		return nil, err
	}
	pending, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{Status: models.EnrollmentStatusPending, PageSize: s.cfg.RecentLimit, SortBy: "created_at", SortOrder: "asc"})
	if err != nil {
		return nil, err
	}
	recent, _, err := s.enrollments.List(ctx, models.EnrollmentFilter{PageSize: s.cfg.RecentLimit, SortBy: "created_at", SortOrder: "desc"})
	if err != nil {
		return nil, err
	}

	totals := dto.AdminTotals{
		Users:               catalog.Users,
		UsersByRole:         countsByKey(byRole),
		Programs:            catalog.Programs,
		Courses:             catalog.Courses,
		EnrollmentsByStatus: countsByKey(byStatus),
	}
	for _, n := range totals.EnrollmentsByStatus {
		totals.Enrollments += n
	}

	return &dto.AdminDashboardResponse{
		Totals:             totals,
		PendingEnrollments: pending,
		EnrollmentTrend:    EnrollmentTrend(buckets, now, s.cfg.TrendMonths),
		RecentEnrollments:  recent,
		GeneratedAt:        now,
	}, nil
}

func (s *DashboardService) activeAnnouncements(ctx context.Context, audience models.AnnouncementAudience) ([]models.Announcement, error) {
	filter := models.AnnouncementFilter{
		Audiences:  []models.AnnouncementAudience{models.AnnouncementAudienceAll, audience},
		ActiveOnly: true,
		PageSize:   s.cfg.RecentLimit,
	}
	announcements, _, err := s.announcements.List(ctx, filter)
	return announcements, err
}

func (s *DashboardService) tryCache(ctx context.Context, key string, dest interface{}) (bool, error) {
	if s.cache == nil {
		return false, nil
	}
	return s.cache.Get(ctx, key, dest)
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// CourseProgressPercent is completed/total*100 rounded to two decimals, or 0 for a course without assignments.
func CourseProgressPercent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(completed) / float64(total) * 100)
}

// EnrollmentTrend zero-fills month buckets for the trailing window ending at now's month, oldest first.
func EnrollmentTrend(buckets []models.MonthCount, now time.Time, months int) []dto.EnrollmentTrendPoint {
	counts := make(map[string]int, len(buckets))
	for _, b := range buckets {
		counts[b.Month.UTC().Format("2006-01")] += b.Count
	}
	start := monthStart(now.UTC()).AddDate(0, -(months - 1), 0)
	points := make([]dto.EnrollmentTrendPoint, 0, months)
	for i := 0; i < months; i++ {
		month := start.AddDate(0, i, 0).Format("2006-01")
		points = append(points, dto.EnrollmentTrendPoint{Month: month, Count: counts[month]})
	}
	return points
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func countsByKey(rows []models.KeyCount) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Key] += row.Count
	}
	return out
}
