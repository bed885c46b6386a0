package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/repository"
	"github.com/noah-isme/tclass-api/pkg/database"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/export"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error)
	ListByUser(ctx context.Context, userID string) ([]models.GradeDetail, error)
	Percentages(ctx context.Context, userID string) ([]float64, error)
	FindByID(ctx context.Context, id string) (*models.GradeDetail, error)
	ExistsForAssignmentUser(ctx context.Context, assignmentID, userID string) (bool, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) error
}

type submissionFinder interface {
	FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error)
}

type reportRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

// RecordGradeRequest grades a student's work on an assignment.
type RecordGradeRequest struct {
	AssignmentID string   `json:"assignment_id" validate:"required"`
	UserID       string   `json:"user_id" validate:"required"`
	SubmissionID *string  `json:"submission_id"`
	Score        float64  `json:"score" validate:"gte=0"`
	TotalPoints  *float64 `json:"total_points" validate:"omitempty,gt=0"`
	Feedback     *string  `json:"feedback"`
}

// UpdateGradeRequest partially updates a grade.
type UpdateGradeRequest struct {
	Score       *float64 `json:"score" validate:"omitempty,gte=0"`
	TotalPoints *float64 `json:"total_points" validate:"omitempty,gt=0"`
	Feedback    *string  `json:"feedback"`
}

// GradeService records and reports grades.
type GradeService struct {
	repo        gradeRepository
	assignments assignmentLookup
	courses     courseLookup
	enrollments courseEnrollmentLookup
	submissions submissionFinder
	renderers   map[string]reportRenderer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// GradeServiceParams groups constructor dependencies.
type GradeServiceParams struct {
	Repo        gradeRepository
	Assignments assignmentLookup
	Courses     courseLookup
	Enrollments courseEnrollmentLookup
	Submissions submissionFinder
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewGradeService constructs a GradeService with CSV and PDF report renderers.
func NewGradeService(params GradeServiceParams) *GradeService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	return &GradeService{
		repo:        params.Repo,
		assignments: params.Assignments,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		submissions: params.Submissions,
		renderers: map[string]reportRenderer{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		cache:     params.Cache,
		metrics:   params.Metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Record stores a grade for (assignment, student). Only one grade may exist per pair.
func (s *GradeService) Record(ctx context.Context, req RecordGradeRequest, claims *models.JWTClaims) (*models.GradeDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid grade payload")
	}
	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	if err := requireInstructor(ctx, s.courses, assignment.CourseID, claims); err != nil {
		return nil, err
	}

	enrollment, err := s.enrollments.FindActiveForCourse(ctx, req.UserID, assignment.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "student is not enrolled in this course")
		}
		return nil, appErrors.Internal(err, "failed to resolve enrollment")
	}

	exists, err := s.repo.ExistsForAssignmentUser(ctx, assignment.ID, req.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to check existing grade")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateGrade, "")
	}

	total := DefaultTotalPoints
	if req.TotalPoints != nil {
		total = *req.TotalPoints
	}
	if req.Score > total {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score cannot exceed total points")
	}

	var submissionID *string
	if explicit := emptyToNil(req.SubmissionID); explicit != nil {
		submissionID, err = s.verifySubmission(ctx, *explicit, assignment.ID, req.UserID)
	} else {
		submissionID, err = s.linkSubmission(ctx, assignment.ID, req.UserID)
	}
	if err != nil {
		return nil, err
	}

	grade := &models.Grade{
		EnrollmentID: enrollment.ID,
		AssignmentID: assignment.ID,
		SubmissionID: submissionID,
		UserID:       req.UserID,
		GradedBy:     claims.UserID,
		Score:        req.Score,
		TotalPoints:  total,
		Feedback:     req.Feedback,
		GradedAt:     s.now().UTC(),
	}
	scoreGrade(grade)

	if err := s.repo.Create(ctx, grade); err != nil {
		if database.IsUniqueViolation(err, repository.ConstraintGradeAssignmentUser) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateGrade, "")
		}
		return nil, appErrors.Internal(err, "failed to record grade")
	}

	s.metrics.IncGrades()
	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("grade recorded",
		zap.String("grade_id", grade.ID),
		zap.String("assignment_id", grade.AssignmentID),
		zap.String("user_id", grade.UserID),
		zap.Float64("percentage", grade.Percentage),
	)
	return s.get(ctx, grade.ID)
}

// Update changes score, total or feedback and recomputes percentage and letter.
func (s *GradeService) Update(ctx context.Context, id string, req UpdateGradeRequest, claims *models.JWTClaims) (*models.GradeDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid grade payload")
	}
	existing, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInstructor(ctx, s.courses, existing.CourseID, claims); err != nil {
		return nil, err
	}
	grade := existing.Grade
	if req.Score != nil {
		grade.Score = *req.Score
	}
	if req.TotalPoints != nil {
		grade.TotalPoints = *req.TotalPoints
	}
	if req.Feedback != nil {
		grade.Feedback = req.Feedback
	}
	if grade.Score > grade.TotalPoints {
		return nil, appErrors.Clone(appErrors.ErrValidation, "score cannot exceed total points")
	}
	scoreGrade(&grade)

	if err := s.repo.Update(ctx, &grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Internal(err, "failed to update grade")
	}
	s.cache.InvalidateDashboards(ctx)
	return s.get(ctx, id)
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	existing, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := requireInstructor(ctx, s.courses, existing.CourseID, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return appErrors.Internal(err, "failed to delete grade")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// List returns grades. Students only see their own.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter, claims *models.JWTClaims, mine bool) ([]models.GradeDetail, *models.Pagination, error) {
	if claims != nil {
		switch {
		case !claims.IsStaff() || claims.ActiveRole == models.RoleStudent:
			filter.UserID = claims.UserID
		case mine || !claims.HasRole(models.RoleAdmin):
			filter.InstructorID = claims.UserID
		}
	}
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list grades")
	}
	return grades, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a grade visible to the caller.
func (s *GradeService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.GradeDetail, error) {
	grade, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if claims != nil && !claims.IsStaff() && grade.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
	}
	return grade, nil
}

// Stats aggregates a student's grades. Students may only read their own.
func (s *GradeService) Stats(ctx context.Context, studentID string, claims *models.JWTClaims) (*models.StudentGradeStats, error) {
	if err := s.requireSelfOrStaff(studentID, claims); err != nil {
		return nil, err
	}
	percentages, err := s.repo.Percentages(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load grade statistics")
	}
	stats := StudentStats(studentID, percentages)
	return &stats, nil
}

// Export renders the student's grade report as csv or pdf.
func (s *GradeService) Export(ctx context.Context, studentID, format string, claims *models.JWTClaims) (*dto.FileResponse, error) {
	if err := s.requireSelfOrStaff(studentID, claims); err != nil {
		return nil, err
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	grades, err := s.repo.ListByUser(ctx, studentID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load grades")
	}

	dataset := export.Dataset{
		Title:   "Grade Report",
		Headers: []string{"Course", "Assignment", "Score", "Total", "Percentage", "Letter", "Graded At"},
		Rows:    make([][]string, 0, len(grades)),
	}
	percentages := make([]float64, 0, len(grades))
	for _, g := range grades {
		if dataset.Subtitle == "" {
			dataset.Subtitle = g.UserName
		}
		percentages = append(percentages, g.Percentage)
		dataset.Rows = append(dataset.Rows, []string{
			g.CourseTitle,
			g.AssignmentTitle,
			formatPoints(g.Score),
			formatPoints(g.TotalPoints),
			formatPoints(g.Percentage),
			g.LetterGrade,
			g.GradedAt.Format("2006-01-02"),
		})
	}
	stats := StudentStats(studentID, percentages)
	dataset.Subtitle = fmt.Sprintf("%s  Average %.2f%%  Passing rate %.2f%%", dataset.Subtitle, stats.AveragePercentage, stats.PassingRate)

	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render grade report")
	}
	return &dto.FileResponse{
		Filename:    fmt.Sprintf("grades-%s.%s", studentID, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *GradeService) get(ctx context.Context, id string) (*models.GradeDetail, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Internal(err, "failed to load grade")
	}
	return grade, nil
}

func (s *GradeService) linkSubmission(ctx context.Context, assignmentID, userID string) (*string, error) {
	if s.submissions == nil {
		return nil, nil
	}
	submission, err := s.submissions.FindByAssignmentAndUser(ctx, assignmentID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	return &submission.ID, nil
}

// verifySubmission checks that an explicitly linked submission is the student's work on the assignment.
func (s *GradeService) verifySubmission(ctx context.Context, id, assignmentID, userID string) (*string, error) {
	if s.submissions == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission cannot be linked")
	}
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	if submission.AssignmentID != assignmentID || submission.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission does not belong to this student and assignment")
	}
	return &submission.ID, nil
}

func (s *GradeService) requireSelfOrStaff(studentID string, claims *models.JWTClaims) error {
	if claims == nil || claims.IsStaff() || claims.UserID == studentID {
		return nil
	}
	return appErrors.Clone(appErrors.ErrForbidden, "you may only view your own grades")
}

func scoreGrade(grade *models.Grade) {
	grade.Percentage = Percentage(grade.Score, grade.TotalPoints)
	grade.LetterGrade = LetterGrade(grade.Percentage)
}

func formatPoints(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
