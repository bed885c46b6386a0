package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type assignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error
	Delete(ctx context.Context, id string) error
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type courseEnrollmentLookup interface {
	FindActiveForCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error)
}

// AssignmentRequest is the payload for creating and replacing assignments.
type AssignmentRequest struct {
	CourseID     string                  `json:"course_id" validate:"required"`
	Title        string                  `json:"title" validate:"required,max=255"`
	Description  *string                 `json:"description"`
	Instructions *string                 `json:"instructions"`
	Type         models.AssignmentType   `json:"type" validate:"required,oneof=quiz exam homework project practical"`
	TotalPoints  float64                 `json:"total_points" validate:"gt=0"`
	DueDate      time.Time               `json:"due_date" validate:"required"`
	Status       models.AssignmentStatus `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// AssignmentService manages course assignments.
type AssignmentService struct {
	repo        assignmentRepository
	courses     courseLookup
	enrollments courseEnrollmentLookup
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs an AssignmentService.
func NewAssignmentService(repo assignmentRepository, courses courseLookup, enrollments courseEnrollmentLookup, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{repo: repo, courses: courses, enrollments: enrollments, validator: validate, logger: logger}
}

// List returns assignments. Students only ever see published work of their own courses.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter, claims *models.JWTClaims, mine bool) ([]models.AssignmentDetail, *models.Pagination, error) {
	if claims != nil {
		if mine {
			scopeToCaller(claims, func(id string) { filter.InstructorID = id }, func(id string) { filter.StudentID = id })
		}
		if !claims.IsStaff() || claims.ActiveRole == models.RoleStudent {
			filter.StudentID = claims.UserID
			filter.Status = models.AssignmentStatusPublished
		}
	}
	assignments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list assignments")
	}
	return assignments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an assignment visible to the caller.
func (s *AssignmentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.AssignmentDetail, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	if claims == nil || (claims.IsStaff() && claims.ActiveRole != models.RoleStudent) {
		return assignment, nil
	}
	if assignment.Status != models.AssignmentStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
	}
	if err := s.requireEnrollment(ctx, claims.UserID, assignment.CourseID); err != nil {
		return nil, err
	}
	return assignment, nil
}

// Create adds an assignment to a course the caller teaches. New assignments are drafts unless a status is given.
func (s *AssignmentService) Create(ctx context.Context, req AssignmentRequest, claims *models.JWTClaims) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid assignment payload")
	}
	if err := s.requireCourseOwner(ctx, req.CourseID, claims); err != nil {
		return nil, err
	}
	assignment := &models.Assignment{CreatedBy: claims.UserID}
	applyAssignment(assignment, req)
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusDraft
	}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Internal(err, "failed to create assignment")
	}
	s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.String("course_id", assignment.CourseID))
	return s.Get(ctx, assignment.ID, nil)
}

// Update replaces an assignment's attributes.
func (s *AssignmentService) Update(ctx context.Context, id string, req AssignmentRequest, claims *models.JWTClaims) (*models.AssignmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid assignment payload")
	}
	existing, err := s.Get(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if err := s.requireCourseOwner(ctx, existing.CourseID, claims); err != nil {
		return nil, err
	}
	if req.CourseID != existing.CourseID {
		if err := s.requireCourseOwner(ctx, req.CourseID, claims); err != nil {
			return nil, err
		}
	}
	assignment := existing.Assignment
	status := assignment.Status
	applyAssignment(&assignment, req)
	if req.Status == "" {
		assignment.Status = status
	}
	if err := s.repo.Update(ctx, &assignment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to update assignment")
	}
	return s.Get(ctx, id, nil)
}

// Publish makes an assignment visible to enrolled students.
func (s *AssignmentService) Publish(ctx context.Context, id string, claims *models.JWTClaims) (*models.AssignmentDetail, error) {
	existing, err := s.Get(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	if err := s.requireCourseOwner(ctx, existing.CourseID, claims); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, models.AssignmentStatusPublished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to publish assignment")
	}
	return s.Get(ctx, id, nil)
}

// Delete removes an assignment and, through the schema, its submissions and grades.
func (s *AssignmentService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	existing, err := s.Get(ctx, id, nil)
	if err != nil {
		return err
	}
	if err := s.requireCourseOwner(ctx, existing.CourseID, claims); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Internal(err, "failed to delete assignment")
	}
	return nil
}

// requireCourseOwner lets admins through and restricts faculty to courses they teach.
func (s *AssignmentService) requireCourseOwner(ctx context.Context, courseID string, claims *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "course does not exist")
		}
		return appErrors.Internal(err, "failed to load course")
	}
	if claims == nil || claims.HasRole(models.RoleAdmin) {
		return nil
	}
	if course.InstructorID == nil || *course.InstructorID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this course")
	}
	return nil
}

func (s *AssignmentService) requireEnrollment(ctx context.Context, userID, courseID string) error {
	if _, err := s.enrollments.FindActiveForCourse(ctx, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")
		}
		return appErrors.Internal(err, "failed to check enrollment")
	}
	return nil
}

func applyAssignment(assignment *models.Assignment, req AssignmentRequest) {
	assignment.CourseID = req.CourseID
	assignment.Title = req.Title
	assignment.Description = req.Description
	assignment.Instructions = req.Instructions
	assignment.Type = req.Type
	assignment.TotalPoints = req.TotalPoints
	assignment.DueDate = req.DueDate.UTC()
	assignment.Status = req.Status
}
