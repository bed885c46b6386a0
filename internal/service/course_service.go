package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// CourseRequest is the payload for creating and replacing courses.
type CourseRequest struct {
	ProgramID    string              `json:"program_id" validate:"required"`
	DepartmentID *string             `json:"department_id"`
	InstructorID *string             `json:"instructor_id"`
	Code         string              `json:"code" validate:"required,max=50"`
	Title        string              `json:"title" validate:"required,max=255"`
	Description  *string             `json:"description"`
	Schedule     *string             `json:"schedule" validate:"omitempty,max=255"`
	Room         *string             `json:"room" validate:"omitempty,max=100"`
	Capacity     int                 `json:"capacity" validate:"gte=0"`
	Status       models.CourseStatus `json:"status" validate:"omitempty,oneof=active inactive completed"`
}

// CourseService manages courses.
type CourseService struct {
	repo      courseRepository
	programs  programRepository
	users     userLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, programs programRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, programs: programs, users: users, validator: validate, logger: logger}
}

// List returns courses. MyCourses scopes to the caller's taught or enrolled courses.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter, claims *models.JWTClaims, myCourses bool) ([]models.CourseDetail, *models.Pagination, error) {
	if myCourses && claims != nil {
		scopeToCaller(claims, func(id string) { filter.InstructorID = id }, func(id string) { filter.StudentID = id })
	}
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list courses")
	}
	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to load course")
	}
	return course, nil
}

// Create adds a course.
func (s *CourseService) Create(ctx context.Context, req CourseRequest) (*models.CourseDetail, error) {
	course := &models.Course{}
	if err := s.prepare(ctx, course, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Internal(err, "failed to create course")
	}
	return s.Get(ctx, course.ID)
}

// Update replaces a course's attributes.
func (s *CourseService) Update(ctx context.Context, id string, req CourseRequest) (*models.CourseDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	course := existing.Course
	status := course.Status
	if err := s.prepare(ctx, &course, req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		course.Status = status
	}
	if err := s.repo.Update(ctx, &course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Internal(err, "failed to update course")
	}
	return s.Get(ctx, id)
}

// Delete removes a course.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Internal(err, "failed to delete course")
	}
	return nil
}

func (s *CourseService) prepare(ctx context.Context, course *models.Course, req CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid course payload")
	}
	if _, err := s.programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "program does not exist")
		}
		return appErrors.Internal(err, "failed to load program")
	}
	if req.InstructorID != nil && *req.InstructorID != "" {
		if err := requireFaculty(ctx, s.users, *req.InstructorID, "instructor"); err != nil {
			return err
		}
	}

	course.ProgramID = req.ProgramID
	course.DepartmentID = emptyToNil(req.DepartmentID)
	course.InstructorID = emptyToNil(req.InstructorID)
	course.Code = req.Code
	course.Title = req.Title
	course.Description = req.Description
	course.Schedule = req.Schedule
	course.Room = req.Room
	course.Capacity = req.Capacity
	course.Status = req.Status
	if course.Status == "" {
		course.Status = models.CourseStatusActive
	}
	return nil
}

// requireFaculty ensures the referenced user exists and holds the faculty role.
func requireFaculty(ctx context.Context, users userLookup, id, field string) error {
	user, err := users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, field+" does not exist")
		}
		return appErrors.Internal(err, "failed to load "+field)
	}
	if !user.HasRole(models.RoleFaculty) {
		return appErrors.Clone(appErrors.ErrValidation, field+" must be a faculty member")
	}
	return nil
}

// requireInstructor lets admins through and restricts faculty to courses they teach.
func requireInstructor(ctx context.Context, courses courseLookup, courseID string, claims *models.JWTClaims) error {
	if claims == nil || claims.HasRole(models.RoleAdmin) {
		return nil
	}
	course, err := courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Internal(err, "failed to load course")
	}
	if course.InstructorID == nil || *course.InstructorID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "you do not teach this course")
	}
	return nil
}

// scopeToCaller applies "my_*" scoping: faculty and admins see what they own, students what they are enrolled in.
func scopeToCaller(claims *models.JWTClaims, asStaff, asStudent func(id string)) {
	if claims.ActiveRole == models.RoleStudent || !claims.IsStaff() {
		asStudent(claims.UserID)
		return
	}
	asStaff(claims.UserID)
}

func emptyToNil(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
