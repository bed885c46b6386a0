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

type departmentRepository interface {
	List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id string) error
}

// DepartmentRequest is the payload for creating and replacing departments.
type DepartmentRequest struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Code        string  `json:"code" validate:"required,max=50"`
	Description *string `json:"description"`
	HeadID      *string `json:"head_id"`
}

// DepartmentService manages departments.
type DepartmentService struct {
	repo      departmentRepository
	users     userLookup
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs a DepartmentService.
func NewDepartmentService(repo departmentRepository, users userLookup, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &DepartmentService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns departments with pagination.
func (s *DepartmentService) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, *models.Pagination, error) {
	departments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list departments")
	}
	return departments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a department by id.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Internal(err, "failed to load department")
	}
	return department, nil
}

// Create adds a department.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.DepartmentDetail, error) {
	department := &models.Department{}
	if err := s.prepare(ctx, department, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, appErrors.Internal(err, "failed to create department")
	}
	return s.Get(ctx, department.ID)
}

// Update replaces a department's attributes.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.DepartmentDetail, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	department := existing.Department
	if err := s.prepare(ctx, &department, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &department); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Internal(err, "failed to update department")
	}
	return s.Get(ctx, id)
}

// Delete removes a department.
func (s *DepartmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return appErrors.Internal(err, "failed to delete department")
	}
	return nil
}

func (s *DepartmentService) prepare(ctx context.Context, department *models.Department, req DepartmentRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid department payload")
	}
	if req.HeadID != nil && *req.HeadID != "" {
		if err := requireFaculty(ctx, s.users, *req.HeadID, "department head"); err != nil {
			return err
		}
	}
	department.Name = req.Name
	department.Code = req.Code
	department.Description = req.Description
	department.HeadID = emptyToNil(req.HeadID)
	return nil
}
