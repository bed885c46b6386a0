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

type programRepository interface {
	List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error)
	FindByID(ctx context.Context, id string) (*models.Program, error)
	Create(ctx context.Context, program *models.Program) error
	Update(ctx context.Context, program *models.Program) error
	Delete(ctx context.Context, id string) error
}

// ProgramRequest is the payload for creating and replacing programs.
type ProgramRequest struct {
	Title          string               `json:"title" validate:"required,max=255"`
	Category       string               `json:"category" validate:"required,max=100"`
	Description    *string              `json:"description"`
	Duration       *string              `json:"duration" validate:"omitempty,max=100"`
	Slots          int                  `json:"slots" validate:"gte=0"`
	Scholarship    *string              `json:"scholarship" validate:"omitempty,max=255"`
	Qualifications *string              `json:"qualifications"`
	Requirements   *string              `json:"requirements"`
	Status         models.ProgramStatus `json:"status" validate:"omitempty,oneof=active inactive"`
}

// ProgramService manages the program catalog.
type ProgramService struct {
	repo      programRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgramService constructs a ProgramService.
func NewProgramService(repo programRepository, validate *validator.Validate, logger *zap.Logger) *ProgramService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProgramService{repo: repo, validator: validate, logger: logger}
}

// List returns programs with pagination.
func (s *ProgramService) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, *models.Pagination, error) {
	programs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list programs")
	}
	return programs, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a program by id.
func (s *ProgramService) Get(ctx context.Context, id string) (*models.Program, error) {
	program, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to load program")
	}
	return program, nil
}

// Create adds a program; status defaults to active.
func (s *ProgramService) Create(ctx context.Context, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid program payload")
	}
	program := &models.Program{}
	applyProgram(program, req)
	if err := s.repo.Create(ctx, program); err != nil {
		return nil, appErrors.Internal(err, "failed to create program")
	}
	return program, nil
}

// Update replaces a program's attributes.
func (s *ProgramService) Update(ctx context.Context, id string, req ProgramRequest) (*models.Program, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid program payload")
	}
	program, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := program.Status
	applyProgram(program, req)
	if req.Status == "" {
		program.Status = status
	}
	if err := s.repo.Update(ctx, program); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to update program")
	}
	return program, nil
}

// Delete removes a program. Enrollments and courses cascade in the schema.
func (s *ProgramService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return appErrors.Internal(err, "failed to delete program")
	}
	s.logger.Info("program deleted", zap.String("program_id", id))
	return nil
}

func applyProgram(program *models.Program, req ProgramRequest) {
	program.Title = req.Title
	program.Category = req.Category
	program.Description = req.Description
	program.Duration = req.Duration
	program.Slots = req.Slots
	program.Scholarship = req.Scholarship
	program.Qualifications = req.Qualifications
	program.Requirements = req.Requirements
	program.Status = req.Status
	if program.Status == "" {
		program.Status = models.ProgramStatusActive
	}
}
