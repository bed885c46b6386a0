package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tclass-api/internal/models"
)

const programColumns = "id, title, category, description, duration, slots, scholarship, qualifications, requirements, status, created_at, updated_at"

// ProgramRepository handles persistence for training programs.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs a ProgramRepository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// List returns programs matching the filter.
func (r *ProgramRepository) List(ctx context.Context, filter models.ProgramFilter) ([]models.Program, int, error) {
	var fb filterBuilder
	if filter.Status != "" {
		fb.add("status = ?", string(filter.Status))
	}
	if filter.Category != "" {
		fb.add("LOWER(category) = LOWER(?)", filter.Category)
	}
	if filter.Search != "" {
		fb.add("(LOWER(title) LIKE ? OR LOWER(category) LIKE ?)", likePattern(filter.Search))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM programs%s ORDER BY title ASC LIMIT %d OFFSET %d", programColumns, fb.where(), limit, offset)
	programs := make([]models.Program, 0)
	if err := r.db.SelectContext(ctx, &programs, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list programs: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM programs"+fb.where(), fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count programs: %w", err)
	}
	return programs, total, nil
}

// FindByID returns a single program.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	var program models.Program
	if err := r.db.GetContext(ctx, &program, "SELECT "+programColumns+" FROM programs WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find program: %w", err)
	}
	return &program, nil
}

// Create inserts a program.
func (r *ProgramRepository) Create(ctx context.Context, program *models.Program) error {
	if program.ID == "" {
		program.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	program.CreatedAt = now
	program.UpdatedAt = now
	const query = `INSERT INTO programs (id, title, category, description, duration, slots, scholarship, qualifications, requirements, status, created_at, updated_at) VALUES (:id, :title, :category, :description, :duration, :slots, :scholarship, :qualifications, :requirements, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, program); err != nil {
		return fmt.Errorf("create program: %w", err)
	}
	return nil
}

// Update persists all mutable program fields.
func (r *ProgramRepository) Update(ctx context.Context, program *models.Program) error {
	program.UpdatedAt = time.Now().UTC()
	const query = `UPDATE programs SET title = :title, category = :category, description = :description, duration = :duration, slots = :slots, scholarship = :scholarship, qualifications = :qualifications, requirements = :requirements, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, program)
	if err != nil {
		return fmt.Errorf("update program: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a program; enrollments and courses cascade in the schema.
func (r *ProgramRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete program: %w", err)
	}
	return expectAffected(res)
}
