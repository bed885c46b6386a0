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

const departmentDetailSelect = `SELECT d.id, d.name, d.code, d.description, d.head_id, d.created_at, d.updated_at,
u.name AS head_name,
(SELECT COUNT(*) FROM courses c WHERE c.department_id = d.id) AS courses_count
FROM departments d
LEFT JOIN users u ON u.id = d.head_id`

// DepartmentRepository handles persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

// List returns departments with head names and course counts.
func (r *DepartmentRepository) List(ctx context.Context, filter models.DepartmentFilter) ([]models.DepartmentDetail, int, error) {
	var fb filterBuilder
	if filter.Search != "" {
		fb.add("(LOWER(d.name) LIKE ? OR LOWER(d.code) LIKE ?)", likePattern(filter.Search))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY d.name ASC LIMIT %d OFFSET %d", departmentDetailSelect, fb.where(), limit, offset)
	departments := make([]models.DepartmentDetail, 0)
	if err := r.db.SelectContext(ctx, &departments, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list departments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM departments d"+fb.where(), fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count departments: %w", err)
	}
	return departments, total, nil
}

// FindByID returns a department.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	var department models.DepartmentDetail
	if err := r.db.GetContext(ctx, &department, departmentDetailSelect+" WHERE d.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &department, nil
}

// Create inserts a department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	department.CreatedAt = now
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, name, code, description, head_id, created_at, updated_at) VALUES (:id, :name, :code, :description, :head_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update persists all mutable department fields.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET name = :name, code = :code, description = :description, head_id = :head_id, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, department)
	if err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a department.
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	return expectAffected(res)
}
