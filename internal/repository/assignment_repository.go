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

const assignmentDetailSelect = `SELECT a.id, a.course_id, a.created_by, a.title, a.description, a.instructions, a.type, a.total_points, a.due_date, a.status, a.created_at, a.updated_at,
c.title AS course_title,
(SELECT COUNT(*) FROM submissions s WHERE s.assignment_id = a.id) AS submissions_count
FROM assignments a
JOIN courses c ON c.id = a.course_id`

// AssignmentRepository handles persistence for assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

func assignmentFilters(filter models.AssignmentFilter) filterBuilder {
	var fb filterBuilder
	if filter.CourseID != "" {
		fb.add("a.course_id = ?", filter.CourseID)
	}
	if filter.Status != "" {
		fb.add("a.status = ?", string(filter.Status))
	}
	if filter.Type != "" {
		fb.add("a.type = ?", string(filter.Type))
	}
	if filter.InstructorID != "" {
		fb.add("c.instructor_id = ?", filter.InstructorID)
	}
	if filter.StudentID != "" {
		fb.add(enrolledInCourse, filter.StudentID)
	}
	return fb
}

// List returns assignments matching the filter ordered by due date.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	fb := assignmentFilters(filter)
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY a.due_date ASC LIMIT %d OFFSET %d", assignmentDetailSelect, fb.where(), limit, offset)
	assignments := make([]models.AssignmentDetail, 0)
	if err := r.db.SelectContext(ctx, &assignments, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM assignments a JOIN courses c ON c.id = a.course_id"+fb.where(), fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return assignments, total, nil
}

// ListUpcoming returns published assignments due after now in the student's courses.
func (r *AssignmentRepository) ListUpcoming(ctx context.Context, studentID string, now time.Time, limit int) ([]models.AssignmentDetail, error) {
	fb := assignmentFilters(models.AssignmentFilter{StudentID: studentID, Status: models.AssignmentStatusPublished})
	fb.add("a.due_date > ?", now)
	query := fmt.Sprintf("%s%s ORDER BY a.due_date ASC LIMIT %d", assignmentDetailSelect, fb.where(), limit)
	assignments := make([]models.AssignmentDetail, 0)
	if err := r.db.SelectContext(ctx, &assignments, query, fb.args...); err != nil {
		return nil, fmt.Errorf("list upcoming assignments: %w", err)
	}
	return assignments, nil
}

// FindByID returns an assignment with course context.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	var assignment models.AssignmentDetail
	if err := r.db.GetContext(ctx, &assignment, assignmentDetailSelect+" WHERE a.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// Create inserts an assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	const query = `INSERT INTO assignments (id, course_id, created_by, title, description, instructions, type, total_points, due_date, status, created_at, updated_at) VALUES (:id, :course_id, :created_by, :title, :description, :instructions, :type, :total_points, :due_date, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Update persists all mutable assignment fields.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE assignments SET course_id = :course_id, title = :title, description = :description, instructions = :instructions, type = :type, total_points = :total_points, due_date = :due_date, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, assignment)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return expectAffected(res)
}

// UpdateStatus changes only the assignment status.
func (r *AssignmentRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE assignments SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	return expectAffected(res)
}

// Delete removes an assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return expectAffected(res)
}
