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

const courseDetailSelect = `SELECT c.id, c.program_id, c.department_id, c.instructor_id, c.code, c.title, c.description, c.schedule, c.room, c.capacity, c.status, c.created_at, c.updated_at,
p.title AS program_title, u.name AS instructor_name
FROM courses c
JOIN programs p ON p.id = c.program_id
LEFT JOIN users u ON u.id = c.instructor_id`

// CourseRepository handles persistence for courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses with program and instructor names.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var fb filterBuilder
	if filter.Status != "" {
		fb.add("c.status = ?", string(filter.Status))
	}
	if filter.ProgramID != "" {
		fb.add("c.program_id = ?", filter.ProgramID)
	}
	if filter.InstructorID != "" {
		fb.add("c.instructor_id = ?", filter.InstructorID)
	}
	if filter.StudentID != "" {
		fb.add(enrolledInCourse, filter.StudentID)
	}
	if filter.Search != "" {
		fb.add("(LOWER(c.title) LIKE ? OR LOWER(c.code) LIKE ?)", likePattern(filter.Search))
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY c.code ASC LIMIT %d OFFSET %d", courseDetailSelect, fb.where(), limit, offset)
	courses := make([]models.CourseDetail, 0)
	if err := r.db.SelectContext(ctx, &courses, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses c"+fb.where(), fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID returns a course with its program and instructor names.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	var course models.CourseDetail
	if err := r.db.GetContext(ctx, &course, courseDetailSelect+" WHERE c.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, program_id, department_id, instructor_id, code, title, description, schedule, room, capacity, status, created_at, updated_at) VALUES (:id, :program_id, :department_id, :instructor_id, :code, :title, :description, :schedule, :room, :capacity, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists all mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET program_id = :program_id, department_id = :department_id, instructor_id = :instructor_id, code = :code, title = :title, description = :description, schedule = :schedule, room = :room, capacity = :capacity, status = :status, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a course.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(res)
}
