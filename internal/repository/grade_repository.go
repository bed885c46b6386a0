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

// ConstraintGradeAssignmentUser guards one grade per (assignment, user).
const ConstraintGradeAssignmentUser = "grades_assignment_id_user_id_key"

const gradeDetailSelect = `SELECT g.id, g.enrollment_id, g.assignment_id, g.submission_id, g.user_id, g.graded_by, g.score, g.total_points, g.percentage, g.letter_grade, g.feedback, g.graded_at, g.created_at, g.updated_at,
a.title AS assignment_title, a.course_id, c.title AS course_title, u.name AS user_name
FROM grades g
JOIN assignments a ON a.id = g.assignment_id
JOIN courses c ON c.id = a.course_id
JOIN users u ON u.id = g.user_id`

// GradeRepository handles persistence for grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a GradeRepository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grades matching the filter, most recently graded first.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeDetail, int, error) {
	var fb filterBuilder
	if filter.UserID != "" {
		fb.add("g.user_id = ?", filter.UserID)
	}
	if filter.AssignmentID != "" {
		fb.add("g.assignment_id = ?", filter.AssignmentID)
	}
	if filter.CourseID != "" {
		fb.add("a.course_id = ?", filter.CourseID)
	}
	if filter.InstructorID != "" {
		fb.add("c.instructor_id = ?", filter.InstructorID)
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY g.graded_at DESC LIMIT %d OFFSET %d", gradeDetailSelect, fb.where(), limit, offset)
	grades := make([]models.GradeDetail, 0)
	if err := r.db.SelectContext(ctx, &grades, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list grades: %w", err)
	}
	countQuery := "SELECT COUNT(*) FROM grades g JOIN assignments a ON a.id = g.assignment_id JOIN courses c ON c.id = a.course_id" + fb.where()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count grades: %w", err)
	}
	return grades, total, nil
}

// ListByUser returns every grade of a student ordered by course and assignment.
func (r *GradeRepository) ListByUser(ctx context.Context, userID string) ([]models.GradeDetail, error) {
	grades := make([]models.GradeDetail, 0)
	query := gradeDetailSelect + " WHERE g.user_id = $1 ORDER BY c.title ASC, a.due_date ASC"
	if err := r.db.SelectContext(ctx, &grades, query, userID); err != nil {
		return nil, fmt.Errorf("list grades by user: %w", err)
	}
	return grades, nil
}

// Percentages returns the stored percentages of a student's grades.
func (r *GradeRepository) Percentages(ctx context.Context, userID string) ([]float64, error) {
	percentages := make([]float64, 0)
	if err := r.db.SelectContext(ctx, &percentages, `SELECT percentage FROM grades WHERE user_id = $1`, userID); err != nil {
		return nil, fmt.Errorf("list grade percentages: %w", err)
	}
	return percentages, nil
}

// FindByID returns a grade with context.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.GradeDetail, error) {
	var grade models.GradeDetail
	if err := r.db.GetContext(ctx, &grade, gradeDetailSelect+" WHERE g.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &grade, nil
}

// ExistsForAssignmentUser reports whether the student already holds a grade for the assignment.
func (r *GradeRepository) ExistsForAssignmentUser(ctx context.Context, assignmentID, userID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM grades WHERE assignment_id = $1 AND user_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, assignmentID, userID); err != nil {
		return false, fmt.Errorf("check grade: %w", err)
	}
	return exists, nil
}

// Create inserts a grade and moves the linked submission, if any, to graded.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grade.GradedAt.IsZero() {
		grade.GradedAt = now
	}
	grade.CreatedAt = now
	grade.UpdatedAt = now

	const insert = `INSERT INTO grades (id, enrollment_id, assignment_id, submission_id, user_id, graded_by, score, total_points, percentage, letter_grade, feedback, graded_at, created_at, updated_at) VALUES (:id, :enrollment_id, :assignment_id, :submission_id, :user_id, :graded_by, :score, :total_points, :percentage, :letter_grade, :feedback, :graded_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}

	if grade.SubmissionID != nil {
		const graded = `UPDATE submissions SET status = $2, updated_at = $3 WHERE id = $1`
		if _, err = tx.ExecContext(ctx, graded, *grade.SubmissionID, models.SubmissionStatusGraded, now); err != nil {
			return fmt.Errorf("mark submission graded: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit grade: %w", err)
	}
	return nil
}

// Update persists score, percentage, letter and feedback.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET score = :score, total_points = :total_points, percentage = :percentage, letter_grade = :letter_grade, feedback = :feedback, graded_by = :graded_by, graded_at = :graded_at, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, grade)
	if err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a grade.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM grades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return expectAffected(res)
}
