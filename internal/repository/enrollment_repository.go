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

// Unique constraints on the enrollments table.
const (
	ConstraintEnrollmentUserProgram = "enrollments_user_id_program_id_key"
	ConstraintEnrollmentCOR         = "enrollments_cor_number_key"
)

const enrollmentDetailSelect = `SELECT e.id, e.user_id, e.program_id, e.course_id, e.status, e.cor_number, e.documents, e.enrolled_at, e.completed_at, e.created_at, e.updated_at,
u.name AS user_name, u.email AS user_email, p.title AS program_title, c.title AS course_title
FROM enrollments e
JOIN users u ON u.id = e.user_id
JOIN programs p ON p.id = e.program_id
LEFT JOIN courses c ON c.id = e.course_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var fb filterBuilder
	if filter.UserID != "" {
		fb.add("e.user_id = ?", filter.UserID)
	}
	if filter.ProgramID != "" {
		fb.add("e.program_id = ?", filter.ProgramID)
	}
	if filter.Status != "" {
		fb.add("e.status = ?", string(filter.Status))
	}
	if filter.Search != "" {
		fb.add("(LOWER(u.name) LIKE ? OR LOWER(u.email) LIKE ? OR LOWER(e.cor_number) LIKE ?)", likePattern(filter.Search))
	}

	order := orderClause(map[string]string{
		"enrolled_at":   "e.enrolled_at",
		"created_at":    "e.created_at",
		"user_name":     "u.name",
		"program_title": "p.title",
		"status":        "e.status",
	}, filter.SortBy, filter.SortOrder, "created_at")
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY %s LIMIT %d OFFSET %d", enrollmentDetailSelect, fb.where(), order, limit, offset)
	enrollments := make([]models.EnrollmentDetail, 0)
	if err := r.db.SelectContext(ctx, &enrollments, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := "SELECT COUNT(*) FROM enrollments e JOIN users u ON u.id = e.user_id" + fb.where()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment with user and program context.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+" WHERE e.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &detail, nil
}

// FindByUserAndProgram returns the single enrollment binding a user to a program.
func (r *EnrollmentRepository) FindByUserAndProgram(ctx context.Context, userID, programID string) (*models.Enrollment, error) {
	const query = `SELECT id, user_id, program_id, course_id, status, cor_number, documents, enrolled_at, completed_at, created_at, updated_at FROM enrollments WHERE user_id = $1 AND program_id = $2 LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, programID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by user and program: %w", err)
	}
	return &enrollment, nil
}

// ExistsForUserProgram reports whether the (user, program) pair is already enrolled.
func (r *EnrollmentRepository) ExistsForUserProgram(ctx context.Context, userID, programID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND program_id = $2)`
	if err := r.db.GetContext(ctx, &exists, query, userID, programID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// Enroll inserts the enrollment in one transaction, creating the applicant account first when applicant is non-nil.
func (r *EnrollmentRepository) Enroll(ctx context.Context, applicant *models.User, enrollment *models.Enrollment) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if applicant != nil {
		prepareUser(applicant)
		if _, err = tx.NamedExecContext(ctx, insertUser, applicant); err != nil {
			return fmt.Errorf("create applicant: %w", err)
		}
		enrollment.UserID = applicant.ID
	}

	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if len(enrollment.Documents) == 0 {
		enrollment.Documents = []byte("{}")
	}
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now

	const query = `INSERT INTO enrollments (id, user_id, program_id, course_id, status, cor_number, documents, enrolled_at, completed_at, created_at, updated_at) VALUES (:id, :user_id, :program_id, :course_id, :status, :cor_number, :documents, :enrolled_at, :completed_at, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Approve marks the enrollment active and activates its user when still pending.
func (r *EnrollmentRepository) Approve(ctx context.Context, id string) (userActivated bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin approve transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var userID string
	const approve = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1 RETURNING user_id`
	if err = tx.GetContext(ctx, &userID, approve, id, models.EnrollmentStatusActive, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		return false, fmt.Errorf("approve enrollment: %w", err)
	}

	const activate = `UPDATE users SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`
	res, err := tx.ExecContext(ctx, activate, userID, models.UserStatusActive, now, models.UserStatusPending)
	if err != nil {
		return false, fmt.Errorf("activate applicant: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate applicant: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit approve: %w", err)
	}
	return affected > 0, nil
}

// Update persists status, course, documents and completion timestamp.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE enrollments SET status = :status, course_id = :course_id, documents = :documents, completed_at = :completed_at, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, enrollment)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return expectAffected(res)
}

// Delete removes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return expectAffected(res)
}

// FindActiveForCourse returns the caller's active enrollment whose course or program contains the course.
func (r *EnrollmentRepository) FindActiveForCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT e.id, e.user_id, e.program_id, e.course_id, e.status, e.cor_number, e.documents, e.enrolled_at, e.completed_at, e.created_at, e.updated_at
FROM enrollments e
JOIN courses c ON c.id = $2
WHERE e.user_id = $1 AND e.status IN ('active', 'completed') AND (e.course_id = c.id OR (e.course_id IS NULL AND e.program_id = c.program_id))
ORDER BY (e.course_id = c.id) DESC NULLS LAST
LIMIT 1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course enrollment: %w", err)
	}
	return &enrollment, nil
}
