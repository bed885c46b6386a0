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

// ConstraintSubmissionAssignmentUser guards one submission per (assignment, user).
const ConstraintSubmissionAssignmentUser = "submissions_assignment_id_user_id_key"

const submissionColumns = "id, assignment_id, user_id, content, attachment_path, attachment_name, attachment_size, status, feedback, submitted_at, returned_at, resubmitted_at, resubmission_count, created_at, updated_at"

const submissionDetailSelect = `SELECT s.id, s.assignment_id, s.user_id, s.content, s.attachment_path, s.attachment_name, s.attachment_size, s.status, s.feedback, s.submitted_at, s.returned_at, s.resubmitted_at, s.resubmission_count, s.created_at, s.updated_at,
a.title AS assignment_title, a.course_id, a.due_date, u.name AS user_name
FROM submissions s
JOIN assignments a ON a.id = s.assignment_id
JOIN courses c ON c.id = a.course_id
JOIN users u ON u.id = s.user_id`

// SubmissionRepository handles persistence for submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// List returns submissions matching the filter, newest first.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	var fb filterBuilder
	if filter.AssignmentID != "" {
		fb.add("s.assignment_id = ?", filter.AssignmentID)
	}
	if filter.UserID != "" {
		fb.add("s.user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		fb.add("s.status = ?", string(filter.Status))
	}
	if filter.InstructorID != "" {
		fb.add("c.instructor_id = ?", filter.InstructorID)
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("%s%s ORDER BY s.submitted_at DESC LIMIT %d OFFSET %d", submissionDetailSelect, fb.where(), limit, offset)
	submissions := make([]models.SubmissionDetail, 0)
	if err := r.db.SelectContext(ctx, &submissions, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	countQuery := "SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id JOIN courses c ON c.id = a.course_id" + fb.where()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}
	return submissions, total, nil
}

// FindByID returns a submission with assignment context.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	var submission models.SubmissionDetail
	if err := r.db.GetContext(ctx, &submission, submissionDetailSelect+" WHERE s.id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// FindByAssignmentAndUser returns the student's submission for an assignment.
func (r *SubmissionRepository) FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error) {
	query := "SELECT " + submissionColumns + " FROM submissions WHERE assignment_id = $1 AND user_id = $2 LIMIT 1"
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by assignment and user: %w", err)
	}
	return &submission, nil
}

// Create inserts a submission.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = now
	}
	submission.CreatedAt = now
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, assignment_id, user_id, content, attachment_path, attachment_name, attachment_size, status, feedback, submitted_at, resubmission_count, created_at, updated_at) VALUES (:id, :assignment_id, :user_id, :content, :attachment_path, :attachment_name, :attachment_size, :status, :feedback, :submitted_at, :resubmission_count, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// Resubmit replaces content of a returned submission whose resubmission count still equals previousCount.
// A lost race surfaces as sql.ErrNoRows.
func (r *SubmissionRepository) Resubmit(ctx context.Context, submission *models.Submission, previousCount int) error {
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions SET content = $2, attachment_path = $3, attachment_name = $4, attachment_size = $5, status = $6, resubmitted_at = $7, resubmission_count = $8, updated_at = $9
WHERE id = $1 AND status = 'returned' AND resubmission_count = $10`
	res, err := r.db.ExecContext(ctx, query,
		submission.ID,
		submission.Content,
		submission.AttachmentPath,
		submission.AttachmentName,
		submission.AttachmentSize,
		submission.Status,
		submission.ResubmittedAt,
		submission.ResubmissionCount,
		submission.UpdatedAt,
		previousCount,
	)
	if err != nil {
		return fmt.Errorf("resubmit: %w", err)
	}
	return expectAffected(res)
}

// UpdateStatus moves a submission to status, optionally attaching feedback and the return timestamp.
func (r *SubmissionRepository) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus, feedback *string, returnedAt *time.Time) error {
	const query = `UPDATE submissions SET status = $2, feedback = COALESCE($3, feedback), returned_at = COALESCE($4, returned_at), updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, feedback, returnedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update submission status: %w", err)
	}
	return expectAffected(res)
}

// Delete removes a submission.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return expectAffected(res)
}
