package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/models"
)

func TestSubmissionRepositoryResubmitGuardsCount(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now().UTC()
	content := "second draft"
	sub := &models.Submission{
		ID:                "sub-1",
		Content:           &content,
		Status:            models.SubmissionStatusSubmitted,
		ResubmittedAt:     &now,
		ResubmissionCount: 1,
	}

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND status = 'returned' AND resubmission_count = $10")).
		WithArgs("sub-1", content, nil, nil, nil, models.SubmissionStatusSubmitted, now, 1, sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Resubmit(context.Background(), sub, 0))

	mock.ExpectExec("UPDATE submissions SET content").WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Resubmit(context.Background(), sub, 0)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListForInstructor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "assignment_id", "user_id", "content", "attachment_path", "attachment_name", "attachment_size", "status", "feedback", "submitted_at", "returned_at", "resubmitted_at", "resubmission_count", "created_at", "updated_at", "assignment_title", "course_id", "due_date", "user_name"}).
		AddRow("sub-1", "asg-1", "u-1", "essay", nil, nil, nil, "late", nil, now, nil, nil, 0, now, now, "Essay 1", "course-1", now.Add(-time.Hour), "Ana Cruz")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.status = $1 AND c.instructor_id = $2 ORDER BY s.submitted_at DESC LIMIT 5 OFFSET 0")).
		WithArgs("late", "fac-1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id JOIN courses c ON c.id = a.course_id WHERE")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	subs, total, err := repo.List(context.Background(), models.SubmissionFilter{Status: models.SubmissionStatusLate, InstructorID: "fac-1", PageSize: 5})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, models.SubmissionStatusLate, subs[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	feedback := "cite sources"
	returnedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("feedback = COALESCE($3, feedback), returned_at = COALESCE($4, returned_at)")).
		WithArgs("sub-1", models.SubmissionStatusReturned, feedback, returnedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "sub-1", models.SubmissionStatusReturned, &feedback, &returnedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}
