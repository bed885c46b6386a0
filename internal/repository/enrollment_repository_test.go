package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/pkg/database"
)

func TestEnrollmentRepositoryEnrollCreatesApplicant(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO enrollments").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applicant := &models.User{Name: "Ana Cruz", Email: "ana@tclass.ph", Roles: []string{"student"}, Status: models.UserStatusPending}
	enrollment := &models.Enrollment{ProgramID: "prog-1", Status: models.EnrollmentStatusPending, CORNumber: "COR-2026-ABC123"}
	require.NoError(t, repo.Enroll(context.Background(), applicant, enrollment))

	assert.NotEmpty(t, applicant.ID)
	assert.Equal(t, applicant.ID, enrollment.UserID)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, "{}", string(enrollment.Documents))
	assert.False(t, enrollment.EnrolledAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryEnrollRollsBackOnConflict(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO enrollments").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintEnrollmentCOR})
	mock.ExpectRollback()

	enrollment := &models.Enrollment{UserID: "u-1", ProgramID: "prog-1", Status: models.EnrollmentStatusPending, CORNumber: "COR-2026-ABC123"}
	err := repo.Enroll(context.Background(), nil, enrollment)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, ConstraintEnrollmentCOR))
	assert.False(t, database.IsUniqueViolation(err, ConstraintEnrollmentUserProgram))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveActivatesPendingUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1 RETURNING user_id")).
		WithArgs("enr-1", models.EnrollmentStatusActive, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4")).
		WithArgs("u-1", models.UserStatusActive, sqlmock.AnyArg(), models.UserStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	activated, err := repo.Approve(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.True(t, activated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveIsIdempotentForActiveUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE enrollments SET status").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u-1"))
	mock.ExpectExec("UPDATE users SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	activated, err := repo.Approve(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.False(t, activated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryApproveMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE enrollments SET status").WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryListSearchesCOR(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "program_id", "course_id", "status", "cor_number", "documents", "enrolled_at", "completed_at", "created_at", "updated_at", "user_name", "user_email", "program_title", "course_title"}).
		AddRow("enr-1", "u-1", "prog-1", nil, "pending", "COR-2026-ABC123", `{"id":"scan"}`, now, nil, now, now, "Ana Cruz", "ana@tclass.ph", "Welding NC II", nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE e.status = $1 AND (LOWER(u.name) LIKE $2 OR LOWER(u.email) LIKE $2 OR LOWER(e.cor_number) LIKE $2) ORDER BY e.created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("pending", "%cor-2026%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM enrollments e JOIN users u ON u.id = e.user_id WHERE e.status = $1")).
		WithArgs("pending", "%cor-2026%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	enrollments, total, err := repo.List(context.Background(), models.EnrollmentFilter{Status: models.EnrollmentStatusPending, Search: "COR-2026"})
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Welding NC II", enrollments[0].ProgramTitle)
	assert.JSONEq(t, `{"id":"scan"}`, string(enrollments[0].Documents))
	assert.NoError(t, mock.ExpectationsWereMet())
}
