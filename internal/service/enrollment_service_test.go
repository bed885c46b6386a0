package service

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/repository"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/jobs"
)

type mockEnrollmentRepo struct {
	enrollments map[string]*models.Enrollment
	enrollErrs  []error
	attempts    []string
	applicants  []*models.User
	existing    map[string]bool
	lastFilter  models.EnrollmentFilter
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{enrollments: map[string]*models.Enrollment{}, existing: map[string]bool{}}
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	m.lastFilter = filter
	var out []models.EnrollmentDetail
	for _, e := range m.enrollments {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.EnrollmentDetail{Enrollment: *e}, nil
}

func (m *mockEnrollmentRepo) ExistsForUserProgram(ctx context.Context, userID, programID string) (bool, error) {
	return m.existing[userID+"/"+programID], nil
}

func (m *mockEnrollmentRepo) Enroll(ctx context.Context, applicant *models.User, enrollment *models.Enrollment) error {
	m.attempts = append(m.attempts, enrollment.CORNumber)
	if len(m.enrollErrs) > 0 {
		err := m.enrollErrs[0]
		m.enrollErrs = m.enrollErrs[1:]
		if err != nil {
			return err
		}
	}
	if applicant != nil {
		applicant.ID = fmt.Sprintf("applicant-%d", len(m.applicants)+1)
		m.applicants = append(m.applicants, applicant)
		enrollment.UserID = applicant.ID
	}
	enrollment.ID = fmt.Sprintf("enr-%d", len(m.enrollments)+1)
	stored := *enrollment
	m.enrollments[enrollment.ID] = &stored
	return nil
}

func (m *mockEnrollmentRepo) Approve(ctx context.Context, id string) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok {
		return false, sql.ErrNoRows
	}
	e.Status = models.EnrollmentStatusActive
	return true, nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	if _, ok := m.enrollments[enrollment.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *enrollment
	m.enrollments[enrollment.ID] = &stored
	return nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.enrollments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.enrollments, id)
	return nil
}

type stubPrograms map[string]*models.Program

func (s stubPrograms) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := s[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

type stubUsersByEmail map[string]*models.User

func (s stubUsersByEmail) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := s[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type recordingQueue struct {
	jobs []jobs.Job
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func uniqueViolation(constraint string) error {
	return fmt.Errorf("create enrollment: %w", &pq.Error{Code: "23505", Constraint: constraint})
}

func newTestEnrollmentService(repo *mockEnrollmentRepo, users stubUsersByEmail, queue *recordingQueue) *EnrollmentService {
	programs := stubPrograms{
		"prog-active":   {ID: "prog-active", Title: "Web Development NC III", Status: models.ProgramStatusActive},
		"prog-inactive": {ID: "prog-inactive", Title: "Legacy", Status: models.ProgramStatusInactive},
	}
	var enqueuer jobEnqueuer
	if queue != nil {
		enqueuer = queue
	}
	svc := NewEnrollmentService(repo, users, programs, enqueuer, nil, nil, nil, nil, nil, nil, EnrollmentConfig{DefaultPassword: "welcome123", CORMaxAttempts: 3})
	svc.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return svc
}

func TestGenerateCORFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^COR-2025-[A-Z0-9]{6}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		cor := GenerateCOR(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.Regexp(t, pattern, cor)
		seen[cor] = true
	}
	assert.Greater(t, len(seen), 40)
}

func TestEnrollmentServiceEnrollCreatesApplicant(t *testing.T) {
	repo := newMockEnrollmentRepo()
	queue := &recordingQueue{}
	svc := newTestEnrollmentService(repo, stubUsersByEmail{}, queue)

	resp, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: " Maria Santos ", Email: "Maria@Example.com"})
	require.NoError(t, err)
	assert.Regexp(t, `^COR-2025-[A-Z0-9]{6}$`, resp.CORNumber)
	assert.Equal(t, models.EnrollmentStatusPending, resp.Enrollment.Status)
	assert.Equal(t, "{}", string(resp.Enrollment.Documents))

	require.Len(t, repo.applicants, 1)
	applicant := repo.applicants[0]
	assert.Equal(t, "maria@example.com", applicant.Email)
	assert.Equal(t, "Maria Santos", applicant.Name)
	assert.Equal(t, models.UserStatusPending, applicant.Status)
	assert.True(t, applicant.HasRole(models.RoleStudent))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(applicant.PasswordHash), []byte("welcome123")))
	assert.Equal(t, applicant.ID, resp.Enrollment.UserID)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, CertificateJobType, queue.jobs[0].Type)
	assert.Equal(t, resp.Enrollment.ID, queue.jobs[0].Payload)
}

func TestEnrollmentServiceEnrollRejectsUnavailablePrograms(t *testing.T) {
	svc := newTestEnrollmentService(newMockEnrollmentRepo(), stubUsersByEmail{}, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-inactive", Name: "A", Email: "a@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrProgramUnavailable)

	_, err = svc.Enroll(context.Background(), EnrollRequest{ProgramID: "missing", Name: "A", Email: "a@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "A", Email: "not-an-email"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "A", Email: "a@example.com", Documents: []byte(`{broken`)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEnrollmentServiceEnrollDuplicate(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.existing["user-1/prog-active"] = true
	users := stubUsersByEmail{"juan@example.com": {ID: "user-1", Email: "juan@example.com", Roles: []string{"student"}}}
	svc := newTestEnrollmentService(repo, users, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "Juan", Email: "JUAN@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	assert.Empty(t, repo.attempts)

	repo.existing = map[string]bool{}
	repo.enrollErrs = []error{uniqueViolation(repository.ConstraintEnrollmentUserProgram)}
	_, err = svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "Juan", Email: "juan@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
}

func TestEnrollmentServiceEnrollConcurrentApplicantIsDuplicate(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.enrollErrs = []error{uniqueViolation(repository.ConstraintUserEmail)}
	svc := newTestEnrollmentService(repo, stubUsersByEmail{}, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "Lea", Email: "lea@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrDuplicateEnrollment)
	assert.Len(t, repo.attempts, 1)
	assert.Empty(t, repo.applicants)
}

func TestEnrollmentServiceEnrollRetriesCORCollisions(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.enrollErrs = []error{uniqueViolation(repository.ConstraintEnrollmentCOR), nil}
	svc := newTestEnrollmentService(repo, stubUsersByEmail{}, nil)
	cors := []string{"COR-2025-AAAAAA", "COR-2025-BBBBBB"}
	svc.newCOR = func(time.Time) string {
		next := cors[0]
		cors = cors[1:]
		return next
	}

	resp, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "COR-2025-BBBBBB", resp.CORNumber)
	assert.Equal(t, []string{"COR-2025-AAAAAA", "COR-2025-BBBBBB"}, repo.attempts)
}

func TestEnrollmentServiceEnrollGivesUpAfterMaxAttempts(t *testing.T) {
	repo := newMockEnrollmentRepo()
	collision := uniqueViolation(repository.ConstraintEnrollmentCOR)
	repo.enrollErrs = []error{collision, collision, collision}
	svc := newTestEnrollmentService(repo, stubUsersByEmail{}, nil)

	_, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "Ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Len(t, repo.attempts, 3)
}

func TestEnrollmentServiceLifecycle(t *testing.T) {
	repo := newMockEnrollmentRepo()
	svc := newTestEnrollmentService(repo, stubUsersByEmail{}, nil)

	resp, err := svc.Enroll(context.Background(), EnrollRequest{ProgramID: "prog-active", Name: "Ana", Email: "ana@example.com"})
	require.NoError(t, err)
	id := resp.Enrollment.ID

	approved, err := svc.Approve(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, approved.Status)

	completed := models.EnrollmentStatusCompleted
	done, err := svc.Update(context.Background(), id, UpdateEnrollmentRequest{Status: &completed})
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, svc.now().UTC(), *done.CompletedAt)

	rejected, err := svc.Reject(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, rejected.Status)

	_, err = svc.Approve(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	bogus := models.EnrollmentStatus("graduated")
	_, err = svc.Update(context.Background(), id, UpdateEnrollmentRequest{Status: &bogus})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestEnrollmentServiceScopesNonAdmins(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.enrollments["enr-a"] = &models.Enrollment{ID: "enr-a", UserID: "stu-1"}
	repo.enrollments["enr-b"] = &models.Enrollment{ID: "enr-b", UserID: "stu-2"}
	svc := newTestEnrollmentService(repo, stubUsersByEmail{}, nil)

	student := &models.JWTClaims{UserID: "stu-1", Roles: []models.UserRole{models.RoleStudent}}
	items, _, err := svc.List(context.Background(), models.EnrollmentFilter{UserID: "stu-2"}, student, false)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", repo.lastFilter.UserID)
	require.Len(t, items, 1)

	_, err = svc.Get(context.Background(), "enr-b", student)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	admin := &models.JWTClaims{UserID: "adm", Roles: []models.UserRole{models.RoleAdmin}}
	_, pagination, err := svc.List(context.Background(), models.EnrollmentFilter{}, admin, false)
	require.NoError(t, err)
	assert.Equal(t, 2, pagination.Total)
}
