package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/repository"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/storage"
)

type mockSubmissionRepo struct {
	items      map[string]*models.Submission
	createErr  error
	lastFilter models.SubmissionFilter
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{items: map[string]*models.Submission{}}
}

func (m *mockSubmissionRepo) List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error) {
	m.lastFilter = filter
	return []models.SubmissionDetail{}, 0, nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	sub, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.SubmissionDetail{Submission: *sub, CourseID: "course-1"}, nil
}

func (m *mockSubmissionRepo) FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error) {
	for _, sub := range m.items {
		if sub.AssignmentID == assignmentID && sub.UserID == userID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionRepo) Create(ctx context.Context, submission *models.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	submission.ID = fmt.Sprintf("sub-%d", len(m.items)+1)
	stored := *submission
	m.items[submission.ID] = &stored
	return nil
}

func (m *mockSubmissionRepo) Resubmit(ctx context.Context, submission *models.Submission, previousCount int) error {
	current, ok := m.items[submission.ID]
	if !ok || current.Status != models.SubmissionStatusReturned || current.ResubmissionCount != previousCount {
		return sql.ErrNoRows
	}
	stored := *submission
	m.items[submission.ID] = &stored
	return nil
}

func (m *mockSubmissionRepo) UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus, feedback *string, returnedAt *time.Time) error {
	sub, ok := m.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	sub.Status = status
	if feedback != nil {
		sub.Feedback = feedback
	}
	if returnedAt != nil {
		sub.ReturnedAt = returnedAt
	}
	return nil
}

func (m *mockSubmissionRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

type stubAssignments map[string]*models.AssignmentDetail

func (s stubAssignments) FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error) {
	if a, ok := s[id]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type stubCourses map[string]*models.CourseDetail

func (s stubCourses) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := s[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type stubCourseEnrollments map[string]bool

func (s stubCourseEnrollments) FindActiveForCourse(ctx context.Context, userID, courseID string) (*models.Enrollment, error) {
	if s[userID+"/"+courseID] {
		return &models.Enrollment{UserID: userID, Status: models.EnrollmentStatusActive}, nil
	}
	return nil, sql.ErrNoRows
}

type memoryFiles struct {
	blobs map[string][]byte
}

func (m *memoryFiles) SaveStream(key string, r io.Reader, limit int64) (int64, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return 0, err
	}
	if int64(len(data)) > limit {
		return 0, storage.ErrTooLarge
	}
	m.blobs[key] = data
	return int64(len(data)), nil
}

func (m *memoryFiles) Exists(key string) bool {
	_, ok := m.blobs[key]
	return ok
}

func (m *memoryFiles) Delete(key string) error {
	delete(m.blobs, key)
	return nil
}

var submissionNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type submissionFixture struct {
	svc   *SubmissionService
	repo  *mockSubmissionRepo
	files *memoryFiles
}

func newSubmissionFixture() submissionFixture {
	instructor := "fac-1"
	repo := newMockSubmissionRepo()
	files := &memoryFiles{blobs: map[string][]byte{}}
	svc := NewSubmissionService(SubmissionServiceParams{
		Repo: repo,
		Assignments: stubAssignments{
			"open":  {Assignment: models.Assignment{ID: "open", CourseID: "course-1", Status: models.AssignmentStatusPublished, DueDate: submissionNow.Add(24 * time.Hour)}},
			"past":  {Assignment: models.Assignment{ID: "past", CourseID: "course-1", Status: models.AssignmentStatusPublished, DueDate: submissionNow.Add(-time.Hour)}},
			"draft": {Assignment: models.Assignment{ID: "draft", CourseID: "course-1", Status: models.AssignmentStatusDraft, DueDate: submissionNow.Add(24 * time.Hour)}},
		},
		Courses:     stubCourses{"course-1": {Course: models.Course{ID: "course-1", InstructorID: &instructor}}},
		Enrollments: stubCourseEnrollments{"stu-1/course-1": true},
		Files:       files,
		Config:      SubmissionConfig{MaxFileSize: 16, AllowedMIMEs: []string{"application/pdf", "text/plain"}},
	})
	svc.now = func() time.Time { return submissionNow }
	return submissionFixture{svc: svc, repo: repo, files: files}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Roles: []models.UserRole{models.RoleStudent}, ActiveRole: models.RoleStudent}
}

func facultyClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Roles: []models.UserRole{models.RoleFaculty}, ActiveRole: models.RoleFaculty}
}

func textContent(s string) *string { return &s }

func TestSubmissionServiceSubmitStatusFollowsDueDate(t *testing.T) {
	f := newSubmissionFixture()

	onTime, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "open", Content: textContent("answer")}, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusSubmitted, onTime.Status)
	assert.Equal(t, submissionNow, onTime.SubmittedAt)

	late, err := f.svc.Submit(context.Background(), SubmitRequest{AssignmentID: "past", Content: textContent("answer")}, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusLate, late.Status)
}

func TestSubmissionServiceSubmitGuards(t *testing.T) {
	f := newSubmissionFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{AssignmentID: "draft", Content: textContent("x")}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrAssignmentUnavailable)

	_, err = f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open", Content: textContent("x")}, studentClaims("stu-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open"}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open", Content: textContent("x")}, studentClaims("stu-1"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open", Content: textContent("again")}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
}

func TestSubmissionServiceSubmitMapsUniqueViolation(t *testing.T) {
	f := newSubmissionFixture()
	f.repo.createErr = uniqueViolation(repository.ConstraintSubmissionAssignmentUser)

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		AssignmentID: "open",
		Attachment:   &Upload{Filename: "essay.pdf", ContentType: "application/pdf", Size: 4, Reader: strings.NewReader("%PDF")},
	}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
	assert.Empty(t, f.files.blobs)
}

func TestSubmissionServiceAttachmentLimits(t *testing.T) {
	f := newSubmissionFixture()
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, SubmitRequest{
		AssignmentID: "open",
		Attachment:   &Upload{Filename: "big.pdf", ContentType: "application/pdf", Size: 64, Reader: bytes.NewReader(make([]byte, 64))},
	}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrPayloadTooLarge)

	_, err = f.svc.Submit(ctx, SubmitRequest{
		AssignmentID: "open",
		Attachment:   &Upload{Filename: "run.exe", ContentType: "application/x-msdownload", Size: 4, Reader: strings.NewReader("MZ..")},
	}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	sub, err := f.svc.Submit(ctx, SubmitRequest{
		AssignmentID: "open",
		Attachment:   &Upload{Filename: "../notes.txt", ContentType: "text/plain; charset=utf-8", Size: 5, Reader: strings.NewReader("hello")},
	}, studentClaims("stu-1"))
	require.NoError(t, err)
	require.NotNil(t, sub.AttachmentPath)
	assert.Equal(t, "notes.txt", *sub.AttachmentName)
	assert.Equal(t, int64(5), *sub.AttachmentSize)
	assert.True(t, strings.HasPrefix(*sub.AttachmentPath, "open/stu-1/"))
	assert.Equal(t, []byte("hello"), f.files.blobs[*sub.AttachmentPath])
}

func TestSubmissionServiceReturnedSubmissionAllowsOneResubmission(t *testing.T) {
	f := newSubmissionFixture()
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open", Content: textContent("draft 1")}, studentClaims("stu-1"))
	require.NoError(t, err)

	returned, err := f.svc.Return(ctx, first.ID, ReturnSubmissionRequest{Feedback: textContent("expand section 2")}, facultyClaims("fac-1"))
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusReturned, returned.Status)
	require.NotNil(t, returned.ReturnedAt)

	second, err := f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open", Content: textContent("draft 2")}, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, second.ResubmissionCount)
	assert.Equal(t, models.SubmissionStatusSubmitted, second.Status)
	assert.Equal(t, "draft 2", *second.Content)
	require.NotNil(t, second.ResubmittedAt)

	_, err = f.svc.Return(ctx, first.ID, ReturnSubmissionRequest{}, facultyClaims("fac-1"))
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, SubmitRequest{AssignmentID: "open", Content: textContent("draft 3")}, studentClaims("stu-1"))
	assert.ErrorIs(t, err, appErrors.ErrDuplicateSubmission)
}

func TestSubmissionServiceReturnRules(t *testing.T) {
	f := newSubmissionFixture()
	ctx := context.Background()
	f.repo.items["sub-r"] = &models.Submission{ID: "sub-r", AssignmentID: "open", UserID: "stu-1", Status: models.SubmissionStatusReturned}
	f.repo.items["sub-s"] = &models.Submission{ID: "sub-s", AssignmentID: "open", UserID: "stu-1", Status: models.SubmissionStatusSubmitted}

	_, err := f.svc.Return(ctx, "sub-r", ReturnSubmissionRequest{}, facultyClaims("fac-1"))
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = f.svc.Return(ctx, "sub-s", ReturnSubmissionRequest{}, facultyClaims("fac-2"))
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Return(ctx, "missing", ReturnSubmissionRequest{}, facultyClaims("fac-1"))
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestSubmissionServiceListScoping(t *testing.T) {
	f := newSubmissionFixture()
	ctx := context.Background()

	_, _, err := f.svc.List(ctx, models.SubmissionFilter{UserID: "someone"}, studentClaims("stu-1"), false)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", f.repo.lastFilter.UserID)

	_, _, err = f.svc.List(ctx, models.SubmissionFilter{}, facultyClaims("fac-1"), true)
	require.NoError(t, err)
	assert.Equal(t, "fac-1", f.repo.lastFilter.InstructorID)

	admin := &models.JWTClaims{UserID: "adm", Roles: []models.UserRole{models.RoleAdmin}, ActiveRole: models.RoleAdmin}
	_, _, err = f.svc.List(ctx, models.SubmissionFilter{}, admin, false)
	require.NoError(t, err)
	assert.Empty(t, f.repo.lastFilter.InstructorID)
}
