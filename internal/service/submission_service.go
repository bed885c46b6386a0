package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/repository"
	"github.com/noah-isme/tclass-api/pkg/database"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/storage"
)

type submissionRepository interface {
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.SubmissionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SubmissionDetail, error)
	FindByAssignmentAndUser(ctx context.Context, assignmentID, userID string) (*models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	Resubmit(ctx context.Context, submission *models.Submission, previousCount int) error
	UpdateStatus(ctx context.Context, id string, status models.SubmissionStatus, feedback *string, returnedAt *time.Time) error
	Delete(ctx context.Context, id string) error
}

type assignmentLookup interface {
	FindByID(ctx context.Context, id string) (*models.AssignmentDetail, error)
}

type attachmentStore interface {
	SaveStream(key string, r io.Reader, limit int64) (int64, error)
	Exists(key string) bool
	Delete(key string) error
}

// Upload is a file received with a submission.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// SubmitRequest is the student's submission payload.
type SubmitRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required"`
	Content      *string `json:"content"`
	Attachment   *Upload `json:"-" validate:"-"`
}

// ReturnSubmissionRequest sends a submission back to the student.
type ReturnSubmissionRequest struct {
	Feedback *string `json:"feedback"`
}

// SubmissionConfig holds attachment limits.
type SubmissionConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// SubmissionService handles student submissions and their review.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentLookup
	courses     courseLookup
	enrollments courseEnrollmentLookup
	files       attachmentStore
	signer      downloadSigner
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         SubmissionConfig
	now         func() time.Time
}

// SubmissionServiceParams groups constructor dependencies.
type SubmissionServiceParams struct {
	Repo        submissionRepository
	Assignments assignmentLookup
	Courses     courseLookup
	Enrollments courseEnrollmentLookup
	Files       attachmentStore
	Signer      downloadSigner
	Cache       *CacheService
	Metrics     *MetricsService
	Validator   *validator.Validate
	Logger      *zap.Logger
	Config      SubmissionConfig
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(params SubmissionServiceParams) *SubmissionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	cfg := params.Config
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	return &SubmissionService{
		repo:        params.Repo,
		assignments: params.Assignments,
		courses:     params.Courses,
		enrollments: params.Enrollments,
		files:       params.Files,
		signer:      params.Signer,
		cache:       params.Cache,
		metrics:     params.Metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Submit records the caller's work for a published assignment.
// A returned submission may be replaced once; any other repeat is a duplicate.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest, claims *models.JWTClaims) (*models.SubmissionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid submission payload")
	}
	if (req.Content == nil || strings.TrimSpace(*req.Content) == "") && req.Attachment == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content or attachment is required")
	}

	assignment, err := s.assignments.FindByID(ctx, req.AssignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Internal(err, "failed to load assignment")
	}
	if assignment.Status != models.AssignmentStatusPublished {
		return nil, appErrors.Clone(appErrors.ErrAssignmentUnavailable, "")
	}
	if _, err := s.enrollments.FindActiveForCourse(ctx, claims.UserID, assignment.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not enrolled in this course")
		}
		return nil, appErrors.Internal(err, "failed to check enrollment")
	}

	existing, err := s.repo.FindByAssignmentAndUser(ctx, assignment.ID, claims.UserID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Internal(err, "failed to check existing submission")
	}
	if existing != nil && !existing.CanResubmit() {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
	}

	now := s.now().UTC()
	status := models.SubmissionStatusSubmitted
	if assignment.IsPastDue(now) {
		status = models.SubmissionStatusLate
	}

	submission := &models.Submission{AssignmentID: assignment.ID, UserID: claims.UserID}
	if existing != nil {
		submission = existing
	}
	previousPath := submission.AttachmentPath
	submission.Content = req.Content
	submission.Status = status
	if req.Attachment != nil {
		if err := s.storeAttachment(submission, req.Attachment); err != nil {
			return nil, err
		}
	}

	if existing != nil {
		err = s.resubmit(ctx, submission, now)
	} else {
		submission.SubmittedAt = now
		err = s.repo.Create(ctx, submission)
		if database.IsUniqueViolation(err, repository.ConstraintSubmissionAssignmentUser) {
			err = appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
		} else if err != nil {
			err = appErrors.Internal(err, "failed to create submission")
		}
	}
	if err != nil {
		if req.Attachment != nil {
			s.removeAttachment(submission.AttachmentPath)
		}
		return nil, err
	}
	if req.Attachment != nil && previousPath != nil {
		s.removeAttachment(previousPath)
	}

	s.metrics.IncSubmissions(status)
	s.cache.InvalidateDashboards(ctx)
	s.logger.Info("submission recorded",
		zap.String("submission_id", submission.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("status", string(status)),
		zap.Int("resubmission_count", submission.ResubmissionCount),
	)
	return s.get(ctx, submission.ID)
}

func (s *SubmissionService) resubmit(ctx context.Context, submission *models.Submission, now time.Time) error {
	previous := submission.ResubmissionCount
	submission.ResubmissionCount = previous + 1
	submission.ResubmittedAt = &now
	if err := s.repo.Resubmit(ctx, submission, previous); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrDuplicateSubmission, "")
		}
		return appErrors.Internal(err, "failed to resubmit")
	}
	return nil
}

// Return sends a submission back to the student with optional feedback.
func (s *SubmissionService) Return(ctx context.Context, id string, req ReturnSubmissionRequest, claims *models.JWTClaims) (*models.SubmissionDetail, error) {
	submission, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireInstructor(ctx, s.courses, submission.CourseID, claims); err != nil {
		return nil, err
	}
	switch submission.Status {
	case models.SubmissionStatusSubmitted, models.SubmissionStatusLate, models.SubmissionStatusGraded:
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only submitted, late or graded work can be returned")
	}
	returnedAt := s.now().UTC()
	if err := s.repo.UpdateStatus(ctx, id, models.SubmissionStatusReturned, req.Feedback, &returnedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to return submission")
	}
	s.cache.InvalidateDashboards(ctx)
	return s.get(ctx, id)
}

// List returns submissions. Students only see their own; faculty may narrow to their courses.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter, claims *models.JWTClaims, mine bool) ([]models.SubmissionDetail, *models.Pagination, error) {
	if claims != nil {
		switch {
		case !claims.IsStaff() || claims.ActiveRole == models.RoleStudent:
			filter.UserID = claims.UserID
		case mine || !claims.HasRole(models.RoleAdmin):
			filter.InstructorID = claims.UserID
		}
	}
	submissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list submissions")
	}
	return submissions, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a submission visible to the caller.
func (s *SubmissionService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.SubmissionDetail, error) {
	submission, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, submission, claims); err != nil {
		return nil, err
	}
	return submission, nil
}

// Delete removes a submission and its attachment.
func (s *SubmissionService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	submission, err := s.Get(ctx, id, claims)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return appErrors.Internal(err, "failed to delete submission")
	}
	s.removeAttachment(submission.AttachmentPath)
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// AttachmentLink signs a short-lived download URL for the submission's attachment.
func (s *SubmissionService) AttachmentLink(ctx context.Context, id string, claims *models.JWTClaims) (*dto.DownloadLinkResponse, error) {
	submission, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if submission.AttachmentPath == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission has no attachment")
	}
	token, expiresAt, err := s.signer.Generate(claims.UserID, *submission.AttachmentPath)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign attachment link")
	}
	return &dto.DownloadLinkResponse{URL: "/files/attachments/" + token, ExpiresAt: expiresAt.Format(time.RFC3339)}, nil
}

func (s *SubmissionService) get(ctx context.Context, id string) (*models.SubmissionDetail, error) {
	submission, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Internal(err, "failed to load submission")
	}
	return submission, nil
}

func (s *SubmissionService) authorize(ctx context.Context, submission *models.SubmissionDetail, claims *models.JWTClaims) error {
	if claims == nil || claims.HasRole(models.RoleAdmin) || submission.UserID == claims.UserID {
		return nil
	}
	if !claims.HasRole(models.RoleFaculty) {
		return appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	}
	return requireInstructor(ctx, s.courses, submission.CourseID, claims)
}

func (s *SubmissionService) storeAttachment(submission *models.Submission, upload *Upload) error {
	if s.files == nil {
		return appErrors.Clone(appErrors.ErrValidation, "attachments are disabled")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrPayloadTooLarge, "attachment exceeds the upload limit")
	}
	if !s.allowedMIME(upload.ContentType) {
		return appErrors.Clone(appErrors.ErrValidation, "attachment type is not allowed")
	}
	name := path.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
	if name == "." || name == "/" {
		name = "attachment"
	}
	key := path.Join(submission.AssignmentID, submission.UserID, uuid.NewString()+"-"+name)
	written, err := s.files.SaveStream(key, upload.Reader, s.cfg.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return appErrors.Clone(appErrors.ErrPayloadTooLarge, "attachment exceeds the upload limit")
		}
		return appErrors.Internal(err, "failed to store attachment")
	}
	submission.AttachmentPath = &key
	submission.AttachmentName = &name
	submission.AttachmentSize = &written
	return nil
}

func (s *SubmissionService) allowedMIME(contentType string) bool {
	if len(s.cfg.AllowedMIMEs) == 0 {
		return true
	}
	mediaType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, allowed := range s.cfg.AllowedMIMEs {
		if strings.EqualFold(allowed, mediaType) {
			return true
		}
	}
	return false
}

func (s *SubmissionService) removeAttachment(key *string) {
	if key == nil || s.files == nil || !s.files.Exists(*key) {
		return
	}
	if err := s.files.Delete(*key); err != nil {
		s.logger.Warn("failed to remove attachment", zap.String("key", *key), zap.Error(err))
	}
}
