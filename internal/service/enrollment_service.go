package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/tclass-api/internal/dto"
	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/internal/repository"
	"github.com/noah-isme/tclass-api/pkg/database"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
	"github.com/noah-isme/tclass-api/pkg/jobs"
)

const corAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	ExistsForUserProgram(ctx context.Context, userID, programID string) (bool, error)
	Enroll(ctx context.Context, applicant *models.User, enrollment *models.Enrollment) error
	Approve(ctx context.Context, id string) (bool, error)
	Update(ctx context.Context, enrollment *models.Enrollment) error
	Delete(ctx context.Context, id string) error
}

type applicantLookup interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

type programLookup interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type downloadSigner interface {
	Generate(ownerID, key string) (string, time.Time, error)
}

type blobChecker interface {
	Exists(key string) bool
}

// EnrollRequest is the public enrollment form.
type EnrollRequest struct {
	ProgramID      string          `json:"program_id" validate:"required"`
	CourseID       *string         `json:"course_id"`
	Name           string          `json:"name" validate:"required,max=255"`
	Email          string          `json:"email" validate:"required,email"`
	Contact        *string         `json:"contact" validate:"omitempty,max=50"`
	BirthDate      *time.Time      `json:"birth_date"`
	EducationLevel *string         `json:"education_level" validate:"omitempty,max=100"`
	Documents      json.RawMessage `json:"documents"`
}

// UpdateEnrollmentRequest partially updates an enrollment.
type UpdateEnrollmentRequest struct {
	Status    *models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=pending active completed dropped"`
	CourseID  *string                  `json:"course_id"`
	Documents json.RawMessage          `json:"documents"`
}

// EnrollmentConfig tunes the enrollment flow.
type EnrollmentConfig struct {
	DefaultPassword string
	CORMaxAttempts  int
}

// EnrollmentService manages the enrollment lifecycle.
type EnrollmentService struct {
	repo         enrollmentRepository
	users        applicantLookup
	programs     programLookup
	certificates jobEnqueuer
	cache        *CacheService
	metrics      *MetricsService
	signer       downloadSigner
	blobs        blobChecker
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          EnrollmentConfig
	now          func() time.Time
	newCOR       func(time.Time) string
}

// NewEnrollmentService constructs an EnrollmentService. certificates, cache, metrics, signer and blobs may be nil.
func NewEnrollmentService(repo enrollmentRepository, users applicantLookup, programs programLookup, certificates jobEnqueuer, cache *CacheService, metrics *MetricsService, signer downloadSigner, blobs blobChecker, validate *validator.Validate, logger *zap.Logger, cfg EnrollmentConfig) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.CORMaxAttempts <= 0 {
		cfg.CORMaxAttempts = 5
	}
	if cfg.DefaultPassword == "" {
		cfg.DefaultPassword = "password123"
	}
	return &EnrollmentService{
		repo:         repo,
		users:        users,
		programs:     programs,
		certificates: certificates,
		cache:        cache,
		metrics:      metrics,
		signer:       signer,
		blobs:        blobs,
		validator:    validate,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
		newCOR:       GenerateCOR,
	}
}

// GenerateCOR builds a COR-{year}-{6 chars} number from random UUID bytes.
func GenerateCOR(now time.Time) string {
	id := uuid.New()
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = corAlphabet[int(id[i])%len(corAlphabet)]
	}
	return fmt.Sprintf("COR-%d-%s", now.Year(), suffix)
}

// Enroll registers an applicant into an active program.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*dto.EnrollResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid enrollment payload")
	}
	documents, err := documentsJSON(req.Documents)
	if err != nil {
		return nil, err
	}

	program, err := s.programs.FindByID(ctx, req.ProgramID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "program not found")
		}
		return nil, appErrors.Internal(err, "failed to load program")
	}
	if program.Status != models.ProgramStatusActive {
		return nil, appErrors.Clone(appErrors.ErrProgramUnavailable, "")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var applicant *models.User
	var userID string
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		userID = existing.ID
		enrolled, err := s.repo.ExistsForUserProgram(ctx, userID, program.ID)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to check enrollment")
		}
		if enrolled {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
	case errors.Is(err, sql.ErrNoRows):
		applicant, err = s.newApplicant(req, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, appErrors.Internal(err, "failed to resolve applicant")
	}

	now := s.now().UTC()
	var enrollment *models.Enrollment
	for attempt := 1; ; attempt++ {
		enrollment = &models.Enrollment{
			UserID:     userID,
			ProgramID:  program.ID,
			CourseID:   emptyToNil(req.CourseID),
			Status:     models.EnrollmentStatusPending,
			CORNumber:  s.newCOR(now),
			Documents:  documents,
			EnrolledAt: now,
		}
		err = s.repo.Enroll(ctx, applicant, enrollment)
		if err == nil {
			break
		}
		if database.IsUniqueViolation(err, repository.ConstraintEnrollmentUserProgram) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		if applicant != nil && database.IsUniqueViolation(err, repository.ConstraintUserEmail) {
			s.logger.Warn("applicant created concurrently", zap.String("email", email))
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "")
		}
		if !database.IsUniqueViolation(err, repository.ConstraintEnrollmentCOR) {
			return nil, appErrors.Internal(err, "failed to create enrollment")
		}
		if attempt >= s.cfg.CORMaxAttempts {
			return nil, appErrors.Internal(err, "could not allocate a unique COR number")
		}
		s.logger.Warn("COR number collision, retrying", zap.String("cor_number", enrollment.CORNumber), zap.Int("attempt", attempt))
	}

	s.metrics.IncEnrollments()
	s.cache.InvalidateDashboards(ctx)
	s.queueCertificate(enrollment)

	return &dto.EnrollResponse{
		Enrollment: enrollment,
		CORNumber:  enrollment.CORNumber,
		Message:    "Enrollment submitted. Your application is pending review.",
	}, nil
}

// Approve activates an enrollment and its pending user. Re-approving is a no-op for the user.
func (s *EnrollmentService) Approve(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	activated, err := s.repo.Approve(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to approve enrollment")
	}
	if activated {
		s.logger.Info("applicant account activated", zap.String("enrollment_id", id))
	}
	s.cache.InvalidateDashboards(ctx)
	return s.Get(ctx, id, nil)
}

// Reject drops an enrollment.
func (s *EnrollmentService) Reject(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	status := models.EnrollmentStatusDropped
	return s.Update(ctx, id, UpdateEnrollmentRequest{Status: &status})
}

// Update applies a partial update. Moving to completed stamps completed_at once.
func (s *EnrollmentService) Update(ctx context.Context, id string, req UpdateEnrollmentRequest) (*models.EnrollmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid enrollment update")
	}
	detail, err := s.Get(ctx, id, nil)
	if err != nil {
		return nil, err
	}
	enrollment := detail.Enrollment

	if req.Status != nil {
		enrollment.Status = *req.Status
		if enrollment.Status == models.EnrollmentStatusCompleted && enrollment.CompletedAt == nil {
			completedAt := s.now().UTC()
			enrollment.CompletedAt = &completedAt
		}
	}
	if req.CourseID != nil {
		enrollment.CourseID = emptyToNil(req.CourseID)
	}
	if len(req.Documents) > 0 {
		documents, err := documentsJSON(req.Documents)
		if err != nil {
			return nil, err
		}
		enrollment.Documents = documents
	}

	if err := s.repo.Update(ctx, &enrollment); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to update enrollment")
	}
	s.cache.InvalidateDashboards(ctx)
	return s.Get(ctx, id, nil)
}

// List returns enrollments. Callers without the admin role only see their own.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter, claims *models.JWTClaims, mine bool) ([]models.EnrollmentDetail, *models.Pagination, error) {
	if claims != nil && (mine || !claims.HasRole(models.RoleAdmin)) {
		filter.UserID = claims.UserID
	}
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list enrollments")
	}
	return enrollments, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns an enrollment. Non-admin callers may only read their own.
func (s *EnrollmentService) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.EnrollmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Internal(err, "failed to load enrollment")
	}
	if claims != nil && !claims.HasRole(models.RoleAdmin) && detail.UserID != claims.UserID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
	}
	return detail, nil
}

// Delete removes an enrollment.
func (s *EnrollmentService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return appErrors.Internal(err, "failed to delete enrollment")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

// CertificateLink returns a signed download link for the enrollment's COR PDF.
func (s *EnrollmentService) CertificateLink(ctx context.Context, id string, claims *models.JWTClaims) (*dto.DownloadLinkResponse, error) {
	detail, err := s.Get(ctx, id, claims)
	if err != nil {
		return nil, err
	}
	if s.signer == nil || s.blobs == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificates are disabled")
	}
	key := CertificateKey(detail.CORNumber)
	if !s.blobs.Exists(key) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate is not ready yet")
	}
	token, expiresAt, err := s.signer.Generate(detail.UserID, key)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign certificate link")
	}
	return &dto.DownloadLinkResponse{URL: "/files/certificates/" + token, ExpiresAt: expiresAt.Format(time.RFC3339)}, nil
}

func (s *EnrollmentService) newApplicant(req EnrollRequest, email string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash default password")
	}
	return &models.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          email,
		PasswordHash:   string(hash),
		Contact:        req.Contact,
		BirthDate:      req.BirthDate,
		EducationLevel: req.EducationLevel,
		Roles:          []string{string(models.RoleStudent)},
		Status:         models.UserStatusPending,
	}, nil
}

func (s *EnrollmentService) queueCertificate(enrollment *models.Enrollment) {
	if s.certificates == nil {
		return
	}
	job := jobs.Job{ID: enrollment.ID, Type: CertificateJobType, Payload: enrollment.ID}
	if err := s.certificates.Enqueue(job); err != nil {
		s.logger.Warn("failed to queue certificate", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
}

func documentsJSON(raw json.RawMessage) (types.JSONText, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return types.JSONText("{}"), nil
	}
	if !json.Valid(raw) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "documents must be valid JSON")
	}
	return types.JSONText(raw), nil
}
