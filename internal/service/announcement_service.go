package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	TogglePin(ctx context.Context, id string) (*models.Announcement, error)
	Delete(ctx context.Context, id string) error
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AnnouncementService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
	rules := map[string]validator.Func{
		"audience": func(fl validator.FieldLevel) bool {
			switch models.AnnouncementAudience(fl.Field().String()) {
			case models.AnnouncementAudienceAll, models.AnnouncementAudienceStudents, models.AnnouncementAudienceFaculty, models.AnnouncementAudienceAdmins:
				return true
			default:
				return false
			}
		},
		"announcement_type": func(fl validator.FieldLevel) bool {
			switch models.AnnouncementType(fl.Field().String()) {
			case models.AnnouncementTypeGeneral, models.AnnouncementTypeAcademic, models.AnnouncementTypeAnnouncement, models.AnnouncementTypeDeadline, models.AnnouncementTypeEvent:
				return true
			default:
				return false
			}
		},
	}
	for tag, fn := range rules {
		if err := svc.validator.RegisterValidation(tag, fn); err != nil {
			logger.Error("failed to register announcement validation", zap.String("tag", tag), zap.Error(err))
		}
	}
	return svc
}

// AnnouncementListRequest describes filters for listing announcements.
type AnnouncementListRequest struct {
	ForMe          bool
	TargetAudience models.AnnouncementAudience
	Type           models.AnnouncementType
	Page           int
	PageSize       int
}

// AnnouncementRequest describes the create and replace payload.
type AnnouncementRequest struct {
	Title          string                      `json:"title" validate:"required,max=255"`
	Content        string                      `json:"content" validate:"required"`
	Type           models.AnnouncementType     `json:"type" validate:"omitempty,announcement_type"`
	TargetAudience models.AnnouncementAudience `json:"target_audience" validate:"omitempty,audience"`
	IsPinned       bool                        `json:"is_pinned"`
	PublishedAt    *time.Time                  `json:"published_at"`
	ExpiresAt      *time.Time                  `json:"expires_at"`
}

// ListActive returns announcements inside their publication window, pinned first.
// With ForMe the audience is every audience the caller's roles map to plus "all".
func (s *AnnouncementService) ListActive(ctx context.Context, req AnnouncementListRequest, claims *models.JWTClaims) ([]models.Announcement, *models.Pagination, error) {
	filter := models.AnnouncementFilter{
		Type:       req.Type,
		ActiveOnly: true,
		Page:       req.Page,
		PageSize:   req.PageSize,
	}
	switch {
	case req.ForMe && claims != nil:
		filter.Audiences = AudiencesFor(claims.Roles)
	case req.TargetAudience != "":
		filter.Audiences = []models.AnnouncementAudience{req.TargetAudience}
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list announcements")
	}
	return rows, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// AudiencesFor returns the de-duplicated audiences reaching the given roles, always including "all".
func AudiencesFor(roles []models.UserRole) []models.AnnouncementAudience {
	audiences := []models.AnnouncementAudience{models.AnnouncementAudienceAll}
	seen := map[models.AnnouncementAudience]bool{models.AnnouncementAudienceAll: true}
	for _, role := range roles {
		audience := models.AudienceForRole(role)
		if audience == "" || seen[audience] {
			continue
		}
		seen[audience] = true
		audiences = append(audiences, audience)
	}
	return audiences
}

// Get returns an announcement by id.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Internal(err, "failed to get announcement")
	}
	return ann, nil
}

// Create registers a new announcement authored by authorID.
func (s *AnnouncementService) Create(ctx context.Context, req AnnouncementRequest, authorID string) (*models.Announcement, error) {
	announcement := &models.Announcement{AuthorID: authorID}
	if err := s.apply(announcement, req); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Internal(err, "failed to create announcement")
	}
	s.cache.InvalidateDashboards(ctx)
	return announcement, nil
}

// Update replaces an existing announcement.
func (s *AnnouncementService) Update(ctx context.Context, id string, req AnnouncementRequest) (*models.Announcement, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.PublishedAt == nil {
		publishedAt := existing.PublishedAt
		req.PublishedAt = &publishedAt
	}
	if err := s.apply(existing, req); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, existing); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Internal(err, "failed to update announcement")
	}
	s.cache.InvalidateDashboards(ctx)
	return existing, nil
}

// TogglePin flips the pinned flag.
func (s *AnnouncementService) TogglePin(ctx context.Context, id string) (*models.Announcement, error) {
	ann, err := s.repo.TogglePin(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Internal(err, "failed to toggle pin")
	}
	s.cache.InvalidateDashboards(ctx)
	return ann, nil
}

// Delete removes an announcement by id.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Internal(err, "failed to delete announcement")
	}
	s.cache.InvalidateDashboards(ctx)
	return nil
}

func (s *AnnouncementService) apply(announcement *models.Announcement, req AnnouncementRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Validation(err, "invalid payload")
	}
	publishedAt := s.now().UTC()
	if req.PublishedAt != nil {
		publishedAt = req.PublishedAt.UTC()
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(publishedAt) {
		return appErrors.Clone(appErrors.ErrValidation, "expires_at must not precede published_at")
	}
	announcement.Title = req.Title
	announcement.Content = req.Content
	announcement.Type = req.Type
	if announcement.Type == "" {
		announcement.Type = models.AnnouncementTypeGeneral
	}
	announcement.TargetAudience = req.TargetAudience
	if announcement.TargetAudience == "" {
		announcement.TargetAudience = models.AnnouncementAudienceAll
	}
	announcement.IsPinned = req.IsPinned
	announcement.PublishedAt = publishedAt
	announcement.ExpiresAt = req.ExpiresAt
	return nil
}
