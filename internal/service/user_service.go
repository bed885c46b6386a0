package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/tclass-api/internal/models"
	"github.com/noah-isme/tclass-api/pkg/database"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateUserRequest represents payload for creating users.
type CreateUserRequest struct {
	Name           string            `json:"name" validate:"required,max=255"`
	Email          string            `json:"email" validate:"required,email"`
	Password       string            `json:"password" validate:"required,min=8"`
	Contact        *string           `json:"contact" validate:"omitempty,max=50"`
	BirthDate      *time.Time        `json:"birth_date"`
	EducationLevel *string           `json:"education_level" validate:"omitempty,max=100"`
	Roles          []models.UserRole `json:"roles" validate:"required,min=1,dive,oneof=student faculty admin"`
	Status         models.UserStatus `json:"status" validate:"omitempty,oneof=active pending inactive"`
}

// UpdateUserRequest payload for updating users. Nil fields are left unchanged.
type UpdateUserRequest struct {
	Name           *string            `json:"name" validate:"omitempty,max=255"`
	Email          *string            `json:"email" validate:"omitempty,email"`
	Password       *string            `json:"password" validate:"omitempty,min=8"`
	Contact        *string            `json:"contact" validate:"omitempty,max=50"`
	BirthDate      *time.Time         `json:"birth_date"`
	EducationLevel *string            `json:"education_level" validate:"omitempty,max=100"`
	Roles          []models.UserRole  `json:"roles" validate:"omitempty,min=1,dive,oneof=student faculty admin"`
	Status         *models.UserStatus `json:"status" validate:"omitempty,oneof=active pending inactive"`
}

// UserService handles user management workflows.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Internal(err, "failed to list users")
	}
	return users, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}
	return user, nil
}

// Create adds a new user.
func (s *UserService) Create(ctx context.Context, req CreateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid create user payload")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.ensureEmailFree(ctx, email, ""); err != nil {
		return nil, err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to hash password")
	}

	status := req.Status
	if status == "" {
		status = models.UserStatusActive
	}
	user := &models.User{
		Name:           strings.TrimSpace(req.Name),
		Email:          email,
		PasswordHash:   string(passwordHash),
		Contact:        req.Contact,
		BirthDate:      req.BirthDate,
		EducationLevel: req.EducationLevel,
		Roles:          roleNames(req.Roles),
		Status:         status,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Internal(err, "failed to create user")
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"id": user.ID, "email": user.Email, "roles": user.Roles})
	s.audit(ctx, actorID, models.AuditActionUserCreate, user.ID, nil, newPayload, meta)
	return user, nil
}

// Update modifies the user attributes.
func (s *UserService) Update(ctx context.Context, id string, req UpdateUserRequest, actorID string, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation(err, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "roles": user.Roles, "status": user.Status})

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != user.Email {
			if err := s.ensureEmailFree(ctx, email, user.ID); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Contact != nil {
		user.Contact = req.Contact
	}
	if req.BirthDate != nil {
		user.BirthDate = req.BirthDate
	}
	if req.EducationLevel != nil {
		user.EducationLevel = req.EducationLevel
	}
	if len(req.Roles) > 0 {
		user.Roles = roleNames(req.Roles)
	}
	if req.Status != nil {
		user.Status = *req.Status
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Internal(err, "failed to update user")
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to hash password")
		}
		if err := s.repo.UpdatePassword(ctx, user.ID, string(hash), time.Now().UTC()); err != nil {
			return nil, appErrors.Internal(err, "failed to update password")
		}
		user.PasswordHash = string(hash)
	}

	newPayload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "roles": user.Roles, "status": user.Status})
	s.audit(ctx, actorID, models.AuditActionUserUpdate, user.ID, oldPayload, newPayload, meta)
	return user, nil
}

// Delete hard-deletes a user.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.RequestMeta) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Internal(err, "failed to delete user")
	}

	oldPayload, _ := json.Marshal(map[string]interface{}{"email": user.Email, "roles": user.Roles})
	s.audit(ctx, actorID, models.AuditActionUserDelete, user.ID, oldPayload, nil, meta)
	return nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Internal(err, "failed to check email uniqueness")
	}
	if existing.ID != selfID {
		return appErrors.Clone(appErrors.ErrConflict, "email already exists")
	}
	return nil
}

func (s *UserService) audit(ctx context.Context, actorID, action, userID string, oldValues, newValues []byte, meta models.RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &userID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}

func roleNames(roles []models.UserRole) []string {
	names := make([]string, 0, len(roles))
	seen := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		if seen[r] {
			continue
		}
		seen[r] = true
		names = append(names, string(r))
	}
	return names
}
