package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	deleted   []string
	auditLogs []*models.AuditLog
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, *u)
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.users[id].PasswordHash = passwordHash
	return nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserServiceCreate(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc := NewUserService(repo, nil, zap.NewNop())

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Name:     "Engr. Reyes",
		Email:    "Reyes@TClass.ph",
		Password: "password123",
		Roles:    []models.UserRole{models.RoleFaculty, models.RoleFaculty, models.RoleAdmin},
	}, "admin-1", models.RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "reyes@tclass.ph", user.Email)
	assert.Equal(t, []string{"faculty", "admin"}, []string(user.Roles))
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.NotEqual(t, "password123", user.PasswordHash)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)

	_, err = svc.Create(context.Background(), CreateUserRequest{Name: "Dup", Email: "reyes@tclass.ph", Password: "password123", Roles: []models.UserRole{models.RoleStudent}}, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestUserServiceCreateValidatesRoles(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{Name: "X", Email: "x@tclass.ph", Password: "password123", Roles: []models.UserRole{"teacher"}}, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceUpdatePartial(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{
		"u-1": {ID: "u-1", Name: "Ana", Email: "ana@tclass.ph", Roles: []string{"student"}, Status: models.UserStatusPending},
		"u-2": {ID: "u-2", Name: "Ben", Email: "ben@tclass.ph", Roles: []string{"student"}, Status: models.UserStatusActive},
	}}
	svc := NewUserService(repo, nil, nil)

	active := models.UserStatusActive
	user, err := svc.Update(context.Background(), "u-1", UpdateUserRequest{Status: &active}, "admin-1", models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, "Ana", user.Name)

	taken := "ben@tclass.ph"
	_, err = svc.Update(context.Background(), "u-1", UpdateUserRequest{Email: &taken}, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Update(context.Background(), "missing", UpdateUserRequest{}, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceDelete(t *testing.T) {
	repo := &mockUserRepo{users: map[string]*models.User{"u-1": {ID: "u-1", Email: "ana@tclass.ph"}}}
	svc := NewUserService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "u-1", "admin-1", models.RequestMeta{}))
	assert.Equal(t, []string{"u-1"}, repo.deleted)
	assert.ErrorIs(t, svc.Delete(context.Background(), "u-1", "admin-1", models.RequestMeta{}), appErrors.ErrNotFound)
}
