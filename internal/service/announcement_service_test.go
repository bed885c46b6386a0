package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/tclass-api/internal/models"
	appErrors "github.com/noah-isme/tclass-api/pkg/errors"
)

type mockAnnouncementRepo struct {
	items      map[string]*models.Announcement
	lastFilter models.AnnouncementFilter
}

func (m *mockAnnouncementRepo) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	m.lastFilter = filter
	return []models.Announcement{}, 0, nil
}

func (m *mockAnnouncementRepo) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (m *mockAnnouncementRepo) Create(ctx context.Context, announcement *models.Announcement) error {
	announcement.ID = "ann-new"
	stored := *announcement
	m.items[announcement.ID] = &stored
	return nil
}

func (m *mockAnnouncementRepo) Update(ctx context.Context, announcement *models.Announcement) error {
	stored := *announcement
	m.items[announcement.ID] = &stored
	return nil
}

func (m *mockAnnouncementRepo) TogglePin(ctx context.Context, id string) (*models.Announcement, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	a.IsPinned = !a.IsPinned
	copied := *a
	return &copied, nil
}

func (m *mockAnnouncementRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.items, id)
	return nil
}

func newTestAnnouncementService() (*AnnouncementService, *mockAnnouncementRepo) {
	repo := &mockAnnouncementRepo{items: map[string]*models.Announcement{}}
	svc := NewAnnouncementService(repo, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC) }
	return svc, repo
}

func TestAudiencesForUnionsRoles(t *testing.T) {
	audiences := AudiencesFor([]models.UserRole{models.RoleFaculty, models.RoleAdmin, models.RoleFaculty})
	assert.Equal(t, []models.AnnouncementAudience{"all", "faculty", "admins"}, audiences)
	assert.Equal(t, []models.AnnouncementAudience{"all"}, AudiencesFor(nil))
}

func TestAnnouncementServiceListActive(t *testing.T) {
	svc, repo := newTestAnnouncementService()
	ctx := context.Background()

	_, _, err := svc.ListActive(ctx, AnnouncementListRequest{ForMe: true, TargetAudience: "admins"}, studentClaims("stu-1"))
	require.NoError(t, err)
	assert.True(t, repo.lastFilter.ActiveOnly)
	assert.Equal(t, []models.AnnouncementAudience{"all", "students"}, repo.lastFilter.Audiences)

	_, pagination, err := svc.ListActive(ctx, AnnouncementListRequest{TargetAudience: "faculty", PageSize: 500}, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.AnnouncementAudience{"faculty"}, repo.lastFilter.Audiences)
	assert.Equal(t, models.MaxPageSize, pagination.PerPage)

	_, _, err = svc.ListActive(ctx, AnnouncementListRequest{}, nil)
	require.NoError(t, err)
	assert.Empty(t, repo.lastFilter.Audiences)
}

func TestAnnouncementServiceCreateDefaults(t *testing.T) {
	svc, _ := newTestAnnouncementService()

	ann, err := svc.Create(context.Background(), AnnouncementRequest{Title: "Enrollment open", Content: "Batch 3 is open"}, "adm-1")
	require.NoError(t, err)
	assert.Equal(t, models.AnnouncementTypeGeneral, ann.Type)
	assert.Equal(t, models.AnnouncementAudienceAll, ann.TargetAudience)
	assert.Equal(t, svc.now(), ann.PublishedAt)
	assert.Equal(t, "adm-1", ann.AuthorID)
}

func TestAnnouncementServiceValidation(t *testing.T) {
	svc, _ := newTestAnnouncementService()
	ctx := context.Background()

	_, err := svc.Create(ctx, AnnouncementRequest{Title: "x", Content: "y", TargetAudience: "parents"}, "adm-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, AnnouncementRequest{Title: "x", Content: "y", Type: "memo"}, "adm-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	published := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	expires := published.Add(-time.Hour)
	_, err = svc.Create(ctx, AnnouncementRequest{Title: "x", Content: "y", PublishedAt: &published, ExpiresAt: &expires}, "adm-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	sameInstant := published
	_, err = svc.Create(ctx, AnnouncementRequest{Title: "x", Content: "y", PublishedAt: &published, ExpiresAt: &sameInstant}, "adm-1")
	assert.NoError(t, err)
}

func TestAnnouncementServiceRegistersRulesOnSharedValidator(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	shared := validator.New()
	svc := NewAnnouncementService(&mockAnnouncementRepo{items: map[string]*models.Announcement{}}, nil, shared, zap.New(core))

	assert.Zero(t, logs.Len())
	assert.Error(t, shared.Var("parents", "audience"))
	assert.NoError(t, shared.Var("students", "audience"))
	assert.Error(t, shared.Var("memo", "announcement_type"))

	_, err := svc.Create(context.Background(), AnnouncementRequest{Title: "x", Content: "y", Type: "event", TargetAudience: "faculty"}, "adm-1")
	assert.NoError(t, err)
}

func TestAnnouncementServiceUpdateKeepsPublishedAt(t *testing.T) {
	svc, repo := newTestAnnouncementService()
	original := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.items["ann-1"] = &models.Announcement{ID: "ann-1", Title: "Old", PublishedAt: original, TargetAudience: "students", Type: "academic"}

	ann, err := svc.Update(context.Background(), "ann-1", AnnouncementRequest{Title: "New", Content: "Body", TargetAudience: "faculty"})
	require.NoError(t, err)
	assert.Equal(t, original, ann.PublishedAt)
	assert.Equal(t, models.AnnouncementAudienceFaculty, ann.TargetAudience)

	_, err = svc.Update(context.Background(), "missing", AnnouncementRequest{Title: "New", Content: "Body"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAnnouncementServiceTogglePin(t *testing.T) {
	svc, repo := newTestAnnouncementService()
	repo.items["ann-1"] = &models.Announcement{ID: "ann-1"}

	ann, err := svc.TogglePin(context.Background(), "ann-1")
	require.NoError(t, err)
	assert.True(t, ann.IsPinned)
	ann, err = svc.TogglePin(context.Background(), "ann-1")
	require.NoError(t, err)
	assert.False(t, ann.IsPinned)

	_, err = svc.TogglePin(context.Background(), "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), appErrors.ErrNotFound)
}
