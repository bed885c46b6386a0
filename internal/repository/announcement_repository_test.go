package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tclass-api/internal/models"
)

var announcementRowColumns = []string{"id", "author_id", "title", "content", "type", "target_audience", "is_pinned", "published_at", "expires_at", "created_at", "updated_at"}

func TestAnnouncementRepositoryListActiveForAudiences(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	rows := sqlmock.NewRows(announcementRowColumns).
		AddRow("ann-1", "adm-1", "Enrollment open", "Batch 3", "general", "all", true, now.Add(-time.Hour), nil, now, now).
		AddRow("ann-2", "adm-1", "Quiz week", "Bring pencils", "deadline", "students", false, now.Add(-time.Minute), nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM announcements WHERE target_audience = ANY($1) AND published_at <= $2 AND (expires_at IS NULL OR expires_at >= $2) ORDER BY is_pinned DESC, published_at DESC, created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs(`{"students","all"}`, now).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM announcements WHERE target_audience = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	list, total, err := repo.List(context.Background(), models.AnnouncementFilter{
		Audiences:  []models.AnnouncementAudience{models.AnnouncementAudienceStudents, models.AnnouncementAudienceAll},
		ActiveOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 2, total)
	assert.True(t, list[0].IsPinned)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnnouncementRepositoryTogglePin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAnnouncementRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE announcements SET is_pinned = NOT is_pinned")).
		WithArgs("ann-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(announcementRowColumns).AddRow("ann-1", "adm-1", "Enrollment open", "Batch 3", "general", "all", true, now, nil, now, now))

	announcement, err := repo.TogglePin(context.Background(), "ann-1")
	require.NoError(t, err)
	assert.True(t, announcement.IsPinned)
	assert.NoError(t, mock.ExpectationsWereMet())
}
