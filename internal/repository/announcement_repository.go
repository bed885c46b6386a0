package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tclass-api/internal/models"
)

const announcementColumns = "id, author_id, title, content, type, target_audience, is_pinned, published_at, expires_at, created_at, updated_at"

// AnnouncementRepository handles persistence for announcements.
type AnnouncementRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAnnouncementRepository constructs an AnnouncementRepository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db, now: time.Now}
}

// List returns announcements pinned first, then newest published first.
func (r *AnnouncementRepository) List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error) {
	var fb filterBuilder
	if len(filter.Audiences) > 0 {
		audiences := make([]string, len(filter.Audiences))
		for i, a := range filter.Audiences {
			audiences[i] = string(a)
		}
		fb.add("target_audience = ANY(?)", pq.Array(audiences))
	}
	if filter.Type != "" {
		fb.add("type = ?", string(filter.Type))
	}
	if filter.ActiveOnly {
		fb.add("published_at <= ? AND (expires_at IS NULL OR expires_at >= ?)", r.now().UTC())
	}
	limit, offset := pageWindow(filter.Page, filter.PageSize)

	query := fmt.Sprintf("SELECT %s FROM announcements%s ORDER BY is_pinned DESC, published_at DESC, created_at DESC LIMIT %d OFFSET %d", announcementColumns, fb.where(), limit, offset)
	announcements := make([]models.Announcement, 0)
	if err := r.db.SelectContext(ctx, &announcements, query, fb.args...); err != nil {
		return nil, 0, fmt.Errorf("list announcements: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM announcements"+fb.where(), fb.args...); err != nil {
		return nil, 0, fmt.Errorf("count announcements: %w", err)
	}
	return announcements, total, nil
}

// FindByID returns an announcement.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, "SELECT "+announcementColumns+" FROM announcements WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	return &announcement, nil
}

// Create inserts an announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, announcement *models.Announcement) error {
	if announcement.ID == "" {
		announcement.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if announcement.PublishedAt.IsZero() {
		announcement.PublishedAt = now
	}
	announcement.CreatedAt = now
	announcement.UpdatedAt = now
	const query = `INSERT INTO announcements (id, author_id, title, content, type, target_audience, is_pinned, published_at, expires_at, created_at, updated_at) VALUES (:id, :author_id, :title, :content, :type, :target_audience, :is_pinned, :published_at, :expires_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, announcement); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update persists all mutable announcement fields.
func (r *AnnouncementRepository) Update(ctx context.Context, announcement *models.Announcement) error {
	announcement.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, type = :type, target_audience = :target_audience, is_pinned = :is_pinned, published_at = :published_at, expires_at = :expires_at, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, announcement)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return expectAffected(res)
}

// TogglePin flips is_pinned and returns the updated row.
func (r *AnnouncementRepository) TogglePin(ctx context.Context, id string) (*models.Announcement, error) {
	query := "UPDATE announcements SET is_pinned = NOT is_pinned, updated_at = $2 WHERE id = $1 RETURNING " + announcementColumns
	var announcement models.Announcement
	if err := r.db.GetContext(ctx, &announcement, query, id, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("toggle announcement pin: %w", err)
	}
	return &announcement, nil
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return expectAffected(res)
}
