package models

import "time"

// AnnouncementType classifies announcements.
type AnnouncementType string

const (
	AnnouncementTypeGeneral      AnnouncementType = "general"
	AnnouncementTypeAcademic     AnnouncementType = "academic"
	AnnouncementTypeAnnouncement AnnouncementType = "announcement"
	AnnouncementTypeDeadline     AnnouncementType = "deadline"
	AnnouncementTypeEvent        AnnouncementType = "event"
)

// AnnouncementAudience defines who can see an announcement.
type AnnouncementAudience string

const (
	AnnouncementAudienceAll      AnnouncementAudience = "all"
	AnnouncementAudienceStudents AnnouncementAudience = "students"
	AnnouncementAudienceFaculty  AnnouncementAudience = "faculty"
	AnnouncementAudienceAdmins   AnnouncementAudience = "admins"
)

// AudienceForRole maps a user role to the audience that targets it.
func AudienceForRole(role UserRole) AnnouncementAudience {
	switch role {
	case RoleStudent:
		return AnnouncementAudienceStudents
	case RoleFaculty:
		return AnnouncementAudienceFaculty
	case RoleAdmin:
		return AnnouncementAudienceAdmins
	}
	return ""
}

// Announcement represents a persisted announcement row.
type Announcement struct {
	ID             string               `db:"id" json:"id"`
	AuthorID       string               `db:"author_id" json:"author_id"`
	Title          string               `db:"title" json:"title"`
	Content        string               `db:"content" json:"content"`
	Type           AnnouncementType     `db:"type" json:"type"`
	TargetAudience AnnouncementAudience `db:"target_audience" json:"target_audience"`
	IsPinned       bool                 `db:"is_pinned" json:"is_pinned"`
	PublishedAt    time.Time            `db:"published_at" json:"published_at"`
	ExpiresAt      *time.Time           `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time            `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the announcement is inside its publication window.
func (a Announcement) IsActive(now time.Time) bool {
	if a.PublishedAt.After(now) {
		return false
	}
	return a.ExpiresAt == nil || !a.ExpiresAt.Before(now)
}

// AnnouncementFilter allows listing announcements.
type AnnouncementFilter struct {
	Audiences  []AnnouncementAudience
	Type       AnnouncementType
	ActiveOnly bool
	Page       int
	PageSize   int
}
