package models

import "time"

// AnnouncementAudience scopes who sees an announcement.
type AnnouncementAudience string

const (
	AudienceAll      AnnouncementAudience = "ALL"
	AudienceTeachers AnnouncementAudience = "TEACHERS"
	AudienceStudents AnnouncementAudience = "STUDENTS"
)

// Valid reports whether the audience is a supported value.
func (a AnnouncementAudience) Valid() bool {
	switch a {
	case AudienceAll, AudienceTeachers, AudienceStudents:
		return true
	default:
		return false
	}
}

// Announcement is a school-wide notice.
type Announcement struct {
	ID        string               `db:"id" json:"id"`
	AuthorID  string               `db:"author_id" json:"author_id"`
	Title     string               `db:"title" json:"title"`
	Body      string               `db:"body" json:"body"`
	Audience  AnnouncementAudience `db:"audience" json:"audience"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt time.Time            `db:"updated_at" json:"updated_at"`
}

// AnnouncementDetail joins the author name for feed views.
type AnnouncementDetail struct {
	Announcement
	AuthorName string `db:"author_name" json:"author_name"`
}

// AnnouncementFilter scopes announcement listing.
type AnnouncementFilter struct {
	Audience string
	Page     int
	PageSize int
}
