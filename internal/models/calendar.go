package models

import "time"

// CalendarEvent is an entry on the school calendar.
type CalendarEvent struct {
	ID        string               `db:"id" json:"id"`
	Title     string               `db:"title" json:"title"`
	Details   string               `db:"details" json:"details"`
	StartDate time.Time            `db:"start_date" json:"start_date"`
	EndDate   time.Time            `db:"end_date" json:"end_date"`
	Audience  AnnouncementAudience `db:"audience" json:"audience"`
	CreatedBy string               `db:"created_by" json:"created_by"`
	CreatedAt time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt time.Time            `db:"updated_at" json:"updated_at"`
}

// CalendarFilter scopes event listing to a window.
type CalendarFilter struct {
	From     *time.Time
	To       *time.Time
	Audience string
}
