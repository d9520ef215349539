package models

import "time"

// Resource is a file distributed to a class and/or subject.
type Resource struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	FileRef    string    `db:"file_ref" json:"file_ref"`
	MimeType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	ClassID    *string   `db:"class_id" json:"class_id,omitempty"`
	SubjectID  *string   `db:"subject_id" json:"subject_id,omitempty"`
	UploadedBy string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ResourceFilter scopes resource listing.
type ResourceFilter struct {
	ClassID   string
	SubjectID string
	Page      int
	PageSize  int
}
