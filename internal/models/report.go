package models

import "time"

// ReportJobStatus tracks async report card generation.
type ReportJobStatus string

const (
	ReportJobPending    ReportJobStatus = "PENDING"
	ReportJobProcessing ReportJobStatus = "PROCESSING"
	ReportJobCompleted  ReportJobStatus = "COMPLETED"
	ReportJobFailed     ReportJobStatus = "FAILED"
)

// ReportJob is one queued report card generation request.
type ReportJob struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	Term        string          `db:"term" json:"term"`
	Year        int             `db:"year" json:"year"`
	Status      ReportJobStatus `db:"status" json:"status"`
	FileRef     *string         `db:"file_ref" json:"file_ref,omitempty"`
	ErrorDetail *string         `db:"error_detail" json:"error_detail,omitempty"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
