package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// ReportRepository tracks report card generation jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new report repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts a new job in PENDING state.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Status = models.ReportJobPending
	job.CreatedAt = now
	job.UpdatedAt = now
	const query = `INSERT INTO report_jobs (id, student_id, term, year, status, file_ref, error_detail, requested_by, created_at, updated_at)
        VALUES (:id, :student_id, :term, :year, :status, :file_ref, :error_detail, :requested_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// FindByID returns one job.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, "SELECT * FROM report_jobs WHERE id = $1", id); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByStudent returns jobs for a student, newest first.
func (r *ReportRepository) ListByStudent(ctx context.Context, studentID string) ([]models.ReportJob, error) {
	var jobs []models.ReportJob
	if err := r.db.SelectContext(ctx, &jobs,
		"SELECT * FROM report_jobs WHERE student_id = $1 ORDER BY created_at DESC", studentID); err != nil {
		return nil, fmt.Errorf("list report jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves a PENDING job to PROCESSING.
func (r *ReportRepository) MarkProcessing(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE report_jobs SET status = $2, updated_at = $3 WHERE id = $1",
		id, models.ReportJobProcessing, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}
	return nil
}

// MarkCompleted records the generated file and completion time.
func (r *ReportRepository) MarkCompleted(ctx context.Context, id, fileRef string) error {
	now := time.Now().UTC()
	if _, err := r.db.ExecContext(ctx,
		"UPDATE report_jobs SET status = $2, file_ref = $3, completed_at = $4, updated_at = $4 WHERE id = $1",
		id, models.ReportJobCompleted, fileRef, now); err != nil {
		return fmt.Errorf("mark report job completed: %w", err)
	}
	return nil
}

// MarkFailed records the failure reason.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, detail string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE report_jobs SET status = $2, error_detail = $3, updated_at = $4 WHERE id = $1",
		id, models.ReportJobFailed, detail, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark report job failed: %w", err)
	}
	return nil
}
