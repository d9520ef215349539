package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// SubmissionRepository handles submission persistence, keyed by the
// (assignment_id, student_id) business key.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Upsert stores a submission; resubmitting replaces the stored file reference
// and resets status to SUBMITTED.
func (r *SubmissionRepository) Upsert(ctx context.Context, submission *models.Submission) (*models.Submission, error) {
	now := time.Now().UTC()
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = now
	}
	submission.UpdatedAt = now
	query := `INSERT INTO submissions (id, assignment_id, student_id, file_ref, submitted_at, status, grade, feedback, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (assignment_id, student_id)
DO UPDATE SET file_ref = EXCLUDED.file_ref, submitted_at = EXCLUDED.submitted_at, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
RETURNING id, assignment_id, student_id, file_ref, submitted_at, status, grade, feedback, created_at, updated_at`
	var stored models.Submission
	if err := r.db.GetContext(ctx, &stored, query,
		submission.ID, submission.AssignmentID, submission.StudentID, submission.FileRef,
		submission.SubmittedAt, submission.Status, submission.Grade, submission.Feedback,
		submission.CreatedAt, submission.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert submission: %w", err)
	}
	return &stored, nil
}

// ListByAssignment returns submissions for an assignment with student context.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	query := `SELECT sub.id, sub.assignment_id, sub.student_id, sub.file_ref, sub.submitted_at, sub.status, sub.grade, sub.feedback, sub.created_at, sub.updated_at,
        u.full_name AS student_name, st.admission_number
        FROM submissions sub
        JOIN students st ON st.id = sub.student_id
        JOIN users u ON u.id = st.user_id
        WHERE sub.assignment_id = $1
        ORDER BY sub.submitted_at ASC`
	var rows []models.SubmissionDetail
	if err := r.db.SelectContext(ctx, &rows, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return rows, nil
}

// FindByKey returns the submission for one (assignment, student) pair.
func (r *SubmissionRepository) FindByKey(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission,
		"SELECT * FROM submissions WHERE assignment_id = $1 AND student_id = $2", assignmentID, studentID); err != nil {
		return nil, err
	}
	return &submission, nil
}

// SetGrade records a grade and feedback and marks the submission graded.
func (r *SubmissionRepository) SetGrade(ctx context.Context, id string, grade float64, feedback *string) error {
	query := `UPDATE submissions SET grade = $2, feedback = $3, status = $4, updated_at = $5 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, grade, feedback, models.SubmissionGraded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("grade submission: no rows affected")
	}
	return nil
}
