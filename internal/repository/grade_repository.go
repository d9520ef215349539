package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/school-portal-api/internal/models"
)

// GradeRepository handles grade record persistence. Records are keyed by the
// (student_id, subject_id, term, year) business key enforced with a unique
// index; writes go through upserts so resubmission overwrites in place.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns grade records matching the filter, joined with subject metadata.
func (r *GradeRepository) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecordDetail, error) {
	query := `SELECT g.id, g.student_id, g.subject_id, g.term, g.year, g.test1, g.test2, g.exam, g.total, g.created_at, g.updated_at,
        s.name AS subject_name, s.code AS subject_code
        FROM grade_records g
        JOIN subjects s ON s.id = g.subject_id
        WHERE 1=1`
	var args []interface{}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND g.student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND g.subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.Term != "" {
		query += fmt.Sprintf(" AND g.term = $%d", len(args)+1)
		args = append(args, filter.Term)
	}
	if filter.Year != 0 {
		query += fmt.Sprintf(" AND g.year = $%d", len(args)+1)
		args = append(args, filter.Year)
	}
	query += " ORDER BY s.name ASC"
	var records []models.GradeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list grade records: %w", err)
	}
	return records, nil
}

// BulkUpsert writes all records in a single transaction. Any failure rolls
// the whole batch back so a grade sheet is never half saved.
func (r *GradeRepository) BulkUpsert(ctx context.Context, records []models.GradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin grade upsert: %w", err)
	}
	const query = `INSERT INTO grade_records (id, student_id, subject_id, term, year, test1, test2, exam, total, created_at, updated_at)
        VALUES (:id, :student_id, :subject_id, :term, :year, :test1, :test2, :exam, :total, :created_at, :updated_at)
        ON CONFLICT (student_id, subject_id, term, year)
        DO UPDATE SET test1 = EXCLUDED.test1, test2 = EXCLUDED.test2, exam = EXCLUDED.exam, total = EXCLUDED.total, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade record: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade records: %w", err)
	}
	return nil
}

// SheetRows returns a subject's grade sheet joined with student identity,
// ordered by student name for a stable export.
func (r *GradeRepository) SheetRows(ctx context.Context, subjectID, term string, year int) ([]models.GradeSheetRow, error) {
	const query = `SELECT g.student_id, u.full_name AS student_name, st.admission_number, g.test1, g.test2, g.exam, g.total
        FROM grade_records g
        JOIN students st ON st.id = g.student_id
        JOIN users u ON u.id = st.user_id
        WHERE g.subject_id = $1 AND g.term = $2 AND g.year = $3
        ORDER BY u.full_name ASC`
	var rows []models.GradeSheetRow
	if err := r.db.SelectContext(ctx, &rows, query, subjectID, term, year); err != nil {
		return nil, fmt.Errorf("list grade sheet rows: %w", err)
	}
	return rows, nil
}

// FetchByStudents returns grade records keyed by student ID for a subject scope.
func (r *GradeRepository) FetchByStudents(ctx context.Context, studentIDs []string, subjectID, term string, year int) (map[string]models.GradeRecord, error) {
	if len(studentIDs) == 0 {
		return map[string]models.GradeRecord{}, nil
	}
	placeholders := make([]string, len(studentIDs))
	args := make([]interface{}, 0, len(studentIDs)+3)
	for i, id := range studentIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}
	args = append(args, subjectID, term, year)
	query := fmt.Sprintf(`SELECT id, student_id, subject_id, term, year, test1, test2, exam, total, created_at, updated_at
        FROM grade_records
        WHERE student_id IN (%s) AND subject_id = $%d AND term = $%d AND year = $%d`,
		strings.Join(placeholders, ","), len(studentIDs)+1, len(studentIDs)+2, len(studentIDs)+3)
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch grade records: %w", err)
	}
	defer rows.Close()
	result := make(map[string]models.GradeRecord, len(studentIDs))
	for rows.Next() {
		var record models.GradeRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, fmt.Errorf("scan grade record: %w", err)
		}
		result[record.StudentID] = record
	}
	return result, nil
}
