package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type gradeRepo interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecordDetail, error)
	BulkUpsert(ctx context.Context, records []models.GradeRecord) error
}

type studentIDChecker interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
}

type subjectReader interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

// GradeEntry is one student's scores within a batch. Omitted components
// default to zero.
type GradeEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Test1     float64 `json:"test1" validate:"gte=0"`
	Test2     float64 `json:"test2" validate:"gte=0"`
	Exam      float64 `json:"exam" validate:"gte=0"`
}

// SubmitGradesRequest carries a grade sheet for one subject/term/year scope.
type SubmitGradesRequest struct {
	SubjectID string       `json:"subject_id" validate:"required"`
	Term      string       `json:"term" validate:"required"`
	Year      int          `json:"year" validate:"required,gte=2000,lte=2100"`
	Entries   []GradeEntry `json:"entries" validate:"dive"`
}

// SubmitGradesResult summarises an accepted batch.
type SubmitGradesResult struct {
	Accepted int `json:"accepted"`
}

// GradeService orchestrates grade sheet submission and listing.
type GradeService struct {
	grades    gradeRepo
	students  studentIDChecker
	subjects  subjectReader
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepo, students studentIDChecker, subjects subjectReader, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:    grades,
		students:  students,
		subjects:  subjects,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// List returns grade records matching the filter.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecordDetail, error) {
	records, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grade records")
	}
	return records, nil
}

// Submit validates and persists a grade sheet. The whole batch is written in
// one transaction; any bad entry rejects every entry. Resubmitting the same
// (student, subject, term, year) key overwrites the stored scores, and when a
// key repeats within the batch the last entry wins.
func (s *GradeService) Submit(ctx context.Context, req SubmitGradesRequest) (*SubmitGradesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.recordBatch(len(req.Entries), false)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade sheet payload")
	}
	if len(req.Entries) == 0 {
		return &SubmitGradesResult{Accepted: 0}, nil
	}

	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		s.recordBatch(len(req.Entries), false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, fmt.Sprintf("subject %s does not exist", req.SubjectID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	entries := dedupeGradeEntries(req.Entries)
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.StudentID)
	}
	existing, err := s.students.ExistingIDs(ctx, ids)
	if err != nil {
		s.recordBatch(len(req.Entries), false)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify students")
	}
	for _, id := range ids {
		if !existing[id] {
			s.recordBatch(len(req.Entries), false)
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, fmt.Sprintf("student %s does not exist", id))
		}
	}

	records := make([]models.GradeRecord, 0, len(entries))
	for _, entry := range entries {
		records = append(records, models.GradeRecord{
			StudentID: entry.StudentID,
			SubjectID: req.SubjectID,
			Term:      req.Term,
			Year:      req.Year,
			Test1:     entry.Test1,
			Test2:     entry.Test2,
			Exam:      entry.Exam,
			Total:     entry.Test1 + entry.Test2 + entry.Exam,
		})
	}

	if err := s.grades.BulkUpsert(ctx, records); err != nil {
		s.recordBatch(len(req.Entries), false)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade sheet")
	}
	s.recordBatch(len(records), true)

	for _, record := range records {
		s.invalidateSummaries(ctx, record.StudentID)
	}
	s.logger.Info("grade sheet accepted",
		zap.String("subject_id", req.SubjectID),
		zap.String("term", req.Term),
		zap.Int("year", req.Year),
		zap.Int("entries", len(records)))
	return &SubmitGradesResult{Accepted: len(records)}, nil
}

func (s *GradeService) recordBatch(size int, accepted bool) {
	if s.metrics != nil {
		s.metrics.RecordBatchWrite("grades", size, accepted)
	}
}

func (s *GradeService) invalidateSummaries(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, fmt.Sprintf("summary:grade:%s:*", studentID))
}

// dedupeGradeEntries keeps the last occurrence per student, preserving the
// order of last occurrences.
func dedupeGradeEntries(entries []GradeEntry) []GradeEntry {
	index := make(map[string]int, len(entries))
	result := make([]GradeEntry, 0, len(entries))
	for _, entry := range entries {
		if pos, ok := index[entry.StudentID]; ok {
			result[pos] = entry
			continue
		}
		index[entry.StudentID] = len(result)
		result = append(result, entry)
	}
	return result
}
