package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type attendanceRepo interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
	ClassOnDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecordDetail, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type classMembership interface {
	ClassMembers(ctx context.Context, classID string, ids []string) (map[string]bool, error)
}

// AttendanceMark is one student's status within a batch.
type AttendanceMark struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

// SubmitAttendanceRequest carries one class's marks for a single day.
type SubmitAttendanceRequest struct {
	ClassID string           `json:"class_id" validate:"required"`
	Date    string           `json:"date" validate:"required"`
	Records []AttendanceMark `json:"records" validate:"dive"`
}

// SubmitAttendanceResult summarises an accepted batch.
type SubmitAttendanceResult struct {
	Accepted int       `json:"accepted"`
	Date     time.Time `json:"date"`
}

// AttendanceService orchestrates attendance marking and listing.
type AttendanceService struct {
	attendance attendanceRepo
	classes    classReader
	students   classMembership
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
}

// RegisterAttendanceValidators installs the attendance_status tag.
func RegisterAttendanceValidators(validate *validator.Validate) error {
	return validate.RegisterValidation("attendance_status", func(fl validator.FieldLevel) bool {
		return models.AttendanceStatus(fl.Field().String()).Valid()
	})
}

// NewAttendanceService constructs AttendanceService.
func NewAttendanceService(attendance attendanceRepo, classes classReader, students classMembership, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	_ = RegisterAttendanceValidators(validate)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		attendance: attendance,
		classes:    classes,
		students:   students,
		cache:      cache,
		metrics:    metrics,
		validator:  validate,
		logger:     logger,
	}
}

// List returns attendance rows matching the filter.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	rows, total, err := s.attendance.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return rows, total, nil
}

// ClassOnDate returns every stored mark for a class on one day.
func (s *AttendanceService) ClassOnDate(ctx context.Context, classID, rawDate string) ([]models.AttendanceRecordDetail, error) {
	date, err := parseLedgerDate(rawDate)
	if err != nil {
		return nil, err
	}
	rows, err := s.attendance.ClassOnDate(ctx, classID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class attendance")
	}
	return rows, nil
}

// Submit validates and persists one day's marks for a class. The whole batch
// is written in one transaction; re-marking a (student, date) pair overwrites
// the stored status. Within the batch the last mark per student wins.
func (s *AttendanceService) Submit(ctx context.Context, req SubmitAttendanceRequest) (*SubmitAttendanceResult, error) {
	if err := s.validator.Struct(req); err != nil {
		s.recordBatch(len(req.Records), false)
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	date, err := parseLedgerDate(req.Date)
	if err != nil {
		s.recordBatch(len(req.Records), false)
		return nil, err
	}
	if len(req.Records) == 0 {
		return &SubmitAttendanceResult{Accepted: 0, Date: date}, nil
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		s.recordBatch(len(req.Records), false)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, fmt.Sprintf("class %s does not exist", req.ClassID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	marks := dedupeAttendanceMarks(req.Records)
	ids := make([]string, 0, len(marks))
	for _, mark := range marks {
		ids = append(ids, mark.StudentID)
	}
	members, err := s.students.ClassMembers(ctx, req.ClassID, ids)
	if err != nil {
		s.recordBatch(len(req.Records), false)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify class membership")
	}
	for _, id := range ids {
		if !members[id] {
			s.recordBatch(len(req.Records), false)
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, fmt.Sprintf("student %s is not in class %s", id, req.ClassID))
		}
	}

	records := make([]models.AttendanceRecord, 0, len(marks))
	for _, mark := range marks {
		records = append(records, models.AttendanceRecord{
			StudentID: mark.StudentID,
			Date:      date,
			Status:    models.AttendanceStatus(mark.Status),
		})
	}

	if err := s.attendance.BulkUpsert(ctx, records); err != nil {
		s.recordBatch(len(req.Records), false)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attendance")
	}
	s.recordBatch(len(records), true)

	if s.cache != nil {
		for _, record := range records {
			_ = s.cache.Invalidate(ctx, fmt.Sprintf("summary:attendance:%s", record.StudentID))
		}
	}
	s.logger.Info("attendance accepted",
		zap.String("class_id", req.ClassID),
		zap.Time("date", date),
		zap.Int("records", len(records)))
	return &SubmitAttendanceResult{Accepted: len(records), Date: date}, nil
}

func (s *AttendanceService) recordBatch(size int, accepted bool) {
	if s.metrics != nil {
		s.metrics.RecordBatchWrite("attendance", size, accepted)
	}
}

// parseLedgerDate accepts YYYY-MM-DD and normalizes to midnight UTC so the
// (student, date) key is stable regardless of submitter timezone.
func parseLedgerDate(raw string) (time.Time, error) {
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", raw))
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), nil
}

// dedupeAttendanceMarks keeps the last occurrence per student.
func dedupeAttendanceMarks(marks []AttendanceMark) []AttendanceMark {
	index := make(map[string]int, len(marks))
	result := make([]AttendanceMark, 0, len(marks))
	for _, mark := range marks {
		if pos, ok := index[mark.StudentID]; ok {
			result[pos] = mark
			continue
		}
		index[mark.StudentID] = len(result)
		result = append(result, mark)
	}
	return result
}
