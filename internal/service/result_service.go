package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type gradeLister interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecordDetail, error)
}

type attendanceCounter interface {
	StatusCounts(ctx context.Context, studentID string) (map[models.AttendanceStatus]int, error)
}

// ResultService derives read-only grade and attendance summaries.
type ResultService struct {
	students   studentReader
	grades     gradeLister
	attendance attendanceCounter
	cache      *CacheService
	logger     *zap.Logger
}

// NewResultService constructs ResultService.
func NewResultService(students studentReader, grades gradeLister, attendance attendanceCounter, cache *CacheService, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		students:   students,
		grades:     grades,
		attendance: attendance,
		cache:      cache,
		logger:     logger,
	}
}

// GradeSummary aggregates a student's grade records into per-subject results
// with letter bands, plus the running average. A student with no records gets
// an empty summary, not an error; an unknown student is NOT_FOUND.
func (s *ResultService) GradeSummary(ctx context.Context, studentID, term string, year int) (*models.GradeSummary, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", studentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	cacheKey := fmt.Sprintf("summary:grade:%s:%s:%d", studentID, term, year)
	if s.cache != nil {
		var cached models.GradeSummary
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	records, err := s.grades.List(ctx, models.GradeFilter{StudentID: studentID, Term: term, Year: year})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade records")
	}

	summary := buildGradeSummary(studentID, records)
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, summary, 0)
	}
	return summary, nil
}

// AttendanceSummary aggregates a student's full attendance history. A student
// with no records reports a rate of 100.
func (s *ResultService) AttendanceSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not found", studentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	cacheKey := fmt.Sprintf("summary:attendance:%s", studentID)
	if s.cache != nil {
		var cached models.AttendanceSummary
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, nil
		}
	}

	counts, err := s.attendance.StatusCounts(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance counts")
	}

	summary := buildAttendanceSummary(studentID, counts)
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, summary, 0)
	}
	return summary, nil
}

func buildGradeSummary(studentID string, records []models.GradeRecordDetail) *models.GradeSummary {
	summary := &models.GradeSummary{
		StudentID: studentID,
		Subjects:  make([]models.SubjectResult, 0, len(records)),
	}
	var sum float64
	for _, record := range records {
		summary.Subjects = append(summary.Subjects, models.SubjectResult{
			SubjectID:   record.SubjectID,
			SubjectName: record.SubjectName,
			Total:       record.Total,
			LetterGrade: models.LetterGradeFor(record.Total),
			Passed:      record.Total >= models.PassMark,
		})
		sum += record.Total
	}
	summary.SubjectCount = len(records)
	if len(records) > 0 {
		summary.Average = math.Round(sum/float64(len(records))*100) / 100
	}
	return summary
}

func buildAttendanceSummary(studentID string, counts map[models.AttendanceStatus]int) *models.AttendanceSummary {
	summary := &models.AttendanceSummary{
		StudentID: studentID,
		Present:   counts[models.AttendancePresent],
		Absent:    counts[models.AttendanceAbsent],
		Late:      counts[models.AttendanceLate],
		Excused:   counts[models.AttendanceExcused],
	}
	summary.Total = summary.Present + summary.Absent + summary.Late + summary.Excused
	if summary.Total == 0 {
		summary.Rate = 100
		return summary
	}
	summary.Rate = int(math.Round(float64(summary.Present) / float64(summary.Total) * 100))
	return summary
}
