package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

type gradeSheetSource interface {
	SheetRows(ctx context.Context, subjectID, term string, year int) ([]models.GradeSheetRow, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// GradeSheet is a rendered CSV export with a suggested filename.
type GradeSheet struct {
	Filename string
	Payload  []byte
}

// ExportService produces synchronous tabular exports.
type ExportService struct {
	grades   gradeSheetSource
	subjects subjectReader
	csv      csvRenderer
	logger   *zap.Logger
}

// NewExportService constructs ExportService.
func NewExportService(grades gradeSheetSource, subjects subjectReader, csv csvRenderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{grades: grades, subjects: subjects, csv: csv, logger: logger}
}

// GradeSheetCSV renders one subject's grade sheet for a term and year.
func (s *ExportService) GradeSheetCSV(ctx context.Context, subjectID, term string, year int) (*GradeSheet, error) {
	if term == "" || year == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term and year are required")
	}
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	rows, err := s.grades.SheetRows(ctx, subjectID, term, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade sheet")
	}

	data := export.Dataset{Headers: []string{"Admission No", "Student", "Test 1", "Test 2", "Exam", "Total", "Grade"}}
	for _, row := range rows {
		data.Rows = append(data.Rows, map[string]string{
			"Admission No": row.AdmissionNumber,
			"Student":      row.StudentName,
			"Test 1":       strconv.FormatFloat(row.Test1, 'f', 1, 64),
			"Test 2":       strconv.FormatFloat(row.Test2, 'f', 1, 64),
			"Exam":         strconv.FormatFloat(row.Exam, 'f', 1, 64),
			"Total":        strconv.FormatFloat(row.Total, 'f', 1, 64),
			"Grade":        string(models.LetterGradeFor(row.Total)),
		})
	}
	payload, err := s.csv.Render(data)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render grade sheet")
	}
	return &GradeSheet{
		Filename: fmt.Sprintf("grade-sheet-%s-%s-%d.csv", subject.Code, term, year),
		Payload:  payload,
	}, nil
}
