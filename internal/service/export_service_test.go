package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
)

type mockSheetSource struct {
	rows []models.GradeSheetRow
}

func (m *mockSheetSource) SheetRows(ctx context.Context, subjectID, term string, year int) ([]models.GradeSheetRow, error) {
	return m.rows, nil
}

func newExportServiceFixture(rows ...models.GradeSheetRow) *ExportService {
	subjects := &mockSubjectReader{subjects: map[string]models.Subject{
		"sub-1": {ID: "sub-1", Code: "MTH", Name: "Mathematics"},
	}}
	return NewExportService(&mockSheetSource{rows: rows}, subjects, export.NewCSVExporter(), zap.NewNop())
}

func TestGradeSheetCSVRendersRows(t *testing.T) {
	svc := newExportServiceFixture(
		models.GradeSheetRow{StudentID: "stu-1", StudentName: "Ade Putra", AdmissionNumber: "ADM-0001", Test1: 18, Test2: 19, Exam: 48, Total: 85},
		models.GradeSheetRow{StudentID: "stu-2", StudentName: "Bella Sari", AdmissionNumber: "ADM-0002", Test1: 10, Test2: 12, Exam: 20, Total: 42},
	)

	sheet, err := svc.GradeSheetCSV(context.Background(), "sub-1", "T1", 2026)
	require.NoError(t, err)
	assert.Equal(t, "grade-sheet-MTH-T1-2026.csv", sheet.Filename)

	lines := strings.Split(strings.TrimSpace(string(sheet.Payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Admission No,Student,Test 1,Test 2,Exam,Total,Grade", lines[0])
	assert.Equal(t, "ADM-0001,Ade Putra,18.0,19.0,48.0,85.0,A", lines[1])
	assert.Equal(t, "ADM-0002,Bella Sari,10.0,12.0,20.0,42.0,F", lines[2])
}

func TestGradeSheetCSVEmptySheetStillHasHeader(t *testing.T) {
	svc := newExportServiceFixture()

	sheet, err := svc.GradeSheetCSV(context.Background(), "sub-1", "T2", 2026)
	require.NoError(t, err)
	assert.Equal(t, "Admission No,Student,Test 1,Test 2,Exam,Total,Grade\n", string(sheet.Payload))
}

func TestGradeSheetCSVRequiresTermAndYear(t *testing.T) {
	svc := newExportServiceFixture()

	_, err := svc.GradeSheetCSV(context.Background(), "sub-1", "", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.GradeSheetCSV(context.Background(), "sub-1", "T1", 0)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeSheetCSVUnknownSubject(t *testing.T) {
	svc := newExportServiceFixture()

	_, err := svc.GradeSheetCSV(context.Background(), "sub-missing", "T1", 2026)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
