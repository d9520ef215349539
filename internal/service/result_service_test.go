package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type mockStudentReader struct {
	students map[string]models.StudentDetail
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if student, ok := m.students[id]; ok {
		return &student, nil
	}
	return nil, sql.ErrNoRows
}

type mockGradeLister struct {
	records []models.GradeRecordDetail
}

func (m *mockGradeLister) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecordDetail, error) {
	return m.records, nil
}

type mockAttendanceCounter struct {
	counts map[models.AttendanceStatus]int
}

func (m *mockAttendanceCounter) StatusCounts(ctx context.Context, studentID string) (map[models.AttendanceStatus]int, error) {
	return m.counts, nil
}

func gradeDetail(subjectID, name string, total float64) models.GradeRecordDetail {
	return models.GradeRecordDetail{
		GradeRecord: models.GradeRecord{StudentID: "stu-1", SubjectID: subjectID, Term: "TERM1", Year: 2026, Total: total},
		SubjectName: name,
	}
}

func newResultServiceFixture(records []models.GradeRecordDetail, counts map[models.AttendanceStatus]int) *ResultService {
	students := &mockStudentReader{students: map[string]models.StudentDetail{
		"stu-1": {Student: models.Student{ID: "stu-1", AdmissionNumber: "ADM-001"}, FullName: "Ade Putra"},
	}}
	return NewResultService(students, &mockGradeLister{records: records}, &mockAttendanceCounter{counts: counts}, nil, zap.NewNop())
}

func TestResultServiceGradeSummaryBanding(t *testing.T) {
	svc := newResultServiceFixture([]models.GradeRecordDetail{
		gradeDetail("sub-1", "Mathematics", 95),
		gradeDetail("sub-2", "Physics", 75),
		gradeDetail("sub-3", "Chemistry", 65),
		gradeDetail("sub-4", "Biology", 55),
		gradeDetail("sub-5", "History", 45),
	}, nil)

	summary, err := svc.GradeSummary(context.Background(), "stu-1", "TERM1", 2026)
	require.NoError(t, err)
	require.Len(t, summary.Subjects, 5)

	expected := []models.LetterGrade{models.GradeA, models.GradeB, models.GradeC, models.GradeD, models.GradeF}
	for i, subject := range summary.Subjects {
		assert.Equal(t, expected[i], subject.LetterGrade, subject.SubjectName)
	}
	assert.True(t, summary.Subjects[0].Passed)
	assert.False(t, summary.Subjects[4].Passed)
	assert.Equal(t, 5, summary.SubjectCount)
	assert.Equal(t, 67.0, summary.Average)
}

func TestResultServiceGradeSummaryPassBoundary(t *testing.T) {
	svc := newResultServiceFixture([]models.GradeRecordDetail{
		gradeDetail("sub-1", "Mathematics", 50),
		gradeDetail("sub-2", "Physics", 49.5),
	}, nil)

	summary, err := svc.GradeSummary(context.Background(), "stu-1", "TERM1", 2026)
	require.NoError(t, err)
	assert.True(t, summary.Subjects[0].Passed)
	assert.Equal(t, models.GradeD, summary.Subjects[0].LetterGrade)
	assert.False(t, summary.Subjects[1].Passed)
	assert.Equal(t, models.GradeF, summary.Subjects[1].LetterGrade)
}

func TestResultServiceGradeSummaryNoRecords(t *testing.T) {
	svc := newResultServiceFixture(nil, nil)

	summary, err := svc.GradeSummary(context.Background(), "stu-1", "TERM1", 2026)
	require.NoError(t, err)
	assert.Equal(t, 0.0, summary.Average)
	assert.Equal(t, 0, summary.SubjectCount)
	assert.NotNil(t, summary.Subjects)
	assert.Empty(t, summary.Subjects)
}

func TestResultServiceGradeSummaryUnknownStudent(t *testing.T) {
	svc := newResultServiceFixture(nil, nil)

	_, err := svc.GradeSummary(context.Background(), "ghost", "TERM1", 2026)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestResultServiceAttendanceSummaryRate(t *testing.T) {
	svc := newResultServiceFixture(nil, map[models.AttendanceStatus]int{
		models.AttendancePresent: 7,
		models.AttendanceAbsent:  2,
		models.AttendanceLate:    1,
	})

	summary, err := svc.AttendanceSummary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Total)
	assert.Equal(t, 7, summary.Present)
	assert.Equal(t, 2, summary.Absent)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 0, summary.Excused)
	assert.Equal(t, 70, summary.Rate)
}

func TestResultServiceAttendanceSummaryRounding(t *testing.T) {
	svc := newResultServiceFixture(nil, map[models.AttendanceStatus]int{
		models.AttendancePresent: 2,
		models.AttendanceAbsent:  1,
	})

	summary, err := svc.AttendanceSummary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 67, summary.Rate)
}

func TestResultServiceAttendanceSummaryNoRecords(t *testing.T) {
	svc := newResultServiceFixture(nil, map[models.AttendanceStatus]int{})

	summary, err := svc.AttendanceSummary(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 100, summary.Rate)
}

func TestResultServiceAttendanceSummaryUnknownStudent(t *testing.T) {
	svc := newResultServiceFixture(nil, nil)

	_, err := svc.AttendanceSummary(context.Background(), "ghost")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
