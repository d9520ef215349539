package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type mockGradeRepo struct {
	stored     map[string]models.GradeRecord
	upsertErr  error
	listResult []models.GradeRecordDetail
}

func gradeKey(r models.GradeRecord) string {
	return fmt.Sprintf("%s|%s|%s|%d", r.StudentID, r.SubjectID, r.Term, r.Year)
}

func (m *mockGradeRepo) List(ctx context.Context, filter models.GradeFilter) ([]models.GradeRecordDetail, error) {
	return m.listResult, nil
}

func (m *mockGradeRepo) BulkUpsert(ctx context.Context, records []models.GradeRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.stored == nil {
		m.stored = make(map[string]models.GradeRecord)
	}
	for _, record := range records {
		m.stored[gradeKey(record)] = record
	}
	return nil
}

type mockStudentChecker struct {
	known map[string]bool
}

func (m *mockStudentChecker) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		if m.known[id] {
			result[id] = true
		}
	}
	return result, nil
}

type mockSubjectReader struct {
	subjects map[string]models.Subject
}

func (m *mockSubjectReader) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	if subject, ok := m.subjects[id]; ok {
		return &subject, nil
	}
	return nil, sql.ErrNoRows
}

func newGradeServiceFixture(knownStudents ...string) (*GradeService, *mockGradeRepo) {
	repo := &mockGradeRepo{}
	students := &mockStudentChecker{known: map[string]bool{}}
	for _, id := range knownStudents {
		students.known[id] = true
	}
	subjects := &mockSubjectReader{subjects: map[string]models.Subject{
		"sub-1": {ID: "sub-1", Code: "MTH", Name: "Mathematics"},
	}}
	svc := NewGradeService(repo, students, subjects, nil, nil, nil, zap.NewNop())
	return svc, repo
}

func TestGradeServiceSubmitComputesTotal(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	result, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1",
		Term:      "TERM1",
		Year:      2026,
		Entries:   []GradeEntry{{StudentID: "stu-1", Test1: 20, Test2: 18, Exam: 55}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)

	stored := repo.stored["stu-1|sub-1|TERM1|2026"]
	assert.Equal(t, 93.0, stored.Total)
}

func TestGradeServiceSubmitOmittedComponentsDefaultZero(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1",
		Term:      "TERM1",
		Year:      2026,
		Entries:   []GradeEntry{{StudentID: "stu-1", Exam: 40}},
	})
	require.NoError(t, err)
	assert.Equal(t, 40.0, repo.stored["stu-1|sub-1|TERM1|2026"].Total)
}

func TestGradeServiceSubmitResubmissionOverwrites(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1", Term: "TERM1", Year: 2026,
		Entries: []GradeEntry{{StudentID: "stu-1", Test1: 10, Test2: 10, Exam: 30}},
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1", Term: "TERM1", Year: 2026,
		Entries: []GradeEntry{{StudentID: "stu-1", Test1: 20, Test2: 18, Exam: 55}},
	})
	require.NoError(t, err)

	require.Len(t, repo.stored, 1)
	assert.Equal(t, 93.0, repo.stored["stu-1|sub-1|TERM1|2026"].Total)
}

func TestGradeServiceSubmitLastDuplicateWins(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	result, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1", Term: "TERM1", Year: 2026,
		Entries: []GradeEntry{
			{StudentID: "stu-1", Test1: 5, Test2: 5, Exam: 5},
			{StudentID: "stu-1", Test1: 20, Test2: 18, Exam: 55},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 93.0, repo.stored["stu-1|sub-1|TERM1|2026"].Total)
}

func TestGradeServiceSubmitUnknownSubjectRejectsBatch(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "missing", Term: "TERM1", Year: 2026,
		Entries: []GradeEntry{{StudentID: "stu-1", Exam: 50}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrReferentialIntegrity.Code, appErr.Code)
	assert.Empty(t, repo.stored)
}

func TestGradeServiceSubmitUnknownStudentRejectsWholeBatch(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1", Term: "TERM1", Year: 2026,
		Entries: []GradeEntry{
			{StudentID: "stu-1", Exam: 50},
			{StudentID: "ghost", Exam: 60},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrReferentialIntegrity.Code, appErr.Code)
	assert.Empty(t, repo.stored, "no entry may persist when any entry is invalid")
}

func TestGradeServiceSubmitNegativeScoreRejected(t *testing.T) {
	svc, repo := newGradeServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1", Term: "TERM1", Year: 2026,
		Entries: []GradeEntry{{StudentID: "stu-1", Test1: -1, Exam: 50}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.stored)
}

func TestGradeServiceSubmitEmptyBatchNoop(t *testing.T) {
	svc, repo := newGradeServiceFixture()

	result, err := svc.Submit(context.Background(), SubmitGradesRequest{
		SubjectID: "sub-1", Term: "TERM1", Year: 2026,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accepted)
	assert.Empty(t, repo.stored)
}
