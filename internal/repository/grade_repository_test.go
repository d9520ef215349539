package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/models"
)

func newGradeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestGradeRepositoryListByStudent(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "term", "year", "test1", "test2", "exam", "total", "created_at", "updated_at", "subject_name", "subject_code"}).
		AddRow("grade-1", "stu-1", "sub-1", "TERM1", 2026, 20.0, 18.0, 55.0, 93.0, now, now, "Mathematics", "MTH").
		AddRow("grade-2", "stu-1", "sub-2", "TERM1", 2026, 15.0, 12.0, 40.0, 67.0, now, now, "Physics", "PHY")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT g.id, g.student_id, g.subject_id")).
		WithArgs("stu-1", "TERM1", 2026).
		WillReturnRows(rows)

	records, err := repo.List(context.Background(), models.GradeFilter{StudentID: "stu-1", Term: "TERM1", Year: 2026})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Mathematics", records[0].SubjectName)
	assert.Equal(t, 93.0, records[0].Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertCommits(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	records := []models.GradeRecord{
		{StudentID: "stu-1", SubjectID: "sub-1", Term: "TERM1", Year: 2026, Test1: 20, Test2: 18, Exam: 55, Total: 93},
		{StudentID: "stu-2", SubjectID: "sub-1", Term: "TERM1", Year: 2026, Test1: 10, Test2: 12, Exam: 30, Total: 52},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.NotEmpty(t, records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grade_records")).
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	records := []models.GradeRecord{
		{StudentID: "stu-1", SubjectID: "sub-1", Term: "TERM1", Year: 2026, Total: 93},
		{StudentID: "stu-2", SubjectID: "missing", Term: "TERM1", Year: 2026, Total: 52},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryBulkUpsertEmptyBatchNoop(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	err := repo.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGradeRepositoryFetchByStudents(t *testing.T) {
	db, mock, cleanup := newGradeRepoMock(t)
	defer cleanup()
	repo := NewGradeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "subject_id", "term", "year", "test1", "test2", "exam", "total", "created_at", "updated_at"}).
		AddRow("grade-1", "stu-1", "sub-1", "TERM1", 2026, 20.0, 18.0, 55.0, 93.0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, subject_id")).
		WithArgs("stu-1", "stu-2", "sub-1", "TERM1", 2026).
		WillReturnRows(rows)

	result, err := repo.FetchByStudents(context.Background(), []string{"stu-1", "stu-2"}, "sub-1", "TERM1", 2026)
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, 93.0, result["stu-1"].Total)
	require.NoError(t, mock.ExpectationsWereMet())
}
