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

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryBulkUpsertCommits(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	records := []models.AttendanceRecord{
		{StudentID: "stu-1", Date: date, Status: models.AttendancePresent},
		{StudentID: "stu-2", Date: date, Status: models.AttendanceLate},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.NoError(t, err)
	assert.NotEmpty(t, records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryBulkUpsertRollsBackOnFailure(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	records := []models.AttendanceRecord{
		{StudentID: "missing", Date: time.Now(), Status: models.AttendanceAbsent},
	}
	err := repo.BulkUpsert(context.Background(), records)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryStatusCounts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	rows := sqlmock.NewRows([]string{"status", "cnt"}).
		AddRow("PRESENT", 7).
		AddRow("ABSENT", 2).
		AddRow("LATE", 1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) AS cnt")).
		WithArgs("stu-1").
		WillReturnRows(rows)

	counts, err := repo.StatusCounts(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 7, counts[models.AttendancePresent])
	assert.Equal(t, 2, counts[models.AttendanceAbsent])
	assert.Equal(t, 1, counts[models.AttendanceLate])
	assert.Equal(t, 0, counts[models.AttendanceExcused])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryClassOnDate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "student_id", "date", "status", "created_at", "updated_at", "student_name", "admission_number"}).
		AddRow("att-1", "stu-1", date, "PRESENT", now, now, "Ade Putra", "ADM-001")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.id, a.student_id, a.date, a.status")).
		WithArgs("class-1", date).
		WillReturnRows(rows)

	marks, err := repo.ClassOnDate(context.Background(), "class-1", date)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, models.AttendancePresent, marks[0].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
