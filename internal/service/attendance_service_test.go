package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type mockAttendanceRepo struct {
	stored    map[string]models.AttendanceRecord
	upsertErr error
}

func attendanceKey(r models.AttendanceRecord) string {
	return fmt.Sprintf("%s|%s", r.StudentID, r.Date.Format("2006-01-02"))
}

func (m *mockAttendanceRepo) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	return nil, 0, nil
}

func (m *mockAttendanceRepo) BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if m.stored == nil {
		m.stored = make(map[string]models.AttendanceRecord)
	}
	for _, record := range records {
		m.stored[attendanceKey(record)] = record
	}
	return nil
}

func (m *mockAttendanceRepo) ClassOnDate(ctx context.Context, classID string, date time.Time) ([]models.AttendanceRecordDetail, error) {
	return nil, nil
}

type mockClassReader struct {
	classes map[string]models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if class, ok := m.classes[id]; ok {
		return &class, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassMembership struct {
	members map[string]bool
}

func (m *mockClassMembership) ClassMembers(ctx context.Context, classID string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool, len(ids))
	for _, id := range ids {
		if m.members[id] {
			result[id] = true
		}
	}
	return result, nil
}

func newAttendanceServiceFixture(members ...string) (*AttendanceService, *mockAttendanceRepo) {
	repo := &mockAttendanceRepo{}
	classes := &mockClassReader{classes: map[string]models.Class{"class-1": {ID: "class-1", Name: "Grade 10A"}}}
	membership := &mockClassMembership{members: map[string]bool{}}
	for _, id := range members {
		membership.members[id] = true
	}
	svc := NewAttendanceService(repo, classes, membership, nil, nil, nil, zap.NewNop())
	return svc, repo
}

func TestAttendanceServiceSubmitStoresNormalizedDate(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1")

	result, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1",
		Date:    "2026-03-02",
		Records: []AttendanceMark{{StudentID: "stu-1", Status: "PRESENT"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)

	stored := repo.stored["stu-1|2026-03-02"]
	assert.Equal(t, models.AttendancePresent, stored.Status)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), stored.Date)
}

func TestAttendanceServiceSubmitRemarkOverwrites(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "2026-03-02",
		Records: []AttendanceMark{{StudentID: "stu-1", Status: "ABSENT"}},
	})
	require.NoError(t, err)
	_, err = svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "2026-03-02",
		Records: []AttendanceMark{{StudentID: "stu-1", Status: "LATE"}},
	})
	require.NoError(t, err)

	require.Len(t, repo.stored, 1)
	assert.Equal(t, models.AttendanceLate, repo.stored["stu-1|2026-03-02"].Status)
}

func TestAttendanceServiceSubmitInvalidStatusRejectsBatch(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1", "stu-2")

	_, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "2026-03-02",
		Records: []AttendanceMark{
			{StudentID: "stu-1", Status: "PRESENT"},
			{StudentID: "stu-2", Status: "SLEEPING"},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.stored)
}

func TestAttendanceServiceSubmitInvalidDateRejected(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "02-03-2026",
		Records: []AttendanceMark{{StudentID: "stu-1", Status: "PRESENT"}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.stored)
}

func TestAttendanceServiceSubmitStudentOutsideClassRejectsBatch(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "2026-03-02",
		Records: []AttendanceMark{
			{StudentID: "stu-1", Status: "PRESENT"},
			{StudentID: "outsider", Status: "PRESENT"},
		},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrReferentialIntegrity.Code, appErr.Code)
	assert.Empty(t, repo.stored)
}

func TestAttendanceServiceSubmitUnknownClassRejected(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1")

	_, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "ghost-class", Date: "2026-03-02",
		Records: []AttendanceMark{{StudentID: "stu-1", Status: "PRESENT"}},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrReferentialIntegrity.Code, appErr.Code)
	assert.Empty(t, repo.stored)
}

func TestAttendanceServiceSubmitEmptyBatchNoop(t *testing.T) {
	svc, repo := newAttendanceServiceFixture()

	result, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "2026-03-02",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accepted)
	assert.Empty(t, repo.stored)
}

func TestAttendanceServiceSubmitLastDuplicateWins(t *testing.T) {
	svc, repo := newAttendanceServiceFixture("stu-1")

	result, err := svc.Submit(context.Background(), SubmitAttendanceRequest{
		ClassID: "class-1", Date: "2026-03-02",
		Records: []AttendanceMark{
			{StudentID: "stu-1", Status: "ABSENT"},
			{StudentID: "stu-1", Status: "EXCUSED"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, models.AttendanceExcused, repo.stored["stu-1|2026-03-02"].Status)
}
