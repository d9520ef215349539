package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
)

type mockReportStore struct {
	jobs    map[string]*models.ReportJob
	nextID  int
	markErr error
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{jobs: map[string]*models.ReportJob{}}
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	m.nextID++
	job.ID = fmt.Sprintf("job-%d", m.nextID)
	job.Status = models.ReportJobPending
	stored := *job
	m.jobs[job.ID] = &stored
	return nil
}

func (m *mockReportStore) FindByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if job, ok := m.jobs[id]; ok {
		copied := *job
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) ListByStudent(ctx context.Context, studentID string) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range m.jobs {
		if job.StudentID == studentID {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (m *mockReportStore) MarkProcessing(ctx context.Context, id string) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.jobs[id].Status = models.ReportJobProcessing
	return nil
}

func (m *mockReportStore) MarkCompleted(ctx context.Context, id, fileRef string) error {
	m.jobs[id].Status = models.ReportJobCompleted
	m.jobs[id].FileRef = &fileRef
	return nil
}

func (m *mockReportStore) MarkFailed(ctx context.Context, id, detail string) error {
	m.jobs[id].Status = models.ReportJobFailed
	m.jobs[id].ErrorDetail = &detail
	return nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockSigner struct{}

func (m *mockSigner) Generate(recordID, relPath string) (string, time.Time, error) {
	return "signed-" + recordID, time.Now().Add(time.Hour), nil
}

type mockSummarySource struct {
	grades     *models.GradeSummary
	attendance *models.AttendanceSummary
}

func (m *mockSummarySource) GradeSummary(ctx context.Context, studentID, term string, year int) (*models.GradeSummary, error) {
	return m.grades, nil
}

func (m *mockSummarySource) AttendanceSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	return m.attendance, nil
}

type mockFileStore struct {
	saved map[string][]byte
}

func (m *mockFileStore) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[filename] = data
	return filename, nil
}

func reportTestStudents() *mockStudentReader {
	className := "JSS1A"
	return &mockStudentReader{students: map[string]models.StudentDetail{
		"stu-1": {
			Student:   models.Student{ID: "stu-1", AdmissionNumber: "ADM-0001"},
			FullName:  "Ade Putra",
			ClassName: &className,
		},
	}}
}

func newReportServiceFixture(dispatcher *mockDispatcher) (*ReportService, *mockReportStore) {
	store := newMockReportStore()
	svc := NewReportService(store, reportTestStudents(), dispatcher, &mockSigner{}, nil, nil, zap.NewNop())
	return svc, store
}

func TestReportServiceCreateQueuesJob(t *testing.T) {
	dispatcher := &mockDispatcher{}
	svc, store := newReportServiceFixture(dispatcher)

	job, err := svc.Create(context.Background(), "user-1", CreateReportRequest{StudentID: "stu-1", Term: "T1", Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, models.ReportJobPending, job.Status)
	assert.Equal(t, "user-1", job.RequestedBy)

	require.Len(t, dispatcher.enqueued, 1)
	assert.Equal(t, job.ID, dispatcher.enqueued[0].ID)
	assert.Equal(t, "report_card", dispatcher.enqueued[0].Type)

	stored, err := store.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "stu-1", stored.StudentID)
}

func TestReportServiceCreateUnknownStudent(t *testing.T) {
	svc, _ := newReportServiceFixture(&mockDispatcher{})

	_, err := svc.Create(context.Background(), "user-1", CreateReportRequest{StudentID: "stu-missing", Term: "T1", Year: 2026})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateEnqueueFailureMarksJobFailed(t *testing.T) {
	dispatcher := &mockDispatcher{err: errors.New("queue stopped")}
	svc, store := newReportServiceFixture(dispatcher)

	_, err := svc.Create(context.Background(), "user-1", CreateReportRequest{StudentID: "stu-1", Term: "T1", Year: 2026})
	require.Error(t, err)

	jobsForStudent, err := store.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, jobsForStudent, 1)
	assert.Equal(t, models.ReportJobFailed, jobsForStudent[0].Status)
}

func TestReportServiceDownloadRequiresCompletedJob(t *testing.T) {
	svc, store := newReportServiceFixture(&mockDispatcher{})

	job, err := svc.Create(context.Background(), "user-1", CreateReportRequest{StudentID: "stu-1", Term: "T1", Year: 2026})
	require.NoError(t, err)

	_, err = svc.Download(context.Background(), job.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	require.NoError(t, store.MarkCompleted(context.Background(), job.ID, "report-cards/stu-1-T1-2026.pdf"))

	download, err := svc.Download(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "signed-"+job.ID, download.Token)
	assert.Equal(t, models.ReportJobCompleted, download.Job.Status)
}

func TestReportWorkerHandleGeneratesAndCompletes(t *testing.T) {
	store := newMockReportStore()
	files := &mockFileStore{}
	results := &mockSummarySource{
		grades: &models.GradeSummary{
			StudentID: "stu-1",
			Subjects: []models.SubjectResult{
				{SubjectID: "sub-1", SubjectName: "Mathematics", Total: 85, LetterGrade: models.LetterGradeFor(85), Passed: true},
			},
			Average:      85,
			SubjectCount: 1,
		},
		attendance: &models.AttendanceSummary{StudentID: "stu-1", Total: 10, Present: 9, Rate: 90},
	}
	worker := NewReportWorker(store, reportTestStudents(), results, export.NewPDFExporter(), files, nil, zap.NewNop())

	job := &models.ReportJob{StudentID: "stu-1", Term: "T1", Year: 2026, RequestedBy: "user-1"}
	require.NoError(t, store.Create(context.Background(), job))

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Type: "report_card"}))

	stored, err := store.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportJobCompleted, stored.Status)
	require.NotNil(t, stored.FileRef)
	assert.Contains(t, files.saved, *stored.FileRef)
	assert.NotEmpty(t, files.saved[*stored.FileRef])
}

func TestReportWorkerHandleUnknownJob(t *testing.T) {
	worker := NewReportWorker(newMockReportStore(), reportTestStudents(), &mockSummarySource{}, export.NewPDFExporter(), &mockFileStore{}, nil, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-missing", Type: "report_card"})
	require.Error(t, err)
}
