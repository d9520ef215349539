package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
	"github.com/noah-isme/school-portal-api/pkg/export"
	"github.com/noah-isme/school-portal-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	FindByID(ctx context.Context, id string) (*models.ReportJob, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, fileRef string) error
	MarkFailed(ctx context.Context, id, detail string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type summarySource interface {
	GradeSummary(ctx context.Context, studentID, term string, year int) (*models.GradeSummary, error)
	AttendanceSummary(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type reportCardRenderer interface {
	RenderReportCard(card export.ReportCard) ([]byte, error)
}

// CreateReportRequest queues report card generation for one student.
type CreateReportRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Term      string `json:"term" validate:"required"`
	Year      int    `json:"year" validate:"required,gte=2000,lte=2100"`
}

// ReportDownload pairs a completed job with a signed download token.
type ReportDownload struct {
	Job       models.ReportJob `json:"job"`
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// ReportService manages the report card job lifecycle: queue, track,
// download.
type ReportService struct {
	repo      reportJobStore
	students  studentReader
	queue     jobDispatcher
	signer    urlSigner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(repo reportJobStore, students studentReader, queue jobDispatcher, signer urlSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		students:  students,
		queue:     queue,
		signer:    signer,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create persists a PENDING job and enqueues it for the worker.
func (s *ReportService) Create(ctx context.Context, requestedBy string, req CreateReportRequest) (*models.ReportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report request")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	job := &models.ReportJob{
		StudentID:   req.StudentID,
		Term:        req.Term,
		Year:        req.Year,
		RequestedBy: requestedBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "report_card"}); err != nil {
		_ = s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	s.logger.Info("report job queued",
		zap.String("job_id", job.ID),
		zap.String("student_id", job.StudentID),
		zap.String("term", job.Term),
		zap.Int("year", job.Year))
	return job, nil
}

// Status returns a job's current state.
func (s *ReportService) Status(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	return job, nil
}

// ListByStudent returns a student's report jobs, newest first.
func (s *ReportService) ListByStudent(ctx context.Context, studentID string) ([]models.ReportJob, error) {
	jobs, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return jobs, nil
}

// Download returns a signed token for a completed report.
func (s *ReportService) Download(ctx context.Context, id string) (*ReportDownload, error) {
	job, err := s.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ReportJobCompleted || job.FileRef == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "report is not ready for download")
	}
	token, expiresAt, err := s.signer.Generate(job.ID, *job.FileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &ReportDownload{Job: *job, Token: token, ExpiresAt: expiresAt}, nil
}

// ReportWorker renders queued report cards. It bridges the job queue to the
// summary services and the PDF exporter.
type ReportWorker struct {
	repo     reportJobStore
	students studentReader
	results  summarySource
	pdf      reportCardRenderer
	store    fileStore
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, students studentReader, results summarySource, pdf reportCardRenderer, store fileStore, metrics *MetricsService, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportWorker{
		repo:     repo,
		students: students,
		results:  results,
		pdf:      pdf,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// Handle processes one queued job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.FindByID(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load report job %s: %w", job.ID, err)
	}
	if err := w.repo.MarkProcessing(ctx, record.ID); err != nil {
		return fmt.Errorf("mark report job processing: %w", err)
	}

	fileRef, err := w.generate(ctx, record)
	if err != nil {
		if markErr := w.repo.MarkFailed(ctx, record.ID, err.Error()); markErr != nil {
			w.logger.Warn("failed to mark report job failed", zap.String("job_id", record.ID), zap.Error(markErr))
		}
		if w.metrics != nil {
			w.metrics.RecordReportJob(string(models.ReportJobFailed))
		}
		return err
	}
	if err := w.repo.MarkCompleted(ctx, record.ID, fileRef); err != nil {
		return fmt.Errorf("mark report job completed: %w", err)
	}
	if w.metrics != nil {
		w.metrics.RecordReportJob(string(models.ReportJobCompleted))
	}
	w.logger.Info("report card generated", zap.String("job_id", record.ID), zap.String("file_ref", fileRef))
	return nil
}

func (w *ReportWorker) generate(ctx context.Context, job *models.ReportJob) (string, error) {
	student, err := w.students.FindByID(ctx, job.StudentID)
	if err != nil {
		return "", fmt.Errorf("load student: %w", err)
	}
	grades, err := w.results.GradeSummary(ctx, job.StudentID, job.Term, job.Year)
	if err != nil {
		return "", fmt.Errorf("grade summary: %w", err)
	}
	attendance, err := w.results.AttendanceSummary(ctx, job.StudentID)
	if err != nil {
		return "", fmt.Errorf("attendance summary: %w", err)
	}

	subjects := export.Dataset{Headers: []string{"Subject", "Total", "Grade", "Passed"}}
	for _, subject := range grades.Subjects {
		passed := "NO"
		if subject.Passed {
			passed = "YES"
		}
		subjects.Rows = append(subjects.Rows, map[string]string{
			"Subject": subject.SubjectName,
			"Total":   strconv.FormatFloat(subject.Total, 'f', 1, 64),
			"Grade":   string(subject.LetterGrade),
			"Passed":  passed,
		})
	}
	className := ""
	if student.ClassName != nil {
		className = *student.ClassName
	}
	card := export.ReportCard{
		StudentName:     student.FullName,
		AdmissionNumber: student.AdmissionNumber,
		ClassName:       className,
		Term:            job.Term,
		Year:            job.Year,
		Subjects:        subjects,
		Average:         grades.Average,
		AttendanceRate:  attendance.Rate,
	}
	payload, err := w.pdf.RenderReportCard(card)
	if err != nil {
		return "", fmt.Errorf("render report card: %w", err)
	}
	name := fmt.Sprintf("report-cards/%s-%s-%d.pdf", job.StudentID, job.Term, job.Year)
	ref, err := w.store.Save(name, payload)
	if err != nil {
		return "", fmt.Errorf("store report card: %w", err)
	}
	return ref, nil
}
