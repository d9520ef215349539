package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

type assignmentRepo interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type submissionRepo interface {
	Upsert(ctx context.Context, submission *models.Submission) (*models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error)
	FindByKey(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	SetGrade(ctx context.Context, id string, grade float64, feedback *string) error
}

type fileStore interface {
	Save(filename string, data []byte) (string, error)
}

// CreateAssignmentRequest publishes homework for a (class, subject).
type CreateAssignmentRequest struct {
	ClassID     string    `json:"class_id" validate:"required"`
	SubjectID   string    `json:"subject_id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

// UpdateAssignmentRequest edits an assignment.
type UpdateAssignmentRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Deadline    *time.Time `json:"deadline"`
}

// GradeSubmissionRequest records a teacher's mark on a submission.
type GradeSubmissionRequest struct {
	Grade    float64 `json:"grade" validate:"gte=0"`
	Feedback *string `json:"feedback"`
}

// AssignmentService manages assignments and student submissions.
type AssignmentService struct {
	assignments assignmentRepo
	submissions submissionRepo
	classes     classReader
	subjects    subjectReader
	students    studentReader
	uploads     fileStore
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(assignments assignmentRepo, submissions submissionRepo, classes classReader, subjects subjectReader, students studentReader, uploads fileStore, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments: assignments,
		submissions: submissions,
		classes:     classes,
		subjects:    subjects,
		students:    students,
		uploads:     uploads,
		validator:   validate,
		logger:      logger,
	}
}

// List returns assignments matching the filter.
func (s *AssignmentService) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	assignments, total, err := s.assignments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, total, nil
}

// Get returns one assignment.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// Create publishes an assignment, optionally attaching a file.
func (s *AssignmentService) Create(ctx context.Context, teacherID string, req CreateAssignmentRequest, attachmentName string, attachment []byte) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "class does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if _, err := s.subjects.FindByID(ctx, req.SubjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "subject does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	assignment := &models.Assignment{
		ClassID:     req.ClassID,
		SubjectID:   req.SubjectID,
		TeacherID:   teacherID,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    req.Deadline,
	}
	if len(attachment) > 0 {
		ref, err := s.storeFile("assignments", attachmentName, attachment)
		if err != nil {
			return nil, err
		}
		assignment.AttachmentRef = &ref
	}
	if err := s.assignments.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// Update edits an assignment's title, description and deadline.
func (s *AssignmentService) Update(ctx context.Context, id string, req UpdateAssignmentRequest) (*models.Assignment, error) {
	assignment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		assignment.Title = req.Title
	}
	if req.Description != nil {
		assignment.Description = *req.Description
	}
	if req.Deadline != nil {
		assignment.Deadline = *req.Deadline
	}
	if err := s.assignments.Update(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	return assignment, nil
}

// Delete removes an assignment.
func (s *AssignmentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.assignments.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Submit stores a student's answer file and upserts the submission record.
// Resubmitting before grading replaces the file and keeps one row per
// (assignment, student).
func (s *AssignmentService) Submit(ctx context.Context, assignmentID, studentID, filename string, data []byte) (*models.Submission, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission file is empty")
	}
	assignment, err := s.Get(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReferentialIntegrity, "student does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.ClassID == nil || *student.ClassID != assignment.ClassID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "student is not in the assignment's class")
	}

	ref, err := s.storeFile("submissions", filename, data)
	if err != nil {
		return nil, err
	}
	submission := &models.Submission{
		AssignmentID: assignmentID,
		StudentID:    studentID,
		FileRef:      ref,
		SubmittedAt:  time.Now().UTC(),
		Status:       models.SubmissionSubmitted,
	}
	stored, err := s.submissions.Upsert(ctx, submission)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission")
	}
	s.logger.Info("submission stored",
		zap.String("assignment_id", assignmentID),
		zap.String("student_id", studentID),
		zap.Bool("late", stored.SubmittedAt.After(assignment.Deadline)))
	return stored, nil
}

// Submissions lists every submission for an assignment.
func (s *AssignmentService) Submissions(ctx context.Context, assignmentID string) ([]models.SubmissionDetail, error) {
	if _, err := s.Get(ctx, assignmentID); err != nil {
		return nil, err
	}
	submissions, err := s.submissions.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// GradeSubmission records a mark and feedback on one submission.
func (s *AssignmentService) GradeSubmission(ctx context.Context, assignmentID, studentID string, req GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}
	submission, err := s.submissions.FindByKey(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	if err := s.submissions.SetGrade(ctx, submission.ID, req.Grade, req.Feedback); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	submission.Grade = &req.Grade
	submission.Feedback = req.Feedback
	submission.Status = models.SubmissionGraded
	return submission, nil
}

func (s *AssignmentService) storeFile(prefix, filename string, data []byte) (string, error) {
	name := fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), filepath.Ext(filename))
	ref, err := s.uploads.Save(name, data)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	return ref, nil
}
