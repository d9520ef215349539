package models

import "time"

// SubmissionStatus tracks grading progress of a submission.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Assignment belongs to a (class, subject) with a deadline and
// an optional attachment reference.
type Assignment struct {
	ID            string    `db:"id" json:"id"`
	ClassID       string    `db:"class_id" json:"class_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	Title         string    `db:"title" json:"title"`
	Description   string    `db:"description" json:"description"`
	Deadline      time.Time `db:"deadline" json:"deadline"`
	AttachmentRef *string   `db:"attachment_ref" json:"attachment_ref,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentDetail joins class/subject names for responses.
type AssignmentDetail struct {
	Assignment
	ClassName   string `db:"class_name" json:"class_name"`
	SubjectName string `db:"subject_name" json:"subject_name"`
}

// AssignmentFilter scopes assignment listing.
type AssignmentFilter struct {
	ClassID   string
	SubjectID string
	TeacherID string
	Page      int
	PageSize  int
}

// Submission is a student's answer to an assignment, unique per
// (assignment_id, student_id).
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	FileRef      string           `db:"file_ref" json:"file_ref"`
	SubmittedAt  time.Time        `db:"submitted_at" json:"submitted_at"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Grade        *float64         `db:"grade" json:"grade,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionDetail joins student metadata for teacher review lists.
type SubmissionDetail struct {
	Submission
	StudentName     string `db:"student_name" json:"student_name"`
	AdmissionNumber string `db:"admission_number" json:"admission_number"`
}
