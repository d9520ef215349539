package models

import "time"

// LetterGrade is the discrete band a total score maps to.
type LetterGrade string

const (
	GradeA LetterGrade = "A"
	GradeB LetterGrade = "B"
	GradeC LetterGrade = "C"
	GradeD LetterGrade = "D"
	GradeF LetterGrade = "F"
)

// PassMark is the minimum total considered a pass.
const PassMark = 50.0

// LetterGradeFor maps a total score to its letter band. This is the single
// banding table used by every consumer (summaries, report cards, exports).
func LetterGradeFor(total float64) LetterGrade {
	switch {
	case total >= 80:
		return GradeA
	case total >= 70:
		return GradeB
	case total >= 60:
		return GradeC
	case total >= 50:
		return GradeD
	default:
		return GradeF
	}
}

// GradeRecord is one assessment result, unique per
// (student_id, subject_id, term, year).
type GradeRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	SubjectID string    `db:"subject_id" json:"subject_id"`
	Term      string    `db:"term" json:"term"`
	Year      int       `db:"year" json:"year"`
	Test1     float64   `db:"test1" json:"test1"`
	Test2     float64   `db:"test2" json:"test2"`
	Exam      float64   `db:"exam" json:"exam"`
	Total     float64   `db:"total" json:"total"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeRecordDetail joins subject metadata for responses.
type GradeRecordDetail struct {
	GradeRecord
	SubjectName string `db:"subject_name" json:"subject_name"`
	SubjectCode string `db:"subject_code" json:"subject_code"`
}

// GradeFilter scopes grade record queries.
type GradeFilter struct {
	StudentID string
	SubjectID string
	Term      string
	Year      int
}

// GradeSheetRow is one line of a subject grade sheet export.
type GradeSheetRow struct {
	StudentID       string  `db:"student_id"`
	StudentName     string  `db:"student_name"`
	AdmissionNumber string  `db:"admission_number"`
	Test1           float64 `db:"test1"`
	Test2           float64 `db:"test2"`
	Exam            float64 `db:"exam"`
	Total           float64 `db:"total"`
}

// SubjectResult is one subject line in a grade summary.
type SubjectResult struct {
	SubjectID   string      `json:"subject_id"`
	SubjectName string      `json:"subject_name"`
	Total       float64     `json:"total"`
	LetterGrade LetterGrade `json:"letter_grade"`
	Passed      bool        `json:"passed"`
}

// GradeSummary is the derived read-only view of a student's grades.
type GradeSummary struct {
	StudentID    string          `json:"student_id"`
	Subjects     []SubjectResult `json:"subjects"`
	Average      float64         `json:"average"`
	SubjectCount int             `json:"subject_count"`
}
