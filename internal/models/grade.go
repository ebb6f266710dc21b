package models

import "time"

// GradeType is the assessment category of a grade entry.
type GradeType string

const (
	GradeFrequent GradeType = "TX"
	GradeMidterm  GradeType = "GK"
	GradeFinal    GradeType = "HK"
)

// Subject is a taught subject with configurable column counts per category.
type Subject struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Code         string    `db:"code" json:"code"`
	Description  string    `db:"description" json:"description"`
	NumTXColumns int       `db:"num_tx_columns" json:"num_tx_columns"`
	NumGKColumns int       `db:"num_gk_columns" json:"num_gk_columns"`
	NumHKColumns int       `db:"num_hk_columns" json:"num_hk_columns"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Grade is a single score cell, addressed by
// (student, subject, type, column, semester, school year).
type Grade struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	SubjectID   string    `db:"subject_id" json:"subject_id"`
	GradeType   GradeType `db:"grade_type" json:"grade_type"`
	ColumnIndex int       `db:"column_index" json:"column_index"`
	Score       float64   `db:"score" json:"score"`
	Semester    int       `db:"semester" json:"semester"`
	SchoolYear  string    `db:"school_year" json:"school_year"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectTranscript is one subject's row on a student transcript. Average is
// nil unless all three categories hold at least one score.
type SubjectTranscript struct {
	Subject  Subject   `json:"subject"`
	TXScores []float64 `json:"tx_scores"`
	GKScores []float64 `json:"gk_scores"`
	HKScores []float64 `json:"hk_scores"`
	Average  *float64  `json:"average"`
}

// Transcript aggregates a student's subject averages for a semester.
// GPA is nil when no subject qualifies.
type Transcript struct {
	StudentID  string              `json:"student_id"`
	Semester   int                 `json:"semester"`
	SchoolYear string              `json:"school_year"`
	Subjects   []SubjectTranscript `json:"subjects"`
	GPA        *float64            `json:"gpa"`
}
