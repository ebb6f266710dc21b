package models

import "time"

// WeeklyArchive is the immutable per-week snapshot written by the rollover.
// FinalScore is the live cached score at rollover time (bonus-inclusive);
// TotalDeductions sums only violation points for the week.
type WeeklyArchive struct {
	ID              string    `db:"id" json:"id"`
	WeekNumber      int       `db:"week_number" json:"week_number"`
	StudentID       string    `db:"student_id" json:"student_id"`
	StudentName     string    `db:"student_name" json:"student_name"`
	StudentCode     string    `db:"student_code" json:"student_code"`
	StudentClass    string    `db:"student_class" json:"student_class"`
	FinalScore      float64   `db:"final_score" json:"final_score"`
	TotalDeductions float64   `db:"total_deductions" json:"total_deductions"`
	ArchivedAt      time.Time `db:"archived_at" json:"archived_at"`
}
