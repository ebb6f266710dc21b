package models

import "time"

// BaselineScore is the conduct score every student starts the week with.
const BaselineScore = 100

// Student represents a learner tracked by the homeroom system.
// CurrentScore is a cached projection of the conduct event log and is
// written exclusively by the ledger service.
type Student struct {
	ID           string    `db:"id" json:"id"`
	StudentCode  string    `db:"student_code" json:"student_code"`
	Name         string    `db:"name" json:"name"`
	StudentClass string    `db:"student_class" json:"student_class"`
	CurrentScore *float64  `db:"current_score" json:"current_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Score returns the cached conduct score, defaulting to the baseline
// when the column has never been written.
func (s *Student) Score() float64 {
	if s.CurrentScore == nil {
		return BaselineScore
	}
	return *s.CurrentScore
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Class    string
	Page     int
	PageSize int
}
