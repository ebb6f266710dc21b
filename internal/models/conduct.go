package models

import "time"

// EventKind distinguishes the two conduct event tables.
type EventKind string

const (
	// EventViolation deducts points from the student's score.
	EventViolation EventKind = "violation"
	// EventBonus credits points back, clamped at the baseline.
	EventBonus EventKind = "bonus"
)

// Sign returns the score delta direction for the kind.
func (k EventKind) Sign() float64 {
	if k == EventBonus {
		return 1
	}
	return -1
}

// ViolationType is a catalog entry for a deductible offence.
// Events snapshot the name, so renaming a type never rewrites history.
type ViolationType struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PointsValue int       `db:"points_value" json:"points_value"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// BonusType is a catalog entry for a creditable merit.
type BonusType struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	PointsValue int       `db:"points_value" json:"points_value"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ConductEvent is one row of the append-only conduct log. Kind selects the
// backing table; Points is always the positive magnitude.
type ConductEvent struct {
	ID            string    `db:"id" json:"id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	TypeName      string    `db:"type_name" json:"type_name"`
	Points        int       `db:"points" json:"points"`
	DateCommitted time.Time `db:"date_committed" json:"date_committed"`
	WeekNumber    int       `db:"week_number" json:"week_number"`
	Kind          EventKind `db:"-" json:"kind"`
}

// ConductEventFilter narrows event queries.
type ConductEventFilter struct {
	StudentID  string
	Class      string
	WeekNumber int
	Kind       EventKind
}

// EventSpec is the bulk-import row shape consumed by BulkApply. The week
// number is assigned at creation time from the date when absent and never
// recomputed afterwards.
type EventSpec struct {
	StudentCode   string    `json:"student_code"`
	TypeName      string    `json:"violation_type_name"`
	Points        int       `json:"points_deducted"`
	DateCommitted time.Time `json:"date_committed"`
	WeekNumber    int       `json:"week_number"`
}

// ViolationTypeCount pairs a snapshotted type name with its occurrence count.
type ViolationTypeCount struct {
	TypeName string `db:"type_name" json:"type_name"`
	Count    int    `db:"count" json:"count"`
}

// WeekAggregate summarises a student's events inside one week.
type WeekAggregate struct {
	WeekNumber  int     `db:"week_number" json:"week_number"`
	Count       int     `db:"count" json:"count"`
	TotalPoints float64 `db:"total_points" json:"total_points"`
}
