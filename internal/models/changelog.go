package models

import "time"

// ChangeType constants for the conduct change log.
const (
	ChangeApplyViolation = "APPLY_VIOLATION"
	ChangeApplyBonus     = "APPLY_BONUS"
	ChangeRevertEvent    = "REVERT_EVENT"
	ChangeRecompute      = "RECOMPUTE_SCORE"
	ChangeWeekRollover   = "WEEK_ROLLOVER"
	ChangeSetWeek        = "SET_WEEK_OVERRIDE"
)

// ChangeLog is an audit trail row. Written inside the same transaction as
// the mutation it describes; the helper building it must never abort the
// primary operation on its own failure.
type ChangeLog struct {
	ID          string    `db:"id" json:"id"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	ChangeType  string    `db:"change_type" json:"change_type"`
	StudentID   *string   `db:"student_id" json:"student_id,omitempty"`
	Description string    `db:"description" json:"description"`
	OldValue    *string   `db:"old_value" json:"old_value,omitempty"`
	NewValue    *string   `db:"new_value" json:"new_value,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
