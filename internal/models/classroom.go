package models

import "time"

// ClassRoom is a class label; students reference it by name, not by key,
// so renames must propagate to the student rows in the same transaction.
type ClassRoom struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
