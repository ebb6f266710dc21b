package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/homeroom-api/internal/models"
)

// ArchiveRepository persists immutable weekly conduct snapshots.
type ArchiveRepository struct {
	db *sqlx.DB
}

// NewArchiveRepository constructs a new repository.
func NewArchiveRepository(db *sqlx.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// DeleteWeek drops any existing snapshot rows for a week inside tx, making
// re-archiving the same week an overwrite rather than a duplicate.
func (r *ArchiveRepository) DeleteWeek(ctx context.Context, tx *sqlx.Tx, week int) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM weekly_archives WHERE week_number = $1", week); err != nil {
		return fmt.Errorf("delete week archive: %w", err)
	}
	return nil
}

// Insert appends one snapshot row inside tx.
func (r *ArchiveRepository) Insert(ctx context.Context, tx *sqlx.Tx, a *models.WeeklyArchive) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.ArchivedAt.IsZero() {
		a.ArchivedAt = time.Now().UTC()
	}
	query := `INSERT INTO weekly_archives (id, week_number, student_id, student_name, student_code, student_class, final_score, total_deductions, archived_at)
VALUES (:id, :week_number, :student_id, :student_name, :student_code, :student_class, :final_score, :total_deductions, :archived_at)`
	if _, err := tx.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("insert archive row: %w", err)
	}
	return nil
}

// ListByWeek returns a week's snapshot, optionally scoped to a class.
func (r *ArchiveRepository) ListByWeek(ctx context.Context, week int, class string) ([]models.WeeklyArchive, error) {
	where := []string{"week_number = $1"}
	args := []interface{}{week}
	if class != "" {
		where = append(where, "student_class = $2")
		args = append(args, class)
	}
	query := fmt.Sprintf(`SELECT id, week_number, student_id, student_name, student_code, student_class, final_score, total_deductions, archived_at
FROM weekly_archives WHERE %s ORDER BY student_code ASC`, strings.Join(where, " AND "))
	var rows []models.WeeklyArchive
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list week archive: %w", err)
	}
	return rows, nil
}

// Weeks lists archived week numbers, newest first.
func (r *ArchiveRepository) Weeks(ctx context.Context) ([]int, error) {
	var weeks []int
	if err := r.db.SelectContext(ctx, &weeks,
		"SELECT DISTINCT week_number FROM weekly_archives ORDER BY week_number DESC"); err != nil {
		return nil, fmt.Errorf("archive weeks: %w", err)
	}
	return weeks, nil
}
