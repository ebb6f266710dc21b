package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/homeroom-api/internal/models"
)

// ChangeLogRepository appends audit entries for conduct mutations.
type ChangeLogRepository struct {
	db *sqlx.DB
}

// NewChangeLogRepository constructs a new repository.
func NewChangeLogRepository(db *sqlx.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// InsertTx appends one entry inside tx so the audit row commits or rolls
// back together with the mutation it describes.
func (r *ChangeLogRepository) InsertTx(ctx context.Context, tx *sqlx.Tx, entry *models.ChangeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO change_logs (id, teacher_id, change_type, student_id, description, old_value, new_value, created_at)
VALUES (:id, :teacher_id, :change_type, :student_id, :description, :old_value, :new_value, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

// Insert appends one entry outside any caller transaction.
func (r *ChangeLogRepository) Insert(ctx context.Context, entry *models.ChangeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO change_logs (id, teacher_id, change_type, student_id, description, old_value, new_value, created_at)
VALUES (:id, :teacher_id, :change_type, :student_id, :description, :old_value, :new_value, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("insert change log: %w", err)
	}
	return nil
}

// ListByStudent returns a student's audit trail, newest first.
func (r *ChangeLogRepository) ListByStudent(ctx context.Context, studentID string, limit int) ([]models.ChangeLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.ChangeLog
	query := fmt.Sprintf(`SELECT id, teacher_id, change_type, student_id, description, old_value, new_value, created_at
FROM change_logs WHERE student_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	if err := r.db.SelectContext(ctx, &entries, query, studentID); err != nil {
		return nil, fmt.Errorf("list change logs: %w", err)
	}
	return entries, nil
}
