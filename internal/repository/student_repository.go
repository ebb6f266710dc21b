package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/homeroom-api/internal/models"
)

// StudentRepository manages persistence for students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a new repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// DB exposes the underlying handle for cross-repository transactions.
func (r *StudentRepository) DB() *sqlx.DB {
	return r.db
}

// List returns students per provided filter plus the unpaged total.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students"
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Class != "" {
		where = append(where, fmt.Sprintf("student_class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR student_code ILIKE $%d)", len(args)+1, len(args)+2))
		args = append(args, pattern, pattern)
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 100
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, student_code, name, student_class, current_score, created_at, updated_at
%s WHERE %s ORDER BY student_code ASC LIMIT %d OFFSET %d`, base, whereClause, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns every student; used by rollover snapshots, recompute and
// normalized code matching.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	query := `SELECT id, student_code, name, student_class, current_score, created_at, updated_at
FROM students ORDER BY student_code ASC`
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// ListAllTx reads every student inside tx so the rollover snapshot sees one
// consistent view of scores and class labels.
func (r *StudentRepository) ListAllTx(ctx context.Context, tx *sqlx.Tx) ([]models.Student, error) {
	var students []models.Student
	query := `SELECT id, student_code, name, student_class, current_score, created_at, updated_at
FROM students ORDER BY student_code ASC`
	if err := tx.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// ListByClass returns the students of one class.
func (r *StudentRepository) ListByClass(ctx context.Context, class string) ([]models.Student, error) {
	var students []models.Student
	query := `SELECT id, student_code, name, student_class, current_score, created_at, updated_at
FROM students WHERE student_class = $1 ORDER BY student_code ASC`
	if err := r.db.SelectContext(ctx, &students, query, class); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return students, nil
}

// FindByID returns one student or nil when absent.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	var s models.Student
	query := `SELECT id, student_code, name, student_class, current_score, created_at, updated_at
FROM students WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &s, nil
}

// FindByCode returns one student by exact student code or nil when absent.
func (r *StudentRepository) FindByCode(ctx context.Context, code string) (*models.Student, error) {
	var s models.Student
	query := `SELECT id, student_code, name, student_class, current_score, created_at, updated_at
FROM students WHERE student_code = $1`
	if err := r.db.GetContext(ctx, &s, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find student by code: %w", err)
	}
	return &s, nil
}

// Create inserts a new student with the baseline score.
func (r *StudentRepository) Create(ctx context.Context, s *models.Student) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.CurrentScore == nil {
		baseline := float64(models.BaselineScore)
		s.CurrentScore = &baseline
	}
	query := `INSERT INTO students (id, student_code, name, student_class, current_score, created_at, updated_at)
VALUES (:id, :student_code, :name, :student_class, :current_score, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies identity fields; the score column is owned by the ledger.
func (r *StudentRepository) Update(ctx context.Context, s *models.Student) error {
	s.UpdatedAt = time.Now().UTC()
	query := `UPDATE students SET student_code = :student_code, name = :name, student_class = :student_class, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// DeleteCascade removes a student together with their conduct events.
func (r *StudentRepository) DeleteCascade(ctx context.Context, id string) error {
	return InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM violations WHERE student_id = $1", id); err != nil {
			return fmt.Errorf("delete student violations: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM bonus_records WHERE student_id = $1", id); err != nil {
			return fmt.Errorf("delete student bonuses: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM students WHERE id = $1", id); err != nil {
			return fmt.Errorf("delete student: %w", err)
		}
		return nil
	})
}

// CountByClass counts students carrying the class label.
func (r *StudentRepository) CountByClass(ctx context.Context, class string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM students WHERE student_class = $1", class); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return count, nil
}

// LockScore reads the cached score under a row lock inside tx, defaulting to
// the baseline when the column is null. The lock serialises concurrent
// ledger writes for the same student.
func (r *StudentRepository) LockScore(ctx context.Context, tx *sqlx.Tx, studentID string) (float64, error) {
	var score sql.NullFloat64
	err := tx.QueryRowxContext(ctx, "SELECT current_score FROM students WHERE id = $1 FOR UPDATE", studentID).Scan(&score)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sql.ErrNoRows
		}
		return 0, fmt.Errorf("lock student score: %w", err)
	}
	if !score.Valid {
		return models.BaselineScore, nil
	}
	return score.Float64, nil
}

// SetScore writes the cached score inside tx. Ledger-service use only.
func (r *StudentRepository) SetScore(ctx context.Context, tx *sqlx.Tx, studentID string, score float64) error {
	if _, err := tx.ExecContext(ctx, "UPDATE students SET current_score = $1, updated_at = $2 WHERE id = $3",
		score, time.Now().UTC(), studentID); err != nil {
		return fmt.Errorf("set student score: %w", err)
	}
	return nil
}

// ResetAllScores sets every student back to the baseline inside tx.
func (r *StudentRepository) ResetAllScores(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, "UPDATE students SET current_score = $1, updated_at = $2",
		float64(models.BaselineScore), time.Now().UTC()); err != nil {
		return fmt.Errorf("reset scores: %w", err)
	}
	return nil
}

// RelabelClass moves every student from one class label to another inside tx.
func (r *StudentRepository) RelabelClass(ctx context.Context, tx *sqlx.Tx, oldName, newName string) (int64, error) {
	res, err := tx.ExecContext(ctx, "UPDATE students SET student_class = $1, updated_at = $2 WHERE student_class = $3",
		newName, time.Now().UTC(), oldName)
	if err != nil {
		return 0, fmt.Errorf("relabel class: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
