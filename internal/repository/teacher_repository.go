package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/homeroom-api/internal/models"
)

// TeacherRepository manages teacher accounts.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a new repository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// FindByUsername returns nil when no account matches.
func (r *TeacherRepository) FindByUsername(ctx context.Context, username string) (*models.Teacher, error) {
	var teacher models.Teacher
	query := `SELECT id, username, password_hash, full_name, role, assigned_class, assigned_subject_id, created_at
FROM teachers WHERE username = $1`
	err := r.db.GetContext(ctx, &teacher, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find teacher by username: %w", err)
	}
	return &teacher, nil
}

// FindByID returns nil when no account matches.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	query := `SELECT id, username, password_hash, full_name, role, assigned_class, assigned_subject_id, created_at
FROM teachers WHERE id = $1`
	err := r.db.GetContext(ctx, &teacher, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find teacher by id: %w", err)
	}
	return &teacher, nil
}

// List returns all accounts without password hashes exposed by callers.
func (r *TeacherRepository) List(ctx context.Context) ([]models.Teacher, error) {
	var teachers []models.Teacher
	query := `SELECT id, username, password_hash, full_name, role, assigned_class, assigned_subject_id, created_at
FROM teachers ORDER BY full_name ASC`
	if err := r.db.SelectContext(ctx, &teachers, query); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// Create inserts a new account. Used by the seed path and admin onboarding.
func (r *TeacherRepository) Create(ctx context.Context, teacher *models.Teacher) error {
	if teacher.ID == "" {
		teacher.ID = uuid.NewString()
	}
	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO teachers (id, username, password_hash, full_name, role, assigned_class, assigned_subject_id, created_at)
VALUES (:id, :username, :password_hash, :full_name, :role, :assigned_class, :assigned_subject_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, teacher); err != nil {
		return fmt.Errorf("create teacher: %w", err)
	}
	return nil
}

// UpdateAssignment changes a teacher's class or subject scope.
func (r *TeacherRepository) UpdateAssignment(ctx context.Context, id string, class, subjectID *string) error {
	query := `UPDATE teachers SET assigned_class = $1, assigned_subject_id = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, class, subjectID, id); err != nil {
		return fmt.Errorf("update teacher assignment: %w", err)
	}
	return nil
}
