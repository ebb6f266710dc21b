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

// SubjectRepository manages the subject catalog.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs a new repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns all subjects ordered by name.
func (r *SubjectRepository) List(ctx context.Context) ([]models.Subject, error) {
	var subjects []models.Subject
	query := `SELECT id, name, code, description, num_tx_columns, num_gk_columns, num_hk_columns, created_at
FROM subjects ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &subjects, query); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// FindByID returns one subject or nil when absent.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var s models.Subject
	query := `SELECT id, name, code, description, num_tx_columns, num_gk_columns, num_hk_columns, created_at
FROM subjects WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject: %w", err)
	}
	return &s, nil
}

// FindByCode returns one subject by its unique code or nil when absent.
func (r *SubjectRepository) FindByCode(ctx context.Context, code string) (*models.Subject, error) {
	var s models.Subject
	query := `SELECT id, name, code, description, num_tx_columns, num_gk_columns, num_hk_columns, created_at
FROM subjects WHERE code = $1`
	if err := r.db.GetContext(ctx, &s, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find subject by code: %w", err)
	}
	return &s, nil
}

// Create inserts a subject.
func (r *SubjectRepository) Create(ctx context.Context, s *models.Subject) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = time.Now().UTC()
	query := `INSERT INTO subjects (id, name, code, description, num_tx_columns, num_gk_columns, num_hk_columns, created_at)
VALUES (:id, :name, :code, :description, :num_tx_columns, :num_gk_columns, :num_hk_columns, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	return nil
}

// Update modifies a subject.
func (r *SubjectRepository) Update(ctx context.Context, s *models.Subject) error {
	query := `UPDATE subjects SET name = :name, code = :code, description = :description,
num_tx_columns = :num_tx_columns, num_gk_columns = :num_gk_columns, num_hk_columns = :num_hk_columns
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	return nil
}

// Delete removes a subject.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM subjects WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
