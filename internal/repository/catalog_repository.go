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

// CatalogRepository manages the violation-type and bonus-type catalogs.
// Catalog rows are referenced by name snapshot from event rows, never by
// key, so catalog edits leave history untouched.
type CatalogRepository struct {
	db *sqlx.DB
}

// NewCatalogRepository constructs a new repository.
func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListViolationTypes returns the violation catalog.
func (r *CatalogRepository) ListViolationTypes(ctx context.Context) ([]models.ViolationType, error) {
	var types []models.ViolationType
	if err := r.db.SelectContext(ctx, &types,
		"SELECT id, name, points_value, created_at FROM violation_types ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list violation types: %w", err)
	}
	return types, nil
}

// FindViolationType returns one catalog entry or nil when absent.
func (r *CatalogRepository) FindViolationType(ctx context.Context, id string) (*models.ViolationType, error) {
	var t models.ViolationType
	if err := r.db.GetContext(ctx, &t,
		"SELECT id, name, points_value, created_at FROM violation_types WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find violation type: %w", err)
	}
	return &t, nil
}

// CreateViolationType inserts a catalog entry.
func (r *CatalogRepository) CreateViolationType(ctx context.Context, t *models.ViolationType) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	query := `INSERT INTO violation_types (id, name, points_value, created_at)
VALUES (:id, :name, :points_value, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create violation type: %w", err)
	}
	return nil
}

// UpdateViolationType modifies a catalog entry.
func (r *CatalogRepository) UpdateViolationType(ctx context.Context, t *models.ViolationType) error {
	query := `UPDATE violation_types SET name = :name, points_value = :points_value WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("update violation type: %w", err)
	}
	return nil
}

// DeleteViolationType removes a catalog entry; existing events keep the
// snapshotted name.
func (r *CatalogRepository) DeleteViolationType(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM violation_types WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete violation type: %w", err)
	}
	return nil
}

// ListBonusTypes returns the bonus catalog.
func (r *CatalogRepository) ListBonusTypes(ctx context.Context) ([]models.BonusType, error) {
	var types []models.BonusType
	if err := r.db.SelectContext(ctx, &types,
		"SELECT id, name, points_value, created_at FROM bonus_types ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list bonus types: %w", err)
	}
	return types, nil
}

// FindBonusType returns one catalog entry or nil when absent.
func (r *CatalogRepository) FindBonusType(ctx context.Context, id string) (*models.BonusType, error) {
	var t models.BonusType
	if err := r.db.GetContext(ctx, &t,
		"SELECT id, name, points_value, created_at FROM bonus_types WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find bonus type: %w", err)
	}
	return &t, nil
}

// CreateBonusType inserts a catalog entry.
func (r *CatalogRepository) CreateBonusType(ctx context.Context, t *models.BonusType) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = time.Now().UTC()
	query := `INSERT INTO bonus_types (id, name, points_value, created_at)
VALUES (:id, :name, :points_value, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("create bonus type: %w", err)
	}
	return nil
}

// UpdateBonusType modifies a catalog entry.
func (r *CatalogRepository) UpdateBonusType(ctx context.Context, t *models.BonusType) error {
	query := `UPDATE bonus_types SET name = :name, points_value = :points_value WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return fmt.Errorf("update bonus type: %w", err)
	}
	return nil
}

// DeleteBonusType removes a catalog entry.
func (r *CatalogRepository) DeleteBonusType(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM bonus_types WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete bonus type: %w", err)
	}
	return nil
}
