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

// ClassRoomRepository manages class labels.
type ClassRoomRepository struct {
	db *sqlx.DB
}

// NewClassRoomRepository constructs a new repository.
func NewClassRoomRepository(db *sqlx.DB) *ClassRoomRepository {
	return &ClassRoomRepository{db: db}
}

// DB exposes the underlying handle for cross-repository transactions.
func (r *ClassRoomRepository) DB() *sqlx.DB {
	return r.db
}

// List returns all classes ordered by name.
func (r *ClassRoomRepository) List(ctx context.Context) ([]models.ClassRoom, error) {
	var classes []models.ClassRoom
	if err := r.db.SelectContext(ctx, &classes,
		"SELECT id, name, created_at FROM classrooms ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list classrooms: %w", err)
	}
	return classes, nil
}

// FindByID returns one class or nil when absent.
func (r *ClassRoomRepository) FindByID(ctx context.Context, id string) (*models.ClassRoom, error) {
	var c models.ClassRoom
	if err := r.db.GetContext(ctx, &c, "SELECT id, name, created_at FROM classrooms WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find classroom: %w", err)
	}
	return &c, nil
}

// FindByName returns one class by its label or nil when absent.
func (r *ClassRoomRepository) FindByName(ctx context.Context, name string) (*models.ClassRoom, error) {
	var c models.ClassRoom
	if err := r.db.GetContext(ctx, &c, "SELECT id, name, created_at FROM classrooms WHERE name = $1", name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find classroom by name: %w", err)
	}
	return &c, nil
}

// Create inserts a class.
func (r *ClassRoomRepository) Create(ctx context.Context, c *models.ClassRoom) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx,
		"INSERT INTO classrooms (id, name, created_at) VALUES (:id, :name, :created_at)", c); err != nil {
		return fmt.Errorf("create classroom: %w", err)
	}
	return nil
}

// RenameTx renames the class inside tx; the caller relabels students in the
// same transaction to keep the by-name reference consistent.
func (r *ClassRoomRepository) RenameTx(ctx context.Context, tx *sqlx.Tx, id, newName string) error {
	if _, err := tx.ExecContext(ctx, "UPDATE classrooms SET name = $1 WHERE id = $2", newName, id); err != nil {
		return fmt.Errorf("rename classroom: %w", err)
	}
	return nil
}

// Delete removes a class row.
func (r *ClassRoomRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM classrooms WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete classroom: %w", err)
	}
	return nil
}
