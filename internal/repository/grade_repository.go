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

// GradeRepository manages grade cells and the subject catalog reads the
// grade service needs.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs a new repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListByStudent returns a student's grades for one semester and school year,
// optionally scoped to one subject.
func (r *GradeRepository) ListByStudent(ctx context.Context, studentID string, semester int, schoolYear, subjectID string) ([]models.Grade, error) {
	query := `SELECT id, student_id, subject_id, grade_type, column_index, score, semester, school_year, created_at, updated_at
FROM grades WHERE student_id = $1 AND semester = $2 AND school_year = $3`
	args := []interface{}{studentID, semester, schoolYear}
	if subjectID != "" {
		query += " AND subject_id = $4"
		args = append(args, subjectID)
	}
	query += " ORDER BY subject_id, grade_type, column_index"
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// FindCell returns the grade at a composite address or nil when absent.
func (r *GradeRepository) FindCell(ctx context.Context, g models.Grade) (*models.Grade, error) {
	var found models.Grade
	query := `SELECT id, student_id, subject_id, grade_type, column_index, score, semester, school_year, created_at, updated_at
FROM grades WHERE student_id = $1 AND subject_id = $2 AND grade_type = $3 AND column_index = $4 AND semester = $5 AND school_year = $6`
	err := r.db.GetContext(ctx, &found, query, g.StudentID, g.SubjectID, g.GradeType, g.ColumnIndex, g.Semester, g.SchoolYear)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find grade cell: %w", err)
	}
	return &found, nil
}

// FindByID returns one grade or nil when absent.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	var g models.Grade
	query := `SELECT id, student_id, subject_id, grade_type, column_index, score, semester, school_year, created_at, updated_at
FROM grades WHERE id = $1`
	if err := r.db.GetContext(ctx, &g, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find grade: %w", err)
	}
	return &g, nil
}

// Create inserts a grade cell.
func (r *GradeRepository) Create(ctx context.Context, g *models.Grade) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	g.CreatedAt = now
	g.UpdatedAt = now
	query := `INSERT INTO grades (id, student_id, subject_id, grade_type, column_index, score, semester, school_year, created_at, updated_at)
VALUES (:id, :student_id, :subject_id, :grade_type, :column_index, :score, :semester, :school_year, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, g); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// UpdateScore overwrites one cell's score.
func (r *GradeRepository) UpdateScore(ctx context.Context, id string, score float64) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE grades SET score = $1, updated_at = $2 WHERE id = $3", score, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update grade score: %w", err)
	}
	return nil
}

// Delete removes a grade cell.
func (r *GradeRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM grades WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete grade: %w", err)
	}
	return nil
}
