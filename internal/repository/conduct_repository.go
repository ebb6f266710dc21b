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

// ConductRepository persists the conduct event log: the violations and
// bonus_records tables plus the aggregate queries reporting reads from them.
// The two tables share one row shape; Kind selects the table.
type ConductRepository struct {
	db *sqlx.DB
}

// NewConductRepository constructs a new repository.
func NewConductRepository(db *sqlx.DB) *ConductRepository {
	return &ConductRepository{db: db}
}

// DB exposes the underlying handle for cross-repository transactions.
func (r *ConductRepository) DB() *sqlx.DB {
	return r.db
}

func tableFor(kind models.EventKind) string {
	if kind == models.EventBonus {
		return "bonus_records"
	}
	return "violations"
}

// InsertEvent appends one event row inside tx.
func (r *ConductRepository) InsertEvent(ctx context.Context, tx *sqlx.Tx, e *models.ConductEvent) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.DateCommitted.IsZero() {
		e.DateCommitted = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, student_id, type_name, points, date_committed, week_number)
VALUES (:id, :student_id, :type_name, :points, :date_committed, :week_number)`, tableFor(e.Kind))
	if _, err := tx.NamedExecContext(ctx, query, e); err != nil {
		return fmt.Errorf("insert %s event: %w", e.Kind, err)
	}
	return nil
}

// GetEvent returns one event row or nil when absent.
func (r *ConductRepository) GetEvent(ctx context.Context, kind models.EventKind, id string) (*models.ConductEvent, error) {
	var e models.ConductEvent
	query := fmt.Sprintf(`SELECT id, student_id, type_name, points, date_committed, week_number FROM %s WHERE id = $1`, tableFor(kind))
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get %s event: %w", kind, err)
	}
	e.Kind = kind
	return &e, nil
}

// DeleteEvent removes one event row inside tx.
func (r *ConductRepository) DeleteEvent(ctx context.Context, tx *sqlx.Tx, kind models.EventKind, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", tableFor(kind))
	if _, err := tx.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete %s event: %w", kind, err)
	}
	return nil
}

// List returns events per filter, newest first, joining the student for
// class scoping.
func (r *ConductRepository) List(ctx context.Context, filter models.ConductEventFilter) ([]models.ConductEvent, error) {
	kind := filter.Kind
	if kind == "" {
		kind = models.EventViolation
	}
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.WeekNumber > 0 {
		where = append(where, fmt.Sprintf("e.week_number = $%d", len(args)+1))
		args = append(args, filter.WeekNumber)
	}
	if filter.Class != "" {
		where = append(where, fmt.Sprintf("s.student_class = $%d", len(args)+1))
		args = append(args, filter.Class)
	}
	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.type_name, e.points, e.date_committed, e.week_number
FROM %s e JOIN students s ON s.id = e.student_id
WHERE %s ORDER BY e.date_committed DESC`, tableFor(kind), strings.Join(where, " AND "))
	var events []models.ConductEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list %s events: %w", kind, err)
	}
	for i := range events {
		events[i].Kind = kind
	}
	return events, nil
}

// SumStudentWeek sums event points for one student in one week.
func (r *ConductRepository) SumStudentWeek(ctx context.Context, kind models.EventKind, studentID string, week int) (float64, error) {
	var total float64
	query := fmt.Sprintf("SELECT COALESCE(SUM(points),0) FROM %s WHERE student_id = $1 AND week_number = $2", tableFor(kind))
	if err := r.db.GetContext(ctx, &total, query, studentID, week); err != nil {
		return 0, fmt.Errorf("sum %s week points: %w", kind, err)
	}
	return total, nil
}

// SumStudentAll sums a student's event points across all weeks. The
// recompute repair path reads violations only through this.
func (r *ConductRepository) SumStudentAll(ctx context.Context, kind models.EventKind, studentID string) (float64, error) {
	var total float64
	query := fmt.Sprintf("SELECT COALESCE(SUM(points),0) FROM %s WHERE student_id = $1", tableFor(kind))
	if err := r.db.GetContext(ctx, &total, query, studentID); err != nil {
		return 0, fmt.Errorf("sum %s points: %w", kind, err)
	}
	return total, nil
}

// SumClassWeek sums violation points across a class for one week.
func (r *ConductRepository) SumClassWeek(ctx context.Context, class string, week int) (float64, error) {
	var total float64
	query := `SELECT COALESCE(SUM(v.points),0) FROM violations v
JOIN students s ON s.id = v.student_id
WHERE s.student_class = $1 AND v.week_number = $2`
	if err := r.db.GetContext(ctx, &total, query, class, week); err != nil {
		return 0, fmt.Errorf("sum class week points: %w", err)
	}
	return total, nil
}

// StudentWeekDeductions returns per-student violation sums for one week in
// one query; the rollover snapshot uses it to avoid N student round trips.
func (r *ConductRepository) StudentWeekDeductions(ctx context.Context, tx *sqlx.Tx, week int) (map[string]float64, error) {
	rows, err := tx.QueryxContext(ctx,
		"SELECT student_id, COALESCE(SUM(points),0) AS total FROM violations WHERE week_number = $1 GROUP BY student_id", week)
	if err != nil {
		return nil, fmt.Errorf("week deductions: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]float64)
	for rows.Next() {
		var studentID string
		var total float64
		if err := rows.Scan(&studentID, &total); err != nil {
			return nil, fmt.Errorf("scan week deduction: %w", err)
		}
		sums[studentID] = total
	}
	return sums, rows.Err()
}

// WeekDeductions returns per-student violation sums for one week outside any
// transaction, optionally scoped to a class. Historical histogram reads use
// it to rebuild week-bound scores.
func (r *ConductRepository) WeekDeductions(ctx context.Context, week int, class string) (map[string]float64, error) {
	where := []string{"v.week_number = $1"}
	args := []interface{}{week}
	if class != "" {
		where = append(where, "s.student_class = $2")
		args = append(args, class)
	}
	query := fmt.Sprintf(`SELECT v.student_id, COALESCE(SUM(v.points),0) AS total
FROM violations v JOIN students s ON s.id = v.student_id
WHERE %s GROUP BY v.student_id`, strings.Join(where, " AND "))
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("week deductions: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]float64)
	for rows.Next() {
		var studentID string
		var total float64
		if err := rows.Scan(&studentID, &total); err != nil {
			return nil, fmt.Errorf("scan week deduction: %w", err)
		}
		sums[studentID] = total
	}
	return sums, rows.Err()
}

// CountWeekViolations counts violation rows for a week, optionally class
// scoped.
func (r *ConductRepository) CountWeekViolations(ctx context.Context, week int, class string) (int, error) {
	where := []string{"v.week_number = $1"}
	args := []interface{}{week}
	if class != "" {
		where = append(where, "s.student_class = $2")
		args = append(args, class)
	}
	query := fmt.Sprintf(`SELECT COUNT(v.id) FROM violations v JOIN students s ON s.id = v.student_id
WHERE %s`, strings.Join(where, " AND "))
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count week violations: %w", err)
	}
	return count, nil
}

// TopTypes returns the most frequent violation type names for a week,
// optionally scoped to a class.
func (r *ConductRepository) TopTypes(ctx context.Context, week int, class string, limit int) ([]models.ViolationTypeCount, error) {
	if limit <= 0 {
		limit = 5
	}
	where := []string{"v.week_number = $1"}
	args := []interface{}{week}
	if class != "" {
		where = append(where, "s.student_class = $2")
		args = append(args, class)
	}
	query := fmt.Sprintf(`SELECT v.type_name, COUNT(v.id) AS count
FROM violations v JOIN students s ON s.id = v.student_id
WHERE %s GROUP BY v.type_name ORDER BY count DESC LIMIT %d`, strings.Join(where, " AND "), limit)
	var counts []models.ViolationTypeCount
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("top violation types: %w", err)
	}
	return counts, nil
}

// DistinctWeeks lists week numbers with recorded violations, newest first.
func (r *ConductRepository) DistinctWeeks(ctx context.Context) ([]int, error) {
	var weeks []int
	if err := r.db.SelectContext(ctx, &weeks,
		"SELECT DISTINCT week_number FROM violations ORDER BY week_number DESC"); err != nil {
		return nil, fmt.Errorf("distinct weeks: %w", err)
	}
	return weeks, nil
}

// WeekAggregates groups one student's violations by week.
func (r *ConductRepository) WeekAggregates(ctx context.Context, studentID string) ([]models.WeekAggregate, error) {
	var aggs []models.WeekAggregate
	query := `SELECT week_number, COUNT(id) AS count, COALESCE(SUM(points),0) AS total_points
FROM violations WHERE student_id = $1 GROUP BY week_number ORDER BY week_number ASC`
	if err := r.db.SelectContext(ctx, &aggs, query, studentID); err != nil {
		return nil, fmt.Errorf("week aggregates: %w", err)
	}
	return aggs, nil
}

// TypeCounts groups one student's violations by snapshotted type name.
func (r *ConductRepository) TypeCounts(ctx context.Context, studentID string) ([]models.ViolationTypeCount, error) {
	var counts []models.ViolationTypeCount
	query := `SELECT type_name, COUNT(id) AS count FROM violations
WHERE student_id = $1 GROUP BY type_name ORDER BY count DESC`
	if err := r.db.SelectContext(ctx, &counts, query, studentID); err != nil {
		return nil, fmt.Errorf("type counts: %w", err)
	}
	return counts, nil
}

// CountByStudent counts a student's all-time violations.
func (r *ConductRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM violations WHERE student_id = $1", studentID); err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return count, nil
}
