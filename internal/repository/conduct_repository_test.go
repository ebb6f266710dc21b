package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homeroom-api/internal/models"
)

func TestConductRepositoryInsertEventPicksTableByKind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConductRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO violations").
		WithArgs(sqlmock.AnyArg(), "s1", "Late", 2, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bonus_records").
		WithArgs(sqlmock.AnyArg(), "s1", "Cleanup duty", 5, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	violation := &models.ConductEvent{Kind: models.EventViolation, StudentID: "s1", TypeName: "Late", Points: 2, WeekNumber: 3}
	require.NoError(t, repo.InsertEvent(context.Background(), tx, violation))
	assert.NotEmpty(t, violation.ID)
	assert.False(t, violation.DateCommitted.IsZero())

	bonus := &models.ConductEvent{Kind: models.EventBonus, StudentID: "s1", TypeName: "Cleanup duty", Points: 5, WeekNumber: 3}
	require.NoError(t, repo.InsertEvent(context.Background(), tx, bonus))

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConductRepositoryGetEventMissingReturnsNil(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConductRepository(db)

	mock.ExpectQuery("SELECT id, student_id, type_name, points, date_committed, week_number FROM bonus_records").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "type_name", "points", "date_committed", "week_number"}))

	e, err := repo.GetEvent(context.Background(), models.EventBonus, "missing")
	require.NoError(t, err)
	assert.Nil(t, e)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConductRepositoryListTagsKind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConductRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "type_name", "points", "date_committed", "week_number"}).
		AddRow("v1", "s1", "Late", 2, time.Now(), 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT e.id, e.student_id, e.type_name, e.points, e.date_committed, e.week_number\nFROM violations e JOIN students s ON s.id = e.student_id\nWHERE 1=1 AND e.student_id = $1 AND e.week_number = $2 ORDER BY e.date_committed DESC")).
		WithArgs("s1", 3).
		WillReturnRows(rows)

	events, err := repo.List(context.Background(), models.ConductEventFilter{StudentID: "s1", WeekNumber: 3})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventViolation, events[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConductRepositoryStudentWeekDeductions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConductRepository(db)

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"student_id", "total"}).
		AddRow("s1", 8.0).
		AddRow("s2", 3.0)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, COALESCE(SUM(points),0) AS total FROM violations WHERE week_number = $1 GROUP BY student_id")).
		WithArgs(3).
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	sums, err := repo.StudentWeekDeductions(context.Background(), tx, 3)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"s1": 8, "s2": 3}, sums)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConductRepositorySumClassWeek(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewConductRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(v.points),0) FROM violations v\nJOIN students s ON s.id = v.student_id\nWHERE s.student_class = $1 AND v.week_number = $2")).
		WithArgs("10A", 3).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(11.0))

	total, err := repo.SumClassWeek(context.Background(), "10A", 3)
	require.NoError(t, err)
	assert.Equal(t, 11.0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
