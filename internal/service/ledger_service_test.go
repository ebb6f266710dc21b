package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homeroom-api/internal/models"
)

type studentRepoMock struct {
	db       *sqlx.DB
	students map[string]*models.Student
	scores   map[string]float64
	lockErr  map[string]error
}

func newStudentRepoMock(db *sqlx.DB) *studentRepoMock {
	return &studentRepoMock{
		db:       db,
		students: make(map[string]*models.Student),
		scores:   make(map[string]float64),
		lockErr:  make(map[string]error),
	}
}

func (m *studentRepoMock) add(id, code, name, class string, score float64) {
	m.students[id] = &models.Student{ID: id, StudentCode: code, Name: name, StudentClass: class}
	m.scores[id] = score
}

func (m *studentRepoMock) FindByID(_ context.Context, id string) (*models.Student, error) {
	return m.students[id], nil
}

func (m *studentRepoMock) FindByCode(_ context.Context, code string) (*models.Student, error) {
	for _, s := range m.students {
		if s.StudentCode == code {
			return s, nil
		}
	}
	return nil, nil
}

func (m *studentRepoMock) ListAll(_ context.Context) ([]models.Student, error) {
	out := make([]models.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *s)
	}
	return out, nil
}

func (m *studentRepoMock) LockScore(_ context.Context, _ *sqlx.Tx, studentID string) (float64, error) {
	if err, ok := m.lockErr[studentID]; ok {
		return 0, err
	}
	score, ok := m.scores[studentID]
	if !ok {
		return 0, sql.ErrNoRows
	}
	return score, nil
}

func (m *studentRepoMock) SetScore(_ context.Context, _ *sqlx.Tx, studentID string, score float64) error {
	m.scores[studentID] = score
	return nil
}

func (m *studentRepoMock) DB() *sqlx.DB { return m.db }

type conductRepoMock struct {
	events    map[string]*models.ConductEvent
	inserted  []*models.ConductEvent
	deleted   []string
	insertErr error
	sumAll    float64
	nextID    int
}

func newConductRepoMock() *conductRepoMock {
	return &conductRepoMock{events: make(map[string]*models.ConductEvent)}
}

func (m *conductRepoMock) InsertEvent(_ context.Context, _ *sqlx.Tx, e *models.ConductEvent) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.nextID++
	if e.ID == "" {
		e.ID = fmt.Sprintf("event-%d", m.nextID)
	}
	m.events[e.ID] = e
	m.inserted = append(m.inserted, e)
	return nil
}

func (m *conductRepoMock) GetEvent(_ context.Context, _ models.EventKind, id string) (*models.ConductEvent, error) {
	return m.events[id], nil
}

func (m *conductRepoMock) DeleteEvent(_ context.Context, _ *sqlx.Tx, _ models.EventKind, id string) error {
	delete(m.events, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *conductRepoMock) List(_ context.Context, _ models.ConductEventFilter) ([]models.ConductEvent, error) {
	out := make([]models.ConductEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, *e)
	}
	return out, nil
}

func (m *conductRepoMock) SumStudentAll(_ context.Context, _ models.EventKind, _ string) (float64, error) {
	return m.sumAll, nil
}

type configRepoMock struct {
	values map[string]string
}

func (m *configRepoMock) GetTx(_ context.Context, _ *sqlx.Tx, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *configRepoMock) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *configRepoMock) SetTx(_ context.Context, _ *sqlx.Tx, key, value string) error {
	m.values[key] = value
	return nil
}

type auditSinkMock struct {
	entries []*models.ChangeLog
}

func (m *auditSinkMock) InsertTx(_ context.Context, _ *sqlx.Tx, entry *models.ChangeLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

type cacheMock struct {
	patterns []string
}

func (m *cacheMock) DeleteByPattern(_ context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "sqlmock"), mock
}

func newLedgerFixture(t *testing.T) (*LedgerService, *studentRepoMock, *conductRepoMock, *auditSinkMock, *cacheMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	students := newStudentRepoMock(db)
	conduct := newConductRepoMock()
	config := &configRepoMock{values: map[string]string{models.ConfigCurrentWeek: "3"}}
	audit := &auditSinkMock{}
	cache := &cacheMock{}
	svc := NewLedgerService(students, conduct, config, audit, cache, nil, nil, nil)
	return svc, students, conduct, audit, cache, mock
}

func TestApplyEventViolationDeductsAndLogs(t *testing.T) {
	svc, students, conduct, audit, cache, mock := newLedgerFixture(t)
	students.add("s1", "34 TOAN - 001001", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	event, err := svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1",
		Kind:      "violation",
		TypeName:  "Late for class",
		Points:    5,
	})
	require.NoError(t, err)
	require.Equal(t, 3, event.WeekNumber)
	require.Equal(t, 95.0, students.scores["s1"])
	require.Len(t, conduct.inserted, 1)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.ChangeApplyViolation, audit.entries[0].ChangeType)
	require.Equal(t, []string{"reports:*"}, cache.patterns)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyEventBonusClampsAtBaseline(t *testing.T) {
	svc, students, _, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 98)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1",
		Kind:      "bonus",
		TypeName:  "Helped classmates",
		Points:    5,
	})
	require.NoError(t, err)
	require.Equal(t, 100.0, students.scores["s1"])
}

func TestApplyEventViolationAllowsNegativeScore(t *testing.T) {
	svc, students, _, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 2)
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1",
		Kind:      "violation",
		TypeName:  "Fighting",
		Points:    10,
	})
	require.NoError(t, err)
	require.Equal(t, -8.0, students.scores["s1"])
}

func TestApplyEventRejectsNonPositivePoints(t *testing.T) {
	svc, students, _, _, _, _ := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 100)

	_, err := svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1",
		Kind:      "violation",
		TypeName:  "Late",
		Points:    0,
	})
	require.Error(t, err)
	require.Equal(t, 100.0, students.scores["s1"])
}

func TestRevertRestoresScoreWithUpperClamp(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	event, err := svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1",
		Kind:      "violation",
		TypeName:  "Late",
		Points:    5,
	})
	require.NoError(t, err)
	require.Equal(t, 95.0, students.scores["s1"])

	warning, err := svc.RevertEvent(context.Background(), nil, nil, models.EventViolation, event.ID)
	require.NoError(t, err)
	require.Empty(t, warning)
	require.Equal(t, 100.0, students.scores["s1"])
	require.Contains(t, conduct.deleted, event.ID)
}

func TestRevertBonusDoesNotFloor(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 3)
	conduct.events["b1"] = &models.ConductEvent{
		ID: "b1", StudentID: "s1", TypeName: "Cleanup", Points: 5, Kind: models.EventBonus,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.RevertEvent(context.Background(), nil, nil, models.EventBonus, "b1")
	require.NoError(t, err)
	require.Equal(t, -2.0, students.scores["s1"])
}

func TestRevertOrphanEventRemovesRowWithWarning(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	conduct.events["v1"] = &models.ConductEvent{
		ID: "v1", StudentID: "ghost", TypeName: "Late", Points: 5, Kind: models.EventViolation,
	}
	mock.ExpectBegin()
	mock.ExpectCommit()

	warning, err := svc.RevertEvent(context.Background(), nil, nil, models.EventViolation, "v1")
	require.NoError(t, err)
	require.Equal(t, "student no longer exists, event removed without score change", warning)
	require.Empty(t, students.scores)
	require.Contains(t, conduct.deleted, "v1")
}

func TestRevertUnknownEventNotFound(t *testing.T) {
	svc, _, _, _, _, _ := newLedgerFixture(t)

	_, err := svc.RevertEvent(context.Background(), nil, nil, models.EventViolation, "missing")
	require.Error(t, err)
}

// The repair path sums the entire violation history and ignores weeks and
// bonuses, so it diverges from the incremental score whenever a bonus was
// granted or a previous week carried violations.
func TestRecomputeIgnoresBonusesAndWeeks(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1", Kind: "violation", TypeName: "Late", Points: 5,
	})
	require.NoError(t, err)
	_, err = svc.ApplyEvent(context.Background(), nil, ApplyEventRequest{
		StudentID: "s1", Kind: "bonus", TypeName: "Cleanup", Points: 3,
	})
	require.NoError(t, err)
	require.Equal(t, 98.0, students.scores["s1"])

	// All-time violation sum covers prior weeks too.
	conduct.sumAll = 12
	score, err := svc.RecomputeFromLog(context.Background(), nil, "s1")
	require.NoError(t, err)
	require.Equal(t, 88.0, score)
	require.Equal(t, 88.0, students.scores["s1"])
}

func TestBulkApplyReportsBadRowsAndContinues(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "code-1", "An", "10A", 100)
	students.add("s3", "code-3", "Binh", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result := svc.BulkApply(context.Background(), nil, nil, []models.EventSpec{
		{StudentCode: "code-1", TypeName: "Late", Points: 5},
		{StudentCode: "code-missing", TypeName: "Late", Points: 5},
		{StudentCode: "code-3", TypeName: "Fighting", Points: 10},
	})
	require.Equal(t, 2, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "row 2")
	require.Contains(t, result.Errors[0], "code-missing")
	require.Equal(t, 95.0, students.scores["s1"])
	require.Equal(t, 90.0, students.scores["s3"])
	require.Len(t, conduct.inserted, 2)
}

func TestBulkApplyCommitFailureAppendsAggregateError(t *testing.T) {
	svc, students, _, _, _, mock := newLedgerFixture(t)
	students.add("s1", "code-1", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	result := svc.BulkApply(context.Background(), nil, nil, []models.EventSpec{
		{StudentCode: "code-1", TypeName: "Late", Points: 5},
		{StudentCode: "nope", TypeName: "Late", Points: 5},
	})
	// The success counter is not rewound on commit failure; the aggregate
	// error rides on top of the row errors.
	require.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 2)
	require.Contains(t, result.Errors[1], "batch commit failed")
}

func TestBulkApplyWeekFromDate(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "code-1", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	date := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)
	_, wantWeek := date.ISOWeek()
	result := svc.BulkApply(context.Background(), nil, nil, []models.EventSpec{
		{StudentCode: "code-1", TypeName: "Late", Points: 2, DateCommitted: date},
	})
	require.Equal(t, 1, result.SuccessCount)
	require.Equal(t, wantWeek, conduct.inserted[0].WeekNumber)
}

func TestApplyToManyAppliesEveryPair(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 100)
	students.add("s2", "c2", "Binh", "10A", 100)
	for i := 0; i < 4; i++ {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	result := svc.ApplyToMany(context.Background(), nil, nil, MultiApplyRequest{
		StudentIDs: []string{"s1", "s2"},
		Types: []struct {
			TypeName string `json:"type_name" validate:"required"`
			Points   int    `json:"points" validate:"required,gt=0"`
		}{
			{TypeName: "Late", Points: 2},
			{TypeName: "No homework", Points: 3},
		},
		Kind: "violation",
	})
	require.Equal(t, 4, result.SuccessCount)
	require.Empty(t, result.Errors)
	require.Equal(t, 95.0, students.scores["s1"])
	require.Equal(t, 95.0, students.scores["s2"])
	require.Len(t, conduct.inserted, 4)
}

func TestApplyByCodesNormalizedMatch(t *testing.T) {
	svc, students, _, _, _, mock := newLedgerFixture(t)
	students.add("s1", "34 TOAN - 001035", "An", "10A", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.ApplyByCodes(context.Background(), nil, nil, CodesApplyRequest{
		StudentCodes: []string{"34  toán - 001035", "garbled"},
		TypeName:     "Late",
		Points:       2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "garbled")
	require.Equal(t, 98.0, students.scores["s1"])
}

func TestApplyToManySkipsForeignClassStudents(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10A", 100)
	students.add("s2", "c2", "Binh", "10B", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result := svc.ApplyToMany(context.Background(), homeroomClaims("10A"), nil, MultiApplyRequest{
		StudentIDs: []string{"s1", "s2"},
		Types: []struct {
			TypeName string `json:"type_name" validate:"required"`
			Points   int    `json:"points" validate:"required,gt=0"`
		}{
			{TypeName: "Late", Points: 2},
		},
		Kind: "violation",
	})
	require.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "s2")
	require.Contains(t, result.Errors[0], "outside your assigned scope")
	require.Equal(t, 98.0, students.scores["s1"])
	require.Equal(t, 100.0, students.scores["s2"])
	require.Len(t, conduct.inserted, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyByCodesSkipsForeignClassStudents(t *testing.T) {
	svc, students, _, _, _, mock := newLedgerFixture(t)
	students.add("s1", "code-1", "An", "10A", 100)
	students.add("s2", "code-2", "Binh", "10B", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := svc.ApplyByCodes(context.Background(), homeroomClaims("10A"), nil, CodesApplyRequest{
		StudentCodes: []string{"code-1", "code-2"},
		TypeName:     "Late",
		Points:       2,
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], `"code-2"`)
	require.Equal(t, 98.0, students.scores["s1"])
	require.Equal(t, 100.0, students.scores["s2"])
}

func TestRevertEventScopedToHomeroomClass(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "c1", "An", "10B", 95)
	conduct.events["v1"] = &models.ConductEvent{
		ID: "v1", StudentID: "s1", TypeName: "Late", Points: 5, Kind: models.EventViolation,
	}

	_, err := svc.RevertEvent(context.Background(), homeroomClaims("10A"), nil, models.EventViolation, "v1")
	requireForbidden(t, err)
	require.Equal(t, 95.0, students.scores["s1"])
	require.Empty(t, conduct.deleted)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.RevertEvent(context.Background(), homeroomClaims("10B"), nil, models.EventViolation, "v1")
	require.NoError(t, err)
	require.Equal(t, 100.0, students.scores["s1"])
	require.Contains(t, conduct.deleted, "v1")
}

func TestBulkApplySkipsForeignClassRows(t *testing.T) {
	svc, students, conduct, _, _, mock := newLedgerFixture(t)
	students.add("s1", "code-1", "An", "10A", 100)
	students.add("s2", "code-2", "Binh", "10B", 100)
	mock.ExpectBegin()
	mock.ExpectCommit()

	result := svc.BulkApply(context.Background(), homeroomClaims("10A"), nil, []models.EventSpec{
		{StudentCode: "code-1", TypeName: "Late", Points: 5},
		{StudentCode: "code-2", TypeName: "Late", Points: 5},
	})
	require.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Errors, 1)
	require.Contains(t, result.Errors[0], "row 2")
	require.Contains(t, result.Errors[0], "outside your assigned scope")
	require.Equal(t, 95.0, students.scores["s1"])
	require.Equal(t, 100.0, students.scores["s2"])
	require.Len(t, conduct.inserted, 1)
}
