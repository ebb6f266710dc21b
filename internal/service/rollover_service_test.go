package service

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/pkg/weekstamp"
)

type rolloverStudentMock struct {
	db       *sqlx.DB
	students []models.Student
	resets   int
}

func (m *rolloverStudentMock) ListAllTx(_ context.Context, _ *sqlx.Tx) ([]models.Student, error) {
	return m.students, nil
}

func (m *rolloverStudentMock) ResetAllScores(_ context.Context, _ *sqlx.Tx) error {
	m.resets++
	for i := range m.students {
		score := float64(models.BaselineScore)
		m.students[i].CurrentScore = &score
	}
	return nil
}

func (m *rolloverStudentMock) DB() *sqlx.DB { return m.db }

type rolloverConductMock struct {
	deductions map[int]map[string]float64
}

func (m *rolloverConductMock) StudentWeekDeductions(_ context.Context, _ *sqlx.Tx, week int) (map[string]float64, error) {
	return m.deductions[week], nil
}

type archiveRepoMock struct {
	rows    map[int][]models.WeeklyArchive
	deletes []int
}

func newArchiveRepoMock() *archiveRepoMock {
	return &archiveRepoMock{rows: make(map[int][]models.WeeklyArchive)}
}

func (m *archiveRepoMock) DeleteWeek(_ context.Context, _ *sqlx.Tx, week int) error {
	m.deletes = append(m.deletes, week)
	delete(m.rows, week)
	return nil
}

func (m *archiveRepoMock) Insert(_ context.Context, _ *sqlx.Tx, a *models.WeeklyArchive) error {
	m.rows[a.WeekNumber] = append(m.rows[a.WeekNumber], *a)
	return nil
}

func score(v float64) *float64 { return &v }

func newRolloverFixture(t *testing.T) (*RolloverService, *rolloverStudentMock, *archiveRepoMock, *configRepoMock, *auditSinkMock, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	students := &rolloverStudentMock{
		db: db,
		students: []models.Student{
			{ID: "s1", StudentCode: "c1", Name: "An", StudentClass: "10A", CurrentScore: score(92)},
			{ID: "s2", StudentCode: "c2", Name: "Binh", StudentClass: "10B", CurrentScore: score(100)},
		},
	}
	conduct := &rolloverConductMock{deductions: map[int]map[string]float64{
		3: {"s1": 8},
	}}
	archives := newArchiveRepoMock()
	config := &configRepoMock{values: map[string]string{models.ConfigCurrentWeek: "3"}}
	audit := &auditSinkMock{}
	svc := NewRolloverService(students, conduct, archives, config, audit, &cacheMock{}, nil)
	svc.now = func() time.Time { return time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC) }
	return svc, students, archives, config, audit, mock
}

func TestEndWeekArchivesResetsAndAdvances(t *testing.T) {
	svc, students, archives, config, audit, mock := newRolloverFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	summary, err := svc.EndWeek(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 3, summary.ArchivedWeek)
	require.Equal(t, 4, summary.NewWeek)
	require.Equal(t, 2, summary.StudentsReset)

	require.Len(t, archives.rows[3], 2)
	require.Equal(t, 92.0, archives.rows[3][0].FinalScore)
	require.Equal(t, 8.0, archives.rows[3][0].TotalDeductions)
	require.Equal(t, 100.0, archives.rows[3][1].FinalScore)
	require.Equal(t, 0.0, archives.rows[3][1].TotalDeductions)

	require.Equal(t, 1, students.resets)
	require.Equal(t, "4", config.values[models.ConfigCurrentWeek])
	require.Equal(t, weekstamp.Current(svc.now()), config.values[models.ConfigLastResetWeek])
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.ChangeWeekRollover, audit.entries[0].ChangeType)
}

// Running the rollover twice archives two distinct weeks and moves the
// pointer by two; the second archive snapshots the freshly reset scores.
func TestEndWeekTwiceIsSequential(t *testing.T) {
	svc, _, archives, config, _, mock := newRolloverFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.EndWeek(context.Background(), nil)
	require.NoError(t, err)
	summary, err := svc.EndWeek(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, 4, summary.ArchivedWeek)
	require.Equal(t, 5, summary.NewWeek)
	require.Equal(t, "5", config.values[models.ConfigCurrentWeek])
	require.Len(t, archives.rows[3], 2)
	require.Len(t, archives.rows[4], 2)
	require.Equal(t, 100.0, archives.rows[4][0].FinalScore)
}

func TestEndWeekOverwritesExistingArchive(t *testing.T) {
	svc, _, archives, config, _, mock := newRolloverFixture(t)
	archives.rows[3] = []models.WeeklyArchive{{WeekNumber: 3, StudentID: "stale"}}
	config.values[models.ConfigCurrentWeek] = "3"
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.EndWeek(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, []int{3}, archives.deletes)
	require.Len(t, archives.rows[3], 2)
	for _, row := range archives.rows[3] {
		require.NotEqual(t, "stale", row.StudentID)
	}
}

func TestIsRolloverDue(t *testing.T) {
	svc, _, _, config, _, _ := newRolloverFixture(t)

	// No stamp yet.
	due, err := svc.IsRolloverDue(context.Background())
	require.NoError(t, err)
	require.True(t, due)

	config.values[models.ConfigLastResetWeek] = weekstamp.Current(svc.now())
	due, err = svc.IsRolloverDue(context.Background())
	require.NoError(t, err)
	require.False(t, due)

	config.values[models.ConfigLastResetWeek] = "2025-W51"
	due, err = svc.IsRolloverDue(context.Background())
	require.NoError(t, err)
	require.True(t, due)
}

func TestSetWeekOverridesPointerOnly(t *testing.T) {
	svc, students, archives, config, audit, mock := newRolloverFixture(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	require.NoError(t, svc.SetWeek(context.Background(), nil, 12))
	require.Equal(t, "12", config.values[models.ConfigCurrentWeek])
	require.Empty(t, archives.rows)
	require.Equal(t, 0, students.resets)
	require.Len(t, audit.entries, 1)
	require.Equal(t, models.ChangeSetWeek, audit.entries[0].ChangeType)

	require.Error(t, svc.SetWeek(context.Background(), nil, 0))
}

func TestCurrentWeekDefaults(t *testing.T) {
	svc, _, _, config, _, _ := newRolloverFixture(t)

	delete(config.values, models.ConfigCurrentWeek)
	week, err := svc.CurrentWeek(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, week)

	config.values[models.ConfigCurrentWeek] = "not-a-number"
	week, err = svc.CurrentWeek(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, week)
}
