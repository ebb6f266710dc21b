package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/homeroom-api/internal/models"
)

type reportStudentMock struct {
	students []models.Student
}

func (m *reportStudentMock) ListAll(_ context.Context) ([]models.Student, error) {
	return m.students, nil
}

func (m *reportStudentMock) ListByClass(_ context.Context, class string) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if s.StudentClass == class {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *reportStudentMock) FindByID(_ context.Context, id string) (*models.Student, error) {
	for i := range m.students {
		if m.students[i].ID == id {
			return &m.students[i], nil
		}
	}
	return nil, nil
}

func (m *reportStudentMock) CountByClass(_ context.Context, class string) (int, error) {
	n := 0
	for _, s := range m.students {
		if s.StudentClass == class {
			n++
		}
	}
	return n, nil
}

type reportConductMock struct {
	events        []models.ConductEvent
	classWeekSums map[string]float64
	deductions    map[string]float64
	topTypes      []models.ViolationTypeCount
	distinctWeeks []int
	aggregates    []models.WeekAggregate
}

func (m *reportConductMock) List(_ context.Context, _ models.ConductEventFilter) ([]models.ConductEvent, error) {
	return m.events, nil
}

func (m *reportConductMock) SumClassWeek(_ context.Context, class string, _ int) (float64, error) {
	return m.classWeekSums[class], nil
}

func (m *reportConductMock) WeekDeductions(_ context.Context, _ int, _ string) (map[string]float64, error) {
	return m.deductions, nil
}

func (m *reportConductMock) CountWeekViolations(_ context.Context, _ int, _ string) (int, error) {
	return len(m.events), nil
}

func (m *reportConductMock) TopTypes(_ context.Context, _ int, _ string, _ int) ([]models.ViolationTypeCount, error) {
	return m.topTypes, nil
}

func (m *reportConductMock) DistinctWeeks(_ context.Context) ([]int, error) {
	return m.distinctWeeks, nil
}

func (m *reportConductMock) WeekAggregates(_ context.Context, _ string) ([]models.WeekAggregate, error) {
	return m.aggregates, nil
}

type reportClassMock struct {
	classes []models.ClassRoom
}

func (m *reportClassMock) List(_ context.Context) ([]models.ClassRoom, error) {
	return m.classes, nil
}

type reportArchiveMock struct {
	rows  map[int][]models.WeeklyArchive
	weeks []int
}

func (m *reportArchiveMock) ListByWeek(_ context.Context, week int, _ string) ([]models.WeeklyArchive, error) {
	return m.rows[week], nil
}

func (m *reportArchiveMock) Weeks(_ context.Context) ([]int, error) {
	return m.weeks, nil
}

type fixedWeek int

func (w fixedWeek) CurrentWeek(_ context.Context) (int, error) { return int(w), nil }

func TestClassRankingsAmplifiesDeductions(t *testing.T) {
	students := &reportStudentMock{students: []models.Student{
		{ID: "s1", StudentClass: "10A", CurrentScore: score(96)},
		{ID: "s2", StudentClass: "10A", CurrentScore: score(100)},
		{ID: "s3", StudentClass: "10B", CurrentScore: score(100)},
	}}
	conduct := &reportConductMock{classWeekSums: map[string]float64{"10A": 4}}
	classes := &reportClassMock{classes: []models.ClassRoom{{Name: "10A"}, {Name: "10B"}}}
	svc := NewReportService(students, conduct, classes, &reportArchiveMock{}, fixedWeek(3), nil, time.Minute, nil)

	rankings, err := svc.ClassRankings(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, rankings, 2)

	// Clean class first, then 100 - (4/2)*15 = 70 despite only four raw
	// points of deductions.
	require.Equal(t, "10B", rankings[0].ClassName)
	require.Equal(t, 100.0, rankings[0].AvgScore)
	require.Equal(t, "10A", rankings[1].ClassName)
	require.Equal(t, 70.0, rankings[1].AvgScore)
	require.Equal(t, 4.0, rankings[1].WeeklyDeduct)
}

func TestClassRankingsFloorsAtZero(t *testing.T) {
	students := &reportStudentMock{students: []models.Student{
		{ID: "s1", StudentClass: "9C", CurrentScore: score(40)},
	}}
	conduct := &reportConductMock{classWeekSums: map[string]float64{"9C": 20}}
	classes := &reportClassMock{classes: []models.ClassRoom{{Name: "9C"}}}
	svc := NewReportService(students, conduct, classes, &reportArchiveMock{}, fixedWeek(1), nil, time.Minute, nil)

	rankings, err := svc.ClassRankings(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 0.0, rankings[0].AvgScore)
}

func TestClassRankingsEmptyClassScoresBaseline(t *testing.T) {
	students := &reportStudentMock{}
	classes := &reportClassMock{classes: []models.ClassRoom{{Name: "11D"}}}
	svc := NewReportService(students, &reportConductMock{}, classes, &reportArchiveMock{}, fixedWeek(1), nil, time.Minute, nil)

	rankings, err := svc.ClassRankings(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 100.0, rankings[0].AvgScore)
	require.Equal(t, 0.0, rankings[0].WeeklyDeduct)
}

func TestHistogramLiveWeekBucketsCachedScores(t *testing.T) {
	students := &reportStudentMock{students: []models.Student{
		{ID: "s1", StudentClass: "10A", CurrentScore: score(95)},
		{ID: "s2", StudentClass: "10A", CurrentScore: score(75)},
		{ID: "s3", StudentClass: "10A", CurrentScore: score(90)},
		{ID: "s4", StudentClass: "10A", CurrentScore: score(-3)},
	}}
	svc := NewReportService(students, &reportConductMock{}, &reportClassMock{}, &reportArchiveMock{}, fixedWeek(2), nil, time.Minute, nil)

	histogram, err := svc.Histogram(context.Background(), "", 2)
	require.NoError(t, err)
	require.Equal(t, 2, histogram.Good)
	require.Equal(t, 1, histogram.Fair)
	require.Equal(t, 1, histogram.Poor)
}

func TestHistogramHistoricalWeekRebuildsFromLedger(t *testing.T) {
	students := &reportStudentMock{students: []models.Student{
		{ID: "s1", StudentClass: "10A", CurrentScore: score(100)},
		{ID: "s2", StudentClass: "10A", CurrentScore: score(100)},
	}}
	conduct := &reportConductMock{deductions: map[string]float64{"s1": 35}}
	svc := NewReportService(students, conduct, &reportClassMock{}, &reportArchiveMock{}, fixedWeek(5), nil, time.Minute, nil)

	histogram, err := svc.Histogram(context.Background(), "", 2)
	require.NoError(t, err)
	require.Equal(t, 1, histogram.Good)
	require.Equal(t, 0, histogram.Fair)
	require.Equal(t, 1, histogram.Poor)
}

func TestStudentTimelineRunsDownFromBaseline(t *testing.T) {
	conduct := &reportConductMock{events: []models.ConductEvent{
		{TypeName: "Fighting", Points: 10, DateCommitted: time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)},
		{TypeName: "Late", Points: 2, DateCommitted: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)},
	}}
	svc := NewReportService(&reportStudentMock{}, conduct, &reportClassMock{}, &reportArchiveMock{}, fixedWeek(2), nil, time.Minute, nil)

	points, err := svc.StudentTimeline(context.Background(), "s1", 2)
	require.NoError(t, err)
	require.Len(t, points, 3)
	require.Equal(t, "start", points[0].Label)
	require.Equal(t, 100.0, points[0].Score)
	require.Equal(t, "Late (05/01)", points[1].Label)
	require.Equal(t, 98.0, points[1].Score)
	require.Equal(t, "Fighting (07/01)", points[2].Label)
	require.Equal(t, 88.0, points[2].Score)
}

func TestWeekStatsPrefersArchive(t *testing.T) {
	archives := &reportArchiveMock{rows: map[int][]models.WeeklyArchive{
		2: {
			{FinalScore: 95},
			{FinalScore: 60},
		},
	}}
	svc := NewReportService(&reportStudentMock{}, &reportConductMock{}, &reportClassMock{}, archives, fixedWeek(5), nil, time.Minute, nil)

	stats, err := svc.WeekStats(context.Background(), 2, "")
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalStudents)
	require.Equal(t, 77.5, stats.AvgScore)
	require.Equal(t, 1, stats.GoodCount)
	require.Equal(t, 1, stats.PoorCount)
}

func TestAvailableWeeksMergesLedgerAndArchive(t *testing.T) {
	conduct := &reportConductMock{distinctWeeks: []int{3, 5}}
	archives := &reportArchiveMock{weeks: []int{1, 2, 3}}
	svc := NewReportService(&reportStudentMock{}, conduct, &reportClassMock{}, archives, fixedWeek(5), nil, time.Minute, nil)

	weeks, err := svc.AvailableWeeks(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{5, 3, 2, 1}, weeks)
}

type countingCache struct {
	store map[string]bool
	hits  int
	sets  int
}

func (c *countingCache) Get(_ context.Context, key string, _ interface{}) error {
	if !c.store[key] {
		return errors.New("cache miss")
	}
	c.hits++
	return nil
}

func (c *countingCache) Set(_ context.Context, key string, _ interface{}, _ time.Duration) error {
	if c.store == nil {
		c.store = make(map[string]bool)
	}
	c.store[key] = true
	c.sets++
	return nil
}

func TestClassRankingsWritesCache(t *testing.T) {
	classes := &reportClassMock{classes: []models.ClassRoom{{Name: "10A"}}}
	cache := &countingCache{}
	svc := NewReportService(&reportStudentMock{}, &reportConductMock{}, classes, &reportArchiveMock{}, fixedWeek(1), cache, time.Minute, nil)

	_, err := svc.ClassRankings(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, cache.sets)

	_, err = svc.ClassRankings(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, cache.hits)
	require.Equal(t, 1, cache.sets)
}
