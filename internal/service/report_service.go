package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

// RankingAmplification exaggerates per-student average deductions in the
// class leaderboard so small weekly differences stay visible.
const RankingAmplification = 15.0

type reportStudentRepo interface {
	ListAll(ctx context.Context) ([]models.Student, error)
	ListByClass(ctx context.Context, class string) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	CountByClass(ctx context.Context, class string) (int, error)
}

type reportConductRepo interface {
	List(ctx context.Context, filter models.ConductEventFilter) ([]models.ConductEvent, error)
	SumClassWeek(ctx context.Context, class string, week int) (float64, error)
	WeekDeductions(ctx context.Context, week int, class string) (map[string]float64, error)
	CountWeekViolations(ctx context.Context, week int, class string) (int, error)
	TopTypes(ctx context.Context, week int, class string, limit int) ([]models.ViolationTypeCount, error)
	DistinctWeeks(ctx context.Context) ([]int, error)
	WeekAggregates(ctx context.Context, studentID string) ([]models.WeekAggregate, error)
}

type reportClassRepo interface {
	List(ctx context.Context) ([]models.ClassRoom, error)
}

type reportArchiveRepo interface {
	ListByWeek(ctx context.Context, week int, class string) ([]models.WeeklyArchive, error)
	Weeks(ctx context.Context) ([]int, error)
}

type weekSource interface {
	CurrentWeek(ctx context.Context) (int, error)
}

type reportCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// ReportService computes the read-side views over the ledger and archive.
// Everything here is derived on request; Redis only shortcuts recomputation
// and is dropped wholesale on every ledger write.
type ReportService struct {
	students reportStudentRepo
	conduct  reportConductRepo
	classes  reportClassRepo
	archives reportArchiveRepo
	weeks    weekSource
	cache    reportCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewReportService constructs the service. A nil cache disables caching.
func NewReportService(students reportStudentRepo, conduct reportConductRepo, classes reportClassRepo, archives reportArchiveRepo, weeks weekSource, cache reportCache, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReportService{
		students: students,
		conduct:  conduct,
		classes:  classes,
		archives: archives,
		weeks:    weeks,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

// Histogram buckets students by conduct score. The active week reads the
// live cached scores; a historical week rebuilds each score as the baseline
// minus that week's violation sum, which must agree with the live numbers
// for the active week when no cross-week drift occurred.
func (s *ReportService) Histogram(ctx context.Context, class string, week int) (*models.ScoreHistogram, error) {
	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}
	if week <= 0 {
		week = current
	}

	key := fmt.Sprintf("reports:histogram:%s:%d", class, week)
	var cached models.ScoreHistogram
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	var students []models.Student
	if class != "" {
		students, err = s.students.ListByClass(ctx, class)
	} else {
		students, err = s.students.ListAll(ctx)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	histogram := &models.ScoreHistogram{}
	if week == current {
		for i := range students {
			bucket(histogram, students[i].Score())
		}
	} else {
		deductions, err := s.conduct.WeekDeductions(ctx, week, class)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week deductions")
		}
		for i := range students {
			bucket(histogram, models.BaselineScore-deductions[students[i].ID])
		}
	}

	s.cacheSet(ctx, key, histogram)
	return histogram, nil
}

func bucket(h *models.ScoreHistogram, score float64) {
	switch {
	case score >= 90:
		h.Good++
	case score >= 70:
		h.Fair++
	default:
		h.Poor++
	}
}

// ClassRankings builds the weekly class leaderboard, best class first.
// avg_score = 100 - (class violation points / student count) * 15.0,
// floored at zero. Empty classes rank at the baseline.
func (s *ReportService) ClassRankings(ctx context.Context, week int) ([]models.ClassRanking, error) {
	if week <= 0 {
		current, err := s.weeks.CurrentWeek(ctx)
		if err != nil {
			return nil, err
		}
		week = current
	}

	key := fmt.Sprintf("reports:rankings:%d", week)
	var cached []models.ClassRanking
	if s.cacheGet(ctx, key, &cached) {
		return cached, nil
	}

	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	rankings := make([]models.ClassRanking, 0, len(classes))
	for _, class := range classes {
		count, err := s.students.CountByClass(ctx, class.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
		}
		ranking := models.ClassRanking{ClassName: class.Name, AvgScore: models.BaselineScore}
		if count > 0 {
			total, err := s.conduct.SumClassWeek(ctx, class.Name, week)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum class deductions")
			}
			avgDeduct := total / float64(count)
			score := models.BaselineScore - avgDeduct*RankingAmplification
			if score < 0 {
				score = 0
			}
			ranking.WeeklyDeduct = total
			ranking.AvgScore = score
		}
		rankings = append(rankings, ranking)
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].AvgScore > rankings[j].AvgScore
	})

	s.cacheSet(ctx, key, rankings)
	return rankings, nil
}

// WeeklyReport bundles the per-week summary view.
func (s *ReportService) WeeklyReport(ctx context.Context, week int, class string) (*models.WeeklyReport, error) {
	current, err := s.weeks.CurrentWeek(ctx)
	if err != nil {
		return nil, err
	}
	if week <= 0 {
		week = current
	}

	key := fmt.Sprintf("reports:weekly:%d:%s", week, class)
	var cached models.WeeklyReport
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	violations, err := s.conduct.List(ctx, models.ConductEventFilter{WeekNumber: week, Class: class, Kind: models.EventViolation})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list violations")
	}
	deductions, err := s.conduct.WeekDeductions(ctx, week, class)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week deductions")
	}
	var totalPoints float64
	for _, d := range deductions {
		totalPoints += d
	}
	topTypes, err := s.conduct.TopTypes(ctx, week, class, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top types")
	}
	rankings, err := s.ClassRankings(ctx, week)
	if err != nil {
		return nil, err
	}

	report := &models.WeeklyReport{
		WeekNumber:  week,
		SystemWeek:  current,
		TotalErrors: len(violations),
		TotalPoints: totalPoints,
		Rankings:    rankings,
		Violations:  violations,
		TopTypes:    topTypes,
	}
	s.cacheSet(ctx, key, report)
	return report, nil
}

// StudentTimeline replays one student's violations for a week as a running
// subtraction from the baseline, oldest first.
func (s *ReportService) StudentTimeline(ctx context.Context, studentID string, week int) ([]models.ScorePoint, error) {
	if week <= 0 {
		current, err := s.weeks.CurrentWeek(ctx)
		if err != nil {
			return nil, err
		}
		week = current
	}
	events, err := s.conduct.List(ctx, models.ConductEventFilter{StudentID: studentID, WeekNumber: week, Kind: models.EventViolation})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].DateCommitted.Before(events[j].DateCommitted)
	})

	points := []models.ScorePoint{{Label: "start", Score: models.BaselineScore}}
	score := float64(models.BaselineScore)
	for _, e := range events {
		score -= float64(e.Points)
		points = append(points, models.ScorePoint{
			Label: fmt.Sprintf("%s (%s)", e.TypeName, e.DateCommitted.Format("02/01")),
			Score: score,
		})
	}
	return points, nil
}

// WeekStats produces the roll-up used by the AI trend summaries. Archived
// weeks are read from the snapshot; unarchived ones from the live ledger.
func (s *ReportService) WeekStats(ctx context.Context, week int, class string) (*models.WeekStats, error) {
	rows, err := s.archives.ListByWeek(ctx, week, class)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read archive")
	}

	stats := &models.WeekStats{WeekNumber: week}
	if len(rows) > 0 {
		var sum float64
		for _, row := range rows {
			sum += row.FinalScore
			if row.FinalScore >= 90 {
				stats.GoodCount++
			} else if row.FinalScore < 70 {
				stats.PoorCount++
			}
		}
		stats.TotalStudents = len(rows)
		stats.AvgScore = round2(sum / float64(len(rows)))
	} else {
		histogram, err := s.Histogram(ctx, class, week)
		if err != nil {
			return nil, err
		}
		var students []models.Student
		if class != "" {
			students, err = s.students.ListByClass(ctx, class)
		} else {
			students, err = s.students.ListAll(ctx)
		}
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		deductions, err := s.conduct.WeekDeductions(ctx, week, class)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week deductions")
		}
		var sum float64
		for i := range students {
			sum += models.BaselineScore - deductions[students[i].ID]
		}
		stats.TotalStudents = len(students)
		if len(students) > 0 {
			stats.AvgScore = round2(sum / float64(len(students)))
		}
		stats.GoodCount = histogram.Good
		stats.PoorCount = histogram.Poor
	}

	top, err := s.conduct.TopTypes(ctx, week, class, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load top types")
	}
	stats.TopViolations = top
	return stats, nil
}

// AvailableWeeks merges week numbers seen in the ledger and the archive,
// newest first.
func (s *ReportService) AvailableWeeks(ctx context.Context) ([]int, error) {
	ledgerWeeks, err := s.conduct.DistinctWeeks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list ledger weeks")
	}
	archiveWeeks, err := s.archives.Weeks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list archive weeks")
	}
	seen := make(map[int]bool)
	var weeks []int
	for _, w := range append(ledgerWeeks, archiveWeeks...) {
		if !seen[w] {
			seen[w] = true
			weeks = append(weeks, w)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weeks)))
	return weeks, nil
}

// StudentWeekHistory groups a student's violations by week for the detail
// view.
func (s *ReportService) StudentWeekHistory(ctx context.Context, studentID string) ([]models.WeekAggregate, error) {
	aggs, err := s.conduct.WeekAggregates(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week history")
	}
	return aggs, nil
}

func (s *ReportService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	if err := s.cache.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

func (s *ReportService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.logger.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
