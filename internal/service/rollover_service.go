package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/internal/repository"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/weekstamp"
)

type rolloverStudentRepo interface {
	ListAllTx(ctx context.Context, tx *sqlx.Tx) ([]models.Student, error)
	ResetAllScores(ctx context.Context, tx *sqlx.Tx) error
	DB() *sqlx.DB
}

type rolloverConductRepo interface {
	StudentWeekDeductions(ctx context.Context, tx *sqlx.Tx, week int) (map[string]float64, error)
}

type rolloverArchiveRepo interface {
	DeleteWeek(ctx context.Context, tx *sqlx.Tx, week int) error
	Insert(ctx context.Context, tx *sqlx.Tx, a *models.WeeklyArchive) error
}

type rolloverConfigRepo interface {
	Get(ctx context.Context, key string) (string, bool, error)
	GetTx(ctx context.Context, tx *sqlx.Tx, key string) (string, bool, error)
	SetTx(ctx context.Context, tx *sqlx.Tx, key, value string) error
}

// RolloverService owns the weekly ledger transition: snapshot, reset,
// advance, stamp. All of it commits as a single transaction.
type RolloverService struct {
	students rolloverStudentRepo
	conduct  rolloverConductRepo
	archives rolloverArchiveRepo
	config   rolloverConfigRepo
	audit    auditSink
	cache    cacheInvalidator
	logger   *zap.Logger
	now      func() time.Time
}

// NewRolloverService constructs the service.
func NewRolloverService(students rolloverStudentRepo, conduct rolloverConductRepo, archives rolloverArchiveRepo, config rolloverConfigRepo, audit auditSink, cache cacheInvalidator, logger *zap.Logger) *RolloverService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RolloverService{
		students: students,
		conduct:  conduct,
		archives: archives,
		config:   config,
		audit:    audit,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// RolloverSummary reports the completed transition.
type RolloverSummary struct {
	ArchivedWeek  int `json:"archived_week"`
	NewWeek       int `json:"new_week"`
	StudentsReset int `json:"students_reset"`
}

// EndWeek archives week N and opens week N+1:
//  1. read the live week pointer,
//  2. overwrite the week's archive with one row per student, final_score
//     taken from the live cached score, total_deductions from the week's
//     violation sum only,
//  3. reset every score to the baseline,
//  4. advance the pointer,
//  5. stamp the real-world ISO year-week.
//
// Any failure rolls the whole transition back and the pointer stays at N.
func (s *RolloverService) EndWeek(ctx context.Context, actorID *string) (*RolloverSummary, error) {
	var summary RolloverSummary

	err := repository.InTx(ctx, s.students.DB(), func(tx *sqlx.Tx) error {
		week := s.currentWeekTx(ctx, tx)

		students, err := s.students.ListAllTx(ctx, tx)
		if err != nil {
			return err
		}
		deductions, err := s.conduct.StudentWeekDeductions(ctx, tx, week)
		if err != nil {
			return err
		}

		if err := s.archives.DeleteWeek(ctx, tx, week); err != nil {
			return err
		}
		for i := range students {
			student := &students[i]
			row := &models.WeeklyArchive{
				WeekNumber:      week,
				StudentID:       student.ID,
				StudentName:     student.Name,
				StudentCode:     student.StudentCode,
				StudentClass:    student.StudentClass,
				FinalScore:      student.Score(),
				TotalDeductions: deductions[student.ID],
			}
			if err := s.archives.Insert(ctx, tx, row); err != nil {
				return err
			}
		}

		if err := s.students.ResetAllScores(ctx, tx); err != nil {
			return err
		}

		newWeek := week + 1
		if err := s.config.SetTx(ctx, tx, models.ConfigCurrentWeek, strconv.Itoa(newWeek)); err != nil {
			return err
		}
		if err := s.config.SetTx(ctx, tx, models.ConfigLastResetWeek, weekstamp.Current(s.now())); err != nil {
			return err
		}

		summary = RolloverSummary{ArchivedWeek: week, NewWeek: newWeek, StudentsReset: len(students)}

		oldVal := strconv.Itoa(week)
		newVal := strconv.Itoa(newWeek)
		return s.audit.InsertTx(ctx, tx, &models.ChangeLog{
			TeacherID:   actorID,
			ChangeType:  models.ChangeWeekRollover,
			Description: fmt.Sprintf("archived week %d (%d students), reset scores, opened week %d", week, len(students), newWeek),
			OldValue:    &oldVal,
			NewValue:    &newVal,
		})
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "week rollover failed")
	}

	s.invalidate(ctx)
	s.logger.Info("week rolled over",
		zap.Int("archived_week", summary.ArchivedWeek),
		zap.Int("new_week", summary.NewWeek),
		zap.Int("students", summary.StudentsReset))
	return &summary, nil
}

// IsRolloverDue reports whether the stamp from the last rollover no longer
// matches the current real-world ISO year-week. Advisory only.
func (s *RolloverService) IsRolloverDue(ctx context.Context) (bool, error) {
	stamp, ok, err := s.config.Get(ctx, models.ConfigLastResetWeek)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read rollover stamp")
	}
	if !ok {
		return true, nil
	}
	return stamp != weekstamp.Current(s.now()), nil
}

// CurrentWeek returns the live week pointer, defaulting to 1.
func (s *RolloverService) CurrentWeek(ctx context.Context) (int, error) {
	value, ok, err := s.config.Get(ctx, models.ConfigCurrentWeek)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read current week")
	}
	if !ok {
		return 1, nil
	}
	week, err := strconv.Atoi(value)
	if err != nil || week < 1 {
		return 1, nil
	}
	return week, nil
}

// SetWeek overwrites the week pointer without archiving or resetting
// anything. An administrative escape hatch that bypasses the safe
// transition, audited as such.
func (s *RolloverService) SetWeek(ctx context.Context, actorID *string, week int) error {
	if week < 1 {
		return appErrors.Clone(appErrors.ErrValidation, "week number must be at least 1")
	}
	old, err := s.CurrentWeek(ctx)
	if err != nil {
		return err
	}

	err = repository.InTx(ctx, s.students.DB(), func(tx *sqlx.Tx) error {
		if err := s.config.SetTx(ctx, tx, models.ConfigCurrentWeek, strconv.Itoa(week)); err != nil {
			return err
		}
		oldVal := strconv.Itoa(old)
		newVal := strconv.Itoa(week)
		return s.audit.InsertTx(ctx, tx, &models.ChangeLog{
			TeacherID:   actorID,
			ChangeType:  models.ChangeSetWeek,
			Description: fmt.Sprintf("week pointer overridden from %d to %d without archive or reset", old, week),
			OldValue:    &oldVal,
			NewValue:    &newVal,
		})
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set week")
	}

	s.invalidate(ctx)
	return nil
}

func (s *RolloverService) currentWeekTx(ctx context.Context, tx *sqlx.Tx) int {
	value, ok, err := s.config.GetTx(ctx, tx, models.ConfigCurrentWeek)
	if err != nil || !ok {
		if err != nil {
			s.logger.Warn("current week read failed, defaulting to 1", zap.Error(err))
		}
		return 1
	}
	week, err := strconv.Atoi(value)
	if err != nil || week < 1 {
		return 1
	}
	return week
}

func (s *RolloverService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}
