package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/internal/repository"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/textnorm"
)

type ledgerStudentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	LockScore(ctx context.Context, tx *sqlx.Tx, studentID string) (float64, error)
	SetScore(ctx context.Context, tx *sqlx.Tx, studentID string, score float64) error
	DB() *sqlx.DB
}

type ledgerConductRepo interface {
	InsertEvent(ctx context.Context, tx *sqlx.Tx, e *models.ConductEvent) error
	GetEvent(ctx context.Context, kind models.EventKind, id string) (*models.ConductEvent, error)
	DeleteEvent(ctx context.Context, tx *sqlx.Tx, kind models.EventKind, id string) error
	List(ctx context.Context, filter models.ConductEventFilter) ([]models.ConductEvent, error)
	SumStudentAll(ctx context.Context, kind models.EventKind, studentID string) (float64, error)
}

type ledgerConfigRepo interface {
	GetTx(ctx context.Context, tx *sqlx.Tx, key string) (string, bool, error)
}

type auditSink interface {
	InsertTx(ctx context.Context, tx *sqlx.Tx, entry *models.ChangeLog) error
}

type cacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// LedgerService is the single writer of the cached conduct score. Every score
// mutation pairs an event-log write with the score update in one transaction;
// nothing else in the codebase touches students.current_score.
type LedgerService struct {
	students  ledgerStudentRepo
	conduct   ledgerConductRepo
	config    ledgerConfigRepo
	audit     auditSink
	cache     cacheInvalidator
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLedgerService constructs the service.
func NewLedgerService(students ledgerStudentRepo, conduct ledgerConductRepo, config ledgerConfigRepo, audit auditSink, cache cacheInvalidator, access *AccessService, validate *validator.Validate, logger *zap.Logger) *LedgerService {
	if access == nil {
		access = NewAccessService()
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{students: students, conduct: conduct, config: config, audit: audit, cache: cache, access: access, validator: validate, logger: logger}
}

// requireWrite applies the class scope to a score mutation. Internal callers
// pass nil claims; everything reached over HTTP carries the token claims.
func (s *LedgerService) requireWrite(claims *models.JWTClaims, student *models.Student) error {
	if claims == nil {
		return nil
	}
	return s.access.RequireStudentWrite(claims, student)
}

// ApplyEventRequest describes one apply operation.
type ApplyEventRequest struct {
	StudentID     string    `json:"student_id" validate:"required"`
	Kind          string    `json:"kind" validate:"required,oneof=violation bonus"`
	TypeName      string    `json:"type_name" validate:"required"`
	Points        int       `json:"points" validate:"required,gt=0"`
	WeekNumber    int       `json:"week_number"`
	DateCommitted time.Time `json:"date_committed"`
}

// ApplyEvent appends one event and moves the cached score by the signed
// magnitude. Bonuses clamp at the baseline; violations may push the score
// below zero, that is allowed.
func (s *LedgerService) ApplyEvent(ctx context.Context, actorID *string, req ApplyEventRequest) (*models.ConductEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	kind := models.EventKind(req.Kind)
	event := &models.ConductEvent{
		StudentID:     req.StudentID,
		TypeName:      req.TypeName,
		Points:        req.Points,
		DateCommitted: req.DateCommitted,
		WeekNumber:    req.WeekNumber,
		Kind:          kind,
	}

	err = repository.InTx(ctx, s.students.DB(), func(tx *sqlx.Tx) error {
		if event.WeekNumber <= 0 {
			event.WeekNumber = s.currentWeekTx(ctx, tx)
		}
		oldScore, err := s.students.LockScore(ctx, tx, req.StudentID)
		if err != nil {
			return fmt.Errorf("lock score: %w", err)
		}
		newScore := oldScore + kind.Sign()*float64(req.Points)
		if kind == models.EventBonus && newScore > models.BaselineScore {
			newScore = models.BaselineScore
		}
		if err := s.conduct.InsertEvent(ctx, tx, event); err != nil {
			return err
		}
		if err := s.students.SetScore(ctx, tx, req.StudentID, newScore); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, actorID, changeTypeFor(kind), &req.StudentID,
			fmt.Sprintf("%s %q (%d points) for %s", kind, req.TypeName, req.Points, student.Name),
			oldScore, newScore)
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply event")
	}

	s.invalidateReports(ctx)
	return event, nil
}

// RevertEvent deletes one event and applies the inverse delta. Restoring a
// reverted violation clamps at the baseline; reverting a bonus does not floor.
// A stale student pointer degrades to success with a warning once the orphan
// event row is removed.
func (s *LedgerService) RevertEvent(ctx context.Context, claims *models.JWTClaims, actorID *string, kind models.EventKind, eventID string) (string, error) {
	event, err := s.conduct.GetEvent(ctx, kind, eventID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event")
	}
	if event == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "event not found")
	}
	student, err := s.students.FindByID(ctx, event.StudentID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student != nil {
		if err := s.requireWrite(claims, student); err != nil {
			return "", err
		}
	}

	var warning string
	err = repository.InTx(ctx, s.students.DB(), func(tx *sqlx.Tx) error {
		oldScore, err := s.students.LockScore(ctx, tx, event.StudentID)
		if errors.Is(err, sql.ErrNoRows) {
			// Student already deleted; drop the orphan row and move on.
			warning = "student no longer exists, event removed without score change"
			return s.conduct.DeleteEvent(ctx, tx, kind, eventID)
		}
		if err != nil {
			return fmt.Errorf("lock score: %w", err)
		}
		newScore := oldScore - kind.Sign()*float64(event.Points)
		if newScore > models.BaselineScore {
			newScore = models.BaselineScore
		}
		if err := s.conduct.DeleteEvent(ctx, tx, kind, eventID); err != nil {
			return err
		}
		if err := s.students.SetScore(ctx, tx, event.StudentID, newScore); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, actorID, models.ChangeRevertEvent, &event.StudentID,
			fmt.Sprintf("reverted %s %q (%d points)", kind, event.TypeName, event.Points),
			oldScore, newScore)
	})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert event")
	}

	s.invalidateReports(ctx)
	return warning, nil
}

// RecomputeFromLog repairs one student's cached score from the all-time
// violation log: baseline minus every violation ever recorded, weeks and
// bonuses ignored. This is a full-history repair tool and deliberately does
// not match the per-week incremental model.
func (s *LedgerService) RecomputeFromLog(ctx context.Context, actorID *string, studentID string) (float64, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	total, err := s.conduct.SumStudentAll(ctx, models.EventViolation, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum violations")
	}
	newScore := models.BaselineScore - total

	err = repository.InTx(ctx, s.students.DB(), func(tx *sqlx.Tx) error {
		oldScore, err := s.students.LockScore(ctx, tx, studentID)
		if err != nil {
			return fmt.Errorf("lock score: %w", err)
		}
		if err := s.students.SetScore(ctx, tx, studentID, newScore); err != nil {
			return err
		}
		return s.recordChange(ctx, tx, actorID, models.ChangeRecompute, &studentID,
			fmt.Sprintf("recomputed score for %s from violation log", student.Name),
			oldScore, newScore)
	})
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute score")
	}

	s.invalidateReports(ctx)
	return newScore, nil
}

// RecomputeAll runs the repair pass over every student. Each update is
// independent; a failure on one student aborts the sweep there.
func (s *LedgerService) RecomputeAll(ctx context.Context, actorID *string) (int, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	for i, student := range students {
		if _, err := s.RecomputeFromLog(ctx, actorID, student.ID); err != nil {
			return i, err
		}
	}
	return len(students), nil
}

// BulkApplyResult reports the outcome of a bulk import batch.
type BulkApplyResult struct {
	SuccessCount int      `json:"success_count"`
	Errors       []string `json:"errors"`
}

// BulkApply applies violation rows in one batch transaction. Rows that fail
// to resolve a student code or fall outside the caller's class scope are
// reported individually and skipped; a commit
// failure rolls the whole batch back and appends one aggregate error on top
// of any row errors already collected.
func (s *LedgerService) BulkApply(ctx context.Context, claims *models.JWTClaims, actorID *string, specs []models.EventSpec) BulkApplyResult {
	result := BulkApplyResult{Errors: []string{}}

	tx, err := s.students.DB().BeginTxx(ctx, nil)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("could not start batch: %v", err))
		return result
	}

	for i, spec := range specs {
		student, err := s.students.FindByCode(ctx, spec.StudentCode)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: lookup failed for code %q: %v", i+1, spec.StudentCode, err))
			continue
		}
		if student == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: unknown student code %q", i+1, spec.StudentCode))
			continue
		}
		if err := s.requireWrite(claims, student); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if spec.Points <= 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: points must be positive, got %d", i+1, spec.Points))
			continue
		}

		week := spec.WeekNumber
		if week <= 0 {
			if !spec.DateCommitted.IsZero() {
				_, week = spec.DateCommitted.ISOWeek()
			} else {
				week = s.currentWeekTx(ctx, tx)
			}
		}
		event := &models.ConductEvent{
			StudentID:     student.ID,
			TypeName:      spec.TypeName,
			Points:        spec.Points,
			DateCommitted: spec.DateCommitted,
			WeekNumber:    week,
			Kind:          models.EventViolation,
		}

		oldScore, err := s.students.LockScore(ctx, tx, student.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: score read failed: %v", i+1, err))
			continue
		}
		if err := s.conduct.InsertEvent(ctx, tx, event); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: insert failed: %v", i+1, err))
			continue
		}
		newScore := oldScore - float64(spec.Points)
		if err := s.students.SetScore(ctx, tx, student.ID, newScore); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: score update failed: %v", i+1, err))
			continue
		}
		if err := s.recordChange(ctx, tx, actorID, models.ChangeApplyViolation, &student.ID,
			fmt.Sprintf("bulk import: %q (%d points) for %s", spec.TypeName, spec.Points, student.Name),
			oldScore, newScore); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: audit write failed: %v", i+1, err))
			continue
		}
		result.SuccessCount++
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		result.Errors = append(result.Errors, fmt.Sprintf("batch commit failed, all rows rolled back: %v", err))
		return result
	}

	s.invalidateReports(ctx)
	return result
}

// MultiApplyRequest applies several violation types to several students at
// once, the selection-grid form in the UI.
type MultiApplyRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
	Types      []struct {
		TypeName string `json:"type_name" validate:"required"`
		Points   int    `json:"points" validate:"required,gt=0"`
	} `json:"types" validate:"required,min=1,dive"`
	Kind       string `json:"kind" validate:"required,oneof=violation bonus"`
	WeekNumber int    `json:"week_number"`
}

// ApplyToMany applies every (student, type) pair as an independent event.
// A failed pair is reported and the rest continue.
func (s *LedgerService) ApplyToMany(ctx context.Context, claims *models.JWTClaims, actorID *string, req MultiApplyRequest) BulkApplyResult {
	result := BulkApplyResult{Errors: []string{}}
	if err := s.validator.Struct(req); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("invalid payload: %v", err))
		return result
	}
	for _, studentID := range req.StudentIDs {
		if claims != nil {
			student, err := s.students.FindByID(ctx, studentID)
			if err == nil && student != nil {
				if aerr := s.requireWrite(claims, student); aerr != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("student %s: %v", studentID, aerr))
					continue
				}
			}
		}
		for _, t := range req.Types {
			_, err := s.ApplyEvent(ctx, actorID, ApplyEventRequest{
				StudentID:  studentID,
				Kind:       req.Kind,
				TypeName:   t.TypeName,
				Points:     t.Points,
				WeekNumber: req.WeekNumber,
			})
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("student %s, type %q: %v", studentID, t.TypeName, err))
				continue
			}
			result.SuccessCount++
		}
	}
	return result
}

// CodesApplyRequest applies one violation type to students named by raw codes,
// typically produced by the vision OCR path.
type CodesApplyRequest struct {
	StudentCodes []string `json:"student_codes" validate:"required,min=1"`
	TypeName     string   `json:"type_name" validate:"required"`
	Points       int      `json:"points" validate:"required,gt=0"`
	WeekNumber   int      `json:"week_number"`
}

// ApplyByCodes resolves each raw code exact first, then by normalized form,
// and applies the violation to every match. Unresolvable codes are skipped
// and reported, never fatal.
func (s *LedgerService) ApplyByCodes(ctx context.Context, claims *models.JWTClaims, actorID *string, req CodesApplyRequest) (BulkApplyResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return BulkApplyResult{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	result := BulkApplyResult{Errors: []string{}}
	for _, code := range req.StudentCodes {
		student, err := s.resolveCode(ctx, code)
		if err != nil {
			return result, err
		}
		if student == nil {
			result.Errors = append(result.Errors, fmt.Sprintf("no student matches code %q", code))
			continue
		}
		if aerr := s.requireWrite(claims, student); aerr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("code %q: %v", code, aerr))
			continue
		}
		_, err = s.ApplyEvent(ctx, actorID, ApplyEventRequest{
			StudentID:  student.ID,
			Kind:       string(models.EventViolation),
			TypeName:   req.TypeName,
			Points:     req.Points,
			WeekNumber: req.WeekNumber,
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("code %q: %v", code, err))
			continue
		}
		result.SuccessCount++
	}
	return result, nil
}

// ListEvents returns event log rows per filter.
func (s *LedgerService) ListEvents(ctx context.Context, filter models.ConductEventFilter) ([]models.ConductEvent, error) {
	events, err := s.conduct.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list events")
	}
	return events, nil
}

func (s *LedgerService) resolveCode(ctx context.Context, code string) (*models.Student, error) {
	student, err := s.students.FindByCode(ctx, code)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student lookup failed")
	}
	if student != nil {
		return student, nil
	}
	normalized := textnorm.StudentCode(code)
	if normalized == "" {
		return nil, nil
	}
	all, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "student lookup failed")
	}
	for i := range all {
		if textnorm.StudentCode(all[i].StudentCode) == normalized {
			return &all[i], nil
		}
	}
	return nil, nil
}

// currentWeekTx reads the live week pointer inside the event transaction so
// a concurrent rollover cannot split an event across two week numbers.
func (s *LedgerService) currentWeekTx(ctx context.Context, tx *sqlx.Tx) int {
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

func (s *LedgerService) recordChange(ctx context.Context, tx *sqlx.Tx, actorID *string, changeType string, studentID *string, description string, oldScore, newScore float64) error {
	oldVal := strconv.FormatFloat(oldScore, 'f', 1, 64)
	newVal := strconv.FormatFloat(newScore, 'f', 1, 64)
	entry := &models.ChangeLog{
		TeacherID:   actorID,
		ChangeType:  changeType,
		StudentID:   studentID,
		Description: description,
		OldValue:    &oldVal,
		NewValue:    &newVal,
	}
	return s.audit.InsertTx(ctx, tx, entry)
}

func (s *LedgerService) invalidateReports(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "reports:*"); err != nil {
		s.logger.Warn("report cache invalidation failed", zap.Error(err))
	}
}

func changeTypeFor(kind models.EventKind) string {
	if kind == models.EventBonus {
		return models.ChangeApplyBonus
	}
	return models.ChangeApplyViolation
}
