package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

type gradeRepo interface {
	ListByStudent(ctx context.Context, studentID string, semester int, schoolYear, subjectID string) ([]models.Grade, error)
	FindCell(ctx context.Context, g models.Grade) (*models.Grade, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Create(ctx context.Context, g *models.Grade) error
	UpdateScore(ctx context.Context, id string, score float64) error
	Delete(ctx context.Context, id string) error
}

type gradeSubjectRepo interface {
	List(ctx context.Context) ([]models.Subject, error)
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type gradeStudentRepo interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// GradeService manages grade cells and computes transcripts. Writes go
// through the access filter for subject scoping.
type GradeService struct {
	grades    gradeRepo
	subjects  gradeSubjectRepo
	students  gradeStudentRepo
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs the service.
func NewGradeService(grades gradeRepo, subjects gradeSubjectRepo, students gradeStudentRepo, access *AccessService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{grades: grades, subjects: subjects, students: students, access: access, validator: validate, logger: logger}
}

// UpsertGradeRequest addresses one grade cell.
type UpsertGradeRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	SubjectID   string  `json:"subject_id" validate:"required"`
	GradeType   string  `json:"grade_type" validate:"required,oneof=TX GK HK"`
	ColumnIndex int     `json:"column_index" validate:"required,gte=1"`
	Score       float64 `json:"score" validate:"gte=0,lte=10"`
	Semester    int     `json:"semester" validate:"required,oneof=1 2"`
	SchoolYear  string  `json:"school_year" validate:"required"`
}

// Upsert writes one grade cell, creating or overwriting by composite address.
func (s *GradeService) Upsert(ctx context.Context, claims *models.JWTClaims, req UpsertGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if err := s.access.RequireSubjectWrite(claims, req.SubjectID); err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	subject, err := s.subjects.FindByID(ctx, req.SubjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}
	if subject == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
	}
	if req.ColumnIndex > columnLimit(subject, models.GradeType(req.GradeType)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "column index exceeds the subject's configured columns")
	}

	cell := models.Grade{
		StudentID:   req.StudentID,
		SubjectID:   req.SubjectID,
		GradeType:   models.GradeType(req.GradeType),
		ColumnIndex: req.ColumnIndex,
		Score:       req.Score,
		Semester:    req.Semester,
		SchoolYear:  req.SchoolYear,
	}
	existing, err := s.grades.FindCell(ctx, cell)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade cell")
	}
	if existing != nil {
		if err := s.grades.UpdateScore(ctx, existing.ID, req.Score); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
		}
		existing.Score = req.Score
		return existing, nil
	}
	if err := s.grades.Create(ctx, &cell); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	return &cell, nil
}

// Delete removes one grade cell.
func (s *GradeService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	grade, err := s.grades.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	if grade == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
	}
	if err := s.access.RequireSubjectWrite(claims, grade.SubjectID); err != nil {
		return err
	}
	if err := s.grades.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	return nil
}

// ListByStudent returns a student's grades for one semester.
func (s *GradeService) ListByStudent(ctx context.Context, claims *models.JWTClaims, studentID string, semester int, schoolYear, subjectID string) ([]models.Grade, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.access.RequireStudent(claims, student); err != nil {
		return nil, err
	}
	grades, err := s.grades.ListByStudent(ctx, studentID, semester, schoolYear, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Transcript computes a student's subject averages and overall GPA for a
// semester. A subject contributes an average only when every category holds
// at least one score; otherwise it is silently excluded, never zeroed.
func (s *GradeService) Transcript(ctx context.Context, claims *models.JWTClaims, studentID string, semester int, schoolYear string) (*models.Transcript, error) {
	grades, err := s.ListByStudent(ctx, claims, studentID, semester, schoolYear, "")
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}

	bySubject := make(map[string][]models.Grade)
	for _, g := range grades {
		bySubject[g.SubjectID] = append(bySubject[g.SubjectID], g)
	}

	transcript := &models.Transcript{
		StudentID:  studentID,
		Semester:   semester,
		SchoolYear: schoolYear,
	}
	var gpaSum float64
	var gpaCount int
	for _, subject := range subjects {
		rows := bySubject[subject.ID]
		if len(rows) == 0 {
			continue
		}
		entry := models.SubjectTranscript{Subject: subject}
		for _, g := range rows {
			switch g.GradeType {
			case models.GradeFrequent:
				entry.TXScores = append(entry.TXScores, g.Score)
			case models.GradeMidterm:
				entry.GKScores = append(entry.GKScores, g.Score)
			case models.GradeFinal:
				entry.HKScores = append(entry.HKScores, g.Score)
			}
		}
		if avg, ok := SubjectAverage(entry.TXScores, entry.GKScores, entry.HKScores); ok {
			entry.Average = &avg
			gpaSum += avg
			gpaCount++
		}
		transcript.Subjects = append(transcript.Subjects, entry)
	}
	if gpaCount > 0 {
		gpa := round2(gpaSum / float64(gpaCount))
		transcript.GPA = &gpa
	}
	return transcript, nil
}

// SubjectAverage computes (mean(TX) + 2*mean(GK) + 3*mean(HK)) / 6 rounded
// to two decimals. ok is false when any category is empty.
func SubjectAverage(tx, gk, hk []float64) (float64, bool) {
	if len(tx) == 0 || len(gk) == 0 || len(hk) == 0 {
		return 0, false
	}
	avg := (mean(tx) + 2*mean(gk) + 3*mean(hk)) / 6
	return round2(avg), true
}

func mean(scores []float64) float64 {
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

func columnLimit(subject *models.Subject, gradeType models.GradeType) int {
	switch gradeType {
	case models.GradeFrequent:
		return subject.NumTXColumns
	case models.GradeMidterm:
		return subject.NumGKColumns
	default:
		return subject.NumHKColumns
	}
}
