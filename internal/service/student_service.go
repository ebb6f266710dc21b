package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
	"github.com/noah-isme/homeroom-api/pkg/textnorm"
)

type studentRepo interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	ListAll(ctx context.Context) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByCode(ctx context.Context, code string) (*models.Student, error)
	Create(ctx context.Context, s *models.Student) error
	Update(ctx context.Context, s *models.Student) error
	DeleteCascade(ctx context.Context, id string) error
}

type studentClassRepo interface {
	FindByName(ctx context.Context, name string) (*models.ClassRoom, error)
	Create(ctx context.Context, c *models.ClassRoom) error
}

// StudentService manages student records. Score mutation is not here; the
// ledger service owns the score column.
type StudentService struct {
	students  studentRepo
	classes   studentClassRepo
	access    *AccessService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(students studentRepo, classes studentClassRepo, access *AccessService, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{students: students, classes: classes, access: access, validator: validate, logger: logger}
}

// List returns students visible to the caller with pagination.
func (s *StudentService) List(ctx context.Context, claims *models.JWTClaims, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	filter = s.access.ScopeStudents(claims, filter)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 100
	}
	students, total, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return students, pagination, nil
}

// Get returns one student after the access check.
func (s *StudentService) Get(ctx context.Context, claims *models.JWTClaims, id string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.access.RequireStudent(claims, student); err != nil {
		return nil, err
	}
	return student, nil
}

// CreateStudentRequest describes a new enrollment.
type CreateStudentRequest struct {
	StudentCode  string `json:"student_code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	StudentClass string `json:"student_class" validate:"required"`
}

// Create enrolls one student, auto-creating the class label when missing.
func (s *StudentService) Create(ctx context.Context, claims *models.JWTClaims, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	existing, err := s.students.FindByCode(ctx, req.StudentCode)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student code")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student code %q already exists", req.StudentCode))
	}
	student := &models.Student{
		StudentCode:  strings.TrimSpace(req.StudentCode),
		Name:         strings.TrimSpace(req.Name),
		StudentClass: strings.TrimSpace(req.StudentClass),
	}
	if claims != nil {
		if err := s.access.RequireStudentWrite(claims, student); err != nil {
			return nil, err
		}
	}
	if err := s.ensureClass(ctx, student.StudentClass); err != nil {
		return nil, err
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// UpdateStudentRequest changes identity fields only.
type UpdateStudentRequest struct {
	StudentCode  string `json:"student_code" validate:"required"`
	Name         string `json:"name" validate:"required"`
	StudentClass string `json:"student_class" validate:"required"`
}

// Update modifies a student's identity fields.
func (s *StudentService) Update(ctx context.Context, claims *models.JWTClaims, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.access.RequireStudentWrite(claims, student); err != nil {
		return nil, err
	}
	if req.StudentCode != student.StudentCode {
		other, err := s.students.FindByCode(ctx, req.StudentCode)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student code")
		}
		if other != nil && other.ID != id {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("student code %q already exists", req.StudentCode))
		}
	}
	if err := s.ensureClass(ctx, req.StudentClass); err != nil {
		return nil, err
	}
	student.StudentCode = req.StudentCode
	student.Name = req.Name
	student.StudentClass = req.StudentClass
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student together with their event log rows.
func (s *StudentService) Delete(ctx context.Context, claims *models.JWTClaims, id string) error {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	if err := s.access.RequireStudentWrite(claims, student); err != nil {
		return err
	}
	if err := s.students.DeleteCascade(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted with event log", zap.String("student_id", id), zap.String("code", student.StudentCode))
	return nil
}

// FindByAnyCode resolves a raw code exact first, then by normalized form.
func (s *StudentService) FindByAnyCode(ctx context.Context, code string) (*models.Student, error) {
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

// SearchByName returns students whose name contains the fragment, diacritics
// ignored. Used by the chat facade to resolve mentions.
func (s *StudentService) SearchByName(ctx context.Context, fragment string) ([]models.Student, error) {
	needle := strings.ToLower(textnorm.Strip(fragment))
	if needle == "" {
		return nil, nil
	}
	all, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	var matches []models.Student
	for i := range all {
		if strings.Contains(strings.ToLower(textnorm.Strip(all[i].Name)), needle) {
			matches = append(matches, all[i])
		}
	}
	return matches, nil
}

// NextGeneratedCode produces the next auto code for a course intake, pattern
// "{course} {SPECIALIZATION} - 001{seq}" with a zero-padded three digit
// sequence scanned from existing codes sharing the prefix.
func (s *StudentService) NextGeneratedCode(ctx context.Context, course, specialization string) (string, error) {
	prefix := fmt.Sprintf("%s %s - 001", strings.TrimSpace(course), strings.ToUpper(strings.TrimSpace(specialization)))
	all, err := s.students.ListAll(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	max := 0
	for i := range all {
		code := all[i].StudentCode
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		var seq int
		if _, err := fmt.Sscanf(code[len(prefix):], "%03d", &seq); err == nil && seq > max {
			max = seq
		}
	}
	return fmt.Sprintf("%s%03d", prefix, max+1), nil
}

func (s *StudentService) ensureClass(ctx context.Context, name string) error {
	if name == "" {
		return nil
	}
	class, err := s.classes.FindByName(ctx, name)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class")
	}
	if class != nil {
		return nil
	}
	if err := s.classes.Create(ctx, &models.ClassRoom{Name: name}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return nil
}
