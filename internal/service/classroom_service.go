package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/internal/repository"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

type classroomRepo interface {
	List(ctx context.Context) ([]models.ClassRoom, error)
	FindByID(ctx context.Context, id string) (*models.ClassRoom, error)
	FindByName(ctx context.Context, name string) (*models.ClassRoom, error)
	Create(ctx context.Context, c *models.ClassRoom) error
	RenameTx(ctx context.Context, tx *sqlx.Tx, id, newName string) error
	Delete(ctx context.Context, id string) error
	DB() *sqlx.DB
}

type classroomStudentRepo interface {
	CountByClass(ctx context.Context, class string) (int, error)
	RelabelClass(ctx context.Context, tx *sqlx.Tx, oldName, newName string) (int64, error)
}

// ClassRoomService manages class labels. Students reference classes by name,
// so a rename relabels the student rows in the same transaction.
type ClassRoomService struct {
	classes   classroomRepo
	students  classroomStudentRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassRoomService constructs the service.
func NewClassRoomService(classes classroomRepo, students classroomStudentRepo, validate *validator.Validate, logger *zap.Logger) *ClassRoomService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassRoomService{classes: classes, students: students, validator: validate, logger: logger}
}

// ClassRoomView pairs a class with its live roster size.
type ClassRoomView struct {
	models.ClassRoom
	StudentCount int `json:"student_count"`
}

// List returns all classes with roster counts.
func (s *ClassRoomService) List(ctx context.Context) ([]ClassRoomView, error) {
	classes, err := s.classes.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	views := make([]ClassRoomView, 0, len(classes))
	for _, class := range classes {
		count, err := s.students.CountByClass(ctx, class.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
		}
		views = append(views, ClassRoomView{ClassRoom: class, StudentCount: count})
	}
	return views, nil
}

// ClassRoomRequest describes a create or rename payload.
type ClassRoomRequest struct {
	Name string `json:"name" validate:"required"`
}

// Create adds a class label.
func (s *ClassRoomService) Create(ctx context.Context, req ClassRoomRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	existing, err := s.classes.FindByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("class %q already exists", req.Name))
	}
	class := &models.ClassRoom{Name: req.Name}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Rename changes a class label and relabels its students atomically.
func (s *ClassRoomService) Rename(ctx context.Context, id string, req ClassRoomRequest) (*models.ClassRoom, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	if class.Name == req.Name {
		return class, nil
	}
	other, err := s.classes.FindByName(ctx, req.Name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class name")
	}
	if other != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("class %q already exists", req.Name))
	}

	var moved int64
	err = repository.InTx(ctx, s.classes.DB(), func(tx *sqlx.Tx) error {
		if err := s.classes.RenameTx(ctx, tx, id, req.Name); err != nil {
			return err
		}
		moved, err = s.students.RelabelClass(ctx, tx, class.Name, req.Name)
		return err
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rename class")
	}
	s.logger.Info("class renamed",
		zap.String("from", class.Name), zap.String("to", req.Name), zap.Int64("students_moved", moved))
	class.Name = req.Name
	return class, nil
}

// Delete removes a class label; rejected while students still carry it.
func (s *ClassRoomService) Delete(ctx context.Context, id string) error {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}
	count, err := s.students.CountByClass(ctx, class.Name)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("class %q still has %d students", class.Name, count))
	}
	if err := s.classes.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}
