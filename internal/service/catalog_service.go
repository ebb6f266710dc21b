package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

type catalogRepo interface {
	ListViolationTypes(ctx context.Context) ([]models.ViolationType, error)
	FindViolationType(ctx context.Context, id string) (*models.ViolationType, error)
	CreateViolationType(ctx context.Context, t *models.ViolationType) error
	UpdateViolationType(ctx context.Context, t *models.ViolationType) error
	DeleteViolationType(ctx context.Context, id string) error
	ListBonusTypes(ctx context.Context) ([]models.BonusType, error)
	FindBonusType(ctx context.Context, id string) (*models.BonusType, error)
	CreateBonusType(ctx context.Context, t *models.BonusType) error
	UpdateBonusType(ctx context.Context, t *models.BonusType) error
	DeleteBonusType(ctx context.Context, id string) error
}

// CatalogService manages violation and bonus type catalogs. Events snapshot
// the type name, so catalog edits never rewrite history.
type CatalogService struct {
	repo      catalogRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs the service.
func NewCatalogService(repo catalogRepo, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, validator: validate, logger: logger}
}

// TypeRequest describes a catalog entry payload.
type TypeRequest struct {
	Name        string `json:"name" validate:"required"`
	PointsValue int    `json:"points_value" validate:"required,gt=0"`
}

// ListViolationTypes returns the violation catalog.
func (s *CatalogService) ListViolationTypes(ctx context.Context) ([]models.ViolationType, error) {
	types, err := s.repo.ListViolationTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list violation types")
	}
	return types, nil
}

// CreateViolationType adds one catalog entry.
func (s *CatalogService) CreateViolationType(ctx context.Context, req TypeRequest) (*models.ViolationType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid type payload")
	}
	t := &models.ViolationType{Name: req.Name, PointsValue: req.PointsValue}
	if err := s.repo.CreateViolationType(ctx, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create violation type")
	}
	return t, nil
}

// UpdateViolationType modifies one catalog entry.
func (s *CatalogService) UpdateViolationType(ctx context.Context, id string, req TypeRequest) (*models.ViolationType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid type payload")
	}
	t, err := s.repo.FindViolationType(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation type")
	}
	if t == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "violation type not found")
	}
	t.Name = req.Name
	t.PointsValue = req.PointsValue
	if err := s.repo.UpdateViolationType(ctx, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update violation type")
	}
	return t, nil
}

// DeleteViolationType removes one catalog entry. Historical events keep
// their snapshotted name.
func (s *CatalogService) DeleteViolationType(ctx context.Context, id string) error {
	t, err := s.repo.FindViolationType(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load violation type")
	}
	if t == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "violation type not found")
	}
	if err := s.repo.DeleteViolationType(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete violation type")
	}
	return nil
}

// ListBonusTypes returns the bonus catalog.
func (s *CatalogService) ListBonusTypes(ctx context.Context) ([]models.BonusType, error) {
	types, err := s.repo.ListBonusTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bonus types")
	}
	return types, nil
}

// CreateBonusType adds one catalog entry.
func (s *CatalogService) CreateBonusType(ctx context.Context, req TypeRequest) (*models.BonusType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid type payload")
	}
	t := &models.BonusType{Name: req.Name, PointsValue: req.PointsValue}
	if err := s.repo.CreateBonusType(ctx, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bonus type")
	}
	return t, nil
}

// UpdateBonusType modifies one catalog entry.
func (s *CatalogService) UpdateBonusType(ctx context.Context, id string, req TypeRequest) (*models.BonusType, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid type payload")
	}
	t, err := s.repo.FindBonusType(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bonus type")
	}
	if t == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "bonus type not found")
	}
	t.Name = req.Name
	t.PointsValue = req.PointsValue
	if err := s.repo.UpdateBonusType(ctx, t); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bonus type")
	}
	return t, nil
}

// DeleteBonusType removes one catalog entry.
func (s *CatalogService) DeleteBonusType(ctx context.Context, id string) error {
	t, err := s.repo.FindBonusType(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bonus type")
	}
	if t == nil {
		return appErrors.Clone(appErrors.ErrNotFound, "bonus type not found")
	}
	if err := s.repo.DeleteBonusType(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete bonus type")
	}
	return nil
}
