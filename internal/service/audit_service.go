package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/homeroom-api/internal/models"
	appErrors "github.com/noah-isme/homeroom-api/pkg/errors"
)

type auditReader interface {
	ListByStudent(ctx context.Context, studentID string, limit int) ([]models.ChangeLog, error)
}

// AuditService exposes the change log for review. Writes happen inside the
// ledger and rollover transactions, never here.
type AuditService struct {
	repo   auditReader
	logger *zap.Logger
}

// NewAuditService constructs the service.
func NewAuditService(repo auditReader, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, logger: logger}
}

// StudentTrail returns a student's audit entries, newest first.
func (s *AuditService) StudentTrail(ctx context.Context, studentID string, limit int) ([]models.ChangeLog, error) {
	entries, err := s.repo.ListByStudent(ctx, studentID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list audit entries")
	}
	return entries, nil
}
