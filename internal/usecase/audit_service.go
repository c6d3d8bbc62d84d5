package usecase

import (
	"context"
	"time"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AuditService appends to and reads the audit log.
type AuditService struct {
	repo   domain.AuditRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewAuditService creates a new AuditService
func NewAuditService(repo domain.AuditRepository, log *logger.Logger) *AuditService {
	return &AuditService{repo: repo, logger: log, now: time.Now}
}

// Record stores an audit entry. A failed write is logged and never fails the
// operation being audited.
func (s *AuditService) Record(ctx context.Context, actor domain.Actor, action, table, recordID string, oldValues, newValues map[string]interface{}) {
	entry := &domain.AuditEntry{
		ActorID:   actor.UserID,
		Action:    action,
		TableName: table,
		RecordID:  recordID,
		OldValues: oldValues,
		NewValues: newValues,
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
		CreatedAt: s.now(),
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.logger.Error("Failed to write audit entry",
			logger.String("action", action),
			logger.String("record_id", recordID),
			logger.Error(err),
		)
	}
}

// List returns audit entries newest first
func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.repo.List(ctx, filter)
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
