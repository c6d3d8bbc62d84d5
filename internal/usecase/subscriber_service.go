package usecase

import (
	"context"
	"strconv"
	"time"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// SubscriberService manages bot subscribers.
type SubscriberService struct {
	repo   domain.SubscriberRepository
	audit  *AuditService
	logger *logger.Logger
	now    func() time.Time
}

// NewSubscriberService creates a new SubscriberService
func NewSubscriberService(repo domain.SubscriberRepository, audit *AuditService, log *logger.Logger) *SubscriberService {
	return &SubscriberService{repo: repo, audit: audit, logger: log, now: time.Now}
}

// Register records a bot user, reactivating one that stopped earlier.
// The tier of an existing subscriber is kept.
func (s *SubscriberService) Register(ctx context.Context, sub *domain.Subscriber) (*domain.Subscriber, error) {
	now := s.now()
	sub.IsActive = true
	sub.LastActivityAt = now
	if sub.JoinedAt.IsZero() {
		sub.JoinedAt = now
	}
	if sub.Tier == "" {
		sub.Tier = domain.TierFree
	}
	return s.repo.Upsert(ctx, sub)
}

// Deactivate stops deliveries to a subscriber.
func (s *SubscriberService) Deactivate(ctx context.Context, userID int64) error {
	return s.repo.SetActive(ctx, userID, false)
}

// Get retrieves a subscriber
func (s *SubscriberService) Get(ctx context.Context, userID int64) (*domain.Subscriber, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// List retrieves subscribers
func (s *SubscriberService) List(ctx context.Context, filter domain.SubscriberFilter) ([]*domain.Subscriber, error) {
	if filter.Tier != "" && !domain.ValidTier(filter.Tier) {
		return nil, domain.NewError(domain.KindValidation, "unknown tier %q", filter.Tier).WithField("tier")
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.repo.List(ctx, filter)
}

// Update changes a subscriber's tier and active flag. Nil leaves a field as is.
func (s *SubscriberService) Update(ctx context.Context, actor domain.Actor, userID int64, tier *string, active *bool) (*domain.Subscriber, error) {
	sub, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	before := map[string]interface{}{"tier": sub.Tier, "is_active": sub.IsActive}
	if tier != nil {
		if !domain.ValidTier(*tier) {
			return nil, domain.NewError(domain.KindValidation, "unknown tier %q", *tier).WithField("tier")
		}
		sub.Tier = *tier
	}
	if active != nil {
		sub.IsActive = *active
	}

	if err := s.repo.Update(ctx, userID, sub.Tier, sub.IsActive); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, domain.AuditSubscriberUpdated, "subscribers", strconv.FormatInt(userID, 10), before,
		map[string]interface{}{"tier": sub.Tier, "is_active": sub.IsActive})
	return sub, nil
}

// Stats counts subscribers by tier
func (s *SubscriberService) Stats(ctx context.Context) (*domain.SubscriberStats, error) {
	return s.repo.Stats(ctx)
}
