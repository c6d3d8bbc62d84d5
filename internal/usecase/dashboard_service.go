package usecase

import (
	"context"

	"golang.org/x/sync/errgroup"

	"signalhub/internal/domain"
)

// DashboardStats is the operator dashboard summary.
type DashboardStats struct {
	SpotSignals     *domain.SignalStats     `json:"spot_signals"`
	FuturesSignals  *domain.SignalStats     `json:"futures_signals"`
	Subscribers     *domain.SubscriberStats `json:"subscribers"`
	Broadcasts      *domain.BroadcastStats  `json:"broadcasts"`
	FollowedTraders int                     `json:"followed_traders"`
}

// DashboardService aggregates statistics across the stores.
type DashboardService struct {
	signals     domain.SignalRepository
	subscribers domain.SubscriberRepository
	broadcasts  domain.BroadcastRepository
	traders     domain.TraderRepository
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(
	signals domain.SignalRepository,
	subscribers domain.SubscriberRepository,
	broadcasts domain.BroadcastRepository,
	traders domain.TraderRepository,
) *DashboardService {
	return &DashboardService{signals: signals, subscribers: subscribers, broadcasts: broadcasts, traders: traders}
}

// Stats loads every section concurrently.
func (s *DashboardService) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		stats.SpotSignals, err = s.signals.Stats(ctx, domain.SignalKindSpot)
		return err
	})
	g.Go(func() (err error) {
		stats.FuturesSignals, err = s.signals.Stats(ctx, domain.SignalKindFutures)
		return err
	})
	g.Go(func() (err error) {
		stats.Subscribers, err = s.subscribers.Stats(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Broadcasts, err = s.broadcasts.Stats(ctx)
		return err
	})
	g.Go(func() error {
		followed, err := s.traders.List(ctx, domain.TraderFilter{FollowedOnly: true})
		stats.FollowedTraders = len(followed)
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}
