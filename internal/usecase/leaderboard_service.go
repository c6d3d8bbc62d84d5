package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
	"signalhub/internal/service"
	"signalhub/internal/utils"
	"signalhub/pkg/logger"
)

// RefreshReport summarises one leaderboard refresh.
type RefreshReport struct {
	Skipped        bool      `json:"skipped"`
	Fetched        int       `json:"fetched"`
	Followed       int       `json:"followed"`
	FollowChanges  int       `json:"follow_changes"`
	Positions      int       `json:"positions"`
	Created        int       `json:"created"`
	Published      int       `json:"published"`
	Rejected       int       `json:"rejected"`
	Duplicates     int       `json:"duplicates"`
	ProviderErrors int       `json:"provider_errors"`
	CapReached     bool      `json:"cap_reached"`
	At             time.Time `json:"at"`
}

// FuturesStats is the futures dashboard summary.
type FuturesStats struct {
	TotalTraders    int                 `json:"total_traders"`
	FollowedTraders int                 `json:"followed_traders"`
	Signals         *domain.SignalStats `json:"signals"`
	SignalsToday    int                 `json:"signals_today"`
	DailySignalCap  int                 `json:"daily_signal_cap"`
	LastSync        *time.Time          `json:"last_sync,omitempty"`
}

// LeaderboardService refreshes the trader leaderboard, keeps the followed set
// and turns new positions of followed traders into futures signals.
type LeaderboardService struct {
	gateway  domain.MarketDataGateway
	traders  domain.TraderRepository
	signals  domain.SignalRepository
	counter  domain.SignalCounter
	policy   *service.FollowPolicy
	settings *SettingsService
	signal   *SignalService
	audit    *AuditService
	logger   *logger.Logger
	loc      *time.Location
	now      func() time.Time

	running sync.Mutex
}

// NewLeaderboardService creates a new LeaderboardService
func NewLeaderboardService(
	gateway domain.MarketDataGateway,
	traders domain.TraderRepository,
	signals domain.SignalRepository,
	counter domain.SignalCounter,
	policy *service.FollowPolicy,
	settings *SettingsService,
	signal *SignalService,
	audit *AuditService,
	log *logger.Logger,
	loc *time.Location,
) *LeaderboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &LeaderboardService{
		gateway:  gateway,
		traders:  traders,
		signals:  signals,
		counter:  counter,
		policy:   policy,
		settings: settings,
		signal:   signal,
		audit:    audit,
		logger:   log,
		loc:      loc,
		now:      time.Now,
	}
}

// Refresh fetches the leaderboard, applies the follow policy and derives
// signals from followed traders' positions. Unless force is set the refresh is
// skipped while the configured update interval has not elapsed.
func (s *LeaderboardService) Refresh(ctx context.Context, force bool) (*RefreshReport, error) {
	if !s.running.TryLock() {
		return nil, domain.NewError(domain.KindConflict, "leaderboard refresh already running")
	}
	defer s.running.Unlock()

	now := s.now()
	report := &RefreshReport{At: now}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	if !force {
		last, ok, err := s.settings.LastLeaderboardSync(ctx)
		if err != nil {
			return nil, err
		}
		if ok && now.Sub(last) < time.Duration(settings.UpdateIntervalMin)*time.Minute {
			report.Skipped = true
			return report, nil
		}
	}

	start := time.Now()
	s.logger.Info("Leaderboard refresh started", logger.String("criterion", string(settings.RankingCriteria)))

	snapshots, err := s.gateway.FetchLeaderboard(ctx, settings.RankingCriteria)
	if err != nil {
		return nil, err
	}
	report.Fetched = len(snapshots)

	if err := s.traders.UpsertSnapshots(ctx, snapshots, now); err != nil {
		return nil, fmt.Errorf("failed to store leaderboard: %w", err)
	}

	if settings.AutoFollow {
		changed, err := s.applyFollowPolicy(ctx, snapshots, settings)
		if err != nil {
			return nil, err
		}
		report.FollowChanges = changed
	}

	if err := s.settings.MarkLeaderboardSync(ctx, now); err != nil {
		s.logger.Warn("Failed to store leaderboard sync time", logger.Error(err))
	}

	followed, err := s.traders.List(ctx, domain.TraderFilter{FollowedOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list followed traders: %w", err)
	}
	report.Followed = len(followed)

	day := utils.DayKey(now, s.loc)
	for _, trader := range followed {
		if report.CapReached {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.processTrader(ctx, trader, settings, day, report)
	}

	s.logger.Info("Leaderboard refresh completed",
		logger.Int("fetched", report.Fetched),
		logger.Int("followed", report.Followed),
		logger.Int("created", report.Created),
		logger.Int("rejected", report.Rejected),
		logger.Bool("cap_reached", report.CapReached),
		logger.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func (s *LeaderboardService) applyFollowPolicy(ctx context.Context, snapshots []domain.TraderSnapshot, settings *domain.FuturesSettings) (int, error) {
	stored, err := s.traders.List(ctx, domain.TraderFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list traders: %w", err)
	}
	overrides := make(map[string]bool)
	for _, t := range stored {
		if t.FollowLocked {
			overrides[t.ExternalID] = t.IsFollowed
		}
	}

	ranked := service.RankTraders(snapshots, settings.RankingCriteria)
	selected := service.SelectFollowed(ranked, settings.TopN, overrides)

	changed, err := s.traders.ApplyPolicyFollows(ctx, selected)
	if err != nil {
		return 0, fmt.Errorf("failed to apply follow policy: %w", err)
	}
	if changed > 0 {
		s.audit.Record(ctx, domain.SystemActor, domain.AuditTraderFollowPolicy, "futures_traders", "", nil, map[string]interface{}{
			"followed": selected,
			"changed":  changed,
		})
	}
	return changed, nil
}

func (s *LeaderboardService) processTrader(ctx context.Context, trader *domain.Trader, settings *domain.FuturesSettings, day string, report *RefreshReport) {
	positions, err := s.gateway.FetchTraderPositions(ctx, trader.ExternalID)
	if err != nil {
		report.ProviderErrors++
		s.logger.Warn("Failed to fetch trader positions",
			logger.String("trader", trader.ExternalID),
			logger.Error(err),
		)
		return
	}

	openRefs := make([]string, 0, len(positions))
	for _, pos := range positions {
		openRefs = append(openRefs, pos.SourceRef())
	}
	if released, err := s.signals.ReleaseClosedPositions(ctx, trader.ExternalID, openRefs, s.now()); err != nil {
		s.logger.Warn("Failed to release closed positions", logger.String("trader", trader.ExternalID), logger.Error(err))
	} else if released > 0 {
		s.logger.Debug("Closed positions released", logger.String("trader", trader.ExternalID), logger.Int("count", released))
	}

	for _, pos := range positions {
		report.Positions++

		exists, err := s.signals.ExistsBySourceRef(ctx, pos.SourceRef())
		if err != nil {
			s.logger.Error("Failed to check signal source", logger.String("source_ref", pos.SourceRef()), logger.Error(err))
			continue
		}
		if exists {
			report.Duplicates++
			continue
		}

		entry, err := decimal.NewFromString(pos.EntryPrice)
		if err != nil {
			s.logger.Warn("Skipping position with unparseable entry price",
				logger.String("trader", trader.ExternalID),
				logger.String("entry_price", pos.EntryPrice),
			)
			continue
		}

		candidate := service.TradeCandidate{
			Trader:        trader,
			Position:      pos,
			EntryPrice:    entry,
			Leverage:      pos.Leverage,
			PositionValue: settings.DefaultPositionValue,
		}
		signal, err := s.policy.Evaluate(ctx, candidate, settings, day)
		if err != nil {
			if errors.Is(err, domain.ErrDailyCapReached) {
				report.CapReached = true
				return
			}
			report.Rejected++
			continue
		}

		created, err := s.signal.storePolicySignal(ctx, signal)
		if err != nil || !created {
			if releaseErr := s.counter.Release(ctx, day); releaseErr != nil {
				s.logger.Error("Failed to release daily signal slot", logger.Error(releaseErr))
			}
			if err != nil {
				s.logger.Error("Failed to store policy signal", logger.String("symbol", signal.Symbol), logger.Error(err))
			} else {
				report.Duplicates++
			}
			continue
		}
		report.Created++

		if settings.AutoPublish {
			if _, err := s.signal.Publish(ctx, domain.SystemActor, domain.SignalKindFutures, signal.ID); err != nil {
				s.logger.Error("Failed to publish policy signal",
					logger.String("id", signal.ID.String()),
					logger.String("kind", string(domain.KindOf(err))),
					logger.Error(err),
				)
				continue
			}
			report.Published++
		}
	}
}

// ListTraders retrieves stored traders
func (s *LeaderboardService) ListTraders(ctx context.Context, filter domain.TraderFilter) ([]*domain.Trader, error) {
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return s.traders.List(ctx, filter)
}

// Leaderboard returns stored traders ordered by the configured criterion.
func (s *LeaderboardService) Leaderboard(ctx context.Context, limit int) ([]*domain.Trader, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	limit, _ = clampPage(limit, 0)
	return s.traders.List(ctx, domain.TraderFilter{OrderBy: settings.RankingCriteria, Limit: limit})
}

// ToggleFollow flips a trader's followed flag and locks it against the
// automatic policy until the lock is released.
func (s *LeaderboardService) ToggleFollow(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Trader, error) {
	trader, err := s.traders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	followed := !trader.IsFollowed
	if err := s.traders.SetFollowed(ctx, id, followed, true); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, domain.AuditTraderFollowToggled, "futures_traders", id.String(),
		map[string]interface{}{"is_followed": trader.IsFollowed, "follow_locked": trader.FollowLocked},
		map[string]interface{}{"is_followed": followed, "follow_locked": true},
	)
	trader.IsFollowed, trader.FollowLocked = followed, true
	return trader, nil
}

// ReleaseLock hands a trader back to the automatic follow policy.
func (s *LeaderboardService) ReleaseLock(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Trader, error) {
	trader, err := s.traders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.traders.ReleaseLock(ctx, id); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, domain.AuditTraderFollowToggled, "futures_traders", id.String(),
		map[string]interface{}{"follow_locked": trader.FollowLocked},
		map[string]interface{}{"follow_locked": false},
	)
	trader.FollowLocked = false
	return trader, nil
}

// TraderSignals lists futures signals derived from a trader
func (s *LeaderboardService) TraderSignals(ctx context.Context, id uuid.UUID, filter domain.SignalFilter) ([]*domain.Signal, error) {
	trader, err := s.traders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	filter.TraderExternalID = trader.ExternalID
	return s.signal.List(ctx, domain.SignalKindFutures, filter)
}

// Stats summarises traders and futures signals.
func (s *LeaderboardService) Stats(ctx context.Context) (*FuturesStats, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	all, err := s.traders.List(ctx, domain.TraderFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list traders: %w", err)
	}
	stats := &FuturesStats{TotalTraders: len(all), DailySignalCap: settings.DailySignalCap}
	for _, t := range all {
		if t.IsFollowed {
			stats.FollowedTraders++
		}
	}

	if stats.Signals, err = s.signals.Stats(ctx, domain.SignalKindFutures); err != nil {
		return nil, err
	}
	if stats.SignalsToday, err = s.counter.Count(ctx, utils.DayKey(s.now(), s.loc)); err != nil {
		return nil, err
	}
	if last, ok, err := s.settings.LastLeaderboardSync(ctx); err == nil && ok {
		stats.LastSync = &last
	}
	return stats, nil
}
