package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// RankTraders orders snapshots by criterion, highest first. Equal values are
// ordered by external id ascending so repeated runs agree.
func RankTraders(snapshots []domain.TraderSnapshot, criterion domain.RankCriterion) []domain.TraderSnapshot {
	ranked := make([]domain.TraderSnapshot, len(snapshots))
	copy(ranked, snapshots)

	sort.SliceStable(ranked, func(i, j int) bool {
		vi, vj := ranked[i].Value(criterion), ranked[j].Value(criterion)
		if vi != vj {
			return vi > vj
		}
		return ranked[i].ExternalID < ranked[j].ExternalID
	})
	return ranked
}

// SelectFollowed returns the external ids to follow: the top N of ranked,
// minus traders an operator unfollowed, plus traders an operator followed.
// overrides maps external id to the operator's decision.
func SelectFollowed(ranked []domain.TraderSnapshot, topN int, overrides map[string]bool) []string {
	selected := make([]string, 0, topN)
	seen := make(map[string]bool, topN)

	for i, snap := range ranked {
		if i >= topN {
			break
		}
		if followed, locked := overrides[snap.ExternalID]; locked && !followed {
			continue
		}
		selected = append(selected, snap.ExternalID)
		seen[snap.ExternalID] = true
	}

	forced := make([]string, 0)
	for id, followed := range overrides {
		if followed && !seen[id] {
			forced = append(forced, id)
		}
	}
	sort.Strings(forced)

	return append(selected, forced...)
}

// RiskScore is the percent of margin lost if the stop is hit.
func RiskScore(leverage int, stopLossPercent decimal.Decimal) decimal.Decimal {
	return stopLossPercent.Mul(decimal.NewFromInt(int64(leverage)))
}

// TradeCandidate is a new position of a followed trader.
type TradeCandidate struct {
	Trader        *domain.Trader
	Position      domain.TraderPosition
	EntryPrice    decimal.Decimal
	Leverage      int
	PositionValue decimal.Decimal
}

// FollowPolicy turns qualifying trader positions into futures signals.
type FollowPolicy struct {
	counter domain.SignalCounter
	metrics domain.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewFollowPolicy creates a FollowPolicy backed by the persisted daily counter.
func NewFollowPolicy(counter domain.SignalCounter, metrics domain.Metrics, log *logger.Logger) *FollowPolicy {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &FollowPolicy{counter: counter, metrics: metrics, logger: log, now: time.Now}
}

// Evaluate applies the risk filter, computes levels and takes a slot of the
// daily cap for day. Rejections are returned as RISK_LIMIT_EXCEEDED,
// INVALID_CONFIGURATION or DAILY_CAP_REACHED and are never retried.
func (p *FollowPolicy) Evaluate(ctx context.Context, c TradeCandidate, s *domain.FuturesSettings, day string) (*domain.Signal, error) {
	signal, err := p.evaluate(ctx, c, s, day)
	if err != nil {
		kind := domain.KindOf(err)
		if kind != "" {
			p.metrics.RecordCandidateRejected(kind)
			p.logger.Info("Candidate signal rejected",
				logger.String("trader", c.Position.TraderExternalID),
				logger.String("symbol", c.Position.Symbol),
				logger.String("reason", string(kind)),
				logger.Error(err),
			)
		}
		return nil, err
	}
	return signal, nil
}

func (p *FollowPolicy) evaluate(ctx context.Context, c TradeCandidate, s *domain.FuturesSettings, day string) (*domain.Signal, error) {
	reject := func(reason, format string, args ...interface{}) *domain.Error {
		return domain.NewError(domain.KindRiskLimitExceeded, format, args...).WithDetail("reason", reason)
	}

	if !s.SymbolAllowed(c.Position.Symbol) {
		return nil, reject("symbol", "symbol %s is not allowed", c.Position.Symbol)
	}
	if c.Leverage > s.MaxLeverage {
		return nil, reject("leverage", "leverage %dx exceeds max %dx", c.Leverage, s.MaxLeverage).
			WithDetail("leverage", c.Leverage)
	}
	if c.PositionValue.GreaterThan(s.MaxPositionValue) {
		return nil, reject("position_value", "position value %s exceeds max %s", c.PositionValue, s.MaxPositionValue)
	}
	if score := RiskScore(c.Leverage, s.StopLossPercent); score.GreaterThan(s.RiskScoreCeiling) {
		return nil, reject("risk_score", "risk score %s exceeds ceiling %s", score, s.RiskScoreCeiling)
	}

	levels, err := CalculateLevels(c.EntryPrice, c.Position.Side, OffsetsFromSettings(s))
	if err != nil {
		return nil, err
	}

	ok, err := p.counter.TryIncrement(ctx, day, s.DailySignalCap)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve daily signal slot: %w", err)
	}
	if !ok {
		return nil, domain.NewError(domain.KindDailyCapReached, "daily signal cap of %d reached for %s", s.DailySignalCap, day).
			WithDetail("day", day)
	}

	now := p.now()
	signal := &domain.Signal{
		ID:        uuid.New(),
		Kind:      domain.SignalKindFutures,
		Symbol:    c.Position.Symbol,
		Side:      c.Position.Side,
		Targets:   levels.Targets,
		StopLoss:  levels.StopLoss,
		Status:    domain.SignalStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		Futures: &domain.FuturesDetails{
			EntryPrice:       c.EntryPrice.Round(s.PricePrecision),
			Leverage:         c.Leverage,
			PositionValue:    c.PositionValue,
			TraderExternalID: c.Position.TraderExternalID,
			SourceRef:        c.Position.SourceRef(),
		},
	}
	if c.Trader != nil {
		signal.Futures.TraderName = c.Trader.DisplayName
		signal.Futures.TraderProfileURL = c.Trader.ProfileURL
	}

	if err := signal.Validate(); err != nil {
		_ = p.counter.Release(ctx, day)
		return nil, err
	}
	return signal, nil
}
