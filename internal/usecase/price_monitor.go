package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

const monitorBatchSize = 500

// MonitorReport summarises one price check.
type MonitorReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Missing   int `json:"missing_prices"`
}

// PriceMonitor completes active signals whose stop loss or final target has
// been reached. The outcome is kept in the audit log.
type PriceMonitor struct {
	signals *SignalService
	gateway domain.MarketDataGateway
	logger  *logger.Logger
}

// NewPriceMonitor creates a new PriceMonitor
func NewPriceMonitor(signals *SignalService, gateway domain.MarketDataGateway, log *logger.Logger) *PriceMonitor {
	return &PriceMonitor{signals: signals, gateway: gateway, logger: log}
}

// CheckSignals checks every active signal against the current price.
func (m *PriceMonitor) CheckSignals(ctx context.Context) (*MonitorReport, error) {
	report := &MonitorReport{}

	var active []*domain.Signal
	for _, kind := range []domain.SignalKind{domain.SignalKindSpot, domain.SignalKindFutures} {
		list, err := m.signals.signals.List(ctx, kind, domain.SignalFilter{Status: domain.SignalStatusActive, Limit: monitorBatchSize})
		if err != nil {
			return nil, fmt.Errorf("failed to list active %s signals: %w", kind, err)
		}
		active = append(active, list...)
	}
	if len(active) == 0 {
		return report, nil
	}

	prices := make(map[string]decimal.Decimal)
	for _, s := range active {
		if _, ok := prices[s.Symbol]; ok {
			continue
		}
		p, err := m.gateway.FetchPrice(ctx, s.Symbol)
		if err != nil {
			m.logger.Warn("Price not available, skipping symbol",
				logger.String("symbol", s.Symbol),
				logger.Error(err),
			)
			continue
		}
		prices[s.Symbol] = p.Price
	}

	for _, s := range active {
		price, ok := prices[s.Symbol]
		if !ok {
			report.Missing++
			continue
		}
		report.Checked++

		closed, outcome, targetsHit := s.CheckLevels(price)
		if !closed {
			continue
		}

		_, err := m.signals.changeStatus(ctx, domain.SystemActor, s.Kind, s.ID, domain.SignalStatusCompleted, map[string]interface{}{
			"outcome":     outcome,
			"exit_price":  price.String(),
			"targets_hit": targetsHit,
			"pnl_percent": s.PnLPercent(price).StringFixed(2),
		})
		if err != nil {
			// an operator may have closed it meanwhile
			if !errors.Is(err, domain.ErrInvalidTransition) {
				m.logger.Error("Failed to complete signal", logger.String("id", s.ID.String()), logger.Error(err))
			}
			continue
		}
		report.Completed++
		m.logger.Info("Signal completed by price",
			logger.String("id", s.ID.String()),
			logger.String("symbol", s.Symbol),
			logger.String("outcome", outcome),
			logger.String("price", price.String()),
		)
	}
	return report, nil
}
