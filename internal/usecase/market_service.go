package usecase

import (
	"context"
	"strings"

	"signalhub/internal/domain"
)

// MarketService exposes market data to operators and bot users.
type MarketService struct {
	gateway domain.MarketDataGateway
}

// NewMarketService creates a new MarketService
func NewMarketService(gateway domain.MarketDataGateway) *MarketService {
	return &MarketService{gateway: gateway}
}

// Price returns the latest quote of symbol
func (s *MarketService) Price(ctx context.Context, symbol string) (domain.Price, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return domain.Price{}, domain.NewError(domain.KindValidation, "symbol is required").WithField("symbol")
	}
	return s.gateway.FetchPrice(ctx, symbol)
}

// Sentiment returns the fear & greed reading
func (s *MarketService) Sentiment(ctx context.Context) (domain.Sentiment, error) {
	return s.gateway.FetchSentiment(ctx)
}
