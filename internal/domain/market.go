package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Price is a normalized spot quote.
type Price struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	At     time.Time       `json:"at"`
}

// Sentiment is the market fear & greed reading.
type Sentiment struct {
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
	At             time.Time `json:"at"`
}

// MarketDataGateway fetches third-party market data. Read calls are retried
// by implementations; failures surface as EXTERNAL_PROVIDER_ERROR.
type MarketDataGateway interface {
	FetchLeaderboard(ctx context.Context, criterion RankCriterion) ([]TraderSnapshot, error)
	FetchTraderPositions(ctx context.Context, externalID string) ([]TraderPosition, error)
	FetchPrice(ctx context.Context, symbol string) (Price, error)
	FetchSentiment(ctx context.Context) (Sentiment, error)
}
