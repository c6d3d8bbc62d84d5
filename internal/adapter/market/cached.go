package market

import (
	"context"
	"errors"
	"strings"
	"time"

	"signalhub/internal/cache"
	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// CachedGateway serves prices and sentiment from a short-lived cache.
// Leaderboard and position reads always go to the provider.
type CachedGateway struct {
	domain.MarketDataGateway
	store        cache.Store
	priceTTL     time.Duration
	sentimentTTL time.Duration
	logger       *logger.Logger
}

// NewCachedGateway wraps next with store.
func NewCachedGateway(next domain.MarketDataGateway, store cache.Store, priceTTL, sentimentTTL time.Duration, log *logger.Logger) *CachedGateway {
	return &CachedGateway{
		MarketDataGateway: next,
		store:             store,
		priceTTL:          priceTTL,
		sentimentTTL:      sentimentTTL,
		logger:            log,
	}
}

func (c *CachedGateway) lookup(ctx context.Context, key string, dest interface{}) bool {
	err := c.store.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, cache.ErrMiss) {
		c.logger.Warn("Cache read failed", logger.String("key", key), logger.Error(err))
	}
	return false
}

func (c *CachedGateway) save(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("Cache write failed", logger.String("key", key), logger.Error(err))
	}
}

// FetchPrice returns a cached quote when one is fresh.
func (c *CachedGateway) FetchPrice(ctx context.Context, symbol string) (domain.Price, error) {
	key := "price:" + strings.ToUpper(symbol)

	var p domain.Price
	if c.lookup(ctx, key, &p) {
		return p, nil
	}

	p, err := c.MarketDataGateway.FetchPrice(ctx, symbol)
	if err != nil {
		return domain.Price{}, err
	}
	c.save(ctx, key, p, c.priceTTL)
	return p, nil
}

// FetchSentiment returns the cached index reading when fresh.
func (c *CachedGateway) FetchSentiment(ctx context.Context) (domain.Sentiment, error) {
	const key = "sentiment:fear_greed"

	var s domain.Sentiment
	if c.lookup(ctx, key, &s) {
		return s, nil
	}

	s, err := c.MarketDataGateway.FetchSentiment(ctx)
	if err != nil {
		return domain.Sentiment{}, err
	}
	c.save(ctx, key, s, c.sentimentTTL)
	return s, nil
}
