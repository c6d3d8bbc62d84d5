package market

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"signalhub/configs"
	"signalhub/internal/domain"
	"signalhub/pkg/httpclient"
	"signalhub/pkg/logger"
)

// Provider labels used for metrics and errors.
const (
	ProviderBinance     = "binance"
	ProviderLeaderboard = "binance_leaderboard"
	ProviderFearGreed   = "alternative_me"
)

const profileURLPrefix = "https://www.binance.com/en/futures-activity/leaderboard/user?encryptedUid="

// binance reports an unknown symbol with this code
const invalidSymbolCode = -1121

// Gateway implements domain.MarketDataGateway against Binance and alternative.me.
type Gateway struct {
	spot    *binance.Client
	http    *httpclient.Client
	cfg     configs.ProvidersConfig
	metrics domain.Metrics
	logger  *logger.Logger
	now     func() time.Time
}

// NewGateway creates a Gateway. Empty credentials are fine for public endpoints.
func NewGateway(cfg configs.ProvidersConfig, apiKey, secret string, metrics domain.Metrics, log *logger.Logger) *Gateway {
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	spot := binance.NewClient(apiKey, secret)
	spot.HTTPClient.Timeout = cfg.Timeout

	return &Gateway{
		spot: spot,
		http: httpclient.New(httpclient.Config{
			Timeout:    cfg.Timeout,
			RetryMax:   cfg.RetryMax,
			BackoffMin: cfg.BackoffMin,
			BackoffMax: cfg.BackoffMax,
			UserAgent:  "signalhub/1.0",
		}),
		cfg:     cfg,
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

// observe records the call and converts failures to EXTERNAL_PROVIDER_ERROR.
// Domain errors pass through untouched.
func (g *Gateway) observe(provider string, started time.Time, err error) error {
	g.metrics.RecordProviderCall(provider, time.Since(started).Seconds(), err)
	if err == nil {
		return nil
	}
	if domain.KindOf(err) != "" {
		return err
	}
	g.logger.Warn("Market data request failed", logger.String("provider", provider), logger.Error(err))
	return domain.ExternalProviderError(provider, err)
}

type leaderboardRequest struct {
	IsShared       bool   `json:"isShared"`
	IsTrader       bool   `json:"isTrader"`
	PeriodType     string `json:"periodType"`
	StatisticsType string `json:"statisticsType"`
	TradeType      string `json:"tradeType"`
}

type leaderboardResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    []struct {
		EncryptedUID string   `json:"encryptedUid"`
		NickName     string   `json:"nickName"`
		ROI          float64  `json:"roi"`
		PnL          float64  `json:"pnl"`
		WinRate      *float64 `json:"winRate"`
	} `json:"data"`
}

// FetchLeaderboard returns the weekly perpetual leaderboard ranked by criterion.
// ROI and win rate are converted from ratios to percent.
func (g *Gateway) FetchLeaderboard(ctx context.Context, criterion domain.RankCriterion) (snapshots []domain.TraderSnapshot, err error) {
	defer func(started time.Time) { err = g.observe(ProviderLeaderboard, started, err) }(time.Now())

	req := leaderboardRequest{
		IsShared:       true,
		PeriodType:     "WEEKLY",
		StatisticsType: strings.ToUpper(string(criterion)),
		TradeType:      "PERPETUAL",
	}

	var resp leaderboardResponse
	if err := g.http.QueryJSON(ctx, g.cfg.LeaderboardURL, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("leaderboard rejected: %s %s", resp.Code, resp.Message)
	}

	snapshots = make([]domain.TraderSnapshot, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.EncryptedUID == "" {
			continue
		}
		snap := domain.TraderSnapshot{
			ExternalID:  row.EncryptedUID,
			DisplayName: row.NickName,
			ProfileURL:  profileURLPrefix + row.EncryptedUID,
			ROI:         row.ROI * 100,
			PnL:         row.PnL,
		}
		if row.WinRate != nil {
			snap.WinRate = *row.WinRate * 100
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

type positionsRequest struct {
	EncryptedUID string `json:"encryptedUid"`
	TradeType    string `json:"tradeType"`
}

type positionsResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Success bool   `json:"success"`
	Data    struct {
		OtherPositionRetList []struct {
			Symbol          string  `json:"symbol"`
			EntryPrice      float64 `json:"entryPrice"`
			Amount          float64 `json:"amount"`
			Leverage        int     `json:"leverage"`
			UpdateTimeStamp int64   `json:"updateTimeStamp"`
		} `json:"otherPositionRetList"`
	} `json:"data"`
}

// FetchTraderPositions returns the open positions a trader shares. A negative
// amount is a short.
func (g *Gateway) FetchTraderPositions(ctx context.Context, externalID string) (positions []domain.TraderPosition, err error) {
	defer func(started time.Time) { err = g.observe(ProviderLeaderboard, started, err) }(time.Now())

	var resp positionsResponse
	req := positionsRequest{EncryptedUID: externalID, TradeType: "PERPETUAL"}
	if err := g.http.QueryJSON(ctx, g.cfg.PositionsURL, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("positions rejected: %s %s", resp.Code, resp.Message)
	}

	for _, p := range resp.Data.OtherPositionRetList {
		if p.Amount == 0 {
			continue
		}
		side := domain.SideLong
		amount := decimal.NewFromFloat(p.Amount)
		if amount.IsNegative() {
			side = domain.SideShort
			amount = amount.Abs()
		}
		positions = append(positions, domain.TraderPosition{
			TraderExternalID: externalID,
			Symbol:           strings.ToUpper(p.Symbol),
			Side:             side,
			EntryPrice:       decimal.NewFromFloat(p.EntryPrice).String(),
			Leverage:         p.Leverage,
			Amount:           amount.String(),
			UpdatedAt:        time.UnixMilli(p.UpdateTimeStamp).UTC(),
		})
	}
	return positions, nil
}

// FetchPrice returns the last spot price for symbol.
func (g *Gateway) FetchPrice(ctx context.Context, symbol string) (price domain.Price, err error) {
	defer func(started time.Time) { err = g.observe(ProviderBinance, started, err) }(time.Now())

	symbol = strings.ToUpper(symbol)
	var prices []*binance.SymbolPrice
	err = g.retry(ctx, func() error {
		var callErr error
		prices, callErr = g.spot.NewListPricesService().Symbol(symbol).Do(ctx)
		return callErr
	})
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == invalidSymbolCode {
			return domain.Price{}, domain.NotFound("symbol", symbol)
		}
		return domain.Price{}, err
	}

	for _, p := range prices {
		if p.Symbol != symbol {
			continue
		}
		value, err := decimal.NewFromString(p.Price)
		if err != nil {
			return domain.Price{}, fmt.Errorf("parse price %q: %w", p.Price, err)
		}
		return domain.Price{Symbol: symbol, Price: value, At: g.now()}, nil
	}
	return domain.Price{}, domain.NotFound("symbol", symbol)
}

// retry re-runs fn on transport and server errors. Coded API rejections are final.
func (g *Gateway) retry(ctx context.Context, fn func() error) error {
	b := &backoff.Backoff{Min: g.cfg.BackoffMin, Max: g.cfg.BackoffMax, Factor: 2, Jitter: true}

	var err error
	for attempt := 0; attempt <= g.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(b.Duration()):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		var apiErr *common.APIError
		if (errors.As(err, &apiErr) && apiErr.Code != 0) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

type fearGreedResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
		Timestamp      string `json:"timestamp"`
	} `json:"data"`
}

// FetchSentiment returns the latest fear & greed index reading.
func (g *Gateway) FetchSentiment(ctx context.Context) (s domain.Sentiment, err error) {
	defer func(started time.Time) { err = g.observe(ProviderFearGreed, started, err) }(time.Now())

	var resp fearGreedResponse
	if err := g.http.GetJSON(ctx, g.cfg.FearGreedURL+"?limit=1", &resp); err != nil {
		return domain.Sentiment{}, err
	}
	if len(resp.Data) == 0 {
		return domain.Sentiment{}, errors.New("empty fear and greed response")
	}

	row := resp.Data[0]
	value, err := strconv.Atoi(row.Value)
	if err != nil {
		return domain.Sentiment{}, fmt.Errorf("parse index value %q: %w", row.Value, err)
	}
	at := g.now()
	if ts, err := strconv.ParseInt(row.Timestamp, 10, 64); err == nil {
		at = time.Unix(ts, 0).UTC()
	}
	return domain.Sentiment{Value: value, Classification: row.Classification, At: at}, nil
}

var _ domain.MarketDataGateway = (*Gateway)(nil)
