package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"signalhub/internal/cache"
	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

type fakeDirectory struct {
	subs map[int64]*domain.Subscriber
}

func (f *fakeDirectory) Register(_ context.Context, s *domain.Subscriber) (*domain.Subscriber, error) {
	if existing, ok := f.subs[s.UserID]; ok {
		existing.IsActive = true
		return existing, nil
	}
	c := *s
	c.Tier = domain.TierFree
	c.IsActive = true
	c.JoinedAt = time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	f.subs[s.UserID] = &c
	return &c, nil
}

func (f *fakeDirectory) Deactivate(_ context.Context, id int64) error {
	s, ok := f.subs[id]
	if !ok {
		return domain.NotFound("subscriber", id)
	}
	s.IsActive = false
	return nil
}

func (f *fakeDirectory) Get(_ context.Context, id int64) (*domain.Subscriber, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, domain.NotFound("subscriber", id)
	}
	return s, nil
}

type fakeSignals struct {
	byKind map[domain.SignalKind][]*domain.Signal
}

func (f *fakeSignals) List(_ context.Context, kind domain.SignalKind, _ domain.SignalFilter) ([]*domain.Signal, error) {
	return f.byKind[kind], nil
}

type fakeMarket struct {
	err error
}

func (f *fakeMarket) Price(_ context.Context, symbol string) (domain.Price, error) {
	if f.err != nil {
		return domain.Price{}, f.err
	}
	return domain.Price{Symbol: symbol, Price: decimal.RequireFromString("43250.1")}, nil
}

func (f *fakeMarket) Sentiment(context.Context) (domain.Sentiment, error) {
	return domain.Sentiment{Value: 40, Classification: "Fear"}, nil
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestBot(perMinute int) (*Bot, *fakeDirectory, *fakeMarket) {
	dir := &fakeDirectory{subs: map[int64]*domain.Subscriber{}}
	signals := &fakeSignals{byKind: map[domain.SignalKind][]*domain.Signal{
		domain.SignalKindSpot: {{
			Kind: domain.SignalKindSpot, Symbol: "ETHUSDT", Side: domain.SideLong,
			Targets: []decimal.Decimal{d("2300")}, StopLoss: d("2200"),
			Spot: &domain.SpotDetails{},
		}},
		domain.SignalKindFutures: {{
			Kind: domain.SignalKindFutures, Symbol: "BTCUSDT", Side: domain.SideShort,
			Targets: []decimal.Decimal{d("42000")}, StopLoss: d("44000"),
			Futures: &domain.FuturesDetails{EntryPrice: d("43000"), Leverage: 10},
		}},
	}}
	market := &fakeMarket{}
	return NewBot(dir, signals, market, cache.NewMemory(), perMinute, logger.Nop()), dir, market
}

func TestBotStartAndStop(t *testing.T) {
	bot, dir, _ := newTestBot(10)
	ctx := context.Background()
	user := User{ID: 42, FirstName: "Ann"}

	reply := bot.Handle(ctx, user, "start", "")
	assert.Contains(t, reply, "Welcome, Ann")
	assert.Contains(t, reply, "FREE")

	reply = bot.Handle(ctx, user, "stop", "")
	assert.Contains(t, reply, "no longer receive")
	assert.False(t, dir.subs[42].IsActive)

	reply = bot.Handle(ctx, user, "signals", "")
	assert.Contains(t, reply, "paused")

	bot.Handle(ctx, user, "start", "")
	assert.True(t, dir.subs[42].IsActive)
}

func TestBotSignalsRespectTier(t *testing.T) {
	bot, dir, _ := newTestBot(10)
	ctx := context.Background()
	user := User{ID: 7}

	assert.Contains(t, bot.Handle(ctx, user, "signals", ""), "not subscribed")

	bot.Handle(ctx, user, "start", "")
	reply := bot.Handle(ctx, user, "signals", "")
	assert.Contains(t, reply, "SPOT ETHUSDT LONG")
	assert.NotContains(t, reply, "BTCUSDT")
	assert.Contains(t, reply, "Upgrade to PRO")

	dir.subs[7].Tier = domain.TierPro
	reply = bot.Handle(ctx, user, "signals", "")
	assert.Contains(t, reply, "FUTURES BTCUSDT SHORT x10 | Entry 43000 | TP1 42000 | SL 44000")
	assert.NotContains(t, reply, "Upgrade")
}

func TestBotAccount(t *testing.T) {
	bot, dir, _ := newTestBot(10)
	ctx := context.Background()
	bot.Handle(ctx, User{ID: 9}, "start", "")
	dir.subs[9].Tier = domain.TierElite

	reply := bot.Handle(ctx, User{ID: 9}, "account", "")
	assert.Contains(t, reply, "Tier: ELITE")
	assert.Contains(t, reply, "spot and futures")
	assert.Contains(t, reply, "2026-01-02")
}

func TestBotMarket(t *testing.T) {
	bot, _, market := newTestBot(10)
	ctx := context.Background()

	assert.Contains(t, bot.Handle(ctx, User{ID: 1}, "market", ""), "Usage")

	reply := bot.Handle(ctx, User{ID: 1}, "market", "btcusdt")
	assert.Contains(t, reply, "BTCUSDT: 43250.1")
	assert.Contains(t, reply, "Fear & Greed: 40 (Fear)")

	market.err = domain.NotFound("symbol", "NOPE")
	assert.Contains(t, bot.Handle(ctx, User{ID: 1}, "market", "nope"), "Unknown symbol NOPE")

	market.err = domain.ExternalProviderError("binance", errors.New("down"))
	assert.Contains(t, bot.Handle(ctx, User{ID: 1}, "market", "btcusdt"), "unavailable")
}

func TestBotThrottle(t *testing.T) {
	bot, _, _ := newTestBot(2)
	ctx := context.Background()
	user := User{ID: 3}

	assert.Equal(t, helpText, bot.Handle(ctx, user, "help", ""))
	assert.Equal(t, helpText, bot.Handle(ctx, user, "help", ""))
	assert.Contains(t, bot.Handle(ctx, user, "help", ""), "Too many requests")
	assert.Equal(t, helpText, bot.Handle(ctx, User{ID: 4}, "help", ""))
}
