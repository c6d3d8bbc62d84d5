package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

func externalIDs(snaps []domain.TraderSnapshot) []string {
	ids := make([]string, len(snaps))
	for i, s := range snaps {
		ids[i] = s.ExternalID
	}
	return ids
}

func TestRankTradersExample(t *testing.T) {
	snaps := []domain.TraderSnapshot{
		{ExternalID: "A", ROI: 5.0},
		{ExternalID: "B", ROI: 5.0},
		{ExternalID: "C", ROI: 7.0},
	}
	assert.Equal(t, []string{"C", "A", "B"}, externalIDs(RankTraders(snaps, domain.RankByROI)))
}

func TestRankTradersDeterministicTies(t *testing.T) {
	forward := []domain.TraderSnapshot{
		{ExternalID: "b", PnL: 10}, {ExternalID: "a", PnL: 10}, {ExternalID: "d", PnL: 3}, {ExternalID: "c", PnL: 10},
	}
	reversed := []domain.TraderSnapshot{forward[3], forward[2], forward[1], forward[0]}

	want := []string{"a", "b", "c", "d"}
	for i := 0; i < 5; i++ {
		assert.Equal(t, want, externalIDs(RankTraders(forward, domain.RankByPnL)))
		assert.Equal(t, want, externalIDs(RankTraders(reversed, domain.RankByPnL)))
	}

	// input is not mutated
	assert.Equal(t, "b", forward[0].ExternalID)
}

func TestSelectFollowed(t *testing.T) {
	ranked := []domain.TraderSnapshot{{ExternalID: "C"}, {ExternalID: "A"}, {ExternalID: "B"}, {ExternalID: "D"}}

	tests := []struct {
		name      string
		topN      int
		overrides map[string]bool
		want      []string
	}{
		{"top n", 2, nil, []string{"C", "A"}},
		{"operator unfollow wins", 2, map[string]bool{"C": false}, []string{"A"}},
		{"operator follow outside top n", 2, map[string]bool{"D": true}, []string{"C", "A", "D"}},
		{"override on unranked trader", 1, map[string]bool{"Z": true, "B": false}, []string{"C", "Z"}},
		{"n larger than list", 10, nil, []string{"C", "A", "B", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SelectFollowed(ranked, tt.topN, tt.overrides))
		})
	}
}

func defaultSettings(t *testing.T) *domain.FuturesSettings {
	t.Helper()
	s, err := domain.ParseFuturesSettings(nil)
	require.NoError(t, err)
	return s
}

func candidate(symbol string, leverage int) TradeCandidate {
	return TradeCandidate{
		Trader: &domain.Trader{ExternalID: "T1", DisplayName: "Whale", ProfileURL: "https://example.com/T1"},
		Position: domain.TraderPosition{
			TraderExternalID: "T1",
			Symbol:           symbol,
			Side:             domain.SideLong,
			UpdatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		},
		EntryPrice:    dec("43250"),
		Leverage:      leverage,
		PositionValue: dec("500"),
	}
}

func TestFollowPolicyEvaluate(t *testing.T) {
	ctx := context.Background()
	policy := NewFollowPolicy(newMemoryCounter(), nil, logger.Nop())
	settings := defaultSettings(t)

	signal, err := policy.Evaluate(ctx, candidate("BTCUSDT", 5), settings, "2026-01-02")
	require.NoError(t, err)

	assert.Equal(t, domain.SignalKindFutures, signal.Kind)
	assert.Equal(t, domain.SignalStatusActive, signal.Status)
	assert.Equal(t, "43509.50", signal.Targets[0].StringFixed(2))
	assert.Equal(t, "43769.00", signal.Targets[1].StringFixed(2))
	assert.Equal(t, "42904.00", signal.StopLoss.StringFixed(2))
	assert.Equal(t, "Whale", signal.Futures.TraderName)
	assert.Equal(t, "T1:BTCUSDT:long:2026-01-02T03:04:05Z", signal.Futures.SourceRef)
}

func TestFollowPolicyRiskFilter(t *testing.T) {
	ctx := context.Background()
	counter := newMemoryCounter()
	policy := NewFollowPolicy(counter, nil, logger.Nop())
	settings := defaultSettings(t)
	settings.SymbolBlacklist = []string{"DOGEUSDT"}

	overValue := candidate("BTCUSDT", 5)
	overValue.PositionValue = dec("1000.01")

	riskySettings := defaultSettings(t)
	riskySettings.RiskScoreCeiling = dec("3")

	tests := []struct {
		name     string
		c        TradeCandidate
		settings *domain.FuturesSettings
	}{
		{"leverage above max", candidate("BTCUSDT", 11), settings},
		{"position value above max", overValue, settings},
		{"blacklisted symbol", candidate("DOGEUSDT", 2), settings},
		{"risk score above ceiling", candidate("BTCUSDT", 5), riskySettings},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, err := policy.Evaluate(ctx, tt.c, tt.settings, "2026-01-02")
			assert.Nil(t, signal)
			assert.ErrorIs(t, err, domain.ErrRiskLimitExceeded)
		})
	}

	// rejected candidates never take a cap slot
	n, _ := counter.Count(ctx, "2026-01-02")
	assert.Zero(t, n)
}

func TestFollowPolicyInvalidConfiguration(t *testing.T) {
	settings := defaultSettings(t)
	settings.TargetPercents = decs("1.2", "0.6")

	_, err := NewFollowPolicy(newMemoryCounter(), nil, logger.Nop()).
		Evaluate(context.Background(), candidate("BTCUSDT", 2), settings, "2026-01-02")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestFollowPolicyDailyCapSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	settings := defaultSettings(t)
	settings.DailySignalCap = 3
	counter := newMemoryCounter()

	first := NewFollowPolicy(counter, nil, logger.Nop())
	for i := 0; i < 2; i++ {
		_, err := first.Evaluate(ctx, candidate("BTCUSDT", 2), settings, "2026-01-02")
		require.NoError(t, err)
	}

	// a new process shares only the persisted counter
	second := NewFollowPolicy(counter, nil, logger.Nop())
	_, err := second.Evaluate(ctx, candidate("ETHUSDT", 2), settings, "2026-01-02")
	require.NoError(t, err)

	_, err = second.Evaluate(ctx, candidate("SOLUSDT", 2), settings, "2026-01-02")
	assert.ErrorIs(t, err, domain.ErrDailyCapReached)

	// the next day starts from zero
	_, err = second.Evaluate(ctx, candidate("SOLUSDT", 2), settings, "2026-01-03")
	assert.NoError(t, err)
}

func TestRiskScore(t *testing.T) {
	assert.True(t, RiskScore(10, dec("0.8")).Equal(dec("8")))
}
