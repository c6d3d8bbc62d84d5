package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFuturesSettingsDefaults(t *testing.T) {
	s, err := ParseFuturesSettings(nil)
	require.NoError(t, err)

	assert.Equal(t, RankByROI, s.RankingCriteria)
	assert.Equal(t, 10, s.TopN)
	assert.Equal(t, 20, s.DailySignalCap)
	require.Len(t, s.TargetPercents, 2)
	assert.True(t, s.TargetPercents[0].Equal(d("0.6")))
	assert.True(t, s.StopLossPercent.Equal(d("0.8")))
	assert.Equal(t, int32(2), s.PricePrecision)
}

func TestParseFuturesSettingsRoundTrip(t *testing.T) {
	s, err := ParseFuturesSettings(map[string]string{
		SettingRankingCriteria: "PNL",
		"target_3_percent":     "2.5",
		SettingSymbolBlacklist: "dogeusdt, shibusdt",
	})
	require.NoError(t, err)
	assert.Equal(t, RankByPnL, s.RankingCriteria)
	assert.Len(t, s.TargetPercents, 3)
	assert.Equal(t, []string{"DOGEUSDT", "SHIBUSDT"}, s.SymbolBlacklist)

	again, err := ParseFuturesSettings(s.Values())
	require.NoError(t, err)
	assert.Equal(t, s.Values(), again.Values())
}

func TestParseFuturesSettingsInvalid(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
		field  string
	}{
		{"not a number", map[string]string{SettingTopN: "ten"}, SettingTopN},
		{"descending targets", map[string]string{"target_1_percent": "1.2", "target_2_percent": "0.6"}, "target_2_percent"},
		{"zero target", map[string]string{"target_1_percent": "0"}, "target_1_percent"},
		{"negative stop", map[string]string{SettingStopLossPercent: "-1"}, SettingStopLossPercent},
		{"unknown criterion", map[string]string{SettingRankingCriteria: "sharpe"}, SettingRankingCriteria},
		{"bad audience", map[string]string{SettingFuturesAudience: "vip"}, SettingFuturesAudience},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFuturesSettings(tt.values)
			require.ErrorIs(t, err, ErrInvalidConfiguration)

			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestSymbolAllowed(t *testing.T) {
	s := &FuturesSettings{SymbolWhitelist: []string{"BTCUSDT", "ETHUSDT"}, SymbolBlacklist: []string{"ETHUSDT"}}
	assert.True(t, s.SymbolAllowed("btcusdt"))
	assert.False(t, s.SymbolAllowed("ETHUSDT"))
	assert.False(t, s.SymbolAllowed("SOLUSDT"))

	s.SymbolWhitelist = nil
	assert.True(t, s.SymbolAllowed("SOLUSDT"))
}

func TestTraderDerivedMetrics(t *testing.T) {
	now := time.Now()
	tr := &Trader{ROI: 30, WinRate: 60, LastRefreshed: now.Add(-time.Hour)}
	assert.InDelta(t, 39.0, tr.PerformanceScore(), 1e-9)
	assert.Equal(t, "medium", tr.RiskLevel())
	assert.True(t, tr.IsDataFresh(now))

	tr.LastRefreshed = now.Add(-25 * time.Hour)
	assert.False(t, tr.IsDataFresh(now))

	assert.Equal(t, "negative", (&Trader{ROI: -1}).RiskLevel())
	assert.Equal(t, "high", (&Trader{ROI: 51}).RiskLevel())
}

func TestErrorKindMatching(t *testing.T) {
	err := NewError(KindRiskLimitExceeded, "leverage %d above %d", 20, 10)
	assert.ErrorIs(t, err, ErrRiskLimitExceeded)
	assert.NotErrorIs(t, err, ErrInvalidConfiguration)
	assert.Equal(t, KindRiskLimitExceeded, KindOf(err))

	missing := MissingTemplateVariable([]string{"symbol", "side"})
	assert.ErrorIs(t, missing, ErrMissingTemplateVariable)
	assert.Equal(t, []string{"symbol", "side"}, missing.Details["variables"])
}
