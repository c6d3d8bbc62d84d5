package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalhub/internal/domain"
)

func TestSignalVariablesCoverDocumentedSet(t *testing.T) {
	settings := defaultSettings(t)
	created := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	signals := []*domain.Signal{
		{
			Kind: domain.SignalKindSpot, Symbol: "ETHUSDT", Side: domain.SideLong,
			Targets: decs("2100", "2200"), StopLoss: dec("1900"), CreatedAt: created,
			Spot: &domain.SpotDetails{},
		},
		{
			Kind: domain.SignalKindFutures, Symbol: "BTCUSDT", Side: domain.SideShort,
			Targets: decs("42990.5"), StopLoss: dec("43596"), CreatedAt: created,
			Futures: &domain.FuturesDetails{EntryPrice: dec("43250"), Leverage: 5, PositionValue: dec("500")},
		},
	}

	for _, s := range signals {
		t.Run(string(s.Kind), func(t *testing.T) {
			vars := SignalVariables(s, settings, time.UTC)
			for _, name := range domain.TemplateVariables[string(s.Kind)] {
				assert.Contains(t, vars, name)
			}
		})
	}
}

func TestSignalVariablesRenderThroughTemplate(t *testing.T) {
	s := &domain.Signal{
		Kind: domain.SignalKindFutures, Symbol: "BTCUSDT", Side: domain.SideLong,
		Targets: decs("43509.5", "43769"), StopLoss: dec("42904"),
		Futures: &domain.FuturesDetails{EntryPrice: dec("43250"), Leverage: 10, PositionValue: dec("500"), TraderName: "Whale"},
	}
	content := "{side} {symbol} x{leverage}\nEntry {entry}\nTP1 {target_1} TP2 {target_2} TP3 {target_3}\nSL {stop_loss}\nby {trader_name}"

	out, err := RenderContent(content, SignalVariables(s, defaultSettings(t), time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "LONG BTCUSDT x10x\nEntry 43250.00\nTP1 43509.50 TP2 43769.00 TP3 -\nSL 42904.00\nby Whale", out)
}

func TestSignalVariablesMarketEntry(t *testing.T) {
	s := &domain.Signal{Kind: domain.SignalKindSpot, Side: domain.SideLong, Targets: decs("1"), StopLoss: dec("0.5"), Spot: &domain.SpotDetails{}}
	vars := SignalVariables(s, nil, nil)
	assert.Equal(t, "Market", vars["entry"])
	assert.Equal(t, EmptyValue, vars["entry_min"])
}
