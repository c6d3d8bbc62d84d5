package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func futuresSignal(side string, entry string, targets []string, stop string) *Signal {
	ts := make([]decimal.Decimal, len(targets))
	for i, t := range targets {
		ts[i] = d(t)
	}
	return &Signal{
		Kind:     SignalKindFutures,
		Symbol:   "BTCUSDT",
		Side:     side,
		Targets:  ts,
		StopLoss: d(stop),
		Status:   SignalStatusActive,
		Futures: &FuturesDetails{
			EntryPrice:    d(entry),
			Leverage:      5,
			PositionValue: d("500"),
		},
	}
}

func TestSignalValidate(t *testing.T) {
	tests := []struct {
		name    string
		signal  *Signal
		wantErr bool
	}{
		{"valid long", futuresSignal(SideLong, "100", []string{"101", "102"}, "99"), false},
		{"valid short", futuresSignal(SideShort, "100", []string{"99", "98"}, "101"), false},
		{"long targets not ascending", futuresSignal(SideLong, "100", []string{"102", "101"}, "99"), true},
		{"short targets not descending", futuresSignal(SideShort, "100", []string{"98", "99"}, "101"), true},
		{"long stop above entry", futuresSignal(SideLong, "100", []string{"101"}, "100.5"), true},
		{"short stop below entry", futuresSignal(SideShort, "100", []string{"99"}, "99.5"), true},
		{"too many targets", futuresSignal(SideLong, "100", []string{"101", "102", "103", "104", "105", "106"}, "99"), true},
		{"no targets", futuresSignal(SideLong, "100", nil, "99"), true},
		{"bad side", futuresSignal("up", "100", []string{"101"}, "99"), true},
		{
			name: "kind payload mismatch",
			signal: &Signal{
				Kind: SignalKindSpot, Symbol: "ETHUSDT", Side: SideLong,
				Targets: []decimal.Decimal{d("10")}, StopLoss: d("9"),
				Futures: &FuturesDetails{EntryPrice: d("9.5"), Leverage: 1},
			},
			wantErr: true,
		},
		{
			name: "spot market entry checks stop against first target",
			signal: &Signal{
				Kind: SignalKindSpot, Symbol: "ETHUSDT", Side: SideLong,
				Targets: []decimal.Decimal{d("10"), d("11")}, StopLoss: d("9"),
				Spot: &SpotDetails{},
			},
			wantErr: false,
		},
		{
			name: "spot range uses midpoint",
			signal: &Signal{
				Kind: SignalKindSpot, Symbol: "ETHUSDT", Side: SideLong,
				Targets: []decimal.Decimal{d("10.6")}, StopLoss: d("9"),
				Spot: &SpotDetails{EntryMin: dp("10"), EntryMax: dp("11")},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.signal.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSignalEntryMidpoint(t *testing.T) {
	s := &Signal{Kind: SignalKindSpot, Spot: &SpotDetails{EntryMin: dp("10"), EntryMax: dp("11")}}
	entry, ok := s.Entry()
	require.True(t, ok)
	assert.True(t, entry.Equal(d("10.5")))

	s.Spot = &SpotDetails{}
	_, ok = s.Entry()
	assert.False(t, ok)
}

func TestSignalTransitionTo(t *testing.T) {
	for _, to := range []string{SignalStatusCompleted, SignalStatusCancelled} {
		s := &Signal{Status: SignalStatusActive}
		require.NoError(t, s.TransitionTo(to))
		assert.Equal(t, to, s.Status)

		for _, next := range []string{SignalStatusActive, SignalStatusCompleted, SignalStatusCancelled} {
			err := s.TransitionTo(next)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", to, next)
			assert.Equal(t, to, s.Status)
		}
	}

	s := &Signal{Status: SignalStatusActive}
	assert.ErrorIs(t, s.TransitionTo(SignalStatusActive), ErrInvalidTransition)
}

func TestSignalCheckLevels(t *testing.T) {
	long := futuresSignal(SideLong, "100", []string{"101", "102"}, "99")

	closed, outcome, hit := long.CheckLevels(d("101.5"))
	assert.False(t, closed)
	assert.Empty(t, outcome)
	assert.Equal(t, 1, hit)

	closed, outcome, hit = long.CheckLevels(d("102"))
	assert.True(t, closed)
	assert.Equal(t, OutcomeFinalTarget, outcome)
	assert.Equal(t, 2, hit)

	closed, outcome, _ = long.CheckLevels(d("98.9"))
	assert.True(t, closed)
	assert.Equal(t, OutcomeStopLoss, outcome)

	short := futuresSignal(SideShort, "100", []string{"99", "98"}, "101")
	closed, outcome, _ = short.CheckLevels(d("101"))
	assert.True(t, closed)
	assert.Equal(t, OutcomeStopLoss, outcome)
}

func TestSignalPnLPercent(t *testing.T) {
	s := futuresSignal(SideLong, "100", []string{"101"}, "99")
	assert.True(t, s.PnLPercent(d("101")).Equal(d("5")))

	s.Side = SideShort
	assert.True(t, s.PnLPercent(d("101")).Equal(d("-5")))
}
