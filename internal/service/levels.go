package service

import (
	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// LevelOffsets are percentage distances from entry.
type LevelOffsets struct {
	Targets  []decimal.Decimal
	StopLoss decimal.Decimal
	// Precision is the number of decimal places prices are rounded to.
	Precision int32
}

// Levels are absolute target and stop-loss prices.
type Levels struct {
	Targets  []decimal.Decimal
	StopLoss decimal.Decimal
}

// OffsetsFromSettings reads the configured offsets.
func OffsetsFromSettings(s *domain.FuturesSettings) LevelOffsets {
	return LevelOffsets{
		Targets:   s.TargetPercents,
		StopLoss:  s.StopLossPercent,
		Precision: s.PricePrecision,
	}
}

// CalculateLevels applies offsets to entry: long targets at entry × (1 + pct/100)
// and the stop at entry × (1 - pct/100), mirrored for short.
func CalculateLevels(entry decimal.Decimal, side string, o LevelOffsets) (Levels, error) {
	if !entry.IsPositive() {
		return Levels{}, domain.NewError(domain.KindValidation, "entry price must be positive").WithField("entry_price")
	}
	if side != domain.SideLong && side != domain.SideShort {
		return Levels{}, domain.NewError(domain.KindValidation, "side must be long or short").WithField("side")
	}
	if len(o.Targets) == 0 || len(o.Targets) > domain.MaxTargets {
		return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "between 1 and %d target offsets are required", domain.MaxTargets)
	}
	for i, pct := range o.Targets {
		if !pct.IsPositive() {
			return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "target %d offset must be positive", i+1).
				WithField(domain.TargetPercentKey(i + 1))
		}
		if i > 0 && !pct.GreaterThan(o.Targets[i-1]) {
			return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "target offsets must be strictly ascending").
				WithField(domain.TargetPercentKey(i + 1))
		}
	}
	if !o.StopLoss.IsPositive() {
		return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "stop loss offset must be positive").
			WithField(domain.SettingStopLossPercent)
	}

	sign := decimal.NewFromInt(1)
	if side == domain.SideShort {
		sign = sign.Neg()
	}
	at := func(pct decimal.Decimal, direction decimal.Decimal) decimal.Decimal {
		factor := decimal.NewFromInt(1).Add(direction.Mul(pct).Div(hundred))
		return entry.Mul(factor).Round(o.Precision)
	}

	levels := Levels{Targets: make([]decimal.Decimal, len(o.Targets))}
	for i, pct := range o.Targets {
		levels.Targets[i] = at(pct, sign)
		if !levels.Targets[i].IsPositive() {
			return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "target %d offset leaves no positive price", i+1).
				WithField(domain.TargetPercentKey(i + 1))
		}
		if i > 0 && levels.Targets[i].Equal(levels.Targets[i-1]) {
			return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "price precision %d cannot separate target %d from target %d", o.Precision, i, i+1).
				WithField(domain.SettingPricePrecision)
		}
	}
	levels.StopLoss = at(o.StopLoss, sign.Neg())
	if !levels.StopLoss.IsPositive() {
		return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "stop loss offset leaves no positive price").
			WithField(domain.SettingStopLossPercent)
	}
	if levels.StopLoss.Equal(entry.Round(o.Precision)) || levels.Targets[0].Equal(entry.Round(o.Precision)) {
		return Levels{}, domain.NewError(domain.KindInvalidConfiguration, "price precision %d cannot separate levels from entry", o.Precision).
			WithField(domain.SettingPricePrecision)
	}
	return levels, nil
}
