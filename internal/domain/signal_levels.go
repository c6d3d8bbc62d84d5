package domain

import "github.com/shopspring/decimal"

// Level outcomes reported by the price monitor
const (
	OutcomeStopLoss    = "stop_loss"
	OutcomeFinalTarget = "final_target"
)

// IsLong checks if the signal is a long signal
func (s *Signal) IsLong() bool {
	return s.Side == SideLong
}

// CheckLevels reports whether price has reached the stop loss or the last
// target. TargetsHit counts the targets already crossed either way.
func (s *Signal) CheckLevels(price decimal.Decimal) (closed bool, outcome string, targetsHit int) {
	for _, t := range s.Targets {
		if (s.IsLong() && price.GreaterThanOrEqual(t)) || (!s.IsLong() && price.LessThanOrEqual(t)) {
			targetsHit++
		}
	}

	if s.IsLong() {
		if price.LessThanOrEqual(s.StopLoss) {
			return true, OutcomeStopLoss, targetsHit
		}
	} else if price.GreaterThanOrEqual(s.StopLoss) {
		return true, OutcomeStopLoss, targetsHit
	}

	if len(s.Targets) > 0 && targetsHit == len(s.Targets) {
		return true, OutcomeFinalTarget, targetsHit
	}
	return false, "", targetsHit
}

// PnLPercent is the return on margin at price for a futures signal:
// price move over entry, times leverage, in percent. Spot signals use leverage 1.
func (s *Signal) PnLPercent(price decimal.Decimal) decimal.Decimal {
	entry, ok := s.Entry()
	if !ok || entry.IsZero() {
		return decimal.Zero
	}

	leverage := int64(1)
	if s.Futures != nil && s.Futures.Leverage > 1 {
		leverage = int64(s.Futures.Leverage)
	}

	move := price.Sub(entry)
	if !s.IsLong() {
		move = move.Neg()
	}
	return move.Div(entry).Mul(decimal.NewFromInt(leverage)).Mul(decimal.NewFromInt(100))
}
