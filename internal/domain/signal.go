package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SignalKind discriminates the Signal variants.
type SignalKind string

const (
	SignalKindSpot    SignalKind = "spot"
	SignalKindFutures SignalKind = "futures"
)

// Valid reports whether k is a known kind.
func (k SignalKind) Valid() bool {
	return k == SignalKindSpot || k == SignalKindFutures
}

// Side constants
const (
	SideLong  = "long"
	SideShort = "short"
)

// SignalStatus constants
const (
	SignalStatusActive    = "active"
	SignalStatusCompleted = "completed"
	SignalStatusCancelled = "cancelled"
)

// MaxTargets is the number of take-profit levels a signal can carry.
const MaxTargets = 5

// Signal is a published trade recommendation. Exactly one of Spot or Futures
// is set and it must match Kind.
type Signal struct {
	ID             uuid.UUID         `json:"id"`
	Kind           SignalKind        `json:"kind"`
	Symbol         string            `json:"symbol"`
	Side           string            `json:"side"`
	Targets        []decimal.Decimal `json:"targets"`
	StopLoss       decimal.Decimal   `json:"stop_loss"`
	Status         string            `json:"status"`
	Notes          string            `json:"notes,omitempty"`
	DeliveredCount int               `json:"delivered_count"`
	CreatedBy      *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	SentAt         *time.Time        `json:"sent_at,omitempty"`

	Spot    *SpotDetails    `json:"spot,omitempty"`
	Futures *FuturesDetails `json:"futures,omitempty"`
}

// SpotDetails is the spot-only payload. A nil entry bound means market price.
type SpotDetails struct {
	EntryMin   *decimal.Decimal `json:"entry_min,omitempty"`
	EntryMax   *decimal.Decimal `json:"entry_max,omitempty"`
	Support    *decimal.Decimal `json:"support,omitempty"`
	Resistance *decimal.Decimal `json:"resistance,omitempty"`
}

// FuturesDetails is the futures-only payload.
type FuturesDetails struct {
	EntryPrice       decimal.Decimal `json:"entry_price"`
	Leverage         int             `json:"leverage"`
	PositionValue    decimal.Decimal `json:"position_value"`
	TraderExternalID string          `json:"trader_external_id,omitempty"`
	TraderName       string          `json:"trader_name,omitempty"`
	TraderProfileURL string          `json:"trader_profile_url,omitempty"`
	// SourceRef identifies the originating leaderboard position; empty for manual entries.
	SourceRef string `json:"source_ref,omitempty"`
}

// Entry returns the reference entry price: the futures entry, the midpoint of a
// spot range, or the single bound that is set. ok is false for market entries.
func (s *Signal) Entry() (decimal.Decimal, bool) {
	switch s.Kind {
	case SignalKindFutures:
		if s.Futures == nil {
			return decimal.Zero, false
		}
		return s.Futures.EntryPrice, true
	case SignalKindSpot:
		if s.Spot == nil {
			return decimal.Zero, false
		}
		lo, hi := s.Spot.EntryMin, s.Spot.EntryMax
		switch {
		case lo != nil && hi != nil:
			return lo.Add(*hi).Div(decimal.NewFromInt(2)), true
		case lo != nil:
			return *lo, true
		case hi != nil:
			return *hi, true
		}
	}
	return decimal.Zero, false
}

// Validate checks the variant payload and the price-ordering invariants.
func (s *Signal) Validate() error {
	if !s.Kind.Valid() {
		return NewError(KindValidation, "unknown signal kind %q", s.Kind).WithField("kind")
	}
	if s.Symbol == "" {
		return NewError(KindValidation, "symbol is required").WithField("symbol")
	}
	if s.Side != SideLong && s.Side != SideShort {
		return NewError(KindValidation, "side must be long or short").WithField("side")
	}

	switch s.Kind {
	case SignalKindSpot:
		if s.Spot == nil || s.Futures != nil {
			return NewError(KindValidation, "spot signal requires the spot payload only")
		}
		if s.Spot.EntryMin != nil && s.Spot.EntryMax != nil && s.Spot.EntryMin.GreaterThan(*s.Spot.EntryMax) {
			return NewError(KindValidation, "entry_min must not exceed entry_max").WithField("entry_min")
		}
	case SignalKindFutures:
		if s.Futures == nil || s.Spot != nil {
			return NewError(KindValidation, "futures signal requires the futures payload only")
		}
		if !s.Futures.EntryPrice.IsPositive() {
			return NewError(KindValidation, "entry_price must be positive").WithField("entry_price")
		}
		if s.Futures.Leverage < 1 {
			return NewError(KindValidation, "leverage must be at least 1").WithField("leverage")
		}
		if s.Futures.PositionValue.IsNegative() {
			return NewError(KindValidation, "position_value must not be negative").WithField("position_value")
		}
	}

	if len(s.Targets) == 0 || len(s.Targets) > MaxTargets {
		return NewError(KindValidation, "between 1 and %d targets are required", MaxTargets).WithField("targets")
	}
	if !s.StopLoss.IsPositive() {
		return NewError(KindValidation, "stop_loss must be positive").WithField("stop_loss")
	}

	long := s.Side == SideLong
	for i, t := range s.Targets {
		if !t.IsPositive() {
			return NewError(KindValidation, "target %d must be positive", i+1).WithField("targets")
		}
		if i == 0 {
			continue
		}
		prev := s.Targets[i-1]
		if long && !t.GreaterThan(prev) {
			return NewError(KindValidation, "targets must be ascending for a long signal").WithField("targets")
		}
		if !long && !t.LessThan(prev) {
			return NewError(KindValidation, "targets must be descending for a short signal").WithField("targets")
		}
	}

	ref, ok := s.Entry()
	if ok {
		if long && (!s.StopLoss.LessThan(ref) || !s.Targets[0].GreaterThan(ref)) {
			return NewError(KindValidation, "long signal requires stop_loss < entry < target 1").WithField("stop_loss")
		}
		if !long && (!s.StopLoss.GreaterThan(ref) || !s.Targets[0].LessThan(ref)) {
			return NewError(KindValidation, "short signal requires target 1 < entry < stop_loss").WithField("stop_loss")
		}
	} else {
		if long && !s.StopLoss.LessThan(s.Targets[0]) {
			return NewError(KindValidation, "stop_loss must be below target 1 for a long signal").WithField("stop_loss")
		}
		if !long && !s.StopLoss.GreaterThan(s.Targets[0]) {
			return NewError(KindValidation, "stop_loss must be above target 1 for a short signal").WithField("stop_loss")
		}
	}

	return nil
}

// IsTerminalStatus reports whether the status admits no further transitions.
func IsTerminalStatus(status string) bool {
	return status == SignalStatusCompleted || status == SignalStatusCancelled
}

// TransitionTo moves an active signal to completed or cancelled.
func (s *Signal) TransitionTo(status string) error {
	if status != SignalStatusCompleted && status != SignalStatusCancelled {
		return NewError(KindInvalidTransition, "cannot transition to %q", status).WithField("status")
	}
	if s.Status != SignalStatusActive {
		return NewError(KindInvalidTransition, "signal is %s; only active signals can change status", s.Status).
			WithDetail("from", s.Status).
			WithDetail("to", status)
	}
	s.Status = status
	return nil
}

// SignalFilter narrows signal listings.
type SignalFilter struct {
	Status           string
	Symbol           string
	TraderExternalID string
	Limit            int
	Offset           int
}

// SignalStats summarises signals by status.
type SignalStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	Sent      int `json:"sent"`
}
