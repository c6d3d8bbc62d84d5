package domain

import (
	"time"

	"github.com/google/uuid"
)

// Trader is a futures leaderboard entry.
type Trader struct {
	ID            uuid.UUID `json:"id"`
	ExternalID    string    `json:"external_id"`
	DisplayName   string    `json:"display_name"`
	ProfileURL    string    `json:"profile_url"`
	ROI           float64   `json:"roi"`
	PnL           float64   `json:"pnl"`
	WinRate       float64   `json:"win_rate"`
	IsFollowed    bool      `json:"is_followed"`
	FollowLocked  bool      `json:"follow_locked"`
	LastRefreshed time.Time `json:"last_refreshed_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// TraderSnapshot is one row of a freshly fetched leaderboard.
type TraderSnapshot struct {
	ExternalID  string  `json:"external_id"`
	DisplayName string  `json:"display_name"`
	ProfileURL  string  `json:"profile_url"`
	ROI         float64 `json:"roi"`
	PnL         float64 `json:"pnl"`
	WinRate     float64 `json:"win_rate"`
}

// RankCriterion selects the leaderboard ordering.
type RankCriterion string

const (
	RankByROI RankCriterion = "roi"
	RankByPnL RankCriterion = "pnl"
)

// Valid reports whether c is a known criterion.
func (c RankCriterion) Valid() bool {
	return c == RankByROI || c == RankByPnL
}

// Value returns the snapshot's figure for the criterion.
func (s TraderSnapshot) Value(c RankCriterion) float64 {
	if c == RankByPnL {
		return s.PnL
	}
	return s.ROI
}

// PerformanceScore weights ROI against win rate.
func (t *Trader) PerformanceScore() float64 {
	return t.ROI*0.7 + t.WinRate*0.3
}

// RiskLevel buckets the trader by ROI.
func (t *Trader) RiskLevel() string {
	switch {
	case t.ROI > 50:
		return "high"
	case t.ROI > 20:
		return "medium"
	case t.ROI > 0:
		return "low"
	default:
		return "negative"
	}
}

// IsDataFresh reports whether the trader was refreshed within the last day.
func (t *Trader) IsDataFresh(now time.Time) bool {
	return now.Sub(t.LastRefreshed) < 24*time.Hour
}

// TraderPosition is an open position reported for a leaderboard trader.
type TraderPosition struct {
	TraderExternalID string
	Symbol           string
	Side             string
	EntryPrice       string
	Leverage         int
	// Amount is the position size in contract units; value is EntryPrice × Amount.
	Amount string
	// UpdatedAt moves whenever the trader modifies the position.
	UpdatedAt time.Time
}

// SourceRef is the idempotency key of a position-derived signal. It names the
// position, not a revision of it, so it stays stable while the position is open.
func (p TraderPosition) SourceRef() string {
	return p.TraderExternalID + ":" + p.Symbol + ":" + p.Side
}

// TraderFilter narrows trader listings.
type TraderFilter struct {
	FollowedOnly bool
	OrderBy      RankCriterion
	Limit        int
	Offset       int
}
