package domain

import "time"

// Tier constants
const (
	TierFree  = "free"
	TierPro   = "pro"
	TierElite = "elite"
)

// AudienceAll targets every active subscriber.
const AudienceAll = "all"

// Subscriber is a bot user.
type Subscriber struct {
	UserID         int64     `json:"user_id"`
	Username       string    `json:"username,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Tier           string    `json:"tier"`
	IsActive       bool      `json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// ValidTier reports whether t is a subscription tier.
func ValidTier(t string) bool {
	return t == TierFree || t == TierPro || t == TierElite
}

// ValidAudience reports whether a is "all" or a tier.
func ValidAudience(a string) bool {
	return a == AudienceAll || ValidTier(a)
}

// CanSeeFutures reports whether the tier includes futures signals.
func (s *Subscriber) CanSeeFutures() bool {
	return s.Tier == TierPro || s.Tier == TierElite
}

// SubscriberFilter narrows subscriber listings.
type SubscriberFilter struct {
	Tier       string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// SubscriberStats counts subscribers per tier.
type SubscriberStats struct {
	Total  int            `json:"total"`
	Active int            `json:"active"`
	ByTier map[string]int `json:"by_tier"`
}
