package domain

import (
	"time"

	"github.com/google/uuid"
)

// Broadcast statuses. Sending is held only while a confirmed broadcast is
// being delivered.
const (
	BroadcastDraft    = "draft"
	BroadcastPrepared = "prepared"
	BroadcastSending  = "sending"
	BroadcastSent     = "sent"
	BroadcastFailed   = "failed"
)

// ConfirmTokenLength is the size of a broadcast confirmation token.
const ConfirmTokenLength = 6

// Broadcast is an operator-authored message for a subscriber segment.
type Broadcast struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	Audience      string     `json:"audience"`
	Status        string     `json:"status"`
	ConfirmToken  string     `json:"-"`
	TargetedCount int        `json:"targeted_count"`
	SentCount     int        `json:"sent_count"`
	FailedCount   int        `json:"failed_count"`
	CreatedBy     *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	PreparedAt    *time.Time `json:"prepared_at,omitempty"`
	SentAt        *time.Time `json:"sent_at,omitempty"`
}

// Editable reports whether content and audience may still change.
func (b *Broadcast) Editable() bool {
	return b.Status == BroadcastDraft || b.Status == BroadcastPrepared
}

// BroadcastStats counts broadcasts by status and deliveries overall.
type BroadcastStats struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	TotalDelivered int            `json:"total_delivered"`
	TotalFailed    int            `json:"total_failed"`
}
