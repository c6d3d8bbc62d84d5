package domain

import (
	"time"

	"github.com/google/uuid"
)

// Template types
const (
	TemplateTypeSpot      = "spot"
	TemplateTypeFutures   = "futures"
	TemplateTypeBroadcast = "broadcast"
	TemplateTypeGeneral   = "general"
)

// TemplateTypes lists the accepted template types in display order.
var TemplateTypes = []string{TemplateTypeSpot, TemplateTypeFutures, TemplateTypeBroadcast, TemplateTypeGeneral}

// Template is an operator-authored message with {placeholder} markers.
type Template struct {
	ID         uuid.UUID `json:"id"`
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Content    string    `json:"content"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Default template identifiers used when publishing signals.
const (
	DefaultSpotTemplate    = "spot_signal"
	DefaultFuturesTemplate = "futures_signal"
)

// TemplateVariables documents the variables each template type is rendered with.
var TemplateVariables = map[string][]string{
	TemplateTypeSpot: {
		"symbol", "side", "entry", "entry_min", "entry_max",
		"target_1", "target_2", "target_3", "target_4", "target_5",
		"stop_loss", "support", "resistance", "notes", "created_at",
	},
	TemplateTypeFutures: {
		"symbol", "side", "entry", "leverage", "position_value",
		"target_1", "target_2", "target_3", "target_4", "target_5",
		"stop_loss", "trader_name", "trader_profile_url", "risk_disclaimer", "created_at",
	},
	TemplateTypeBroadcast: {"title", "content", "date"},
	TemplateTypeGeneral:   {"date"},
}

// ValidTemplateType reports whether t is a known template type.
func ValidTemplateType(t string) bool {
	_, ok := TemplateVariables[t]
	return ok
}
