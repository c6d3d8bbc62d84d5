package dto

import (
	"strings"

	"github.com/shopspring/decimal"

	"signalhub/internal/usecase"
)

// SpotSignalRequest is the body of spot signal create and update
type SpotSignalRequest struct {
	Symbol     string            `json:"symbol" validate:"required,max=32"`
	Side       string            `json:"side" default:"long" validate:"oneof=long short LONG SHORT"`
	EntryMin   *decimal.Decimal  `json:"entry_min"`
	EntryMax   *decimal.Decimal  `json:"entry_max"`
	Support    *decimal.Decimal  `json:"support"`
	Resistance *decimal.Decimal  `json:"resistance"`
	Targets    []decimal.Decimal `json:"targets" validate:"required,min=1,max=5"`
	StopLoss   decimal.Decimal   `json:"stop_loss"`
	Notes      string            `json:"notes" validate:"max=2000"`
}

// ToInput converts the request for the signal service
func (r *SpotSignalRequest) ToInput() usecase.SpotSignalInput {
	return usecase.SpotSignalInput{
		Symbol:     r.Symbol,
		Side:       strings.ToLower(r.Side),
		EntryMin:   r.EntryMin,
		EntryMax:   r.EntryMax,
		Support:    r.Support,
		Resistance: r.Resistance,
		Targets:    r.Targets,
		StopLoss:   r.StopLoss,
		Notes:      r.Notes,
	}
}

// FuturesSignalRequest is the body of futures signal create and update.
// With auto_levels set, targets and stop_loss are computed server side.
type FuturesSignalRequest struct {
	Symbol           string            `json:"symbol" validate:"required,max=32"`
	Side             string            `json:"side" default:"long" validate:"oneof=long short LONG SHORT"`
	EntryPrice       decimal.Decimal   `json:"entry_price"`
	Leverage         int               `json:"leverage" default:"1" validate:"gte=1,lte=125"`
	PositionValue    decimal.Decimal   `json:"position_value"`
	Targets          []decimal.Decimal `json:"targets" validate:"required_without=AutoLevels,max=5"`
	StopLoss         decimal.Decimal   `json:"stop_loss"`
	AutoLevels       bool              `json:"auto_levels"`
	TraderExternalID string            `json:"trader_external_id" validate:"max=128"`
	TraderName       string            `json:"trader_name" validate:"max=128"`
	TraderProfileURL string            `json:"trader_profile_url" validate:"omitempty,url"`
	Notes            string            `json:"notes" validate:"max=2000"`
}

// ToInput converts the request for the signal service
func (r *FuturesSignalRequest) ToInput() usecase.FuturesSignalInput {
	return usecase.FuturesSignalInput{
		Symbol:           r.Symbol,
		Side:             strings.ToLower(r.Side),
		EntryPrice:       r.EntryPrice,
		Leverage:         r.Leverage,
		PositionValue:    r.PositionValue,
		Targets:          r.Targets,
		StopLoss:         r.StopLoss,
		AutoLevels:       r.AutoLevels,
		TraderExternalID: r.TraderExternalID,
		TraderName:       r.TraderName,
		TraderProfileURL: r.TraderProfileURL,
		Notes:            r.Notes,
	}
}

// StatusRequest changes a signal status
type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled"`
}
