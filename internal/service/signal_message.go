package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
)

// EmptyValue is rendered for optional signal fields that are not set.
const EmptyValue = "-"

// SignalVariables returns every variable documented for the signal's template
// type. Optional values that are absent render as EmptyValue, so a template
// written against the documented set never fails on an optional field.
func SignalVariables(s *domain.Signal, settings *domain.FuturesSettings, loc *time.Location) map[string]string {
	if loc == nil {
		loc = time.UTC
	}
	precision := int32(2)
	if settings != nil {
		precision = settings.PricePrecision
	}
	price := func(v decimal.Decimal) string { return v.StringFixed(precision) }
	optional := func(v *decimal.Decimal) string {
		if v == nil {
			return EmptyValue
		}
		return price(*v)
	}

	vars := map[string]string{
		"symbol":     s.Symbol,
		"side":       strings.ToUpper(s.Side),
		"stop_loss":  price(s.StopLoss),
		"notes":      EmptyValue,
		"created_at": s.CreatedAt.In(loc).Format("2006-01-02 15:04 MST"),
	}
	if s.Notes != "" {
		vars["notes"] = s.Notes
	}
	for n := 1; n <= domain.MaxTargets; n++ {
		key := "target_" + strconv.Itoa(n)
		vars[key] = EmptyValue
		if n <= len(s.Targets) {
			vars[key] = price(s.Targets[n-1])
		}
	}

	entry, ok := s.Entry()
	vars["entry"] = "Market"
	if ok {
		vars["entry"] = price(entry)
	}

	switch s.Kind {
	case domain.SignalKindSpot:
		spot := s.Spot
		if spot == nil {
			spot = &domain.SpotDetails{}
		}
		vars["entry_min"] = optional(spot.EntryMin)
		vars["entry_max"] = optional(spot.EntryMax)
		vars["support"] = optional(spot.Support)
		vars["resistance"] = optional(spot.Resistance)
	case domain.SignalKindFutures:
		f := s.Futures
		if f == nil {
			f = &domain.FuturesDetails{}
		}
		vars["leverage"] = strconv.Itoa(f.Leverage) + "x"
		vars["position_value"] = f.PositionValue.StringFixed(2)
		vars["trader_name"] = orEmpty(f.TraderName)
		vars["trader_profile_url"] = orEmpty(f.TraderProfileURL)
		vars["risk_disclaimer"] = EmptyValue
		if settings != nil && settings.RiskDisclaimer != "" {
			vars["risk_disclaimer"] = settings.RiskDisclaimer
		}
	}
	return vars
}

// BroadcastVariables are the variables a broadcast template can use.
func BroadcastVariables(b *domain.Broadcast, now time.Time) map[string]string {
	return map[string]string{
		"title":   b.Title,
		"content": b.Content,
		"date":    now.Format("2006-01-02"),
	}
}

func orEmpty(s string) string {
	if s == "" {
		return EmptyValue
	}
	return s
}
