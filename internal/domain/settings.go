package domain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Futures settings keys as stored in futures_settings.
const (
	SettingRankingCriteria       = "ranking_criteria"
	SettingTopN                  = "top_n"
	SettingAutoFollow            = "auto_follow"
	SettingAutoPublish           = "auto_publish"
	SettingUpdateInterval        = "update_interval"
	SettingStopLossPercent       = "stop_loss_percent"
	SettingDefaultPositionValue  = "default_position_value"
	SettingMaxLeverage           = "max_leverage"
	SettingMaxPositionValue      = "max_position_value"
	SettingDailySignalCap        = "daily_signal_cap"
	SettingRiskScoreCeiling      = "risk_score_ceiling"
	SettingPricePrecision        = "price_precision"
	SettingSymbolWhitelist       = "symbol_whitelist"
	SettingSymbolBlacklist       = "symbol_blacklist"
	SettingRiskDisclaimer        = "risk_disclaimer"
	SettingSpotAudience          = "spot_signal_audience"
	SettingFuturesAudience       = "futures_signal_audience"
	SettingSpotTemplate          = "spot_signal_template"
	SettingFuturesTemplate       = "futures_signal_template"
	SettingLastLeaderboardSync   = "leaderboard_last_sync"
	settingTargetPercentTemplate = "target_%d_percent"
)

// TargetPercentKey returns the setting key of the n-th (1-based) target offset.
func TargetPercentKey(n int) string {
	return fmt.Sprintf(settingTargetPercentTemplate, n)
}

// FuturesSettings is the typed view of the futures_settings table.
type FuturesSettings struct {
	RankingCriteria      RankCriterion     `json:"ranking_criteria"`
	TopN                 int               `json:"top_n"`
	AutoFollow           bool              `json:"auto_follow"`
	AutoPublish          bool              `json:"auto_publish"`
	UpdateIntervalMin    int               `json:"update_interval"`
	TargetPercents       []decimal.Decimal `json:"target_percents"`
	StopLossPercent      decimal.Decimal   `json:"stop_loss_percent"`
	DefaultPositionValue decimal.Decimal   `json:"default_position_value"`
	MaxLeverage          int               `json:"max_leverage"`
	MaxPositionValue     decimal.Decimal   `json:"max_position_value"`
	DailySignalCap       int               `json:"daily_signal_cap"`
	RiskScoreCeiling     decimal.Decimal   `json:"risk_score_ceiling"`
	PricePrecision       int32             `json:"price_precision"`
	SymbolWhitelist      []string          `json:"symbol_whitelist"`
	SymbolBlacklist      []string          `json:"symbol_blacklist"`
	RiskDisclaimer       string            `json:"risk_disclaimer"`
	SpotAudience         string            `json:"spot_signal_audience"`
	FuturesAudience      string            `json:"futures_signal_audience"`
	SpotTemplate         string            `json:"spot_signal_template"`
	FuturesTemplate      string            `json:"futures_signal_template"`
}

// DefaultFuturesSettingValues are applied for keys missing from storage.
var DefaultFuturesSettingValues = map[string]string{
	SettingRankingCriteria:      string(RankByROI),
	SettingTopN:                 "10",
	SettingAutoFollow:           "true",
	SettingAutoPublish:          "true",
	SettingUpdateInterval:       "15",
	"target_1_percent":          "0.6",
	"target_2_percent":          "1.2",
	SettingStopLossPercent:      "0.8",
	SettingDefaultPositionValue: "500",
	SettingMaxLeverage:          "10",
	SettingMaxPositionValue:     "1000",
	SettingDailySignalCap:       "20",
	SettingRiskScoreCeiling:     "10",
	SettingPricePrecision:       "2",
	SettingSymbolWhitelist:      "",
	SettingSymbolBlacklist:      "",
	SettingRiskDisclaimer:       "Futures trading involves substantial risk. Trade responsibly.",
	SettingSpotAudience:         AudienceAll,
	SettingFuturesAudience:      AudienceAll,
	SettingSpotTemplate:         DefaultSpotTemplate,
	SettingFuturesTemplate:      DefaultFuturesTemplate,
}

// ParseFuturesSettings builds typed settings from stored key/values, falling
// back to defaults per key, and validates the result.
func ParseFuturesSettings(values map[string]string) (*FuturesSettings, error) {
	get := func(key string) string {
		if v, ok := values[key]; ok {
			return strings.TrimSpace(v)
		}
		return DefaultFuturesSettingValues[key]
	}

	p := settingsParser{}
	s := &FuturesSettings{
		RankingCriteria:      RankCriterion(strings.ToLower(get(SettingRankingCriteria))),
		TopN:                 p.int(SettingTopN, get(SettingTopN)),
		AutoFollow:           p.bool(SettingAutoFollow, get(SettingAutoFollow)),
		AutoPublish:          p.bool(SettingAutoPublish, get(SettingAutoPublish)),
		UpdateIntervalMin:    p.int(SettingUpdateInterval, get(SettingUpdateInterval)),
		StopLossPercent:      p.decimal(SettingStopLossPercent, get(SettingStopLossPercent)),
		DefaultPositionValue: p.decimal(SettingDefaultPositionValue, get(SettingDefaultPositionValue)),
		MaxLeverage:          p.int(SettingMaxLeverage, get(SettingMaxLeverage)),
		MaxPositionValue:     p.decimal(SettingMaxPositionValue, get(SettingMaxPositionValue)),
		DailySignalCap:       p.int(SettingDailySignalCap, get(SettingDailySignalCap)),
		RiskScoreCeiling:     p.decimal(SettingRiskScoreCeiling, get(SettingRiskScoreCeiling)),
		PricePrecision:       int32(p.int(SettingPricePrecision, get(SettingPricePrecision))),
		SymbolWhitelist:      splitSymbols(get(SettingSymbolWhitelist)),
		SymbolBlacklist:      splitSymbols(get(SettingSymbolBlacklist)),
		RiskDisclaimer:       get(SettingRiskDisclaimer),
		SpotAudience:         get(SettingSpotAudience),
		FuturesAudience:      get(SettingFuturesAudience),
		SpotTemplate:         get(SettingSpotTemplate),
		FuturesTemplate:      get(SettingFuturesTemplate),
	}

	// Target offsets are positional; an empty slot ends the sequence.
	for n := 1; n <= MaxTargets; n++ {
		raw := get(TargetPercentKey(n))
		if raw == "" {
			break
		}
		s.TargetPercents = append(s.TargetPercents, p.decimal(TargetPercentKey(n), raw))
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks ranges and cross-field rules.
func (s *FuturesSettings) Validate() error {
	invalid := func(field, format string, args ...interface{}) error {
		return NewError(KindInvalidConfiguration, format, args...).WithField(field)
	}

	if !s.RankingCriteria.Valid() {
		return invalid(SettingRankingCriteria, "ranking_criteria must be roi or pnl")
	}
	if s.TopN < 1 {
		return invalid(SettingTopN, "top_n must be at least 1")
	}
	if s.UpdateIntervalMin < 1 {
		return invalid(SettingUpdateInterval, "update_interval must be at least 1 minute")
	}
	if len(s.TargetPercents) == 0 {
		return invalid(TargetPercentKey(1), "at least one target percent is required")
	}
	for i, pct := range s.TargetPercents {
		if !pct.IsPositive() {
			return invalid(TargetPercentKey(i+1), "target percents must be positive")
		}
		if i > 0 && !pct.GreaterThan(s.TargetPercents[i-1]) {
			return invalid(TargetPercentKey(i+1), "target percents must be strictly ascending")
		}
	}
	if !s.StopLossPercent.IsPositive() {
		return invalid(SettingStopLossPercent, "stop_loss_percent must be positive")
	}
	if s.MaxLeverage < 1 {
		return invalid(SettingMaxLeverage, "max_leverage must be at least 1")
	}
	if !s.MaxPositionValue.IsPositive() {
		return invalid(SettingMaxPositionValue, "max_position_value must be positive")
	}
	if !s.DefaultPositionValue.IsPositive() || s.DefaultPositionValue.GreaterThan(s.MaxPositionValue) {
		return invalid(SettingDefaultPositionValue, "default_position_value must be positive and within max_position_value")
	}
	if s.DailySignalCap < 0 {
		return invalid(SettingDailySignalCap, "daily_signal_cap must not be negative")
	}
	if !s.RiskScoreCeiling.IsPositive() {
		return invalid(SettingRiskScoreCeiling, "risk_score_ceiling must be positive")
	}
	if s.PricePrecision < 0 || s.PricePrecision > 8 {
		return invalid(SettingPricePrecision, "price_precision must be between 0 and 8")
	}
	if !ValidAudience(s.SpotAudience) {
		return invalid(SettingSpotAudience, "unknown audience %q", s.SpotAudience)
	}
	if !ValidAudience(s.FuturesAudience) {
		return invalid(SettingFuturesAudience, "unknown audience %q", s.FuturesAudience)
	}
	if s.SpotTemplate == "" || s.FuturesTemplate == "" {
		return invalid(SettingSpotTemplate, "signal template identifiers are required")
	}
	return nil
}

// Values flattens the settings back into stored key/values.
func (s *FuturesSettings) Values() map[string]string {
	out := map[string]string{
		SettingRankingCriteria:      string(s.RankingCriteria),
		SettingTopN:                 strconv.Itoa(s.TopN),
		SettingAutoFollow:           strconv.FormatBool(s.AutoFollow),
		SettingAutoPublish:          strconv.FormatBool(s.AutoPublish),
		SettingUpdateInterval:       strconv.Itoa(s.UpdateIntervalMin),
		SettingStopLossPercent:      s.StopLossPercent.String(),
		SettingDefaultPositionValue: s.DefaultPositionValue.String(),
		SettingMaxLeverage:          strconv.Itoa(s.MaxLeverage),
		SettingMaxPositionValue:     s.MaxPositionValue.String(),
		SettingDailySignalCap:       strconv.Itoa(s.DailySignalCap),
		SettingRiskScoreCeiling:     s.RiskScoreCeiling.String(),
		SettingPricePrecision:       strconv.Itoa(int(s.PricePrecision)),
		SettingSymbolWhitelist:      strings.Join(s.SymbolWhitelist, ","),
		SettingSymbolBlacklist:      strings.Join(s.SymbolBlacklist, ","),
		SettingRiskDisclaimer:       s.RiskDisclaimer,
		SettingSpotAudience:         s.SpotAudience,
		SettingFuturesAudience:      s.FuturesAudience,
		SettingSpotTemplate:         s.SpotTemplate,
		SettingFuturesTemplate:      s.FuturesTemplate,
	}
	for n := 1; n <= MaxTargets; n++ {
		out[TargetPercentKey(n)] = ""
		if n <= len(s.TargetPercents) {
			out[TargetPercentKey(n)] = s.TargetPercents[n-1].String()
		}
	}
	return out
}

// SymbolAllowed applies the whitelist (when non-empty) and the blacklist.
func (s *FuturesSettings) SymbolAllowed(symbol string) bool {
	symbol = strings.ToUpper(symbol)
	for _, b := range s.SymbolBlacklist {
		if b == symbol {
			return false
		}
	}
	if len(s.SymbolWhitelist) == 0 {
		return true
	}
	for _, w := range s.SymbolWhitelist {
		if w == symbol {
			return true
		}
	}
	return false
}

func splitSymbols(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// settingsParser records the first parse failure.
type settingsParser struct {
	err error
}

func (p *settingsParser) fail(key, raw string) {
	if p.err == nil {
		p.err = NewError(KindInvalidConfiguration, "invalid value %q for %s", raw, key).WithField(key)
	}
}

func (p *settingsParser) int(key, raw string) int {
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw)
	}
	return v
}

func (p *settingsParser) bool(key, raw string) bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw)
	}
	return v
}

func (p *settingsParser) decimal(key, raw string) decimal.Decimal {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(key, raw)
	}
	return v
}
