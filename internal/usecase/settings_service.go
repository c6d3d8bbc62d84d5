package usecase

import (
	"context"
	"fmt"
	"time"

	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// SettingsService reads and updates the futures settings store.
type SettingsService struct {
	repo   domain.SettingsRepository
	audit  *AuditService
	logger *logger.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo domain.SettingsRepository, audit *AuditService, log *logger.Logger) *SettingsService {
	return &SettingsService{repo: repo, audit: audit, logger: log}
}

// Get returns the typed settings with defaults applied for missing keys.
func (s *SettingsService) Get(ctx context.Context) (*domain.FuturesSettings, error) {
	values, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load futures settings: %w", err)
	}
	return domain.ParseFuturesSettings(values)
}

// Update merges changes over the stored values, validates the result and
// persists only the keys that changed. Unknown keys are rejected.
func (s *SettingsService) Update(ctx context.Context, actor domain.Actor, changes map[string]string) (*domain.FuturesSettings, error) {
	current, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load futures settings: %w", err)
	}

	merged := make(map[string]string, len(current)+len(changes))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range changes {
		if !knownSettingKey(k) {
			return nil, domain.NewError(domain.KindValidation, "unknown setting %q", k).WithField(k)
		}
		merged[k] = v
	}

	settings, err := domain.ParseFuturesSettings(merged)
	if err != nil {
		return nil, err
	}

	oldValues := map[string]interface{}{}
	newValues := map[string]interface{}{}
	changed := map[string]string{}
	for k, v := range settings.Values() {
		prev, ok := current[k]
		if !ok {
			prev = domain.DefaultFuturesSettingValues[k]
		}
		if prev == v {
			continue
		}
		changed[k] = v
		oldValues[k] = prev
		newValues[k] = v
	}
	if len(changed) == 0 {
		return settings, nil
	}

	if err := s.repo.SetMany(ctx, changed); err != nil {
		return nil, fmt.Errorf("failed to save futures settings: %w", err)
	}

	s.audit.Record(ctx, actor, domain.AuditSettingsUpdated, "futures_settings", "futures", oldValues, newValues)
	s.logger.Info("Futures settings updated", logger.Int("changed", len(changed)))
	return settings, nil
}

// LastLeaderboardSync returns when the leaderboard was last refreshed.
func (s *SettingsService) LastLeaderboardSync(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.repo.Get(ctx, domain.SettingLastLeaderboardSync)
	if err != nil || !ok || raw == "" {
		return time.Time{}, false, err
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return at, true, nil
}

// MarkLeaderboardSync stores the refresh time.
func (s *SettingsService) MarkLeaderboardSync(ctx context.Context, at time.Time) error {
	return s.repo.Set(ctx, domain.SettingLastLeaderboardSync, at.UTC().Format(time.RFC3339))
}

func knownSettingKey(key string) bool {
	if _, ok := domain.DefaultFuturesSettingValues[key]; ok {
		return true
	}
	for n := 1; n <= domain.MaxTargets; n++ {
		if key == domain.TargetPercentKey(n) {
			return true
		}
	}
	return false
}
