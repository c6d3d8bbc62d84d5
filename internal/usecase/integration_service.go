package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"signalhub/internal/crypto"
	"signalhub/internal/domain"
	"signalhub/pkg/logger"
)

// IntegrationView is an integration as exposed to operators.
type IntegrationView struct {
	Provider   string     `json:"provider"`
	APIKey     string     `json:"api_key"`
	IsActive   bool       `json:"is_active"`
	LastTested *time.Time `json:"last_tested,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IntegrationService stores provider credentials sealed with the vault.
type IntegrationService struct {
	repo   domain.IntegrationRepository
	vault  *crypto.Vault
	audit  *AuditService
	logger *logger.Logger
	now    func() time.Time
}

// NewIntegrationService creates a new IntegrationService. A nil vault makes
// credential writes fail with INVALID_CONFIGURATION.
func NewIntegrationService(repo domain.IntegrationRepository, vault *crypto.Vault, audit *AuditService, log *logger.Logger) *IntegrationService {
	return &IntegrationService{repo: repo, vault: vault, audit: audit, logger: log, now: time.Now}
}

// List returns every integration with its API key masked.
func (s *IntegrationService) List(ctx context.Context) ([]IntegrationView, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]IntegrationView, 0, len(stored))
	for _, in := range stored {
		view := IntegrationView{
			Provider:   in.Provider,
			APIKey:     "****",
			IsActive:   in.IsActive,
			LastTested: in.LastTested,
			UpdatedAt:  in.UpdatedAt,
		}
		if s.vault != nil {
			if key, err := s.vault.Open(in.APIKey); err == nil {
				view.APIKey = (&domain.Integration{APIKey: key}).MaskedKey()
			}
		}
		out = append(out, view)
	}
	return out, nil
}

// Upsert seals and stores credentials for a provider.
func (s *IntegrationService) Upsert(ctx context.Context, actor domain.Actor, provider, apiKey, secretKey string, active bool) (*IntegrationView, error) {
	provider = strings.ToLower(provider)
	if provider != domain.ProviderBinance && provider != domain.ProviderTelegram {
		return nil, domain.NewError(domain.KindValidation, "unknown provider %q", provider).WithField("provider")
	}
	if apiKey == "" {
		return nil, domain.NewError(domain.KindValidation, "api_key is required").WithField("api_key")
	}
	if s.vault == nil {
		return nil, domain.NewError(domain.KindInvalidConfiguration, "credential encryption key is not configured")
	}

	sealedKey, err := s.vault.Seal(apiKey)
	if err != nil {
		return nil, fmt.Errorf("failed to seal api key: %w", err)
	}
	sealedSecret := ""
	if secretKey != "" {
		if sealedSecret, err = s.vault.Seal(secretKey); err != nil {
			return nil, fmt.Errorf("failed to seal secret key: %w", err)
		}
	}

	in := &domain.Integration{
		Provider:  provider,
		APIKey:    sealedKey,
		SecretKey: sealedSecret,
		IsActive:  active,
		UpdatedAt: s.now(),
	}
	if err := s.repo.Upsert(ctx, in); err != nil {
		return nil, err
	}

	masked := (&domain.Integration{APIKey: apiKey}).MaskedKey()
	s.audit.Record(ctx, actor, domain.AuditIntegrationChanged, "integrations", provider, nil,
		map[string]interface{}{"api_key": masked, "is_active": active})
	return &IntegrationView{Provider: provider, APIKey: masked, IsActive: active, UpdatedAt: in.UpdatedAt}, nil
}

// Delete removes a provider's credentials
func (s *IntegrationService) Delete(ctx context.Context, actor domain.Actor, provider string) error {
	if err := s.repo.Delete(ctx, strings.ToLower(provider)); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, domain.AuditIntegrationChanged, "integrations", provider, nil, map[string]interface{}{"deleted": true})
	return nil
}

// Credentials returns the plain credentials of an active integration.
// ok is false when none are stored.
func (s *IntegrationService) Credentials(ctx context.Context, provider string) (apiKey, secretKey string, ok bool, err error) {
	in, err := s.repo.Get(ctx, provider)
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return "", "", false, nil
		}
		return "", "", false, err
	}
	if !in.IsActive || s.vault == nil {
		return "", "", false, nil
	}

	if apiKey, err = s.vault.Open(in.APIKey); err != nil {
		return "", "", false, fmt.Errorf("failed to open %s api key: %w", provider, err)
	}
	if in.SecretKey != "" {
		if secretKey, err = s.vault.Open(in.SecretKey); err != nil {
			return "", "", false, fmt.Errorf("failed to open %s secret key: %w", provider, err)
		}
	}
	return apiKey, secretKey, true, nil
}
