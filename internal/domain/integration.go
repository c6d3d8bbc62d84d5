package domain

import "time"

// Integration providers
const (
	ProviderBinance  = "binance"
	ProviderTelegram = "telegram"
)

// Integration holds a provider credential pair. Secrets are stored encrypted
// and never leave the service in plain text.
type Integration struct {
	Provider   string     `json:"provider"`
	APIKey     string     `json:"-"`
	SecretKey  string     `json:"-"`
	IsActive   bool       `json:"is_active"`
	LastTested *time.Time `json:"last_tested,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// MaskedKey shows only the last four characters of the API key.
func (i *Integration) MaskedKey() string {
	if len(i.APIKey) <= 4 {
		return "****"
	}
	return "****" + i.APIKey[len(i.APIKey)-4:]
}
