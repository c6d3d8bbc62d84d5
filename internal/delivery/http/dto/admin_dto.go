package dto

// SubscriberUpdateRequest changes a subscriber's tier or active flag
type SubscriberUpdateRequest struct {
	Tier     *string `json:"tier" validate:"omitempty,oneof=free pro elite"`
	IsActive *bool   `json:"is_active"`
}

// IntegrationRequest stores provider credentials
type IntegrationRequest struct {
	APIKey    string `json:"api_key" validate:"required"`
	SecretKey string `json:"secret_key"`
	IsActive  *bool  `json:"is_active"`
}
