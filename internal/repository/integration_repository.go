package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"signalhub/internal/domain"
)

// IntegrationRepositoryImpl stores sealed provider credentials
type IntegrationRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewIntegrationRepository creates a new IntegrationRepository
func NewIntegrationRepository(db *pgxpool.Pool) domain.IntegrationRepository {
	return &IntegrationRepositoryImpl{db: db}
}

func scanIntegration(row pgx.Row) (*domain.Integration, error) {
	i := &domain.Integration{}
	err := row.Scan(&i.Provider, &i.APIKey, &i.SecretKey, &i.IsActive, &i.LastTested, &i.UpdatedAt)
	return i, err
}

// List retrieves every integration
func (r *IntegrationRepositoryImpl) List(ctx context.Context) ([]*domain.Integration, error) {
	rows, err := r.db.Query(ctx, `
		SELECT provider, api_key, secret_key, is_active, last_tested, updated_at
		FROM integrations
		ORDER BY provider
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer rows.Close()

	var integrations []*domain.Integration
	for rows.Next() {
		i, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		integrations = append(integrations, i)
	}

	return integrations, rows.Err()
}

// Get retrieves one provider's credentials
func (r *IntegrationRepositoryImpl) Get(ctx context.Context, provider string) (*domain.Integration, error) {
	i, err := scanIntegration(r.db.QueryRow(ctx, `
		SELECT provider, api_key, secret_key, is_active, last_tested, updated_at
		FROM integrations
		WHERE provider = $1
	`, provider))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("integration", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	return i, nil
}

// Upsert stores credentials that are already sealed
func (r *IntegrationRepositoryImpl) Upsert(ctx context.Context, i *domain.Integration) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO integrations (provider, api_key, secret_key, is_active, last_tested, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (provider) DO UPDATE SET
			api_key = EXCLUDED.api_key,
			secret_key = EXCLUDED.secret_key,
			is_active = EXCLUDED.is_active,
			last_tested = EXCLUDED.last_tested,
			updated_at = EXCLUDED.updated_at
	`, i.Provider, i.APIKey, i.SecretKey, i.IsActive, i.LastTested, i.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save integration: %w", err)
	}
	return nil
}

// Delete removes a provider's credentials
func (r *IntegrationRepositoryImpl) Delete(ctx context.Context, provider string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM integrations WHERE provider = $1`, provider)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("integration", provider)
	}
	return nil
}
