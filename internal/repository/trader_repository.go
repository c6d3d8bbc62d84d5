package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"signalhub/internal/domain"
)

const traderColumns = `
	id, external_id, display_name, profile_url, roi, pnl, win_rate,
	is_followed, follow_locked, last_refreshed_at, created_at`

// TraderRepositoryImpl implements the TraderRepository interface
type TraderRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewTraderRepository creates a new TraderRepository
func NewTraderRepository(db *pgxpool.Pool) domain.TraderRepository {
	return &TraderRepositoryImpl{db: db}
}

func scanTrader(row pgx.Row) (*domain.Trader, error) {
	t := &domain.Trader{}
	err := row.Scan(
		&t.ID, &t.ExternalID, &t.DisplayName, &t.ProfileURL, &t.ROI, &t.PnL, &t.WinRate,
		&t.IsFollowed, &t.FollowLocked, &t.LastRefreshed, &t.CreatedAt,
	)
	return t, err
}

// UpsertSnapshots inserts new traders and refreshes the figures of known ones.
// Follow flags are left untouched.
func (r *TraderRepositoryImpl) UpsertSnapshots(ctx context.Context, snapshots []domain.TraderSnapshot, at time.Time) error {
	if len(snapshots) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(`
			INSERT INTO futures_traders (
				id, external_id, display_name, profile_url, roi, pnl, win_rate,
				last_refreshed_at, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
			ON CONFLICT (external_id) DO UPDATE SET
				display_name = EXCLUDED.display_name,
				profile_url = EXCLUDED.profile_url,
				roi = EXCLUDED.roi,
				pnl = EXCLUDED.pnl,
				win_rate = EXCLUDED.win_rate,
				last_refreshed_at = EXCLUDED.last_refreshed_at
		`, uuid.New(), s.ExternalID, s.DisplayName, s.ProfileURL, s.ROI, s.PnL, s.WinRate, at)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert traders: %w", err)
	}
	return nil
}

// GetByID retrieves a trader by ID
func (r *TraderRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Trader, error) {
	t, err := scanTrader(r.db.QueryRow(ctx, `SELECT `+traderColumns+` FROM futures_traders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("trader", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trader: %w", err)
	}
	return t, nil
}

// GetByExternalID retrieves a trader by leaderboard id
func (r *TraderRepositoryImpl) GetByExternalID(ctx context.Context, externalID string) (*domain.Trader, error) {
	t, err := scanTrader(r.db.QueryRow(ctx, `SELECT `+traderColumns+` FROM futures_traders WHERE external_id = $1`, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("trader", externalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trader: %w", err)
	}
	return t, nil
}

// List retrieves traders ordered by the requested criterion
func (r *TraderRepositoryImpl) List(ctx context.Context, filter domain.TraderFilter) ([]*domain.Trader, error) {
	query := `SELECT ` + traderColumns + ` FROM futures_traders`
	if filter.FollowedOnly {
		query += ` WHERE is_followed`
	}

	switch filter.OrderBy {
	case domain.RankByPnL:
		query += ` ORDER BY pnl DESC, external_id`
	default:
		query += ` ORDER BY roi DESC, external_id`
	}

	query, args := paginate(query, nil, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query traders: %w", err)
	}
	defer rows.Close()

	var traders []*domain.Trader
	for rows.Next() {
		t, err := scanTrader(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trader: %w", err)
		}
		traders = append(traders, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating traders: %w", err)
	}

	return traders, nil
}

// SetFollowed changes the followed flag and the operator lock
func (r *TraderRepositoryImpl) SetFollowed(ctx context.Context, id uuid.UUID, followed, locked bool) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE futures_traders SET is_followed = $2, follow_locked = $3 WHERE id = $1
	`, id, followed, locked)
	if err != nil {
		return fmt.Errorf("failed to set trader follow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("trader", id)
	}
	return nil
}

// ApplyPolicyFollows follows exactly the given traders among the unlocked ones
func (r *TraderRepositoryImpl) ApplyPolicyFollows(ctx context.Context, followedExternalIDs []string) (int, error) {
	if followedExternalIDs == nil {
		followedExternalIDs = []string{}
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE futures_traders
		SET is_followed = (external_id = ANY($1))
		WHERE NOT follow_locked AND is_followed <> (external_id = ANY($1))
	`, followedExternalIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to apply follow policy: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ReleaseLock clears the operator override
func (r *TraderRepositoryImpl) ReleaseLock(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE futures_traders SET follow_locked = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to release trader lock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("trader", id)
	}
	return nil
}
