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

const broadcastColumns = `
	id, title, content, audience, status, confirm_token,
	targeted_count, sent_count, failed_count, created_by,
	created_at, updated_at, prepared_at, sent_at`

// BroadcastRepositoryImpl implements the BroadcastRepository interface
type BroadcastRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewBroadcastRepository creates a new BroadcastRepository
func NewBroadcastRepository(db *pgxpool.Pool) domain.BroadcastRepository {
	return &BroadcastRepositoryImpl{db: db}
}

func scanBroadcast(row pgx.Row) (*domain.Broadcast, error) {
	b := &domain.Broadcast{}
	err := row.Scan(
		&b.ID, &b.Title, &b.Content, &b.Audience, &b.Status, &b.ConfirmToken,
		&b.TargetedCount, &b.SentCount, &b.FailedCount, &b.CreatedBy,
		&b.CreatedAt, &b.UpdatedAt, &b.PreparedAt, &b.SentAt,
	)
	return b, err
}

// Create inserts a draft broadcast
func (r *BroadcastRepositoryImpl) Create(ctx context.Context, b *domain.Broadcast) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO broadcasts (id, title, content, audience, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, b.ID, b.Title, b.Content, b.Audience, b.Status, b.CreatedBy, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save broadcast: %w", err)
	}
	return nil
}

// GetByID retrieves a broadcast
func (r *BroadcastRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Broadcast, error) {
	b, err := scanBroadcast(r.db.QueryRow(ctx, `SELECT `+broadcastColumns+` FROM broadcasts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("broadcast", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get broadcast: %w", err)
	}
	return b, nil
}

// List retrieves broadcasts newest first
func (r *BroadcastRepositoryImpl) List(ctx context.Context, status string, limit, offset int) ([]*domain.Broadcast, error) {
	query := `SELECT ` + broadcastColumns + ` FROM broadcasts`
	var args []interface{}
	if status != "" {
		args = append(args, status)
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC`
	query, args = paginate(query, args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query broadcasts: %w", err)
	}
	defer rows.Close()

	var broadcasts []*domain.Broadcast
	for rows.Next() {
		b, err := scanBroadcast(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		broadcasts = append(broadcasts, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating broadcasts: %w", err)
	}

	return broadcasts, nil
}

// Update rewrites an editable broadcast and returns it to draft
func (r *BroadcastRepositoryImpl) Update(ctx context.Context, b *domain.Broadcast) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE broadcasts
		SET title = $2, content = $3, audience = $4, status = 'draft',
		    confirm_token = '', targeted_count = 0, prepared_at = NULL, updated_at = $5
		WHERE id = $1 AND status IN ('draft', 'prepared')
	`, b.ID, b.Title, b.Content, b.Audience, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindConflict, "broadcast can no longer be edited")
	}
	return nil
}

// Delete removes an unsent broadcast
func (r *BroadcastRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM broadcasts WHERE id = $1 AND status IN ('draft', 'prepared')`, id)
	if err != nil {
		return fmt.Errorf("failed to delete broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindConflict, "broadcast can no longer be deleted")
	}
	return nil
}

// MarkPrepared stores a fresh token; a previous token stops matching
func (r *BroadcastRepositoryImpl) MarkPrepared(ctx context.Context, id uuid.UUID, token string, targeted int, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE broadcasts
		SET status = 'prepared', confirm_token = $2, targeted_count = $3, prepared_at = $4, updated_at = $4
		WHERE id = $1 AND status IN ('draft', 'prepared')
	`, id, token, targeted, at)
	if err != nil {
		return fmt.Errorf("failed to prepare broadcast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewError(domain.KindConflict, "broadcast can no longer be prepared")
	}
	return nil
}

// ClaimSend moves prepared to sending for the holder of the current token
func (r *BroadcastRepositoryImpl) ClaimSend(ctx context.Context, id uuid.UUID, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE broadcasts SET status = 'sending', updated_at = NOW()
		WHERE id = $1 AND status = 'prepared' AND confirm_token = $2
	`, id, token)
	if err != nil {
		return false, fmt.Errorf("failed to claim broadcast: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseSend returns a claimed broadcast to prepared
func (r *BroadcastRepositoryImpl) ReleaseSend(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `
		UPDATE broadcasts SET status = 'prepared', updated_at = NOW()
		WHERE id = $1 AND status = 'sending'
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release broadcast: %w", err)
	}
	return nil
}

// Complete stores the final status and tallies
func (r *BroadcastRepositoryImpl) Complete(ctx context.Context, id uuid.UUID, status string, report *domain.DeliveryReport, at time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE broadcasts
		SET status = $2, targeted_count = $3, sent_count = $4, failed_count = $5, sent_at = $6, updated_at = $6
		WHERE id = $1 AND status = 'sending'
	`, id, status, report.Targeted, report.Delivered, report.Failed, at)
	if err != nil {
		return fmt.Errorf("failed to complete broadcast: %w", err)
	}
	return nil
}

// Stats counts broadcasts by status and totals deliveries
func (r *BroadcastRepositoryImpl) Stats(ctx context.Context) (*domain.BroadcastStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(sent_count), 0), COALESCE(SUM(failed_count), 0)
		FROM broadcasts
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query broadcast stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.BroadcastStats{ByStatus: map[string]int{}}
	for rows.Next() {
		var status string
		var count, delivered, failed int
		if err := rows.Scan(&status, &count, &delivered, &failed); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast stats: %w", err)
		}
		stats.ByStatus[status] = count
		stats.Total += count
		stats.TotalDelivered += delivered
		stats.TotalFailed += failed
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating broadcast stats: %w", err)
	}

	return stats, nil
}
