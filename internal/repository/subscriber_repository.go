package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"signalhub/internal/domain"
)

const subscriberColumns = `
	user_id, COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''),
	tier, is_active, joined_at, last_activity_at`

// SubscriberRepositoryImpl implements the SubscriberRepository interface
type SubscriberRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewSubscriberRepository creates a new SubscriberRepository
func NewSubscriberRepository(db *pgxpool.Pool) domain.SubscriberRepository {
	return &SubscriberRepositoryImpl{db: db}
}

func scanSubscriber(row pgx.Row) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := row.Scan(&s.UserID, &s.Username, &s.FirstName, &s.LastName,
		&s.Tier, &s.IsActive, &s.JoinedAt, &s.LastActivityAt)
	return s, err
}

// audienceClause restricts a query to active subscribers of an audience
func audienceClause(audience string) (string, []interface{}, error) {
	if !domain.ValidAudience(audience) {
		return "", nil, domain.NewError(domain.KindValidation, "unknown audience %q", audience).WithField("audience")
	}
	if audience == domain.AudienceAll {
		return "is_active", nil, nil
	}
	return "is_active AND tier = $1", []interface{}{audience}, nil
}

// Upsert registers or refreshes a subscriber. The tier of a known subscriber is kept.
func (r *SubscriberRepositoryImpl) Upsert(ctx context.Context, subscriber *domain.Subscriber) (*domain.Subscriber, error) {
	row := r.db.QueryRow(ctx, `
		INSERT INTO subscribers (user_id, username, first_name, last_name, tier, is_active, joined_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_active = EXCLUDED.is_active,
			last_activity_at = EXCLUDED.last_activity_at
		RETURNING `+subscriberColumns,
		subscriber.UserID, subscriber.Username, subscriber.FirstName, subscriber.LastName,
		subscriber.Tier, subscriber.IsActive, subscriber.JoinedAt, subscriber.LastActivityAt,
	)

	stored, err := scanSubscriber(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subscriber: %w", err)
	}
	return stored, nil
}

// GetByUserID retrieves a subscriber
func (r *SubscriberRepositoryImpl) GetByUserID(ctx context.Context, userID int64) (*domain.Subscriber, error) {
	s, err := scanSubscriber(r.db.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("subscriber", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}
	return s, nil
}

// List retrieves subscribers, most recently active first
func (r *SubscriberRepositoryImpl) List(ctx context.Context, filter domain.SubscriberFilter) ([]*domain.Subscriber, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Tier != "" {
		args = append(args, filter.Tier)
		where = append(where, fmt.Sprintf("tier = $%d", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}

	query := `SELECT ` + subscriberColumns + ` FROM subscribers`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY last_activity_at DESC"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var subscribers []*domain.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		subscribers = append(subscribers, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscribers: %w", err)
	}

	return subscribers, nil
}

// ListActiveIDs returns the ids an audience resolves to
func (r *SubscriberRepositoryImpl) ListActiveIDs(ctx context.Context, audience string) ([]int64, error) {
	clause, args, err := audienceClause(audience)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT user_id FROM subscribers WHERE `+clause+` ORDER BY user_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audience: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to collect audience: %w", err)
	}
	return ids, nil
}

// CountActive counts the subscribers an audience resolves to
func (r *SubscriberRepositoryImpl) CountActive(ctx context.Context, audience string) (int, error) {
	clause, args, err := audienceClause(audience)
	if err != nil {
		return 0, err
	}

	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM subscribers WHERE `+clause, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count audience: %w", err)
	}
	return count, nil
}

// Update changes tier and active flag
func (r *SubscriberRepositoryImpl) Update(ctx context.Context, userID int64, tier string, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE subscribers SET tier = $2, is_active = $3 WHERE user_id = $1`, userID, tier, active)
	if err != nil {
		return fmt.Errorf("failed to update subscriber: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("subscriber", userID)
	}
	return nil
}

// SetActive toggles the active flag
func (r *SubscriberRepositoryImpl) SetActive(ctx context.Context, userID int64, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE subscribers SET is_active = $2 WHERE user_id = $1`, userID, active)
	if err != nil {
		return fmt.Errorf("failed to set subscriber active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("subscriber", userID)
	}
	return nil
}

// Stats counts subscribers by tier
func (r *SubscriberRepositoryImpl) Stats(ctx context.Context) (*domain.SubscriberStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT tier, COUNT(*), COUNT(*) FILTER (WHERE is_active)
		FROM subscribers
		GROUP BY tier
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriber stats: %w", err)
	}
	defer rows.Close()

	stats := &domain.SubscriberStats{ByTier: map[string]int{
		domain.TierFree: 0, domain.TierPro: 0, domain.TierElite: 0,
	}}
	for rows.Next() {
		var (
			tier          string
			total, active int
		)
		if err := rows.Scan(&tier, &total, &active); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber stats: %w", err)
		}
		stats.ByTier[tier] = total
		stats.Total += total
		stats.Active += active
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriber stats: %w", err)
	}

	return stats, nil
}
