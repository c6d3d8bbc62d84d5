package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"signalhub/internal/domain"
)

// SignalCounterRepository persists the per-day count of accepted futures signals
type SignalCounterRepository struct {
	db *pgxpool.Pool
}

// NewSignalCounterRepository creates a new SignalCounter
func NewSignalCounterRepository(db *pgxpool.Pool) domain.SignalCounter {
	return &SignalCounterRepository{db: db}
}

// TryIncrement reserves a slot for day when the counter is below limit.
// The conditional upsert keeps the check and the increment in one statement.
func (r *SignalCounterRepository) TryIncrement(ctx context.Context, day string, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}

	var count int
	err := r.db.QueryRow(ctx, `
		INSERT INTO daily_signal_counters (day, count)
		VALUES ($1::date, 1)
		ON CONFLICT (day) DO UPDATE
			SET count = daily_signal_counters.count + 1
			WHERE daily_signal_counters.count < $2
		RETURNING count
	`, day, limit).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to increment daily counter: %w", err)
	}
	return true, nil
}

// Release gives back one slot
func (r *SignalCounterRepository) Release(ctx context.Context, day string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE daily_signal_counters SET count = count - 1
		WHERE day = $1::date AND count > 0
	`, day)
	if err != nil {
		return fmt.Errorf("failed to release daily counter: %w", err)
	}
	return nil
}

// Count returns the accepted signals for day
func (r *SignalCounterRepository) Count(ctx context.Context, day string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE((SELECT count FROM daily_signal_counters WHERE day = $1::date), 0)
	`, day).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to read daily counter: %w", err)
	}
	return count, nil
}
