package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"signalhub/internal/domain"
)

const spotColumns = `
	id, symbol, side, entry_min, entry_max,
	target_1, target_2, target_3, target_4, target_5,
	stop_loss, support, resistance, status, notes, delivered_count,
	created_by, created_at, updated_at, sent_at`

const futuresColumns = `
	id, symbol, side, entry_price, leverage, position_value,
	target_1, target_2, target_3, target_4, target_5,
	stop_loss, status, notes, trader_external_id, trader_name, trader_profile_url,
	COALESCE(source_ref, ''), delivered_count, created_by, created_at, updated_at, sent_at`

// SignalRepositoryImpl implements the SignalRepository interface over the
// spot_signals and futures_signals tables
type SignalRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewSignalRepository creates a new SignalRepository
func NewSignalRepository(db *pgxpool.Pool) domain.SignalRepository {
	return &SignalRepositoryImpl{db: db}
}

func signalTable(kind domain.SignalKind) (string, string, error) {
	switch kind {
	case domain.SignalKindSpot:
		return "spot_signals", spotColumns, nil
	case domain.SignalKindFutures:
		return "futures_signals", futuresColumns, nil
	}
	return "", "", domain.NewError(domain.KindValidation, "unknown signal kind %q", kind).WithField("kind")
}

// targetColumns spreads targets over the five target columns
func targetColumns(targets []decimal.Decimal) [domain.MaxTargets]decimal.NullDecimal {
	var out [domain.MaxTargets]decimal.NullDecimal
	for i, t := range targets {
		if i >= domain.MaxTargets {
			break
		}
		out[i] = decimal.NullDecimal{Decimal: t, Valid: true}
	}
	return out
}

func collectTargets(cols [domain.MaxTargets]decimal.NullDecimal) []decimal.Decimal {
	targets := make([]decimal.Decimal, 0, domain.MaxTargets)
	for _, c := range cols {
		if !c.Valid {
			break
		}
		targets = append(targets, c.Decimal)
	}
	return targets
}

func nullable(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func fromNullable(n decimal.NullDecimal) *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	d := n.Decimal
	return &d
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create inserts a signal into the table of its kind
func (r *SignalRepositoryImpl) Create(ctx context.Context, signal *domain.Signal) (bool, error) {
	t := targetColumns(signal.Targets)

	switch signal.Kind {
	case domain.SignalKindSpot:
		_, err := r.db.Exec(ctx, `
			INSERT INTO spot_signals (
				id, symbol, side, entry_min, entry_max,
				target_1, target_2, target_3, target_4, target_5,
				stop_loss, support, resistance, status, notes,
				created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		`,
			signal.ID, signal.Symbol, signal.Side,
			nullable(signal.Spot.EntryMin), nullable(signal.Spot.EntryMax),
			t[0], t[1], t[2], t[3], t[4],
			signal.StopLoss, nullable(signal.Spot.Support), nullable(signal.Spot.Resistance),
			signal.Status, signal.Notes, signal.CreatedBy, signal.CreatedAt, signal.UpdatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("failed to save spot signal: %w", err)
		}
		return true, nil

	case domain.SignalKindFutures:
		f := signal.Futures
		tag, err := r.db.Exec(ctx, `
			INSERT INTO futures_signals (
				id, symbol, side, entry_price, leverage, position_value,
				target_1, target_2, target_3, target_4, target_5,
				stop_loss, status, notes, trader_external_id, trader_name, trader_profile_url,
				source_ref, created_by, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			ON CONFLICT (source_ref) DO NOTHING
		`,
			signal.ID, signal.Symbol, signal.Side, f.EntryPrice, f.Leverage, f.PositionValue,
			t[0], t[1], t[2], t[3], t[4],
			signal.StopLoss, signal.Status, signal.Notes,
			f.TraderExternalID, f.TraderName, f.TraderProfileURL,
			nullString(f.SourceRef), signal.CreatedBy, signal.CreatedAt, signal.UpdatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("failed to save futures signal: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	}

	return false, domain.NewError(domain.KindValidation, "unknown signal kind %q", signal.Kind).WithField("kind")
}

func scanSignal(kind domain.SignalKind, row pgx.Row) (*domain.Signal, error) {
	s := &domain.Signal{Kind: kind}
	var t [domain.MaxTargets]decimal.NullDecimal

	switch kind {
	case domain.SignalKindSpot:
		var entryMin, entryMax, support, resistance decimal.NullDecimal
		err := row.Scan(
			&s.ID, &s.Symbol, &s.Side, &entryMin, &entryMax,
			&t[0], &t[1], &t[2], &t[3], &t[4],
			&s.StopLoss, &support, &resistance, &s.Status, &s.Notes, &s.DeliveredCount,
			&s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.SentAt,
		)
		if err != nil {
			return nil, err
		}
		s.Spot = &domain.SpotDetails{
			EntryMin:   fromNullable(entryMin),
			EntryMax:   fromNullable(entryMax),
			Support:    fromNullable(support),
			Resistance: fromNullable(resistance),
		}
	default:
		f := &domain.FuturesDetails{}
		err := row.Scan(
			&s.ID, &s.Symbol, &s.Side, &f.EntryPrice, &f.Leverage, &f.PositionValue,
			&t[0], &t[1], &t[2], &t[3], &t[4],
			&s.StopLoss, &s.Status, &s.Notes, &f.TraderExternalID, &f.TraderName, &f.TraderProfileURL,
			&f.SourceRef, &s.DeliveredCount, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt, &s.SentAt,
		)
		if err != nil {
			return nil, err
		}
		s.Futures = f
	}

	s.Targets = collectTargets(t)
	return s, nil
}

// GetByID retrieves a signal by its ID
func (r *SignalRepositoryImpl) GetByID(ctx context.Context, kind domain.SignalKind, id uuid.UUID) (*domain.Signal, error) {
	table, cols, err := signalTable(kind)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, cols, table), id)
	signal, err := scanSignal(kind, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("signal", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return signal, nil
}

// List retrieves signals newest first
func (r *SignalRepositoryImpl) List(ctx context.Context, kind domain.SignalKind, filter domain.SignalFilter) ([]*domain.Signal, error) {
	table, cols, err := signalTable(kind)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []interface{}
	)
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Symbol != "" {
		args = append(args, strings.ToUpper(filter.Symbol))
		where = append(where, fmt.Sprintf("symbol = $%d", len(args)))
	}
	if filter.TraderExternalID != "" && kind == domain.SignalKindFutures {
		args = append(args, filter.TraderExternalID)
		where = append(where, fmt.Sprintf("trader_external_id = $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s`, cols, table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.Signal
	for rows.Next() {
		signal, err := scanSignal(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}

// Update rewrites the price fields of an active signal
func (r *SignalRepositoryImpl) Update(ctx context.Context, signal *domain.Signal) error {
	t := targetColumns(signal.Targets)

	var (
		query string
		args  []interface{}
	)
	switch signal.Kind {
	case domain.SignalKindSpot:
		query = `
			UPDATE spot_signals
			SET entry_min = $2, entry_max = $3,
			    target_1 = $4, target_2 = $5, target_3 = $6, target_4 = $7, target_5 = $8,
			    stop_loss = $9, support = $10, resistance = $11, notes = $12, updated_at = $13
			WHERE id = $1 AND status = 'active'
		`
		args = []interface{}{
			signal.ID, nullable(signal.Spot.EntryMin), nullable(signal.Spot.EntryMax),
			t[0], t[1], t[2], t[3], t[4],
			signal.StopLoss, nullable(signal.Spot.Support), nullable(signal.Spot.Resistance),
			signal.Notes, signal.UpdatedAt,
		}
	case domain.SignalKindFutures:
		query = `
			UPDATE futures_signals
			SET entry_price = $2, leverage = $3, position_value = $4,
			    target_1 = $5, target_2 = $6, target_3 = $7, target_4 = $8, target_5 = $9,
			    stop_loss = $10, notes = $11, updated_at = $12
			WHERE id = $1 AND status = 'active'
		`
		args = []interface{}{
			signal.ID, signal.Futures.EntryPrice, signal.Futures.Leverage, signal.Futures.PositionValue,
			t[0], t[1], t[2], t[3], t[4],
			signal.StopLoss, signal.Notes, signal.UpdatedAt,
		}
	default:
		return domain.NewError(domain.KindValidation, "unknown signal kind %q", signal.Kind).WithField("kind")
	}

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update signal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.notActive(ctx, signal.Kind, signal.ID)
	}
	return nil
}

// UpdateStatus moves an active signal to a terminal status
func (r *SignalRepositoryImpl) UpdateStatus(ctx context.Context, kind domain.SignalKind, id uuid.UUID, status string) error {
	table, _, err := signalTable(kind)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'active'
	`, table), id, status)
	if err != nil {
		return fmt.Errorf("failed to update signal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.notActive(ctx, kind, id)
	}
	return nil
}

// notActive explains why a guarded update touched no row
func (r *SignalRepositoryImpl) notActive(ctx context.Context, kind domain.SignalKind, id uuid.UUID) error {
	current, err := r.GetByID(ctx, kind, id)
	if err != nil {
		return err
	}
	return domain.NewError(domain.KindInvalidTransition, "signal is %s; only active signals can change", current.Status).
		WithDetail("from", current.Status)
}

// ClaimSend stamps sent_at once, only while the signal is active
func (r *SignalRepositoryImpl) ClaimSend(ctx context.Context, kind domain.SignalKind, id uuid.UUID, at time.Time) (bool, error) {
	table, _, err := signalTable(kind)
	if err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx, fmt.Sprintf(`
		UPDATE %s SET sent_at = $2 WHERE id = $1 AND sent_at IS NULL AND status = 'active'
	`, table), id, at)
	if err != nil {
		return false, fmt.Errorf("failed to claim signal send: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	current, err := r.GetByID(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if current.Status != domain.SignalStatusActive {
		return false, domain.NewError(domain.KindInvalidTransition, "signal is %s; only active signals can be sent", current.Status).
			WithDetail("from", current.Status)
	}
	return false, nil
}

// ReleaseSend clears sent_at so the signal can be sent again
func (r *SignalRepositoryImpl) ReleaseSend(ctx context.Context, kind domain.SignalKind, id uuid.UUID) error {
	table, _, err := signalTable(kind)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET sent_at = NULL WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("failed to release signal send: %w", err)
	}
	return nil
}

// RecordDelivery stores the delivered count
func (r *SignalRepositoryImpl) RecordDelivery(ctx context.Context, kind domain.SignalKind, id uuid.UUID, delivered int) error {
	table, _, err := signalTable(kind)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, fmt.Sprintf(`UPDATE %s SET delivered_count = $2 WHERE id = $1`, table), id, delivered)
	if err != nil {
		return fmt.Errorf("failed to record signal delivery: %w", err)
	}
	return nil
}

// ExistsBySourceRef reports whether a position was already turned into a signal
func (r *SignalRepositoryImpl) ExistsBySourceRef(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM futures_signals WHERE source_ref = $1)
	`, ref).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check source ref: %w", err)
	}
	return exists, nil
}

// ReleaseClosedPositions suffixes the source refs of closed positions
func (r *SignalRepositoryImpl) ReleaseClosedPositions(ctx context.Context, traderExternalID string, openRefs []string, at time.Time) (int, error) {
	if openRefs == nil {
		openRefs = []string{}
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE futures_signals
		SET source_ref = source_ref || '|closed:' || $3::text, updated_at = NOW()
		WHERE trader_external_id = $1
		  AND source_ref IS NOT NULL
		  AND source_ref NOT LIKE '%|closed:%'
		  AND NOT (source_ref = ANY($2::text[]))
	`, traderExternalID, openRefs, at.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to release closed positions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Stats counts signals by status
func (r *SignalRepositoryImpl) Stats(ctx context.Context, kind domain.SignalKind) (*domain.SignalStats, error) {
	table, _, err := signalTable(kind)
	if err != nil {
		return nil, err
	}

	stats := &domain.SignalStats{}
	err = r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'active'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'cancelled'),
			COUNT(*) FILTER (WHERE sent_at IS NOT NULL)
		FROM %s
	`, table)).Scan(&stats.Total, &stats.Active, &stats.Completed, &stats.Cancelled, &stats.Sent)
	if err != nil {
		return nil, fmt.Errorf("failed to get signal stats: %w", err)
	}
	return stats, nil
}
