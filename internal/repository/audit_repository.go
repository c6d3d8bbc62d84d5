package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"signalhub/internal/domain"
)

// AuditRepositoryImpl implements the AuditRepository interface
type AuditRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *pgxpool.Pool) domain.AuditRepository {
	return &AuditRepositoryImpl{db: db}
}

func marshalValues(values map[string]interface{}) ([]byte, error) {
	if values == nil {
		return nil, nil
	}
	return json.Marshal(values)
}

func unmarshalValues(raw []byte) (map[string]interface{}, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var values map[string]interface{}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Insert appends an entry to the audit log
func (r *AuditRepositoryImpl) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	oldValues, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("failed to encode audit old values: %w", err)
	}
	newValues, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("failed to encode audit new values: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO audit_logs (
			actor_id, action, table_name, record_id, old_values, new_values,
			ip_address, user_agent, created_at
		) VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)
		RETURNING id
	`,
		entry.ActorID, entry.Action, entry.TableName, entry.RecordID,
		nullJSON(oldValues), nullJSON(newValues),
		entry.IPAddress, entry.UserAgent, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

func nullJSON(raw []byte) *string {
	if raw == nil {
		return nil
	}
	s := string(raw)
	return &s
}

// List retrieves audit entries newest first
func (r *AuditRepositoryImpl) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Action != "" {
		args = append(args, filter.Action)
		where = append(where, fmt.Sprintf("action = $%d", len(args)))
	}
	if filter.TableName != "" {
		args = append(args, filter.TableName)
		where = append(where, fmt.Sprintf("table_name = $%d", len(args)))
	}
	if filter.RecordID != "" {
		args = append(args, filter.RecordID)
		where = append(where, fmt.Sprintf("record_id = $%d", len(args)))
	}

	query := `
		SELECT id, actor_id, action, table_name, record_id,
		       old_values::text, new_values::text, ip_address, user_agent, created_at
		FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		e := &domain.AuditEntry{}
		var oldRaw, newRaw *string
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.TableName, &e.RecordID,
			&oldRaw, &newRaw, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if oldRaw != nil {
			if e.OldValues, err = unmarshalValues([]byte(*oldRaw)); err != nil {
				return nil, fmt.Errorf("failed to decode audit old values: %w", err)
			}
		}
		if newRaw != nil {
			if e.NewValues, err = unmarshalValues([]byte(*newRaw)); err != nil {
				return nil, fmt.Errorf("failed to decode audit new values: %w", err)
			}
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}

	return entries, nil
}
