package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"signalhub/internal/domain"
)

const templateColumns = `id, identifier, name, type, content, is_active, created_at, updated_at`

// TemplateRepositoryImpl implements the TemplateRepository interface
type TemplateRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(db *pgxpool.Pool) domain.TemplateRepository {
	return &TemplateRepositoryImpl{db: db}
}

func scanTemplate(row pgx.Row) (*domain.Template, error) {
	t := &domain.Template{}
	err := row.Scan(&t.ID, &t.Identifier, &t.Name, &t.Type, &t.Content, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// isUniqueViolation reports a unique_violation from postgres
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a template
func (r *TemplateRepositoryImpl) Create(ctx context.Context, t *domain.Template) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO templates (id, identifier, name, type, content, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.Identifier, t.Name, t.Type, t.Content, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.NewError(domain.KindConflict, "template %q already exists", t.Identifier).WithField("identifier")
	}
	if err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

// GetByID retrieves a template
func (r *TemplateRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("template", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// GetByIdentifier retrieves a template by its identifier
func (r *TemplateRepositoryImpl) GetByIdentifier(ctx context.Context, identifier string) (*domain.Template, error) {
	t, err := scanTemplate(r.db.QueryRow(ctx, `SELECT `+templateColumns+` FROM templates WHERE identifier = $1`, identifier))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("template", identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

// List retrieves templates, optionally of one type
func (r *TemplateRepositoryImpl) List(ctx context.Context, templateType string) ([]*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates`
	var args []interface{}
	if templateType != "" {
		query += ` WHERE type = $1`
		args = append(args, templateType)
	}
	query += ` ORDER BY type, identifier`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating templates: %w", err)
	}

	return templates, nil
}

// Update rewrites a template
func (r *TemplateRepositoryImpl) Update(ctx context.Context, t *domain.Template) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE templates
		SET identifier = $2, name = $3, type = $4, content = $5, is_active = $6, updated_at = $7
		WHERE id = $1
	`, t.ID, t.Identifier, t.Name, t.Type, t.Content, t.IsActive, t.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.NewError(domain.KindConflict, "template %q already exists", t.Identifier).WithField("identifier")
	}
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("template", t.ID)
	}
	return nil
}

// Delete removes a template
func (r *TemplateRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("template", id)
	}
	return nil
}
