package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"signalhub/internal/domain"
	"signalhub/internal/service"
	"signalhub/pkg/logger"
)

var identifierPattern = regexp.MustCompile(`^[a-z0-9_]{2,64}$`)

// TemplateInput carries operator input for a template.
type TemplateInput struct {
	Identifier string
	Name       string
	Type       string
	Content    string
	IsActive   bool
}

// PreviewInput renders either stored or ad-hoc content. When Variables is nil
// the documented sample values of Type are used.
type PreviewInput struct {
	Identifier string
	Content    string
	Type       string
	Variables  map[string]string
}

// TemplateService manages message templates.
type TemplateService struct {
	repo     domain.TemplateRepository
	settings *SettingsService
	audit    *AuditService
	logger   *logger.Logger
	now      func() time.Time
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(repo domain.TemplateRepository, settings *SettingsService, audit *AuditService, log *logger.Logger) *TemplateService {
	return &TemplateService{repo: repo, settings: settings, audit: audit, logger: log, now: time.Now}
}

// Create stores a template
func (s *TemplateService) Create(ctx context.Context, actor domain.Actor, in TemplateInput) (*domain.Template, error) {
	if err := validateTemplateInput(in); err != nil {
		return nil, err
	}
	now := s.now()
	t := &domain.Template{
		ID:         uuid.New(),
		Identifier: in.Identifier,
		Name:       strings.TrimSpace(in.Name),
		Type:       in.Type,
		Content:    in.Content,
		IsActive:   in.IsActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, domain.AuditTemplateChanged, "templates", t.ID.String(), nil, templateAuditValues(t))
	return t, nil
}

// Get retrieves a template by ID
func (s *TemplateService) Get(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByIdentifier retrieves a template by identifier
func (s *TemplateService) GetByIdentifier(ctx context.Context, identifier string) (*domain.Template, error) {
	return s.repo.GetByIdentifier(ctx, identifier)
}

// List retrieves templates, optionally of one type
func (s *TemplateService) List(ctx context.Context, templateType string) ([]*domain.Template, error) {
	if templateType != "" && !domain.ValidTemplateType(templateType) {
		return nil, domain.NewError(domain.KindValidation, "unknown template type %q", templateType).WithField("type")
	}
	return s.repo.List(ctx, templateType)
}

// Update rewrites a template
func (s *TemplateService) Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in TemplateInput) (*domain.Template, error) {
	if err := validateTemplateInput(in); err != nil {
		return nil, err
	}
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Identifier != in.Identifier || !in.IsActive {
		if err := s.ensureUnreferenced(ctx, t.Identifier); err != nil {
			return nil, err
		}
	}

	before := templateAuditValues(t)
	t.Identifier = in.Identifier
	t.Name = strings.TrimSpace(in.Name)
	t.Type = in.Type
	t.Content = in.Content
	t.IsActive = in.IsActive
	t.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, domain.AuditTemplateChanged, "templates", id.String(), before, templateAuditValues(t))
	return t, nil
}

// Delete removes a template not referenced by the signal settings.
func (s *TemplateService) Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureUnreferenced(ctx, t.Identifier); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.Record(ctx, actor, domain.AuditTemplateChanged, "templates", id.String(), templateAuditValues(t), nil)
	return nil
}

// Preview renders content without storing or sending anything.
func (s *TemplateService) Preview(ctx context.Context, in PreviewInput) (string, error) {
	content, templateType := in.Content, in.Type
	if in.Identifier != "" {
		t, err := s.repo.GetByIdentifier(ctx, in.Identifier)
		if err != nil {
			return "", err
		}
		content, templateType = t.Content, t.Type
	}
	if strings.TrimSpace(content) == "" {
		return "", domain.NewError(domain.KindValidation, "content or identifier is required").WithField("content")
	}

	vars := in.Variables
	if vars == nil {
		vars = SampleVariables(templateType, s.now())
	}
	return service.RenderContent(content, vars)
}

// Types lists the template types
func (s *TemplateService) Types() []string {
	return domain.TemplateTypes
}

// Variables lists the variables documented for a template type
func (s *TemplateService) Variables(templateType string) ([]string, error) {
	vars, ok := domain.TemplateVariables[templateType]
	if !ok {
		return nil, domain.NewError(domain.KindValidation, "unknown template type %q", templateType).WithField("type")
	}
	return vars, nil
}

func (s *TemplateService) ensureUnreferenced(ctx context.Context, identifier string) error {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if identifier == settings.SpotTemplate || identifier == settings.FuturesTemplate {
		return domain.NewError(domain.KindConflict, "template %q is used for signal publishing", identifier).
			WithField("identifier")
	}
	return nil
}

// SampleVariables fills the documented variables of a type with example values.
func SampleVariables(templateType string, now time.Time) map[string]string {
	samples := map[string]string{
		"symbol":             "BTCUSDT",
		"side":               "LONG",
		"entry":              "43250.00",
		"entry_min":          "43000.00",
		"entry_max":          "43500.00",
		"target_1":           "43509.50",
		"target_2":           "43769.00",
		"target_3":           service.EmptyValue,
		"target_4":           service.EmptyValue,
		"target_5":           service.EmptyValue,
		"stop_loss":          "42904.00",
		"support":            "42500.00",
		"resistance":         "44000.00",
		"notes":              service.EmptyValue,
		"leverage":           "10x",
		"position_value":     "500.00",
		"trader_name":        "TopTrader",
		"trader_profile_url": "https://example.com/trader",
		"risk_disclaimer":    domain.DefaultFuturesSettingValues[domain.SettingRiskDisclaimer],
		"created_at":         now.UTC().Format("2006-01-02 15:04 MST"),
		"title":              "Announcement",
		"content":            "Message body",
		"date":               now.Format("2006-01-02"),
	}
	vars := make(map[string]string)
	for _, name := range domain.TemplateVariables[templateType] {
		vars[name] = samples[name]
	}
	return vars
}

func validateTemplateInput(in TemplateInput) error {
	if !identifierPattern.MatchString(in.Identifier) {
		return domain.NewError(domain.KindValidation, "identifier must be 2-64 characters of a-z, 0-9 or _").WithField("identifier")
	}
	if strings.TrimSpace(in.Name) == "" {
		return domain.NewError(domain.KindValidation, "name is required").WithField("name")
	}
	if !domain.ValidTemplateType(in.Type) {
		return domain.NewError(domain.KindValidation, "unknown template type %q", in.Type).WithField("type")
	}
	if strings.TrimSpace(in.Content) == "" {
		return domain.NewError(domain.KindValidation, "content is required").WithField("content")
	}

	documented := make(map[string]bool)
	for _, v := range domain.TemplateVariables[in.Type] {
		documented[v] = true
	}
	var unknown []string
	for _, name := range service.Placeholders(in.Content) {
		if !documented[name] {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return domain.MissingTemplateVariable(unknown).
			WithField("content").
			WithDetail("type", in.Type)
	}
	return nil
}

func templateAuditValues(t *domain.Template) map[string]interface{} {
	return map[string]interface{}{
		"identifier": t.Identifier,
		"type":       t.Type,
		"is_active":  t.IsActive,
		"content":    fmt.Sprintf("%d chars", len(t.Content)),
	}
}
