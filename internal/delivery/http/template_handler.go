package http

import (
	"context"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"signalhub/internal/delivery/http/dto"
	"signalhub/internal/domain"
	"signalhub/internal/middleware"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

// TemplateUsecase manages message templates
type TemplateUsecase interface {
	Create(ctx context.Context, actor domain.Actor, in usecase.TemplateInput) (*domain.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Template, error)
	GetByIdentifier(ctx context.Context, identifier string) (*domain.Template, error)
	List(ctx context.Context, templateType string) ([]*domain.Template, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in usecase.TemplateInput) (*domain.Template, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Preview(ctx context.Context, in usecase.PreviewInput) (string, error)
	Types() []string
	Variables(templateType string) ([]string, error)
}

// TemplateHandler serves /api/templates
type TemplateHandler struct {
	base
	templates TemplateUsecase
}

// NewTemplateHandler creates a new TemplateHandler
func NewTemplateHandler(templates TemplateUsecase, log *logger.Logger) *TemplateHandler {
	return &TemplateHandler{base: base{logger: log}, templates: templates}
}

// List returns templates, optionally of one type
// GET /api/templates
func (h *TemplateHandler) List(c echo.Context) error {
	list, err := h.templates.List(c.Request().Context(), c.QueryParam("type"))
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, list)
}

// Create stores a template
// POST /api/templates
func (h *TemplateHandler) Create(c echo.Context) error {
	var req dto.TemplateRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	t, err := h.templates.Create(c.Request().Context(), middleware.Actor(c), req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return CreatedResponse(c, t)
}

// Get returns one template
// GET /api/templates/:id
func (h *TemplateHandler) Get(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	t, err := h.templates.Get(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, t)
}

// GetByIdentifier returns a template by its stable identifier
// GET /api/templates/identifier/:identifier
func (h *TemplateHandler) GetByIdentifier(c echo.Context) error {
	t, err := h.templates.GetByIdentifier(c.Request().Context(), c.Param("identifier"))
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, t)
}

// Update edits a template
// PUT /api/templates/:id
func (h *TemplateHandler) Update(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.TemplateRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	t, err := h.templates.Update(c.Request().Context(), middleware.Actor(c), id, req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, t)
}

// Delete removes a template that no setting references
// DELETE /api/templates/:id
func (h *TemplateHandler) Delete(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.templates.Delete(c.Request().Context(), middleware.Actor(c), id); err != nil {
		return h.respondError(c, err)
	}
	return SuccessMessageResponse(c, "Template deleted", nil)
}

// Preview renders a template without sending it
// POST /api/templates/preview
func (h *TemplateHandler) Preview(c echo.Context) error {
	var req dto.PreviewRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	text, err := h.templates.Preview(c.Request().Context(), req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, map[string]string{"rendered": text})
}

// Types lists template types
// GET /api/templates/types
func (h *TemplateHandler) Types(c echo.Context) error {
	return SuccessResponse(c, h.templates.Types())
}

// Variables lists the placeholders documented for a type
// GET /api/templates/variables/:type
func (h *TemplateHandler) Variables(c echo.Context) error {
	vars, err := h.templates.Variables(c.Param("type"))
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, vars)
}
