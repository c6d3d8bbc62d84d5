package http

import (
	"context"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"signalhub/internal/delivery/http/dto"
	"signalhub/internal/domain"
	"signalhub/internal/middleware"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

// SubscriberUsecase lists and edits bot subscribers
type SubscriberUsecase interface {
	List(ctx context.Context, filter domain.SubscriberFilter) ([]*domain.Subscriber, error)
	Update(ctx context.Context, actor domain.Actor, userID int64, tier *string, active *bool) (*domain.Subscriber, error)
	Stats(ctx context.Context) (*domain.SubscriberStats, error)
}

// IntegrationUsecase stores provider credentials
type IntegrationUsecase interface {
	List(ctx context.Context) ([]usecase.IntegrationView, error)
	Upsert(ctx context.Context, actor domain.Actor, provider, apiKey, secretKey string, active bool) (*usecase.IntegrationView, error)
	Delete(ctx context.Context, actor domain.Actor, provider string) error
}

// AuditUsecase reads the audit log
type AuditUsecase interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error)
}

// DashboardUsecase aggregates statistics
type DashboardUsecase interface {
	Stats(ctx context.Context) (*usecase.DashboardStats, error)
}

// Pinger is a dependency reported by the system health endpoint
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// AdminHandler serves subscribers, integrations, audit logs and the dashboard
type AdminHandler struct {
	base
	subscribers  SubscriberUsecase
	integrations IntegrationUsecase
	audit        AuditUsecase
	dashboard    DashboardUsecase
	checks       map[string]Pinger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	subscribers SubscriberUsecase,
	integrations IntegrationUsecase,
	audit AuditUsecase,
	dashboard DashboardUsecase,
	checks map[string]Pinger,
	log *logger.Logger,
) *AdminHandler {
	return &AdminHandler{
		base:         base{logger: log},
		subscribers:  subscribers,
		integrations: integrations,
		audit:        audit,
		dashboard:    dashboard,
		checks:       checks,
	}
}

// ListSubscribers returns subscribers filtered by tier
// GET /api/subscribers
func (h *AdminHandler) ListSubscribers(c echo.Context) error {
	limit, offset := pageQuery(c)
	list, err := h.subscribers.List(c.Request().Context(), domain.SubscriberFilter{
		Tier:       c.QueryParam("tier"),
		ActiveOnly: c.QueryParam("active") == "true",
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, list)
}

// UpdateSubscriber changes tier or active flag
// PATCH /api/subscribers/:id
func (h *AdminHandler) UpdateSubscriber(c echo.Context) error {
	id, err := parseInt64Param(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.SubscriberUpdateRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	if req.Tier == nil && req.IsActive == nil {
		return BadRequestResponse(c, "Nothing to update")
	}
	sub, err := h.subscribers.Update(c.Request().Context(), middleware.Actor(c), id, req.Tier, req.IsActive)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, sub)
}

// SubscriberStats counts subscribers by tier
// GET /api/subscribers/stats
func (h *AdminHandler) SubscriberStats(c echo.Context) error {
	stats, err := h.subscribers.Stats(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, stats)
}

// ListIntegrations returns integrations with masked keys
// GET /api/integrations
func (h *AdminHandler) ListIntegrations(c echo.Context) error {
	list, err := h.integrations.List(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, list)
}

// UpsertIntegration stores credentials for a provider
// PUT /api/integrations/:provider
func (h *AdminHandler) UpsertIntegration(c echo.Context) error {
	var req dto.IntegrationRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	view, err := h.integrations.Upsert(c.Request().Context(), middleware.Actor(c), c.Param("provider"), req.APIKey, req.SecretKey, active)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, view)
}

// DeleteIntegration removes stored credentials
// DELETE /api/integrations/:provider
func (h *AdminHandler) DeleteIntegration(c echo.Context) error {
	if err := h.integrations.Delete(c.Request().Context(), middleware.Actor(c), c.Param("provider")); err != nil {
		return h.respondError(c, err)
	}
	return SuccessMessageResponse(c, "Integration deleted", nil)
}

// AuditLogs returns audit entries newest first
// GET /api/audit-logs
func (h *AdminHandler) AuditLogs(c echo.Context) error {
	limit, offset := pageQuery(c)
	entries, err := h.audit.List(c.Request().Context(), domain.AuditFilter{
		Action:    c.QueryParam("action"),
		TableName: c.QueryParam("table"),
		RecordID:  c.QueryParam("record_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, entries)
}

// DashboardStats returns the operator dashboard summary
// GET /api/dashboard/stats
func (h *AdminHandler) DashboardStats(c echo.Context) error {
	stats, err := h.dashboard.Stats(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, stats)
}

// GetSystemHealth pings every dependency
// GET /api/system/health
func (h *AdminHandler) GetSystemHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	components := make(map[string]string, len(names))
	for _, name := range names {
		components[name] = "online"
		if err := h.checks[name].Ping(ctx); err != nil {
			components[name] = "degraded"
			status = "degraded"
			h.logger.Warn("Health check failed", logger.String("component", name), logger.Error(err))
		}
	}

	return SuccessResponse(c, map[string]interface{}{
		"status":     status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"components": components,
	})
}
