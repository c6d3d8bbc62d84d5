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

// BroadcastUsecase manages broadcasts through draft, prepare and confirm
type BroadcastUsecase interface {
	Create(ctx context.Context, actor domain.Actor, in usecase.BroadcastInput) (*domain.Broadcast, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Broadcast, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.Broadcast, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, in usecase.BroadcastInput) (*domain.Broadcast, error)
	Delete(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	Prepare(ctx context.Context, actor domain.Actor, id uuid.UUID) (*usecase.PrepareResult, error)
	Confirm(ctx context.Context, actor domain.Actor, id uuid.UUID, token string) (*domain.Broadcast, error)
	Audiences(ctx context.Context) ([]usecase.AudienceCount, error)
	Stats(ctx context.Context) (*domain.BroadcastStats, error)
}

// BroadcastHandler serves /api/broadcasts
type BroadcastHandler struct {
	base
	broadcasts BroadcastUsecase
}

// NewBroadcastHandler creates a new BroadcastHandler
func NewBroadcastHandler(broadcasts BroadcastUsecase, log *logger.Logger) *BroadcastHandler {
	return &BroadcastHandler{base: base{logger: log}, broadcasts: broadcasts}
}

// List returns broadcasts, optionally by status
// GET /api/broadcasts
func (h *BroadcastHandler) List(c echo.Context) error {
	limit, offset := pageQuery(c)
	list, err := h.broadcasts.List(c.Request().Context(), c.QueryParam("status"), limit, offset)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, list)
}

// Create stores a draft
// POST /api/broadcasts
func (h *BroadcastHandler) Create(c echo.Context) error {
	var req dto.BroadcastRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	b, err := h.broadcasts.Create(c.Request().Context(), middleware.Actor(c), req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return CreatedResponse(c, b)
}

// Get returns one broadcast
// GET /api/broadcasts/:id
func (h *BroadcastHandler) Get(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	b, err := h.broadcasts.Get(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, b)
}

// Update edits an unsent broadcast. A prepared broadcast falls back to draft.
// PUT /api/broadcasts/:id
func (h *BroadcastHandler) Update(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.BroadcastRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	b, err := h.broadcasts.Update(c.Request().Context(), middleware.Actor(c), id, req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, b)
}

// Delete removes an unsent broadcast
// DELETE /api/broadcasts/:id
func (h *BroadcastHandler) Delete(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	if err := h.broadcasts.Delete(c.Request().Context(), middleware.Actor(c), id); err != nil {
		return h.respondError(c, err)
	}
	return SuccessMessageResponse(c, "Broadcast deleted", nil)
}

// Prepare counts the audience and issues a confirmation token
// POST /api/broadcasts/:id/prepare
func (h *BroadcastHandler) Prepare(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	result, err := h.broadcasts.Prepare(c.Request().Context(), middleware.Actor(c), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessMessageResponse(c, "Confirm to send", result)
}

// Confirm sends a prepared broadcast
// POST /api/broadcasts/:id/confirm
func (h *BroadcastHandler) Confirm(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.ConfirmRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	b, err := h.broadcasts.Confirm(c.Request().Context(), middleware.Actor(c), id, req.ConfirmationToken)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessMessageResponse(c, "Broadcast sent", b)
}

// Audiences returns live audience sizes
// GET /api/broadcasts/audiences
func (h *BroadcastHandler) Audiences(c echo.Context) error {
	counts, err := h.broadcasts.Audiences(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, counts)
}

// Stats returns broadcast totals
// GET /api/broadcasts/stats
func (h *BroadcastHandler) Stats(c echo.Context) error {
	stats, err := h.broadcasts.Stats(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, stats)
}
