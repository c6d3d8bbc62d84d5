package http

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"signalhub/internal/delivery/http/dto"
	"signalhub/internal/domain"
	"signalhub/internal/middleware"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

// SignalUsecase manages spot and futures signals
type SignalUsecase interface {
	CreateSpot(ctx context.Context, actor domain.Actor, in usecase.SpotSignalInput) (*domain.Signal, error)
	CreateFutures(ctx context.Context, actor domain.Actor, in usecase.FuturesSignalInput) (*domain.Signal, error)
	Get(ctx context.Context, kind domain.SignalKind, id uuid.UUID) (*domain.Signal, error)
	List(ctx context.Context, kind domain.SignalKind, filter domain.SignalFilter) ([]*domain.Signal, error)
	UpdateSpot(ctx context.Context, actor domain.Actor, id uuid.UUID, in usecase.SpotSignalInput) (*domain.Signal, error)
	UpdateFutures(ctx context.Context, actor domain.Actor, id uuid.UUID, in usecase.FuturesSignalInput) (*domain.Signal, error)
	ChangeStatus(ctx context.Context, actor domain.Actor, kind domain.SignalKind, id uuid.UUID, status string) (*domain.Signal, error)
	Publish(ctx context.Context, actor domain.Actor, kind domain.SignalKind, id uuid.UUID) (*domain.DeliveryReport, error)
}

// SignalHandler serves /api/signals/spot and /api/signals/futures. Most
// methods take the kind and return the handler for that route group.
type SignalHandler struct {
	base
	signals SignalUsecase
}

// NewSignalHandler creates a new SignalHandler
func NewSignalHandler(signals SignalUsecase, log *logger.Logger) *SignalHandler {
	return &SignalHandler{base: base{logger: log}, signals: signals}
}

// List returns signals of kind filtered by status, symbol and trader
// GET /api/signals/{kind}
func (h *SignalHandler) List(kind domain.SignalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := pageQuery(c)
		filter := domain.SignalFilter{
			Status:           c.QueryParam("status"),
			Symbol:           strings.ToUpper(c.QueryParam("symbol")),
			TraderExternalID: c.QueryParam("trader"),
			Limit:            limit,
			Offset:           offset,
		}
		signals, err := h.signals.List(c.Request().Context(), kind, filter)
		if err != nil {
			return h.respondError(c, err)
		}
		return SuccessResponse(c, signals)
	}
}

// Get returns one signal
// GET /api/signals/{kind}/:id
func (h *SignalHandler) Get(kind domain.SignalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseUUIDParam(c, "id")
		if err != nil {
			return h.respondError(c, err)
		}
		signal, err := h.signals.Get(c.Request().Context(), kind, id)
		if err != nil {
			return h.respondError(c, err)
		}
		return SuccessResponse(c, signal)
	}
}

// CreateSpot stores a manual spot signal
// POST /api/signals/spot
func (h *SignalHandler) CreateSpot(c echo.Context) error {
	var req dto.SpotSignalRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	signal, err := h.signals.CreateSpot(c.Request().Context(), middleware.Actor(c), req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return CreatedResponse(c, signal)
}

// CreateFutures stores a manual futures signal
// POST /api/signals/futures
func (h *SignalHandler) CreateFutures(c echo.Context) error {
	var req dto.FuturesSignalRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	signal, err := h.signals.CreateFutures(c.Request().Context(), middleware.Actor(c), req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return CreatedResponse(c, signal)
}

// UpdateSpot edits an active spot signal
// PUT /api/signals/spot/:id
func (h *SignalHandler) UpdateSpot(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.SpotSignalRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	signal, err := h.signals.UpdateSpot(c.Request().Context(), middleware.Actor(c), id, req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, signal)
}

// UpdateFutures edits an active futures signal
// PUT /api/signals/futures/:id
func (h *SignalHandler) UpdateFutures(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.FuturesSignalRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	signal, err := h.signals.UpdateFutures(c.Request().Context(), middleware.Actor(c), id, req.ToInput())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, signal)
}

// ChangeStatus completes or cancels an active signal
// PATCH /api/signals/{kind}/:id/status
func (h *SignalHandler) ChangeStatus(kind domain.SignalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseUUIDParam(c, "id")
		if err != nil {
			return h.respondError(c, err)
		}
		var req dto.StatusRequest
		if errs := ReadAndValidateRequest(c, &req); errs != nil {
			return ValidationErrorResponse(c, errs)
		}
		signal, err := h.signals.ChangeStatus(c.Request().Context(), middleware.Actor(c), kind, id, req.Status)
		if err != nil {
			return h.respondError(c, err)
		}
		return SuccessResponse(c, signal)
	}
}

// Send publishes a signal to its audience
// POST /api/signals/{kind}/:id/send
func (h *SignalHandler) Send(kind domain.SignalKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseUUIDParam(c, "id")
		if err != nil {
			return h.respondError(c, err)
		}
		report, err := h.signals.Publish(c.Request().Context(), middleware.Actor(c), kind, id)
		if err != nil {
			return h.respondError(c, err)
		}
		return SuccessMessageResponse(c, "Signal sent", report)
	}
}
