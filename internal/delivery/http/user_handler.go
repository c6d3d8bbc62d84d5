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

// UserUsecase manages operator accounts
type UserUsecase interface {
	List(ctx context.Context) ([]*domain.User, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.User, error)
	Create(ctx context.Context, actor domain.Actor, in usecase.UserInput) (*domain.User, error)
	Update(ctx context.Context, actor domain.Actor, id uuid.UUID, changes usecase.UserChanges) (*domain.User, error)
}

// UserHandler handles operator account endpoints
type UserHandler struct {
	base
	users UserUsecase
}

// NewUserHandler creates a new user handler
func NewUserHandler(users UserUsecase, log *logger.Logger) *UserHandler {
	return &UserHandler{base: base{logger: log}, users: users}
}

// List returns every operator
// GET /api/users
func (h *UserHandler) List(c echo.Context) error {
	users, err := h.users.List(c.Request().Context())
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, users)
}

// Get returns one operator
// GET /api/users/:id
func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	user, err := h.users.Get(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, user)
}

// Create adds an operator
// POST /api/users
func (h *UserHandler) Create(c echo.Context) error {
	var req dto.CreateUserRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	user, err := h.users.Create(c.Request().Context(), middleware.Actor(c), usecase.UserInput{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return CreatedResponse(c, user)
}

// Update changes an operator
// PUT /api/users/:id
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseUUIDParam(c, "id")
	if err != nil {
		return h.respondError(c, err)
	}
	var req dto.UpdateUserRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}
	if req.Username == nil && req.Password == nil && req.Role == nil && req.IsActive == nil {
		return BadRequestResponse(c, "Nothing to update")
	}
	user, err := h.users.Update(c.Request().Context(), middleware.Actor(c), id, usecase.UserChanges{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, user)
}
