package http

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"signalhub/internal/delivery/http/dto"
	"signalhub/internal/domain"
	"signalhub/internal/middleware"
	"signalhub/pkg/logger"
)

// AuthUsecase verifies operators
type AuthUsecase interface {
	Login(ctx context.Context, actor domain.Actor, username, password string) (*domain.User, error)
	Me(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	base
	auth         AuthUsecase
	jwt          *middleware.JWTManager
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the session
// cookie Secure and should be set behind HTTPS.
func NewAuthHandler(auth AuthUsecase, jwt *middleware.JWTManager, secureCookie bool, log *logger.Logger) *AuthHandler {
	return &AuthHandler{base: base{logger: log}, auth: auth, jwt: jwt, secureCookie: secureCookie}
}

// Login handles operator login
// POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		return ValidationErrorResponse(c, errs)
	}

	user, err := h.auth.Login(c.Request().Context(), middleware.Actor(c), req.Username, req.Password)
	if err != nil {
		return h.respondError(c, err)
	}

	token, expires, err := h.jwt.Generate(user.ID, user.Role)
	if err != nil {
		return h.respondError(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Expires:  expires,
	})

	return SuccessResponse(c, dto.LoginResponse{Token: token, ExpiresAt: expires, User: user})
}

// Logout clears the session cookie
// POST /api/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
	return SuccessMessageResponse(c, "Logged out", nil)
}

// Me returns the authenticated operator
// GET /api/auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "Not authenticated")
	}
	user, err := h.auth.Me(c.Request().Context(), id)
	if err != nil {
		return h.respondError(c, err)
	}
	return SuccessResponse(c, user)
}
