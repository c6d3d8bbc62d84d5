package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"signalhub/internal/domain"
	"signalhub/internal/usecase"
	"signalhub/pkg/logger"
)

// Response represents a standardized API response
type Response struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one entry of the errors array.
type ValidationError struct {
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// SuccessResponse sends a success response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status: "success",
		Data:   data,
	})
}

// SuccessMessageResponse sends a success response with a message
func SuccessMessageResponse(c echo.Context, message string, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Status:  "success",
		Message: message,
		Data:    data,
	})
}

// CreatedResponse sends a 201 Created response
func CreatedResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, Response{
		Status: "success",
		Data:   data,
	})
}

// ErrorResponse sends an error response
func ErrorResponse(c echo.Context, statusCode int, message string, errs []ValidationError) error {
	return c.JSON(statusCode, Response{
		Status:  "error",
		Message: message,
		Errors:  errs,
	})
}

// ValidationErrorResponse sends a 400 with per-field errors
func ValidationErrorResponse(c echo.Context, errs []ValidationError) error {
	return ErrorResponse(c, http.StatusBadRequest, "Validation failed", errs)
}

// BadRequestResponse sends a 400 Bad Request response
func BadRequestResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusBadRequest, message, []ValidationError{{
		Code:    string(domain.KindValidation),
		Message: message,
	}})
}

// UnauthorizedResponse sends a 401 Unauthorized response
func UnauthorizedResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusUnauthorized, message, nil)
}

// NotFoundResponse sends a 404 Not Found response
func NotFoundResponse(c echo.Context, message string) error {
	return ErrorResponse(c, http.StatusNotFound, message, nil)
}

// StatusForKind maps a domain error kind to its HTTP status.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidConfiguration:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict, domain.KindInvalidTransition, domain.KindConfirmationRequired:
		return http.StatusConflict
	case domain.KindMissingTemplateVariable, domain.KindRiskLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.KindDailyCapReached:
		return http.StatusTooManyRequests
	case domain.KindExternalProvider, domain.KindDeliveryFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// base is embedded by every handler.
type base struct {
	logger *logger.Logger
}

// respondError renders err in the envelope. Domain errors keep their kind as
// the error code; anything else is logged and reported as an internal error.
func (h base) respondError(c echo.Context, err error) error {
	if errors.Is(err, usecase.ErrInvalidCredentials) {
		return UnauthorizedResponse(c, "Invalid credentials")
	}

	var de *domain.Error
	if !errors.As(err, &de) {
		h.logger.Error("Request failed",
			logger.String("path", c.Path()),
			logger.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			logger.Error(err),
		)
		return ErrorResponse(c, http.StatusInternalServerError, "Internal server error", []ValidationError{{
			Code:    "INTERNAL",
			Message: "internal server error",
		}})
	}

	status := StatusForKind(de.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Request failed",
			logger.String("path", c.Path()),
			logger.String("kind", string(de.Kind)),
			logger.Error(err),
		)
	}

	message := de.Message
	if message == "" {
		message = string(de.Kind)
	}
	return ErrorResponse(c, status, message, []ValidationError{{
		Code:    string(de.Kind),
		Field:   de.Field,
		Message: message,
		Params:  de.Details,
	}})
}
