package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable identifier carried by every domain error.
type ErrorKind string

const (
	KindInvalidConfiguration    ErrorKind = "INVALID_CONFIGURATION"
	KindRiskLimitExceeded       ErrorKind = "RISK_LIMIT_EXCEEDED"
	KindMissingTemplateVariable ErrorKind = "MISSING_TEMPLATE_VARIABLE"
	KindConfirmationRequired    ErrorKind = "CONFIRMATION_REQUIRED"
	KindExternalProvider        ErrorKind = "EXTERNAL_PROVIDER_ERROR"
	KindDeliveryFailure         ErrorKind = "DELIVERY_FAILURE"
	KindDailyCapReached         ErrorKind = "DAILY_CAP_REACHED"
	KindInvalidTransition       ErrorKind = "INVALID_TRANSITION"
	KindValidation              ErrorKind = "VALIDATION"
	KindNotFound                ErrorKind = "NOT_FOUND"
	KindConflict                ErrorKind = "CONFLICT"
)

// Sentinels for errors.Is; matching is by kind only.
var (
	ErrInvalidConfiguration    = &Error{Kind: KindInvalidConfiguration}
	ErrRiskLimitExceeded       = &Error{Kind: KindRiskLimitExceeded}
	ErrMissingTemplateVariable = &Error{Kind: KindMissingTemplateVariable}
	ErrConfirmationRequired    = &Error{Kind: KindConfirmationRequired}
	ErrExternalProvider        = &Error{Kind: KindExternalProvider}
	ErrDeliveryFailure         = &Error{Kind: KindDeliveryFailure}
	ErrDailyCapReached         = &Error{Kind: KindDailyCapReached}
	ErrInvalidTransition       = &Error{Kind: KindInvalidTransition}
	ErrValidation              = &Error{Kind: KindValidation}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrConflict                = &Error{Kind: KindConflict}
)

// Error is a structured domain error.
type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError builds an error of the given kind.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithField sets the offending input field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithDetail attaches a structured detail.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the kind of the first domain error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// MissingTemplateVariable reports placeholders with no supplied value.
func MissingTemplateVariable(names []string) *Error {
	msg := fmt.Sprintf("missing template variable: %s", names[0])
	if len(names) > 1 {
		msg = fmt.Sprintf("missing template variables: %v", names)
	}
	return NewError(KindMissingTemplateVariable, "%s", msg).WithDetail("variables", names)
}

// ExternalProviderError wraps a failed call to a market-data provider.
func ExternalProviderError(provider string, err error) *Error {
	return NewError(KindExternalProvider, "%s request failed", provider).
		WithDetail("provider", provider).
		Wrap(err)
}

// NotFound reports a missing entity.
func NotFound(entity string, id interface{}) *Error {
	return NewError(KindNotFound, "%s not found", entity).WithDetail("id", fmt.Sprint(id))
}
