package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes exposed to API callers.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeNotConfigured     = "NOT_CONFIGURED"
	CodeUpstream          = "UPSTREAM_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeTimeout           = "TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeValidation:        http.StatusBadRequest,
	CodeNotFound:          http.StatusNotFound,
	CodeInvalidTransition: http.StatusUnprocessableEntity,
	CodeNotConfigured:     http.StatusServiceUnavailable,
	CodeUpstream:          http.StatusBadGateway,
	CodeUnauthorized:      http.StatusUnauthorized,
	CodeForbidden:         http.StatusForbidden,
	CodeConflict:          http.StatusConflict,
	CodeTimeout:           http.StatusGatewayTimeout,
	CodeInternal:          http.StatusInternalServerError,
}

// DomainError is the error type rendered to API callers.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// New builds a DomainError whose HTTP status follows from code.
func New(code, message string, details map[string]any) *DomainError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// Wrap is New with an underlying cause kept for logs.
func Wrap(code, message string, err error) *DomainError {
	e := New(code, message, nil)
	e.Err = err
	return e
}

// FromStatus maps an HTTP status raised outside the services, such as by the router.
func FromStatus(status int, message string) *DomainError {
	code := CodeInternal
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		code = CodeValidation
	case http.StatusUnauthorized:
		code = CodeUnauthorized
	case http.StatusForbidden:
		code = CodeForbidden
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		code = CodeNotFound
	case http.StatusConflict:
		code = CodeConflict
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = CodeTimeout
	}
	return &DomainError{Code: code, Message: message, HTTPStatus: status}
}

func NewValidationError(message string, details map[string]any) error {
	return New(CodeValidation, message, details)
}

// NewFieldError is a validation error about a single input field.
func NewFieldError(field, message string) error {
	return NewFieldErrors(message, map[string]string{field: message})
}

// NewFieldErrors reports per-field messages under details.fields.
func NewFieldErrors(message string, fields map[string]string) error {
	detail := make(map[string]any, len(fields))
	for field, msg := range fields {
		detail[field] = msg
	}
	return New(CodeValidation, message, map[string]any{"fields": detail})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource), details)
}

// NewInvalidTransition reports an enumerated field set to an unknown value.
func NewInvalidTransition(field, value string) error {
	return New(CodeInvalidTransition,
		fmt.Sprintf("invalid value %q for %s", value, field),
		map[string]any{"field": field, "value": value})
}

// NewNotConfigured reports a disabled optional integration.
func NewNotConfigured(message string) error {
	return New(CodeNotConfigured, message, nil)
}

// NewUpstreamError wraps a failure of an external dependency. The message is user visible.
func NewUpstreamError(message string, err error) error {
	return Wrap(CodeUpstream, message, err)
}

func NewUnauthorized(message string) error {
	return New(CodeUnauthorized, message, nil)
}

func NewForbidden(message string) error {
	return New(CodeForbidden, message, nil)
}

func NewConflict(message string, details map[string]any) error {
	return New(CodeConflict, message, details)
}

func NewInternalError(err error) error {
	return Wrap(CodeInternal, "internal server error", err)
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts any error for rendering. Deadline expiry becomes TIMEOUT and
// everything unrecognized becomes INTERNAL_ERROR.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeTimeout, "request timed out", err)
	}
	return Wrap(CodeInternal, "internal server error", err)
}
