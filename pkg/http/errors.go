package http

import (
	"fmt"
	"net/http"
)

// Error codes carried in AppError.Code.
const (
	CodeBadRequest      = "ERR_BAD_REQUEST"
	CodeTooManyRequests = "ERR_TOO_MANY_REQUESTS"
	CodeUnavailable     = "ERR_UNAVAILABLE"
	CodeInternal        = "ERR_INTERNAL"
)

// AppError is an error the API renders with its own status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Field: field, Message: message, Status: status}
}

// WithParam attaches a detail rendered under params.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError records the cause; it is not rendered.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func BadRequestError(field, message string) *AppError {
	return NewAppError(CodeBadRequest, field, message, http.StatusBadRequest)
}

// TooManyRequestsError is returned when a client exceeds its request rate.
func TooManyRequestsError(message string) *AppError {
	return NewAppError(CodeTooManyRequests, "", message, http.StatusTooManyRequests)
}

// UnavailableError reports a dependency the endpoint needs is down or not configured.
func UnavailableError(message string) *AppError {
	return NewAppError(CodeUnavailable, "", message, http.StatusServiceUnavailable)
}

func InternalError(message string) *AppError {
	return NewAppError(CodeInternal, "", message, http.StatusInternalServerError)
}
