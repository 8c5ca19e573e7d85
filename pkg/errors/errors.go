package errors

import (
	"fmt"
	"net/http"
	"time"
)

// Common application errors
var (
	ErrUserNotFound   = NewNotFoundError("user", "User not found")
	ErrDuplicateEmail = NewAlreadyExistsError("user", "Email is already registered")

	ErrUnauthenticated     = &AuthError{Reason: ReasonUnauthenticated, Message: "Missing API key."}
	ErrInvalidCredential   = &AuthError{Reason: ReasonInvalidCredential, Message: "Invalid API key."}
	ErrServerMisconfigured = &AuthError{Reason: ReasonServerMisconfigured, Message: "API keys are not configured on the server."}
)

// HTTPStatuser is implemented by errors that map to a single HTTP status code.
type HTTPStatuser interface {
	HTTPStatus() int
}

// ValidationError represents a validation failure with field-level details
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed: %s - %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// HTTPStatus returns 422 Unprocessable Entity.
func (e *ValidationError) HTTPStatus() int {
	return http.StatusUnprocessableEntity
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	Message  string
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource, message string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// HTTPStatus returns 404 Not Found.
func (e *NotFoundError) HTTPStatus() int {
	return http.StatusNotFound
}

// AlreadyExistsError represents a resource already exists error
type AlreadyExistsError struct {
	Resource string
	Message  string
}

// NewAlreadyExistsError creates a new already exists error
func NewAlreadyExistsError(resource, message string) *AlreadyExistsError {
	return &AlreadyExistsError{
		Resource: resource,
		Message:  message,
	}
}

// Error implements the error interface
func (e *AlreadyExistsError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s already exists", e.Resource)
}

// HTTPStatus returns 409 Conflict.
func (e *AlreadyExistsError) HTTPStatus() int {
	return http.StatusConflict
}

// AuthReason tells apart the ways the credential check can fail.
type AuthReason string

const (
	ReasonUnauthenticated     AuthReason = "unauthenticated"
	ReasonInvalidCredential   AuthReason = "invalid_credential"
	ReasonServerMisconfigured AuthReason = "server_misconfigured"
)

// AuthError is returned by the credential check.
type AuthError struct {
	Reason  AuthReason
	Message string
}

// Error implements the error interface
func (e *AuthError) Error() string {
	return e.Message
}

// HTTPStatus returns 500 for a server without keys and 401 otherwise.
func (e *AuthError) HTTPStatus() int {
	if e.Reason == ReasonServerMisconfigured {
		return http.StatusInternalServerError
	}
	return http.StatusUnauthorized
}

// DefaultRetryAfter is reported when the limiter cannot tell when the window resets.
const DefaultRetryAfter = 60 * time.Second

// RateLimitError is returned when a caller exhausted its quota.
type RateLimitError struct {
	Limit      int
	RetryAfter time.Duration
}

// NewRateLimitError creates a rate limit error, falling back to DefaultRetryAfter.
func NewRateLimitError(limit int, retryAfter time.Duration) *RateLimitError {
	if retryAfter <= 0 {
		retryAfter = DefaultRetryAfter
	}
	return &RateLimitError{Limit: limit, RetryAfter: retryAfter}
}

// Error implements the error interface
func (e *RateLimitError) Error() string {
	return "Rate limit exceeded. Please retry later."
}

// RetryAfterSeconds rounds the retry delay up to whole seconds.
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// HTTPStatus returns 429 Too Many Requests.
func (e *RateLimitError) HTTPStatus() int {
	return http.StatusTooManyRequests
}

// InternalError represents an internal server error with context
type InternalError struct {
	Message string
	Err     error
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *InternalError {
	return &InternalError{
		Message: message,
		Err:     err,
	}
}

// Error implements the error interface
func (e *InternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *InternalError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns 500 Internal Server Error.
func (e *InternalError) HTTPStatus() int {
	return http.StatusInternalServerError
}
