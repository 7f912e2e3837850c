package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Common domain errors
var (
	ErrEmptyQuery = NewError("Query cannot be empty", http.StatusBadRequest)
)

// Error represents a domain error with an associated code.
type Error struct {
	Message string
	Code    int
}

// Error returns the error message.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new domain error with the given message and code.
func NewError(message string, code int) *Error {
	return &Error{
		Message: message,
		Code:    code,
	}
}

// ErrorKind classifies a slide generation failure.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration"
	KindAuthentication ErrorKind = "authentication"
	KindRateLimit      ErrorKind = "rate_limit"
	KindConnection     ErrorKind = "connection"
	KindTimeout        ErrorKind = "timeout"
	KindUpstream       ErrorKind = "upstream"
	KindEmptyResponse  ErrorKind = "empty_response"
	KindMalformedJSON  ErrorKind = "malformed_json"
	KindValidation     ErrorKind = "validation"
)

// GenerationError is returned by every failing slide generation. Kind keeps
// "fix your credential", "retry later" and "the model output was rejected"
// apart for callers.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

// Error returns the error message.
func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the kind onto the status the REST layer answers with.
// Caller-side faults (credential, unusable model output) are 400, the rest
// are 500.
func (e *GenerationError) HTTPStatus() int {
	switch e.Kind {
	case KindConfiguration, KindValidation, KindMalformedJSON:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewGenerationError creates a GenerationError of the given kind.
func NewGenerationError(kind ErrorKind, message string, cause error) *GenerationError {
	return &GenerationError{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// ErrMissingCredential is returned before any network call when no API key
// has been configured.
var ErrMissingCredential = NewGenerationError(
	KindConfiguration,
	"OPENAI_API_KEY environment variable is not set. Please set it before using the slide generator.",
	nil,
)

// KindOf returns the kind of a GenerationError found in err's chain, or ""
// when err carries none.
func KindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

// IsValidation reports whether err was produced by deck validation or JSON
// parsing of the model output.
func IsValidation(err error) bool {
	kind := KindOf(err)
	return kind == KindValidation || kind == KindMalformedJSON
}

// IsConfiguration reports whether err is a missing credential failure.
func IsConfiguration(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsRetryable reports whether retrying the same request later may succeed.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindRateLimit, KindConnection, KindTimeout, KindUpstream, KindEmptyResponse:
		return true
	default:
		return false
	}
}

// ValidationError indicates that a slide deck failed structural validation.
type ValidationError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
