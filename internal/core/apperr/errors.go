// Package apperr defines the client-facing error taxonomy and the classifiers
// that map raw upstream failures onto it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a classified error.
type Kind int

const (
	KindGeneric Kind = iota
	KindNetwork
	KindTimeout
	KindRateLimit
	KindInvalidCredential
	KindValidation
	KindServer
)

// Stable machine-readable codes.
const (
	CodeNetwork       = "NETWORK_ERROR"
	CodeTimeout       = "TIMEOUT_ERROR"
	CodeRateLimit     = "RATE_LIMIT_ERROR"
	CodeInvalidAPIKey = "INVALID_API_KEY"
	CodeValidation    = "VALIDATION_ERROR"
	CodeServer        = "SERVER_ERROR"
	CodeAPI           = "API_ERROR"
	CodeModel         = "MODEL_ERROR"
	CodeUnknown       = "UNKNOWN_ERROR"
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "generic"
	}
}

// TypeName is the error type reported to clients.
func (k Kind) TypeName() string {
	switch k {
	case KindNetwork:
		return "NetworkError"
	case KindTimeout:
		return "TimeoutError"
	case KindRateLimit:
		return "RateLimitError"
	case KindInvalidCredential:
		return "InvalidAPIKeyError"
	case KindValidation:
		return "ValidationError"
	case KindServer:
		return "ServerError"
	default:
		return "APIError"
	}
}

// Error is a classified failure. Message is safe to show to end users;
// Cause and Details are diagnostic only.
type Error struct {
	Kind       Kind
	Message    string
	Code       string
	StatusCode int
	Details    map[string]any
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Code so sentinel-style comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// As returns the classified error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// New creates a classified error.
func New(kind Kind, code string, status int, message string, details map[string]any) *Error {
	if details == nil {
		details = make(map[string]any)
	}
	return &Error{
		Kind:       kind,
		Message:    message,
		Code:       code,
		StatusCode: status,
		Details:    details,
	}
}

func NewNetwork(message string, details map[string]any) *Error {
	return New(KindNetwork, CodeNetwork, http.StatusServiceUnavailable, message, details)
}

func NewTimeout(message string, details map[string]any) *Error {
	return New(KindTimeout, CodeTimeout, http.StatusGatewayTimeout, message, details)
}

func NewRateLimit(message string, details map[string]any) *Error {
	return New(KindRateLimit, CodeRateLimit, http.StatusTooManyRequests, message, details)
}

func NewInvalidCredential(message string, details map[string]any) *Error {
	return New(KindInvalidCredential, CodeInvalidAPIKey, http.StatusUnauthorized, message, details)
}

func NewValidation(message string, details map[string]any) *Error {
	return New(KindValidation, CodeValidation, http.StatusBadRequest, message, details)
}

func NewServer(message string, status int, details map[string]any) *Error {
	if status < 500 {
		status = http.StatusInternalServerError
	}
	return New(KindServer, CodeServer, status, message, details)
}

func NewGeneric(code, message string, status int, details map[string]any) *Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return New(KindGeneric, code, status, message, details)
}

// WithCause attaches the underlying failure.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}
