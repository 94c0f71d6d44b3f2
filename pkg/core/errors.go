package core

import (
	"fmt"
	"net/http"
	"strings"
)

// Error is a failure reported by an upstream speech or language service.
type Error struct {
	Type          ErrorType `json:"type"`
	Message       string    `json:"message"`
	Code          string    `json:"code,omitempty"`
	Provider      string    `json:"provider,omitempty"`
	StatusCode    int       `json:"status_code,omitempty"`
	ProviderError any       `json:"provider_error,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrRateLimit      ErrorType = "rate_limit_error"
	ErrAPI            ErrorType = "api_error"
	ErrOverloaded     ErrorType = "overloaded_error"
	ErrProvider       ErrorType = "provider_error"
	ErrEmptyResponse  ErrorType = "empty_response_error"
)

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 512

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewProviderError creates a provider-specific error.
func NewProviderError(provider string, underlying error) *Error {
	return &Error{
		Type:          ErrProvider,
		Message:       fmt.Sprintf("%s: %v", provider, underlying),
		Provider:      provider,
		ProviderError: underlying,
	}
}

// NewEmptyResponseError reports a successful call that produced no content.
func NewEmptyResponseError(provider string) *Error {
	return &Error{
		Type:     ErrEmptyResponse,
		Message:  provider + ": empty response",
		Provider: provider,
	}
}

// NewHTTPError maps a non-2xx upstream response to an Error.
func NewHTTPError(provider string, status int, body []byte) *Error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorBody {
		msg = msg[:maxErrorBody]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	typ := ErrProvider
	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		typ = ErrInvalidRequest
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		typ = ErrAuthentication
	case status == http.StatusNotFound:
		typ = ErrNotFound
	case status == http.StatusTooManyRequests:
		typ = ErrRateLimit
	case status == http.StatusServiceUnavailable:
		typ = ErrOverloaded
	case status >= 500:
		typ = ErrAPI
	}

	return &Error{
		Type:       typ,
		Message:    fmt.Sprintf("%s: %s", provider, msg),
		Code:       fmt.Sprintf("http_%d", status),
		Provider:   provider,
		StatusCode: status,
	}
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrAPI:
		return true
	default:
		return false
	}
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	if ue, ok := e.ProviderError.(error); ok {
		return ue
	}
	return nil
}
