// Package errors provides structured error types for pulseboard.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout        = errors.New("operation timed out")
	ErrAuthFailure    = errors.New("authentication failed")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnavailable    = errors.New("service unavailable")
	ErrQuotaExhausted = errors.New("quota exhausted")
	ErrNoCache        = errors.New("no cached snapshot")
)

// APIError represents an error from an external API call.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error (status %d): %s: %v", e.Service, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// NewAPIError creates a new API error.
func NewAPIError(service string, statusCode int, message string) *APIError {
	return &APIError{Service: service, StatusCode: statusCode, Message: message}
}

// IsRetryable returns true if the error is likely transient and worth retrying.
// Retryable: 429, 5xx, network failures, and a proxy returning HTML instead of
// JSON (surfaced by callers as ErrUnavailable). Other 4xx are terminal.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || apiErr.StatusCode >= 500 {
			return true
		}
		if apiErr.StatusCode >= 400 {
			return false
		}
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimit) || errors.Is(err, ErrUnavailable)
}

// IsQuota returns true if the error represents AI-service quota exhaustion.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
