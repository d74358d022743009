// Package errors provides standardized error handling for the listing engine.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Document store failures. Both are recovered locally and surface to the
	// caller as an empty result set.
	ErrCodeTransportFailure  ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeSearchTimeout     ErrorCode = "SEARCH_TIMEOUT"

	// Context data insufficient to build the requested filters. Recovered by
	// degrading to the next location fallback.
	ErrCodeInvalidContext ErrorCode = "INVALID_CONTEXT"

	// Durable cache read/write failure. Recovered by bypassing the cache.
	ErrCodeCacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"

	// Pacing inputs missing or non-numeric. Recovered by coercing to zero.
	ErrCodeConfigurationAnomaly ErrorCode = "CONFIGURATION_ANOMALY"

	// Advertiser metadata store failures.
	ErrCodeAdvertiserLookupFailed ErrorCode = "ADVERTISER_LOOKUP_FAILED"
	ErrCodeScoreWriteFailed       ErrorCode = "SCORE_WRITE_FAILED"

	// Caller-facing request validation.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewTransportFailureError creates a retryable document store transport error.
func NewTransportFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailure,
		Message:   "Document store unreachable or returned non-success status",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResponseError creates a non-retryable response parse error.
func NewMalformedResponseError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Document store response could not be parsed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchTimeout,
		Message:   "Document store query timed out",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidContextError creates a non-retryable context resolution error.
func NewInvalidContextError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidContext,
		Message:   "Page context insufficient to build location filters",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCacheUnavailableError creates a retryable cache store error.
func NewCacheUnavailableError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCacheUnavailable,
		Message:   "Result cache unavailable",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationAnomalyError creates a non-retryable pacing input error.
func NewConfigurationAnomalyError(field string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationAnomaly,
		Message:   "Pacing input missing or malformed, coerced to zero",
		Details:   fmt.Sprintf("field: %s", field),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAdvertiserLookupFailedError creates a retryable metadata store read error.
func NewAdvertiserLookupFailedError(advertiserID int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAdvertiserLookupFailed,
		Message:   "Advertiser metadata lookup failed",
		Details:   fmt.Sprintf("advertiserId: %d, error: %s", advertiserID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoreWriteFailedError creates a retryable pacing score write error.
func NewScoreWriteFailedError(advertiserID int64, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoreWriteFailed,
		Message:   "Pacing score write failed",
		Details:   fmt.Sprintf("advertiserId: %d, error: %s", advertiserID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable request validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Retrieval request failed validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// IsRecoverable reports whether the error is one the engine recovers from
// locally. Everything in the core taxonomy is; the method exists so transport
// layers can assert that before deciding on a status code.
func IsRecoverable(code ErrorCode) bool {
	switch code {
	case ErrCodeInvalidRequest:
		return false
	default:
		return true
	}
}
