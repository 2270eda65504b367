// Package errors provides standardized error handling for the ReviewFlix service.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the ReviewFlix service.
type ErrorCode string

const (
	// Validation errors
	RVW_VALIDATION  ErrorCode = "RVW_VALIDATION"  // Malformed review content/rating or registration fields
	RVW_BAD_REQUEST ErrorCode = "RVW_BAD_REQUEST" // Bad request (wrong method, malformed body)

	// Authentication/Authorization errors
	RVW_INVALID_CREDENTIALS ErrorCode = "RVW_INVALID_CREDENTIALS" // Login email/password mismatch
	RVW_INVALID_SESSION     ErrorCode = "RVW_INVALID_SESSION"     // Stale or forged session credential
	RVW_FORBIDDEN           ErrorCode = "RVW_FORBIDDEN"           // Operation on a resource the caller does not own

	// Resource errors
	RVW_NOT_FOUND       ErrorCode = "RVW_NOT_FOUND"       // Entity absent
	RVW_USER_NOT_FOUND  ErrorCode = "RVW_USER_NOT_FOUND"  // Watchlist mutation target unknown
	RVW_DUPLICATE_EMAIL ErrorCode = "RVW_DUPLICATE_EMAIL" // Registration email already in use
	RVW_CONFLICT        ErrorCode = "RVW_CONFLICT"        // Resource conflict (duplicate username, id collision)

	// Rate limiting
	RVW_RATE_LIMIT ErrorCode = "RVW_RATE_LIMIT" // Rate limit exceeded

	// Server errors
	RVW_INTERNAL    ErrorCode = "RVW_INTERNAL"    // Internal server error
	RVW_UNAVAILABLE ErrorCode = "RVW_UNAVAILABLE" // Service unavailable (storage/backend down)
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case RVW_VALIDATION, RVW_BAD_REQUEST:
		return http.StatusBadRequest
	case RVW_INVALID_CREDENTIALS, RVW_INVALID_SESSION:
		return http.StatusUnauthorized
	case RVW_FORBIDDEN:
		return http.StatusForbidden
	case RVW_NOT_FOUND, RVW_USER_NOT_FOUND:
		return http.StatusNotFound
	case RVW_DUPLICATE_EMAIL, RVW_CONFLICT:
		return http.StatusConflict
	case RVW_RATE_LIMIT:
		return http.StatusTooManyRequests
	case RVW_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
