package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeValidation represents validation errors (400)
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeAuthentication represents authentication errors (401)
	ErrorTypeAuthentication ErrorType = "authentication"
	// ErrorTypeAuthorization represents authorization errors (403)
	ErrorTypeAuthorization ErrorType = "authorization"
	// ErrorTypeNotFound represents resource not found errors (404)
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeInsufficientCredits represents a balance below cost at commit time (402)
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"
	// ErrorTypePromoInvalid represents an unknown, inactive or expired promo code (400)
	ErrorTypePromoInvalid ErrorType = "promo_invalid"
	// ErrorTypePromoExhausted represents a promo code whose uses are spent (410)
	ErrorTypePromoExhausted ErrorType = "promo_exhausted"
	// ErrorTypePromoAlreadyRedeemed represents a second redemption by the same user (409)
	ErrorTypePromoAlreadyRedeemed ErrorType = "promo_already_redeemed"
	// ErrorTypeIdempotencyConflict represents an idempotency key reused with
	// different parameters (409). Never retriable; indicates a caller bug.
	ErrorTypeIdempotencyConflict ErrorType = "idempotency_conflict"
	// ErrorTypeStorage represents transient storage failures (503)
	ErrorTypeStorage ErrorType = "storage_unavailable"
	// ErrorTypeInternal represents internal server errors (500)
	ErrorTypeInternal ErrorType = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitzero"`
	StatusCode int       `json:"-"`
	Retryable  bool      `json:"retryable"`
	Cause      error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap allows error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsRetryable returns whether the error is retryable
func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

// GetStatusCode returns the HTTP status code for the error
func (e *AppError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeValidation, ErrorTypePromoInvalid:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeInsufficientCredits:
		return http.StatusPaymentRequired
	case ErrorTypeAuthorization:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypePromoAlreadyRedeemed, ErrorTypeIdempotencyConflict:
		return http.StatusConflict
	case ErrorTypePromoExhausted:
		return http.StatusGone
	case ErrorTypeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsErrorType reports whether err is an *AppError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == t
}

// NewValidationError creates a validation error
func NewValidationError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error for an unknown account or resource
func NewNotFoundError(resource, id string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s %s not found", resource, id),
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewInsufficientCreditsError creates an insufficient credits error. The
// shortfall is included so callers can surface how many credits to buy.
func NewInsufficientCreditsError(balance, cost float64) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientCredits,
		Message:    fmt.Sprintf("insufficient credits: balance=%.2f, required=%.2f", balance, cost),
		Code:       "INSUFFICIENT_CREDITS",
		StatusCode: http.StatusPaymentRequired,
		Retryable:  false,
	}
}

// NewPromoInvalidError creates an error for an unknown, inactive or expired code
func NewPromoInvalidError(code string) *AppError {
	return &AppError{
		Type:       ErrorTypePromoInvalid,
		Message:    fmt.Sprintf("promo code %s is not valid", code),
		Code:       "PROMO_CODE_INVALID",
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// NewPromoExhaustedError creates an error for a code whose uses are spent
func NewPromoExhaustedError(code string) *AppError {
	return &AppError{
		Type:       ErrorTypePromoExhausted,
		Message:    fmt.Sprintf("promo code %s has no redemptions left", code),
		Code:       "PROMO_CODE_EXHAUSTED",
		StatusCode: http.StatusGone,
		Retryable:  false,
	}
}

// NewPromoAlreadyRedeemedError creates an error for a repeat redemption by one user
func NewPromoAlreadyRedeemedError(code string) *AppError {
	return &AppError{
		Type:       ErrorTypePromoAlreadyRedeemed,
		Message:    fmt.Sprintf("promo code %s already redeemed by this user", code),
		Code:       "PROMO_CODE_ALREADY_REDEEMED",
		StatusCode: http.StatusConflict,
		Retryable:  false,
	}
}

// NewIdempotencyConflictError creates an error for a key reused with different
// parameters. This is a data-integrity violation and must never be resolved
// silently; operators should be alerted.
func NewIdempotencyConflictError(key string) *AppError {
	return &AppError{
		Type:       ErrorTypeIdempotencyConflict,
		Message:    fmt.Sprintf("idempotency key %s was already used with different parameters", key),
		Code:       "IDEMPOTENCY_KEY_CONFLICT",
		StatusCode: http.StatusConflict,
		Retryable:  false,
	}
}

// NewStorageError creates a transient storage error. Mutations are atomic, so
// callers may retry the whole operation with backoff.
func NewStorageError(operation string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStorage,
		Message:    fmt.Sprintf("storage unavailable during %s", operation),
		Code:       "STORAGE_UNAVAILABLE",
		StatusCode: http.StatusServiceUnavailable,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// SanitizeError sanitizes an error for external consumption
func SanitizeError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		// Return a copy without internal details
		return &AppError{
			Type:       appErr.Type,
			Message:    appErr.Message,
			Code:       appErr.Code,
			StatusCode: appErr.GetStatusCode(),
			Retryable:  appErr.Retryable,
		}
	}

	return NewInternalError("an unexpected error occurred", err)
}
