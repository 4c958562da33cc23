package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Configuration errors (CONFIG_*) - fatal, never silently defaulted
	ErrorCodeConfigMissing ErrorCode = "CONFIG_MISSING"
	ErrorCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Webhook verification errors (SIG_*)
	ErrorCodeSignatureMismatch ErrorCode = "SIG_MISMATCH"
	ErrorCodeSignatureMissing  ErrorCode = "SIG_MISSING"

	// Settlement errors (SETTLE_*)
	ErrorCodeAmountMismatch   ErrorCode = "SETTLE_AMOUNT_MISMATCH"
	ErrorCodeCurrencyMismatch ErrorCode = "SETTLE_CURRENCY_MISMATCH"
	ErrorCodeInvalidState     ErrorCode = "SETTLE_INVALID_STATE"

	// Payment errors (PAYMENT_*)
	ErrorCodePaymentNotFound ErrorCode = "PAYMENT_NOT_FOUND"
	ErrorCodeInvalidInvoice  ErrorCode = "PAYMENT_INVALID_INVOICE"

	// Request validation errors (VALIDATION_*)
	ErrorCodeValidationFailed       ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField ErrorCode = "VALIDATION_MISSING_FIELD"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail returns a copy of the error with the detail field added. The
// receiver is never mutated: the package-level sentinel instances are shared
// across concurrent webhook deliveries, so details must not be written into
// their maps.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Err:     e.Err,
	}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, returns empty string if
// not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsConfigurationError checks if an error is a fatal configuration error
func IsConfigurationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeConfigMissing || code == ErrorCodeConfigInvalid
}

// IsSignatureError checks if an error rejects an untrusted webhook signature
func IsSignatureError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeSignatureMismatch || code == ErrorCodeSignatureMissing
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodePaymentNotFound || code == ErrorCodeInvalidInvoice
}

// IsValidationError checks if an error is a request validation error
func IsValidationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeValidationFailed || code == ErrorCodeValidationMissingField
}

// Structured error instances
var (
	ErrConfigMissing = NewDomainError(ErrorCodeConfigMissing, "required gateway credential is not configured")

	ErrSignatureMismatch = NewDomainError(ErrorCodeSignatureMismatch, "webhook signature mismatch")
	ErrSignatureMissing  = NewDomainError(ErrorCodeSignatureMissing, "webhook signature missing")

	ErrAmountMismatch   = NewDomainError(ErrorCodeAmountMismatch, "notification amount disagrees with stored payment")
	ErrCurrencyMismatch = NewDomainError(ErrorCodeCurrencyMismatch, "notification currency disagrees with stored payment")
	ErrInvalidState     = NewDomainError(ErrorCodeInvalidState, "payment is in a terminal state and cannot be settled")

	ErrPaymentNotFound = NewDomainError(ErrorCodePaymentNotFound, "payment not found")
	ErrInvalidInvoice  = NewDomainError(ErrorCodeInvalidInvoice, "invoice number is not a positive integer")

	ErrValidationFailed       = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
