package domain

import (
	"errors"
	"fmt"
)

// Application error codes.
// These map to HTTP status codes and determine user-facing messages.
const (
	ECONFLICT     = "conflict"           // 409 - Resource conflict
	EINTERNAL     = "internal"           // 500 - Internal server error (hide details)
	EINVALID      = "invalid"            // 400 - Validation error (bad input)
	ESTOCK        = "insufficient_stock" // 400 - Requested quantity exceeds stock
	ENOTFOUND     = "not_found"          // 404 - Resource not found
	EUNAUTHORIZED = "unauthorized"       // 401 - Authentication required or failed
	EFORBIDDEN    = "forbidden"          // 403 - Authenticated but not permitted
	ENOTIMPL      = "not_implemented"    // 501 - Disabled in this deployment
	ERATELIMIT    = "rate_limit"         // 429 - Too many requests
	ETOOLARGE     = "too_large"          // 413 - Request body too large
)

// InternalMessage is returned to clients in place of internal error details.
const InternalMessage = "An internal error occurred. Please try again later."

// Error represents an application error with a code and message.
// It implements the error interface and supports error wrapping.
type Error struct {
	// Code is a machine-readable error code (e.g., EINVALID, ENOTFOUND).
	Code string

	// Message is a human-readable error message safe to show to users.
	Message string

	// Op is the operation where the error occurred (e.g., "order.create").
	// Used for logging, never shown to users.
	Op string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		if e.Op != "" {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the error code from an error.
// Returns EINTERNAL for non-domain errors and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var se *StockError
	if errors.As(err, &se) {
		return ESTOCK
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return EINVALID
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return EINTERNAL
}

// ErrorMessage extracts a user-facing message from an error.
// Internal errors always yield InternalMessage.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var se *StockError
	if errors.As(err, &se) {
		return se.Message()
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message()
	}

	var e *Error
	if errors.As(err, &e) {
		if e.Code == EINTERNAL {
			return InternalMessage
		}
		return e.Message
	}

	return InternalMessage
}

// ErrorOp extracts the operation from an error (for logging).
func ErrorOp(err error) string {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Op
	}

	return ""
}

// Errorf creates a new domain error with formatted message.
// Example: domain.Errorf(domain.EINVALID, "order.create", "unknown product: %s", name)
func Errorf(code, op, format string, args ...interface{}) error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
	}
}

// WrapError wraps an existing error with a domain error code and operation.
// Returns nil if err is nil.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}

	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// IsCode returns true if err has the given error code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// =============================================================================
// Validation Errors
// =============================================================================

// ValidationError represents one or more field validation failures.
type ValidationError struct {
	// Fields maps field names to error messages.
	Fields map[string]string

	// Summary, when set, is the message shown to users instead of the
	// first field message.
	Summary string

	// Op is the operation where validation failed.
	Op string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := e.Message()
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

// Message returns the user-facing message for the validation failure.
func (e *ValidationError) Message() string {
	if e.Summary != "" {
		return e.Summary
	}
	if len(e.Fields) == 1 {
		for _, msg := range e.Fields {
			return msg
		}
	}
	return fmt.Sprintf("validation failed for %d fields", len(e.Fields))
}

// NewValidationError creates a validation error for a single field.
// The field message doubles as the user-facing summary.
func NewValidationError(op, field, message string) error {
	return &ValidationError{
		Op:      op,
		Summary: message,
		Fields:  map[string]string{field: message},
	}
}

// AddFieldError adds a field error to an existing ValidationError.
// If err is nil or not a ValidationError, a new one is created.
func AddFieldError(err error, field, message string) error {
	var ve *ValidationError
	if err != nil && errors.As(err, &ve) {
		ve.Fields[field] = message
		return ve
	}

	return &ValidationError{
		Fields: map[string]string{field: message},
	}
}

// IsValidationError returns true if err is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields extracts field errors from a ValidationError.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// =============================================================================
// Stock errors
// =============================================================================

// StockError reports that a requested quantity exceeds what is on hand.
type StockError struct {
	Op        string
	Product   string
	Requested int
	Available int
}

// Error implements the error interface.
func (e *StockError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message())
	}
	return e.Message()
}

// Message returns the user-facing shortfall message.
func (e *StockError) Message() string {
	return fmt.Sprintf("Insufficient stock for %s. Only %d left.", e.Product, e.Available)
}

// InsufficientStock creates a StockError.
func InsufficientStock(op, product string, requested, available int) error {
	return &StockError{
		Op:        op,
		Product:   product,
		Requested: requested,
		Available: available,
	}
}

// =============================================================================
// Common errors (convenience)
// =============================================================================

// NotFound creates a not found error for a resource.
// Example: domain.NotFound("order.get", "Order")
func NotFound(op, resource string) error {
	return &Error{
		Code:    ENOTFOUND,
		Op:      op,
		Message: resource + " not found",
	}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(op, message string) error {
	return &Error{
		Code:    EUNAUTHORIZED,
		Op:      op,
		Message: message,
	}
}

// Forbidden creates a forbidden error.
func Forbidden(op, message string) error {
	return &Error{
		Code:    EFORBIDDEN,
		Op:      op,
		Message: message,
	}
}

// Invalid creates a validation error for a single issue.
func Invalid(op, message string) error {
	return &Error{
		Code:    EINVALID,
		Op:      op,
		Message: message,
	}
}

// Conflict creates a conflict error.
func Conflict(op, message string) error {
	return &Error{
		Code:    ECONFLICT,
		Op:      op,
		Message: message,
	}
}

// Internal creates an internal error wrapping the underlying cause.
// Users see InternalMessage; the cause is for logs.
func Internal(err error, op, message string) error {
	return &Error{
		Code:    EINTERNAL,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
