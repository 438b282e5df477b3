// Package domain holds the cart, order, payment and catalog types shared by
// services, stores and handlers, along with the error codes they return.
package domain

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Error codes. Handlers map each to an HTTP status.
const (
	EINVALID      = "invalid"            // 400
	ESTOCK        = "insufficient_stock" // 400
	EUNAUTHORIZED = "unauthorized"       // 401
	EUNVERIFIED   = "unverified"         // 401
	EFORBIDDEN    = "forbidden"          // 403
	ENOTFOUND     = "not_found"          // 404
	EMETHOD       = "method_not_allowed" // 405
	ECONFLICT     = "conflict"           // 409
	ETOOLARGE     = "too_large"          // 413
	ERATELIMIT    = "rate_limit"         // 429
	EINTERNAL     = "internal"           // 500
	EGATEWAY      = "gateway_error"      // 502
)

// InternalMessage replaces the message of every internal error shown to a
// client.
const InternalMessage = "An internal error occurred. Please try again later."

// Error is the error type returned across service boundaries. Message is
// safe to show the shopper. Op and Err are for logs.
type Error struct {
	Code    string
	Message string
	Op      string // e.g. "order.create"
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func asError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// ErrorCode returns the code of the first *Error in err's chain, EINVALID
// for validation errors, EINTERNAL for anything else and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok {
		return e.Code
	}
	if IsValidationError(err) {
		return EINVALID
	}
	return EINTERNAL
}

// ErrorMessage returns the client-facing message for err. Internal and
// unknown errors get InternalMessage.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if e, ok := asError(err); ok && e.Code != EINTERNAL {
		return e.Message
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return "Validation failed"
	}
	return InternalMessage
}

// ErrorOp returns the Op of the first *Error or *ValidationError in err's
// chain.
func ErrorOp(err error) string {
	if e, ok := asError(err); ok {
		return e.Op
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Op
	}
	return ""
}

// IsCode reports whether err carries code.
func IsCode(err error, code string) bool {
	return ErrorCode(err) == code
}

// Errorf builds an *Error with a formatted message.
func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches code, op and message to err. It returns nil for a nil
// err.
func WrapError(err error, code, op, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Op: op, Message: message, Err: err}
}

func NotFound(op, resource, identifier string) error {
	return Errorf(ENOTFOUND, op, "%s not found: %s", resource, identifier)
}

func Unauthorized(op, message string) error {
	return &Error{Code: EUNAUTHORIZED, Op: op, Message: message}
}

func Forbidden(op, message string) error {
	return &Error{Code: EFORBIDDEN, Op: op, Message: message}
}

func Invalid(op, message string) error {
	return &Error{Code: EINVALID, Op: op, Message: message}
}

func Conflict(op, message string) error {
	return &Error{Code: ECONFLICT, Op: op, Message: message}
}

// InsufficientStock reports a quantity the catalog cannot cover. The message
// names the game and the copies left.
func InsufficientStock(op, message string) error {
	return &Error{Code: ESTOCK, Op: op, Message: message}
}

// Internal wraps a store or programming failure. Clients only see
// InternalMessage.
func Internal(err error, op, message string) error {
	return &Error{Code: EINTERNAL, Op: op, Message: message, Err: err}
}

// Gateway wraps a failed or rejected payment gateway call.
func Gateway(err error, op, message string) error {
	return &Error{Code: EGATEWAY, Op: op, Message: message, Err: err}
}

// ValidationError carries per-field messages for a rejected request body or
// query.
type ValidationError struct {
	Fields map[string]string
	Op     string
}

func (e *ValidationError) Error() string {
	prefix := ""
	if e.Op != "" {
		prefix = e.Op + ": "
	}
	if len(e.Fields) == 1 {
		for field, msg := range e.Fields {
			return prefix + field + ": " + msg
		}
	}
	return fmt.Sprintf("%svalidation failed for %s", prefix, strings.Join(slices.Sorted(maps.Keys(e.Fields)), ", "))
}

// NewValidationError reports a single bad field.
func NewValidationError(op, field, message string) error {
	return &ValidationError{Op: op, Fields: map[string]string{field: message}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// GetValidationFields returns the field messages, or nil when err is not a
// validation error.
func GetValidationFields(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}
