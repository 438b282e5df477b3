package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"message", &Error{Code: EINVALID, Message: "quantity must be positive"}, "quantity must be positive"},
		{"op and message", &Error{Code: ECONFLICT, Op: "order.cancel", Message: "order already paid"}, "order.cancel: order already paid"},
		{"op and cause", &Error{Code: EINTERNAL, Op: "payment.reconcile", Message: "failed to save", Err: cause}, "payment.reconcile: failed to save: connection refused"},
		{"cause only", &Error{Code: EGATEWAY, Message: "verify failed", Err: cause}, "verify failed: connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorCodeAndMessage(t *testing.T) {
	cause := errors.New("db down")

	tests := []struct {
		name    string
		err     error
		code    string
		message string
		op      string
	}{
		{"nil", nil, "", "", ""},
		{"plain error", errors.New("boom"), EINTERNAL, InternalMessage, ""},
		{"conflict", Conflict("order.cancel", "Only pending orders can be cancelled"), ECONFLICT, "Only pending orders can be cancelled", "order.cancel"},
		{"internal hides detail", Internal(cause, "order.create", "failed to insert order"), EINTERNAL, InternalMessage, "order.create"},
		{"wrapped by fmt", fmt.Errorf("outer: %w", NotFound("game.get", "game", "abc")), ENOTFOUND, "game not found: abc", "game.get"},
		{"validation", NewValidationError("cart.add", "quantity", "must be at least 1"), EINVALID, "Validation failed", "cart.add"},
		{"stock", InsufficientStock("order.create", "Only 2 copies of Halo left"), ESTOCK, "Only 2 copies of Halo left", "order.create"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
			assert.Equal(t, tt.message, ErrorMessage(tt.err))
			assert.Equal(t, tt.op, ErrorOp(tt.err))
			if tt.code != "" {
				assert.True(t, IsCode(tt.err, tt.code))
			}
		})
	}
}

func TestConstructors(t *testing.T) {
	cause := errors.New("upstream 503")

	tests := []struct {
		name string
		err  error
		code string
	}{
		{"Unauthorized", Unauthorized("auth", "Authentication required"), EUNAUTHORIZED},
		{"Forbidden", Forbidden("order.get", "not yours"), EFORBIDDEN},
		{"Invalid", Invalid("payment.verify", "amount mismatch"), EINVALID},
		{"Errorf", Errorf(ERATELIMIT, "", "Too many requests"), ERATELIMIT},
		{"Gateway", Gateway(cause, "payment.initialize", "Payment gateway unavailable"), EGATEWAY},
		{"WrapError", WrapError(cause, EINTERNAL, "order.list", "failed to list"), EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ErrorCode(tt.err))
		})
	}

	assert.ErrorIs(t, Gateway(cause, "", "x"), cause)
	assert.ErrorIs(t, WrapError(cause, EINTERNAL, "", "x"), cause)
	assert.Nil(t, WrapError(nil, EINTERNAL, "op", "message"))
}

func TestValidationError(t *testing.T) {
	single := NewValidationError("order.create", "paymentMethod", "must be one of card paypal bank_transfer")
	assert.Equal(t, "order.create: paymentMethod: must be one of card paypal bank_transfer", single.Error())

	multi := &ValidationError{Fields: map[string]string{"zipCode": "required", "city": "required"}}
	assert.Equal(t, "validation failed for city, zipCode", multi.Error())

	assert.True(t, IsValidationError(fmt.Errorf("decode: %w", multi)))
	assert.False(t, IsValidationError(Invalid("", "x")))
	assert.Equal(t, multi.Fields, GetValidationFields(multi))
	assert.Nil(t, GetValidationFields(errors.New("x")))
}
