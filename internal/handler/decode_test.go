package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
)

type testAddress struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"omitempty,len=2"`
}

type testRequest struct {
	GameID   string      `json:"gameId" validate:"required,uuid"`
	Quantity int         `json:"quantity" validate:"min=1,max=1000"`
	Address  testAddress `json:"address"`
}

func newJSONRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestDecodeAndValidate(t *testing.T) {
	var dst testRequest
	req := newJSONRequest(`{"gameId":"6f1c1f9e-4c41-4d8e-9a7e-6d2f8c2b1a10","quantity":2,"address":{"city":"Lagos","country":"NG"}}`)

	require.NoError(t, DecodeAndValidate(req, "test.decode", &dst))
	assert.Equal(t, 2, dst.Quantity)
	assert.Equal(t, "Lagos", dst.Address.City)
}

func TestDecodeAndValidate_FieldErrors(t *testing.T) {
	var dst testRequest
	req := newJSONRequest(`{"gameId":"not-a-uuid","quantity":0,"address":{"country":"NGA"}}`)

	err := DecodeAndValidate(req, "test.decode", &dst)
	require.Error(t, err)
	require.True(t, domain.IsValidationError(err))

	fields := domain.GetValidationFields(err)
	assert.Equal(t, "gameId must be a valid UUID", fields["gameId"])
	assert.Equal(t, "quantity must be at least 1", fields["quantity"])
	assert.Equal(t, "city is required", fields["address.city"])
	assert.Equal(t, "country must be exactly 2 characters", fields["address.country"])
}

func TestDecodeAndValidate_BadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty", ``, domain.EINVALID},
		{"malformed", `{"gameId":`, domain.EINVALID},
		{"unknown field", `{"gameId":"6f1c1f9e-4c41-4d8e-9a7e-6d2f8c2b1a10","quantity":1,"address":{"city":"x"},"price":1}`, domain.EINVALID},
		{"wrong type", `{"quantity":"two"}`, domain.EINVALID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dst testRequest
			err := DecodeAndValidate(newJSONRequest(tt.body), "test.decode", &dst)
			require.Error(t, err)
			assert.Equal(t, tt.code, domain.ErrorCode(err))
			assert.False(t, domain.IsValidationError(err))
		})
	}
}

func TestDecodeAndValidate_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	req := newJSONRequest(`{"gameId":"` + strings.Repeat("a", 100) + `"}`)
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var dst testRequest
	err := DecodeAndValidate(req, "test.decode", &dst)
	assert.Equal(t, domain.ETOOLARGE, domain.ErrorCode(err))
}
