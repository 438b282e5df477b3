package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
)

type errorEnvelope struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var body errorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	want := map[string]int{
		domain.EINVALID:      http.StatusBadRequest,
		domain.ESTOCK:        http.StatusBadRequest,
		domain.EUNAUTHORIZED: http.StatusUnauthorized,
		domain.EUNVERIFIED:   http.StatusUnauthorized,
		domain.EFORBIDDEN:    http.StatusForbidden,
		domain.ENOTFOUND:     http.StatusNotFound,
		domain.EMETHOD:       http.StatusMethodNotAllowed,
		domain.ECONFLICT:     http.StatusConflict,
		domain.ETOOLARGE:     http.StatusRequestEntityTooLarge,
		domain.ERATELIMIT:    http.StatusTooManyRequests,
		domain.EINTERNAL:     http.StatusInternalServerError,
		domain.EGATEWAY:      http.StatusBadGateway,
		"made_up":            http.StatusInternalServerError,
	}
	for code, status := range want {
		assert.Equal(t, status, ErrorCodeToHTTPStatus(code), code)
	}
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"missing order", domain.ErrOrderNotFound, http.StatusNotFound, domain.ENOTFOUND, domain.ErrorMessage(domain.ErrOrderNotFound)},
		{"stock", domain.InsufficientStock("cart.add_item", "Insufficient stock for Halo: 2 available"), http.StatusBadRequest, domain.ESTOCK, "Insufficient stock for Halo: 2 available"},
		{"paid order", domain.ErrOrderNotCancellable, http.StatusConflict, domain.ECONFLICT, domain.ErrorMessage(domain.ErrOrderNotCancellable)},
		{"gateway down", domain.Gateway(errors.New("dial tcp: timeout"), "payment.initialize", "Payment initialization failed"), http.StatusBadGateway, domain.EGATEWAY, "Payment initialization failed"},
		{"store leak", domain.Internal(errors.New("conn refused"), "order.create", "insert into orders at 192.168.1.100:5432"), http.StatusInternalServerError, domain.EINTERNAL, domain.InternalMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/order", nil), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			body := decodeError(t, rec)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.Nil(t, body.Error.Fields)
		})
	}
}

func TestErrorResponse_HTMLClients(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/order/42", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, domain.ErrOrderNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ErrorMessage(domain.ErrOrderNotFound), strings.TrimSpace(rec.Body.String()))
}

func TestErrorResponse_PlainErrorIsInternal(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/order", nil)
	rec := httptest.NewRecorder()

	ErrorResponse(rec, req, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestValidationErrorResponse_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/order", nil)
	rec := httptest.NewRecorder()

	err := &domain.ValidationError{Op: "order.create", Fields: map[string]string{
		"paymentMethod":        "paymentMethod is required",
		"shippingAddress.city": "city is required",
	}}

	ErrorResponse(rec, req, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	response := decodeError(t, rec)
	assert.Equal(t, domain.EINVALID, response.Error.Code)
	assert.Equal(t, "Validation failed", response.Error.Message)
	assert.Len(t, response.Error.Fields, 2)
	assert.Equal(t, "city is required", response.Error.Fields["shippingAddress.city"])
}

func TestValidationErrorResponse_NonValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationErrorResponse(rec, httptest.NewRequest(http.MethodGet, "/payment/callback", nil), domain.ErrPaymentNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ENOTFOUND, decodeError(t, rec).Error.Code)
}

func TestJSON_Envelope(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/order", nil)
	rec := httptest.NewRecorder()

	Created(rec, req, "Order created", map[string]string{"orderNumber": "ORD-1-ABCDEF"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Order created","data":{"orderNumber":"ORD-1-ABCDEF"}}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(nil)(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	Health(func(ctx context.Context) error { return errors.New("dial tcp 10.0.0.5:5432: refused") })(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}
