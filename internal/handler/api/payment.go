package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/handler"
)

// PaymentHandler serves the shopper-facing payment endpoints.
type PaymentHandler struct {
	paymentService domain.PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService domain.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type initializePaymentRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

// Initialize handles POST /payment/initialize
func (h *PaymentHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	const op = "payment.initialize"
	user := domain.MustUser(r.Context())

	var req initializePaymentRequest
	if err := handler.DecodeAndValidate(r, op, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	result, err := h.paymentService.Initialize(r.Context(), user, uuid.MustParse(req.OrderID))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Payment initialized", result)
}

// Callback handles GET /payment/callback, the shopper's redirect back from
// the gateway.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	user := domain.MustUser(r.Context())
	q := r.URL.Query()

	payment, err := h.paymentService.VerifyCallback(r.Context(), user, domain.CallbackParams{
		TransactionID: q.Get("transaction_id"),
		Reference:     q.Get("tx_ref"),
		Status:        q.Get("status"),
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	handler.OK(w, r, "Payment verified", payment)
}

// History handles GET /payment/history
func (h *PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	user := domain.MustUser(r.Context())

	entries, err := h.paymentService.GetPaymentHistory(r.Context(), user.ID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.PaymentHistoryEntry{}
	}

	handler.OK(w, r, "Payment history retrieved", entries)
}
