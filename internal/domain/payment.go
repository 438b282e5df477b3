package domain

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT DOMAIN ERRORS
// =============================================================================

var (
	ErrPaymentNotFound      = &Error{Code: ENOTFOUND, Message: "Payment not found"}
	ErrOrderAlreadyPaid     = &Error{Code: ECONFLICT, Message: "Order has already been paid"}
	ErrOrderNotPayable      = &Error{Code: ECONFLICT, Message: "Order cannot be paid in its current state"}
	ErrPaymentNotSuccessful = &Error{Code: EINVALID, Message: "Payment was not successful"}
	ErrPaymentClosed        = &Error{Code: ECONFLICT, Message: "Payment is no longer pending"}
	ErrInvalidSignature     = &Error{Code: EUNAUTHORIZED, Message: "Invalid webhook signature"}
)

// PaymentStatus is the state of one settlement attempt. Successful, failed
// and cancelled are terminal.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusSuccessful PaymentStatus = "successful"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// Payment is one attempt to settle an order through the gateway.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	OrderID         uuid.UUID       `json:"orderId"`
	UserID          uuid.UUID       `json:"userId"`
	Reference       string          `json:"paymentReference"`
	TransactionID   string          `json:"transactionId,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          PaymentStatus   `json:"status"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Gateway         string          `json:"gateway"`
	FailureReason   string          `json:"failureReason,omitempty"`
	GatewayResponse json.RawMessage `json:"gatewayResponse,omitempty"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// PaymentInitialization is returned to the shopper to start the redirect.
type PaymentInitialization struct {
	PaymentID   uuid.UUID       `json:"paymentId"`
	Reference   string          `json:"reference"`
	RedirectURL string          `json:"paymentLink"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Reused      bool            `json:"reused"`
}

// CallbackParams are the query parameters of the gateway redirect.
type CallbackParams struct {
	TransactionID string
	Reference     string
	Status        string
}

// WebhookOutcome describes what a webhook delivery did.
type WebhookOutcome struct {
	Event     string   `json:"event"`
	Reference string   `json:"reference,omitempty"`
	Ignored   bool     `json:"ignored"`
	Reason    string   `json:"reason,omitempty"`
	Payment   *Payment `json:"payment,omitempty"`
}

// PaymentHistoryEntry pairs a payment with the order it settles.
type PaymentHistoryEntry struct {
	Payment Payment `json:"payment"`
	Order   *Order  `json:"order"`
}

// PaymentService drives the gateway and reconciles its completion signals.
type PaymentService interface {
	// Initialize reuses or creates the order's pending payment and returns
	// the gateway redirect.
	Initialize(ctx context.Context, user *User, orderID uuid.UUID) (*PaymentInitialization, error)

	// VerifyCallback reconciles the shopper's redirect back from the gateway.
	VerifyCallback(ctx context.Context, user *User, params CallbackParams) (*Payment, error)

	// HandleWebhook authenticates and reconciles a gateway webhook delivery.
	HandleWebhook(ctx context.Context, payload []byte, header http.Header) (*WebhookOutcome, error)

	// GetPaymentHistory lists the user's payments with their orders.
	GetPaymentHistory(ctx context.Context, userID uuid.UUID) ([]PaymentHistoryEntry, error)

	// ExpireStalePayments cancels pending payments older than the cutoff.
	ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error)
}
