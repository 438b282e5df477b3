// Package gateway talks to external payment processors.
//
// A Provider starts a hosted charge, re-verifies a transaction on demand and
// authenticates webhook deliveries. The service layer never trusts a
// completion signal without calling VerifyTransaction first.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
)

// Transaction statuses as reported by a provider.
const (
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusPending    = "pending"
)

// EventChargeCompleted is the webhook event that signals a finished charge.
const EventChargeCompleted = "charge.completed"

// Provider defines the interface for payment processing.
// Implementations exist for Flutterwave, Stripe Checkout and an in-memory mock.
type Provider interface {
	// Name identifies the provider in stored payments and metrics.
	Name() string

	// InitializeCharge starts a hosted charge and returns the redirect link.
	InitializeCharge(ctx context.Context, params ChargeParams) (*Charge, error)

	// VerifyTransaction fetches the authoritative state of a transaction.
	VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error)

	// ParseWebhook authenticates a webhook delivery and decodes it.
	// Returns ErrInvalidWebhookSignature when authentication fails.
	ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error)
}

// Customer identifies the payer to the gateway.
type Customer struct {
	Email string
	Name  string
}

// ChargeParams contains parameters for starting a hosted charge.
type ChargeParams struct {
	Reference   string
	Amount      decimal.Decimal
	Currency    string
	RedirectURL string
	Customer    Customer
	Metadata    map[string]string
	Description string
}

// Charge is the gateway's answer to InitializeCharge.
type Charge struct {
	Reference   string
	RedirectURL string
}

// Transaction is the verified state of a charge.
type Transaction struct {
	ID        string
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	Raw       json.RawMessage
}

// Successful reports whether the gateway settled the transaction.
func (t *Transaction) Successful() bool {
	return t.Status == StatusSuccessful
}

// WebhookEvent is an authenticated, decoded webhook delivery.
type WebhookEvent struct {
	Event         string
	TransactionID string
	Reference     string
	Status        string
	Amount        decimal.Decimal
	Currency      string
}

// gatewayID accepts a gateway id sent as either a JSON number or string.
type gatewayID string

func (id *gatewayID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = gatewayID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = gatewayID(n.String())
	return nil
}

func (id gatewayID) String() string {
	return string(id)
}
