package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/gamersmart/internal/telemetry"
)

// StripeConfig contains configuration for the Stripe Checkout provider.
type StripeConfig struct {
	// APIKey is the Stripe secret key (sk_test_... or sk_live_...)
	APIKey string

	// WebhookSecret is the webhook signing secret (whsec_...)
	WebhookSecret string

	// CancelURL is where Stripe sends the shopper when they abandon checkout.
	// Defaults to the charge redirect URL with status=cancelled.
	CancelURL string
}

// Validate checks that required configuration is present.
func (c *StripeConfig) Validate() error {
	if c.APIKey == "" {
		return errors.New("stripe: API key is required")
	}
	if c.WebhookSecret == "" {
		return errors.New("stripe: webhook secret is required")
	}
	return nil
}

// IsTestMode returns true if using test mode API keys.
func (c *StripeConfig) IsTestMode() bool {
	return strings.HasPrefix(c.APIKey, "sk_test_")
}

// StripeProvider implements Provider with Stripe Checkout Sessions.
// The session id plays the role of the gateway transaction id and the
// payment reference travels as client_reference_id.
type StripeProvider struct {
	webhookSecret string
	cancelURL     string
}

// NewStripeProvider creates a Stripe provider and sets the global API key.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stripe.Key = cfg.APIKey
	return &StripeProvider{
		webhookSecret: cfg.WebhookSecret,
		cancelURL:     cfg.CancelURL,
	}, nil
}

// Name returns "stripe".
func (p *StripeProvider) Name() string {
	return "stripe"
}

// InitializeCharge creates a one-line Checkout Session for the full amount.
func (p *StripeProvider) InitializeCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	defer observeGateway(p.Name(), "initialize", time.Now())

	successURL := params.RedirectURL + querySeparator(params.RedirectURL) +
		"status=" + StatusSuccessful +
		"&tx_ref=" + url.QueryEscape(params.Reference) +
		"&transaction_id={CHECKOUT_SESSION_ID}"
	cancelURL := p.cancelURL
	if cancelURL == "" {
		cancelURL = params.RedirectURL + querySeparator(params.RedirectURL) +
			"status=cancelled&tx_ref=" + url.QueryEscape(params.Reference)
	}

	description := params.Description
	if description == "" {
		description = "Gamersmart Purchase"
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(params.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
					UnitAmount: stripe.Int64(toMinorUnits(params.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(params.Reference),
		Metadata:          params.Metadata,
	}
	if params.Customer.Email != "" {
		sessionParams.CustomerEmail = stripe.String(params.Customer.Email)
	}
	sessionParams.Context = ctx

	session, err := checkoutsession.New(sessionParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &Charge{
		Reference:   params.Reference,
		RedirectURL: session.URL,
	}, nil
}

// VerifyTransaction retrieves the Checkout Session by id.
func (p *StripeProvider) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	defer observeGateway(p.Name(), "verify", time.Now())

	if transactionID == "" {
		return nil, ErrTransactionNotFound
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	session, err := checkoutsession.Get(transactionID, params)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return sessionTransaction(session), nil
}

// ParseWebhook verifies the Stripe-Signature header. Only
// checkout.session.completed is mapped to EventChargeCompleted.
func (p *StripeProvider) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), p.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	if event.Type != "checkout.session.completed" {
		return &WebhookEvent{Event: string(event.Type)}, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	tx := sessionTransaction(&session)
	return &WebhookEvent{
		Event:         EventChargeCompleted,
		TransactionID: tx.ID,
		Reference:     tx.Reference,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
	}, nil
}

func sessionTransaction(session *stripe.CheckoutSession) *Transaction {
	status := StatusPending
	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		status = StatusSuccessful
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		if session.Status == stripe.CheckoutSessionStatusExpired {
			status = StatusFailed
		}
	}

	raw, _ := json.Marshal(map[string]any{
		"id":                  session.ID,
		"client_reference_id": session.ClientReferenceID,
		"amount_total":        session.AmountTotal,
		"currency":            session.Currency,
		"payment_status":      session.PaymentStatus,
		"status":              session.Status,
	})

	return &Transaction{
		ID:        session.ID,
		Reference: session.ClientReferenceID,
		Status:    status,
		Amount:    fromMinorUnits(session.AmountTotal),
		Currency:  strings.ToUpper(string(session.Currency)),
		Raw:       raw,
	}
}

func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		if stripeErr.HTTPStatusCode == http.StatusNotFound {
			return ErrTransactionNotFound
		}
		return &APIError{
			Provider:      "stripe",
			StatusCode:    stripeErr.HTTPStatusCode,
			Message:       stripeErr.Msg,
			OriginalError: err,
		}
	}
	return &APIError{Provider: "stripe", Message: "request failed", OriginalError: err}
}

func observeGateway(name, operation string, start time.Time) {
	if telemetry.Business != nil {
		telemetry.Business.GatewayAPILatency.WithLabelValues(name, operation).Observe(time.Since(start).Seconds())
	}
}

func querySeparator(u string) string {
	if strings.Contains(u, "?") {
		return "&"
	}
	return "?"
}

var hundred = decimal.NewFromInt(100)

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
