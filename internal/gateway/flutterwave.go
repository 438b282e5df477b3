package gateway

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dukerupert/gamersmart/internal/telemetry"
)

// DefaultFlutterwaveBaseURL is the v3 API root.
const DefaultFlutterwaveBaseURL = "https://api.flutterwave.com/v3"

// FlutterwaveSignatureHeader carries the shared webhook secret.
const FlutterwaveSignatureHeader = "verif-hash"

// FlutterwaveConfig contains configuration for the Flutterwave provider.
type FlutterwaveConfig struct {
	// BaseURL defaults to DefaultFlutterwaveBaseURL
	BaseURL string

	// SecretKey is the API secret used as Bearer token
	SecretKey string

	// WebhookHash is compared against the verif-hash header of webhooks
	WebhookHash string

	// Timeout for each API call. Default: 30s
	Timeout time.Duration

	// Title shown on the hosted payment page
	Title string
}

// Validate checks that required configuration is present.
func (c *FlutterwaveConfig) Validate() error {
	if c.SecretKey == "" {
		return ErrInvalidAPIKey
	}
	if c.WebhookHash == "" {
		return errors.New("flutterwave: webhook hash is required")
	}
	return nil
}

// FlutterwaveProvider implements Provider using the Flutterwave v3 REST API.
type FlutterwaveProvider struct {
	baseURL     string
	secretKey   string
	webhookHash string
	title       string
	client      *http.Client
}

// NewFlutterwaveProvider creates a Flutterwave provider.
func NewFlutterwaveProvider(cfg FlutterwaveConfig) (*FlutterwaveProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultFlutterwaveBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	title := cfg.Title
	if title == "" {
		title = "Gamersmart Purchase"
	}

	return &FlutterwaveProvider{
		baseURL:     strings.TrimRight(baseURL, "/"),
		secretKey:   cfg.SecretKey,
		webhookHash: cfg.WebhookHash,
		title:       title,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &telemetry.HTTPTransport{Transport: http.DefaultTransport},
		},
	}, nil
}

// Name returns "flutterwave".
func (p *FlutterwaveProvider) Name() string {
	return "flutterwave"
}

type flwCustomer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type flwCustomizations struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

type flwPaymentRequest struct {
	TxRef          string            `json:"tx_ref"`
	Amount         json.Number       `json:"amount"`
	Currency       string            `json:"currency"`
	RedirectURL    string            `json:"redirect_url"`
	Customer       flwCustomer       `json:"customer"`
	Meta           map[string]string `json:"meta,omitempty"`
	Customizations flwCustomizations `json:"customizations"`
}

type flwEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flwTransaction struct {
	ID       gatewayID       `json:"id"`
	TxRef    string          `json:"tx_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
}

// InitializeCharge creates a hosted payment link.
func (p *FlutterwaveProvider) InitializeCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	body := flwPaymentRequest{
		TxRef:       params.Reference,
		Amount:      json.Number(params.Amount.String()),
		Currency:    params.Currency,
		RedirectURL: params.RedirectURL,
		Customer: flwCustomer{
			Email: params.Customer.Email,
			Name:  params.Customer.Name,
		},
		Meta: params.Metadata,
		Customizations: flwCustomizations{
			Title:       p.title,
			Description: params.Description,
		},
	}

	env, err := p.do(ctx, "initialize", http.MethodPost, "/payments", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.Link == "" {
		return nil, fmt.Errorf("%w: missing payment link", ErrMalformedResponse)
	}

	return &Charge{
		Reference:   params.Reference,
		RedirectURL: data.Link,
	}, nil
}

// VerifyTransaction fetches a transaction by its gateway id.
func (p *FlutterwaveProvider) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	if transactionID == "" {
		return nil, ErrTransactionNotFound
	}

	path := "/transactions/" + url.PathEscape(transactionID) + "/verify"
	env, err := p.do(ctx, "verify", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var tx flwTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &Transaction{
		ID:        tx.ID.String(),
		Reference: tx.TxRef,
		Status:    tx.Status,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Raw:       env.Data,
	}, nil
}

// ParseWebhook checks the verif-hash header and decodes the event.
func (p *FlutterwaveProvider) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	signature := header.Get(FlutterwaveSignatureHeader)
	if signature == "" || subtle.ConstantTimeCompare([]byte(signature), []byte(p.webhookHash)) != 1 {
		return nil, ErrInvalidWebhookSignature
	}

	var body struct {
		Event string         `json:"event"`
		Data  flwTransaction `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &WebhookEvent{
		Event:         body.Event,
		TransactionID: body.Data.ID.String(),
		Reference:     body.Data.TxRef,
		Status:        body.Data.Status,
		Amount:        body.Data.Amount,
		Currency:      body.Data.Currency,
	}, nil
}

func (p *FlutterwaveProvider) do(ctx context.Context, operation, method, path string, body any) (*flwEnvelope, error) {
	defer observeGateway(p.Name(), operation, time.Now())

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("flutterwave: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("flutterwave: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &APIError{Provider: p.Name(), Message: "request failed", OriginalError: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "read response", OriginalError: err}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTransactionNotFound
	}

	var env flwEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: "decode response", OriginalError: err}
	}
	if resp.StatusCode >= 300 || env.Status != "success" {
		msg := env.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: msg}
	}

	return &env, nil
}
