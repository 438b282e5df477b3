package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockSignatureHeader is the header MockProvider checks on webhooks.
const MockSignatureHeader = "verif-hash"

// MockProvider is a mock payment provider for tests and local runs.
// Transactions registered with SetTransaction are returned by
// VerifyTransaction; unknown ids yield ErrTransactionNotFound.
type MockProvider struct {
	// InitializeChargeFunc allows customizing charge creation behavior
	InitializeChargeFunc func(ctx context.Context, params ChargeParams) (*Charge, error)

	// VerifyTransactionFunc allows customizing verification behavior
	VerifyTransactionFunc func(ctx context.Context, transactionID string) (*Transaction, error)

	// ParseWebhookFunc allows customizing webhook parsing behavior
	ParseWebhookFunc func(payload []byte, header http.Header) (*WebhookEvent, error)

	// WebhookHash is the expected verif-hash value
	WebhookHash string

	mu           sync.Mutex
	transactions map[string]*Transaction
	charges      map[string]ChargeParams
	callLog      []string
}

// NewMockProvider creates a new mock payment provider.
func NewMockProvider(webhookHash string) *MockProvider {
	return &MockProvider{
		WebhookHash:  webhookHash,
		transactions: make(map[string]*Transaction),
		charges:      make(map[string]ChargeParams),
	}
}

// Name returns "mock".
func (m *MockProvider) Name() string {
	return "mock"
}

// SetTransaction registers the state VerifyTransaction reports for tx.ID.
func (m *MockProvider) SetTransaction(tx *Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[tx.ID] = tx
}

// Charge returns the parameters of the charge started for reference.
func (m *MockProvider) Charge(reference string) (ChargeParams, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	params, ok := m.charges[reference]
	return params, ok
}

// CallLog returns a copy of the recorded method calls.
func (m *MockProvider) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callLog...)
}

// Calls counts recorded calls whose entry starts with prefix.
func (m *MockProvider) Calls(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, entry := range m.callLog {
		if strings.HasPrefix(entry, prefix) {
			n++
		}
	}
	return n
}

func (m *MockProvider) record(entry string) {
	m.mu.Lock()
	m.callLog = append(m.callLog, entry)
	m.mu.Unlock()
}

// InitializeCharge records the charge and returns a fake checkout link.
func (m *MockProvider) InitializeCharge(ctx context.Context, params ChargeParams) (*Charge, error) {
	m.record(fmt.Sprintf("InitializeCharge(%s, %s %s)", params.Reference, params.Amount.StringFixed(2), params.Currency))

	if m.InitializeChargeFunc != nil {
		return m.InitializeChargeFunc(ctx, params)
	}

	m.mu.Lock()
	m.charges[params.Reference] = params
	m.mu.Unlock()

	return &Charge{
		Reference:   params.Reference,
		RedirectURL: "https://checkout.mock.test/pay/" + params.Reference,
	}, nil
}

// VerifyTransaction returns the registered transaction state.
func (m *MockProvider) VerifyTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	m.record(fmt.Sprintf("VerifyTransaction(%s)", transactionID))

	if m.VerifyTransactionFunc != nil {
		return m.VerifyTransactionFunc(ctx, transactionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

// ParseWebhook checks the verif-hash header and decodes a
// Flutterwave-shaped payload.
func (m *MockProvider) ParseWebhook(payload []byte, header http.Header) (*WebhookEvent, error) {
	m.record("ParseWebhook")

	if m.ParseWebhookFunc != nil {
		return m.ParseWebhookFunc(payload, header)
	}

	if m.WebhookHash == "" || header.Get(MockSignatureHeader) != m.WebhookHash {
		return nil, ErrInvalidWebhookSignature
	}

	var body struct {
		Event string `json:"event"`
		Data  struct {
			ID       gatewayID       `json:"id"`
			TxRef    string          `json:"tx_ref"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
			Status   string          `json:"status"`
		} `json:"data"`
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

// Settle registers a successful transaction for a started charge and
// returns its id. Used by tests and the local demo flow.
func (m *MockProvider) Settle(reference string) (string, error) {
	params, ok := m.Charge(reference)
	if !ok {
		return "", fmt.Errorf("mock: no charge for reference %q", reference)
	}
	id := uuid.NewString()
	m.SetTransaction(&Transaction{
		ID:        id,
		Reference: reference,
		Status:    StatusSuccessful,
		Amount:    params.Amount,
		Currency:  params.Currency,
		Raw:       json.RawMessage(`{"mock":true}`),
	})
	return id, nil
}
