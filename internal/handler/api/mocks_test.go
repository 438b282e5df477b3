package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
)

// mockCartService implements domain.CartService for testing
type mockCartService struct {
	getOrCreateActiveCartFunc func(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	getCartFunc               func(ctx context.Context, userID uuid.UUID) (*domain.CartDetail, error)
	addItemFunc               func(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*domain.CartMutation, error)
	updateItemQuantityFunc    func(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartMutation, error)
	removeItemFunc            func(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartMutation, error)
	clearFunc                 func(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
}

func (m *mockCartService) GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if m.getOrCreateActiveCartFunc != nil {
		return m.getOrCreateActiveCartFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockCartService) GetCart(ctx context.Context, userID uuid.UUID) (*domain.CartDetail, error) {
	if m.getCartFunc != nil {
		return m.getCartFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockCartService) AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*domain.CartMutation, error) {
	if m.addItemFunc != nil {
		return m.addItemFunc(ctx, userID, gameID, quantity)
	}
	return nil, nil
}

func (m *mockCartService) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*domain.CartMutation, error) {
	if m.updateItemQuantityFunc != nil {
		return m.updateItemQuantityFunc(ctx, userID, itemID, quantity)
	}
	return nil, nil
}

func (m *mockCartService) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*domain.CartMutation, error) {
	if m.removeItemFunc != nil {
		return m.removeItemFunc(ctx, userID, itemID)
	}
	return nil, nil
}

func (m *mockCartService) Clear(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if m.clearFunc != nil {
		return m.clearFunc(ctx, userID)
	}
	return nil, nil
}

// mockOrderService implements domain.OrderService for testing
type mockOrderService struct {
	createOrderFunc func(ctx context.Context, userID uuid.UUID, params domain.CreateOrderParams) (*domain.Order, error)
	getOrderFunc    func(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	listOrdersFunc  func(ctx context.Context, userID uuid.UUID, params domain.ListOrdersParams) (*domain.OrderPage, error)
	cancelOrderFunc func(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
}

func (m *mockOrderService) CreateOrder(ctx context.Context, userID uuid.UUID, params domain.CreateOrderParams) (*domain.Order, error) {
	if m.createOrderFunc != nil {
		return m.createOrderFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *mockOrderService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	if m.getOrderFunc != nil {
		return m.getOrderFunc(ctx, userID, orderID)
	}
	return nil, nil
}

func (m *mockOrderService) ListOrders(ctx context.Context, userID uuid.UUID, params domain.ListOrdersParams) (*domain.OrderPage, error) {
	if m.listOrdersFunc != nil {
		return m.listOrdersFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *mockOrderService) CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	if m.cancelOrderFunc != nil {
		return m.cancelOrderFunc(ctx, userID, orderID)
	}
	return nil, nil
}

// mockPaymentService implements domain.PaymentService for testing
type mockPaymentService struct {
	initializeFunc        func(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.PaymentInitialization, error)
	verifyCallbackFunc    func(ctx context.Context, user *domain.User, params domain.CallbackParams) (*domain.Payment, error)
	getPaymentHistoryFunc func(ctx context.Context, userID uuid.UUID) ([]domain.PaymentHistoryEntry, error)
}

func (m *mockPaymentService) Initialize(ctx context.Context, user *domain.User, orderID uuid.UUID) (*domain.PaymentInitialization, error) {
	if m.initializeFunc != nil {
		return m.initializeFunc(ctx, user, orderID)
	}
	return nil, nil
}

func (m *mockPaymentService) VerifyCallback(ctx context.Context, user *domain.User, params domain.CallbackParams) (*domain.Payment, error) {
	if m.verifyCallbackFunc != nil {
		return m.verifyCallbackFunc(ctx, user, params)
	}
	return nil, nil
}

func (m *mockPaymentService) HandleWebhook(ctx context.Context, payload []byte, header http.Header) (*domain.WebhookOutcome, error) {
	return nil, nil
}

func (m *mockPaymentService) GetPaymentHistory(ctx context.Context, userID uuid.UUID) ([]domain.PaymentHistoryEntry, error) {
	if m.getPaymentHistoryFunc != nil {
		return m.getPaymentHistoryFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockPaymentService) ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	return 0, nil
}

var testUser = &domain.User{
	ID:        uuid.MustParse("0b9f6c1e-3c1d-4a57-9f3e-2d7c5e8a9b10"),
	Email:     "ada@example.com",
	FirstName: "Ada",
	LastName:  "Tester",
	Verified:  true,
}

// newAuthedRequest builds a request carrying testUser, as Authenticate would.
func newAuthedRequest(method, target, body string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req.WithContext(domain.NewContextWithUser(req.Context(), testUser))
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Fields  map[string]string `json:"fields"`
	} `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}
