package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/events"
	"github.com/dukerupert/gamersmart/internal/gateway"
	"github.com/dukerupert/gamersmart/internal/memory"
)

const testWebhookHash = "test-webhook-hash"

// testEnv wires the services over the in-memory store and mock gateway.
type testEnv struct {
	store    *memory.Store
	gw       *gateway.MockProvider
	recorder *events.Recorder
	carts    domain.CartService
	orders   domain.OrderService
	payments domain.PaymentService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.NewStore()
	gw := gateway.NewMockProvider(testWebhookHash)
	recorder := &events.Recorder{}
	logger := discardLogger()

	return &testEnv{
		store:    store,
		gw:       gw,
		recorder: recorder,
		carts:    NewCartService(store, logger),
		orders:   NewOrderService(store, recorder, logger),
		payments: NewPaymentService(store, gw, recorder, PaymentConfig{
			Currency:    "NGN",
			RedirectURL: "https://shop.test/payment/callback",
		}, logger),
	}
}

func newTestUser(name string) *domain.User {
	return &domain.User{
		ID:        uuid.New(),
		Email:     name + "@example.com",
		FirstName: name,
		LastName:  "Tester",
		Verified:  true,
	}
}

// addGame seeds an available game with limited stock.
func (e *testEnv) addGame(name, price string, stock int) domain.Game {
	g := domain.Game{
		ID:           uuid.New(),
		Name:         name,
		Slug:         name,
		Price:        decimal.RequireFromString(price),
		Stock:        domain.Stock{Quantity: stock},
		Availability: domain.AvailabilityAvailable,
		IsActive:     true,
	}
	e.store.AddGame(g)
	return g
}

func (e *testEnv) game(t *testing.T, id uuid.UUID) *domain.Game {
	t.Helper()
	g, err := e.store.GetGame(context.Background(), id)
	require.NoError(t, err)
	return g
}

func (e *testEnv) order(t *testing.T, id uuid.UUID) *domain.Order {
	t.Helper()
	o, err := e.store.GetOrder(context.Background(), id)
	require.NoError(t, err)
	return o
}

func (e *testEnv) payment(t *testing.T, id uuid.UUID) *domain.Payment {
	t.Helper()
	p, err := e.store.GetPayment(context.Background(), id)
	require.NoError(t, err)
	return p
}

func testCheckoutParams() domain.CreateOrderParams {
	return domain.CreateOrderParams{
		ShippingAddress: domain.ShippingAddress{
			Street:  "12 Allen Avenue",
			City:    "Ikeja",
			State:   "Lagos",
			ZipCode: "100001",
		},
		PaymentMethod: domain.PaymentMethodCard,
	}
}

// placeOrder adds qty of game to the user's cart and checks out.
func (e *testEnv) placeOrder(t *testing.T, user *domain.User, gameID uuid.UUID, qty int) *domain.Order {
	t.Helper()
	ctx := context.Background()

	_, err := e.carts.AddItem(ctx, user.ID, gameID, qty)
	require.NoError(t, err)

	order, err := e.orders.CreateOrder(ctx, user.ID, testCheckoutParams())
	require.NoError(t, err)
	return order
}

// startPayment initializes a payment and settles it at the mock gateway.
func (e *testEnv) startPayment(t *testing.T, user *domain.User, orderID uuid.UUID) (*domain.PaymentInitialization, string) {
	t.Helper()

	started, err := e.payments.Initialize(context.Background(), user, orderID)
	require.NoError(t, err)

	txID, err := e.gw.Settle(started.Reference)
	require.NoError(t, err)
	return started, txID
}

func successCallback(reference, txID string) domain.CallbackParams {
	return domain.CallbackParams{
		TransactionID: txID,
		Reference:     reference,
		Status:        gateway.StatusSuccessful,
	}
}

func webhookPayload(event, txID, reference, amount, status string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"data":{"id":%q,"tx_ref":%q,"amount":%s,"currency":"NGN","status":%q}}`,
		event, txID, reference, amount, status,
	))
}

func signedHeader() http.Header {
	h := http.Header{}
	h.Set(gateway.MockSignatureHeader, testWebhookHash)
	return h
}
