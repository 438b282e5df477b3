package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

func seedGame(s *Store, stock int) domain.Game {
	g := domain.Game{
		ID:           uuid.New(),
		Name:         "halo",
		Price:        decimal.NewFromInt(60),
		Stock:        domain.Stock{Quantity: stock},
		Availability: domain.AvailabilityAvailable,
		IsActive:     true,
	}
	s.AddGame(g)
	return g
}

func newPayment(orderID uuid.UUID, reference string) *domain.Payment {
	return &domain.Payment{
		ID:        uuid.New(),
		OrderID:   orderID,
		UserID:    uuid.New(),
		Reference: reference,
		Amount:    decimal.NewFromInt(120),
		Currency:  "NGN",
	}
}

func TestStore_ExecTxRollsBack(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	game := seedGame(s, 5)

	boom := errors.New("boom")
	err := s.ExecTx(ctx, func(q repository.Querier) error {
		_, err := q.DecrementGameStock(ctx, game.ID, 2)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock.Quantity)

	err = s.ExecTx(ctx, func(q repository.Querier) error {
		_, err := q.DecrementGameStock(ctx, game.ID, 2)
		return err
	})
	require.NoError(t, err)

	got, err = s.GetGame(ctx, game.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock.Quantity)
}

func TestStore_UserBySessionToken(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	user := domain.User{ID: uuid.New(), Email: "ada@example.com"}
	s.AddSession("hash", user)

	got, err := s.GetUserBySessionToken(ctx, "hash")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = s.GetUserBySessionToken(ctx, "other")
	assert.ErrorIs(t, err, repository.ErrNoRows)
}

func TestStore_OneActiveCartPerUser(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	first, err := s.CreateActiveCart(ctx, userID)
	require.NoError(t, err)
	second, err := s.CreateActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	moved, err := s.TransitionCartStatus(ctx, first.ID, domain.CartStatusActive, domain.CartStatusCheckout)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.TransitionCartStatus(ctx, first.ID, domain.CartStatusActive, domain.CartStatusCheckout)
	require.NoError(t, err)
	assert.False(t, moved)

	third, err := s.CreateActiveCart(ctx, userID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestStore_UpsertCartItemCap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cart, err := s.CreateActiveCart(ctx, uuid.New())
	require.NoError(t, err)
	gameID := uuid.New()

	params := repository.UpsertCartItemParams{
		CartID:      cart.ID,
		GameID:      gameID,
		Quantity:    2,
		Price:       decimal.NewFromInt(60),
		MaxQuantity: 3,
	}

	item, inserted, err := s.UpsertCartItem(ctx, params)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, 2, item.Quantity)

	_, _, err = s.UpsertCartItem(ctx, params)
	assert.ErrorIs(t, err, repository.ErrNoRows)

	params.Quantity = 1
	item, inserted, err = s.UpsertCartItem(ctx, params)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 3, item.Quantity)
}

func TestStore_UpsertCartItemUncapped(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cart, err := s.CreateActiveCart(ctx, uuid.New())
	require.NoError(t, err)

	params := repository.UpsertCartItemParams{
		CartID:   cart.ID,
		GameID:   uuid.New(),
		Quantity: 900,
		Price:    decimal.NewFromInt(20),
	}
	_, _, err = s.UpsertCartItem(ctx, params)
	require.NoError(t, err)

	item, inserted, err := s.UpsertCartItem(ctx, params)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, 1800, item.Quantity)
}

func TestStore_DecrementGameStockFloorsAtZero(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	game := seedGame(s, 2)

	got, err := s.DecrementGameStock(ctx, game.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Stock.Quantity)
	assert.Equal(t, domain.AvailabilityOutOfStock, got.Availability)

	_, err = s.DecrementGameStock(ctx, uuid.New(), 1)
	assert.ErrorIs(t, err, repository.ErrNoRows)
}

func TestStore_OnePendingPaymentPerOrder(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	orderID := uuid.New()

	first := newPayment(orderID, "tx_1")
	created, err := s.CreatePendingPayment(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.PaymentStatusPending, first.Status)
	assert.False(t, first.CreatedAt.IsZero())

	created, err = s.CreatePendingPayment(ctx, newPayment(orderID, "tx_2"))
	require.NoError(t, err)
	assert.False(t, created)

	// Duplicate references are refused even for another order.
	created, err = s.CreatePendingPayment(ctx, newPayment(uuid.New(), "tx_1"))
	require.NoError(t, err)
	assert.False(t, created)

	failed, err := s.FailPayment(ctx, repository.FailPaymentParams{ID: first.ID, Reason: "declined"})
	require.NoError(t, err)
	assert.True(t, failed)

	created, err = s.CreatePendingPayment(ctx, newPayment(orderID, "tx_3"))
	require.NoError(t, err)
	assert.True(t, created)
}

func TestStore_CompletePaymentIsCompareAndSwap(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	p := newPayment(uuid.New(), "tx_1")
	_, err := s.CreatePendingPayment(ctx, p)
	require.NoError(t, err)

	params := repository.CompletePaymentParams{ID: p.ID, TransactionID: "flw-1", PaidAt: time.Now()}

	won, err := s.CompletePayment(ctx, params)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = s.CompletePayment(ctx, params)
	require.NoError(t, err)
	assert.False(t, won)

	failed, err := s.FailPayment(ctx, repository.FailPaymentParams{ID: p.ID, Reason: "late"})
	require.NoError(t, err)
	assert.False(t, failed)

	got, err := s.GetPayment(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccessful, got.Status)
	assert.Equal(t, "flw-1", got.TransactionID)
	require.NotNil(t, got.PaidAt)
}

func TestStore_CancelPendingPaymentsBefore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	old := newPayment(uuid.New(), "tx_old")
	_, err := s.CreatePendingPayment(ctx, old)
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(time.Second)

	done := newPayment(uuid.New(), "tx_done")
	_, err = s.CreatePendingPayment(ctx, done)
	require.NoError(t, err)
	_, err = s.CompletePayment(ctx, repository.CompletePaymentParams{ID: done.ID, TransactionID: "flw-9", PaidAt: time.Now()})
	require.NoError(t, err)

	cancelled, err := s.CancelPendingPaymentsBefore(ctx, cutoff, "expired")
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	assert.Equal(t, old.ID, cancelled[0].ID)
	assert.Equal(t, domain.PaymentStatusCancelled, cancelled[0].Status)
	assert.Equal(t, "expired", cancelled[0].FailureReason)
}

func TestStore_MarkOrderPaid(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	userID := uuid.New()

	order := &domain.Order{
		ID:            uuid.New(),
		UserID:        userID,
		OrderNumber:   "ORD-1-ABCDEF",
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.OrderPaymentPending,
		IsActive:      true,
	}
	require.NoError(t, s.CreateOrder(ctx, order))
	assert.Error(t, s.CreateOrder(ctx, &domain.Order{ID: uuid.New(), OrderNumber: order.OrderNumber}))

	require.NoError(t, s.MarkOrderPaymentFailed(ctx, order.ID))
	got, err := s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaymentFailed, got.PaymentStatus)

	paid, err := s.MarkOrderPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusProcessing, paid.Status)
	assert.Equal(t, domain.OrderPaymentPaid, paid.PaymentStatus)

	// A paid order never goes back to failed.
	require.NoError(t, s.MarkOrderPaymentFailed(ctx, order.ID))
	got, err = s.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaymentPaid, got.PaymentStatus)

	_, err = s.CancelPendingOrder(ctx, userID, order.ID)
	assert.ErrorIs(t, err, repository.ErrNoRows)
}
