// Package repository defines the storage contract shared by the Postgres and
// in-memory backends. Every conditional write here is atomic at the store:
// callers never read-then-write to enforce a state transition.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/gamersmart/internal/domain"
)

// ErrNoRows is returned when a lookup or conditional update matched nothing.
var ErrNoRows = errors.New("repository: no rows in result set")

// UpsertCartItemParams describes an add-to-cart merge.
type UpsertCartItemParams struct {
	CartID   uuid.UUID
	GameID   uuid.UUID
	Quantity int
	Price    decimal.Decimal
	// MaxQuantity caps the merged quantity. The update arm applies only when
	// existing+Quantity <= MaxQuantity; otherwise ErrNoRows is returned.
	// Zero means no cap.
	MaxQuantity int
}

// UpdateCartItemParams overwrites a line's quantity and price snapshot.
type UpdateCartItemParams struct {
	CartID   uuid.UUID
	ItemID   uuid.UUID
	Quantity int
	Price    decimal.Decimal
}

// ListOrdersParams selects a page of a user's orders.
type ListOrdersParams struct {
	UserID uuid.UUID
	Status domain.OrderStatus // empty means all
	Limit  int
	Offset int
}

// CompletePaymentParams records a verified gateway success.
type CompletePaymentParams struct {
	ID              uuid.UUID
	TransactionID   string
	PaidAt          time.Time
	GatewayResponse json.RawMessage
}

// FailPaymentParams records a verification failure.
type FailPaymentParams struct {
	ID              uuid.UUID
	Reason          string
	GatewayResponse json.RawMessage
}

// Querier is the set of queries available both inside and outside a transaction.
type Querier interface {
	// Users
	GetUserBySessionToken(ctx context.Context, tokenHash string) (*domain.User, error)

	// Games
	GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	// MarkGameOutOfStock flips a limited game with zero stock to out-of-stock.
	MarkGameOutOfStock(ctx context.Context, id uuid.UUID) error
	// DecrementGameStock subtracts qty floored at zero and flips availability
	// when a limited game reaches zero. Unlimited games are returned unchanged.
	DecrementGameStock(ctx context.Context, id uuid.UUID, qty int) (*domain.Game, error)

	// Carts
	GetActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	// CreateActiveCart inserts an empty active cart unless one already exists,
	// and returns whichever cart is active afterwards.
	CreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)
	UpdateCartTotals(ctx context.Context, cartID uuid.UUID, totals domain.CartTotals) (*domain.Cart, error)
	// TransitionCartStatus moves a cart from one status to another and
	// reports whether the cart was in the expected status.
	TransitionCartStatus(ctx context.Context, cartID uuid.UUID, from, to domain.CartStatus) (bool, error)

	// Cart items
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error)
	GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error)
	// UpsertCartItem inserts a line or merges quantity into the existing one.
	UpsertCartItem(ctx context.Context, arg UpsertCartItemParams) (item *domain.CartItem, inserted bool, err error)
	UpdateCartItem(ctx context.Context, arg UpdateCartItemParams) (*domain.CartItem, error)
	DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error)
	DeleteCartItems(ctx context.Context, cartID uuid.UUID) error

	// Orders
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]domain.Order, int, error)
	// CancelPendingOrder cancels the order only while it is pending.
	CancelPendingOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error)
	// MarkOrderPaid sets payment_status=paid and advances a pending order to
	// processing. Orders in any other status keep their status.
	MarkOrderPaid(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// MarkOrderPaymentFailed sets payment_status=failed unless already paid.
	MarkOrderPaymentFailed(ctx context.Context, id uuid.UUID) error

	// Payments
	// CreatePendingPayment inserts the payment unless the order already has a
	// pending one, and reports whether the insert happened.
	CreatePendingPayment(ctx context.Context, payment *domain.Payment) (bool, error)
	GetPendingPaymentForOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (*domain.Payment, error)
	// CompletePayment is the pending→successful compare-and-swap.
	CompletePayment(ctx context.Context, arg CompletePaymentParams) (bool, error)
	// FailPayment is the pending→failed compare-and-swap.
	FailPayment(ctx context.Context, arg FailPaymentParams) (bool, error)
	// CancelPendingPaymentsBefore moves pending payments created before the
	// cutoff to cancelled and returns them.
	CancelPendingPaymentsBefore(ctx context.Context, cutoff time.Time, reason string) ([]domain.Payment, error)
	ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error)
}

// Store is a Querier that can also run a function inside a transaction.
// If fn returns an error every write made through q is rolled back.
type Store interface {
	Querier
	ExecTx(ctx context.Context, fn func(q Querier) error) error
}
