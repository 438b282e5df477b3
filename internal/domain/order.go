package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDER DOMAIN ERRORS
// =============================================================================

var (
	ErrOrderNotFound        = &Error{Code: ENOTFOUND, Message: "Order not found"}
	ErrEmptyCart            = &Error{Code: EINVALID, Message: "Cart is empty"}
	ErrCartAlreadyConverted = &Error{Code: ECONFLICT, Message: "Cart has already been checked out"}
	ErrOrderNotCancellable  = &Error{Code: ECONFLICT, Message: "Only pending orders can be cancelled"}
)

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	}
	return false
}

// OrderPaymentStatus is the settlement state of an order.
type OrderPaymentStatus string

const (
	OrderPaymentPending OrderPaymentStatus = "pending"
	OrderPaymentPaid    OrderPaymentStatus = "paid"
	OrderPaymentFailed  OrderPaymentStatus = "failed"
)

// PaymentMethod is the shopper's declared way of paying.
type PaymentMethod string

const (
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodPaypal       PaymentMethod = "paypal"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether m is an accepted payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCard, PaymentMethodPaypal, PaymentMethodBankTransfer:
		return true
	}
	return false
}

// DefaultCountry is applied when a shipping address omits its country.
const DefaultCountry = "NG"

// ShippingAddress is copied onto the order at creation.
type ShippingAddress struct {
	Street  string `json:"street" validate:"required,max=200"`
	City    string `json:"city" validate:"required,max=100"`
	State   string `json:"state" validate:"required,max=100"`
	ZipCode string `json:"zipCode" validate:"required,max=20"`
	Country string `json:"country" validate:"omitempty,len=2"`
}

// OrderItem is the immutable snapshot of one purchased line.
type OrderItem struct {
	ID       uuid.UUID       `json:"id"`
	GameID   uuid.UUID       `json:"gameId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// NewOrderItem snapshots a game line at the given unit price.
func NewOrderItem(game *Game, quantity int, price decimal.Decimal) OrderItem {
	return OrderItem{
		ID:       uuid.New(),
		GameID:   game.ID,
		Name:     game.Name,
		Price:    price,
		Quantity: quantity,
		Subtotal: price.Mul(decimal.NewFromInt(int64(quantity))),
	}
}

// Order is frozen at creation; only Status, PaymentStatus and IsActive change.
type Order struct {
	ID              uuid.UUID          `json:"id"`
	UserID          uuid.UUID          `json:"userId"`
	OrderNumber     string             `json:"orderNumber"`
	Items           []OrderItem        `json:"items"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	TotalItems      int                `json:"totalItems"`
	Status          OrderStatus        `json:"status"`
	PaymentStatus   OrderPaymentStatus `json:"paymentStatus"`
	PaymentMethod   PaymentMethod      `json:"paymentMethod"`
	ShippingAddress ShippingAddress    `json:"shippingAddress"`
	IsActive        bool               `json:"isActive"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// ComputeOrderTotals sums the item snapshot.
func ComputeOrderTotals(items []OrderItem) (decimal.Decimal, int) {
	amount := decimal.Zero
	count := 0
	for _, item := range items {
		amount = amount.Add(item.Subtotal)
		count += item.Quantity
	}
	return amount, count
}

// CreateOrderParams carries the shopper's checkout input.
type CreateOrderParams struct {
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
}

// ListOrdersParams filters and paginates a user's orders.
type ListOrdersParams struct {
	Status OrderStatus // empty means all
	Page   int
	Limit  int
}

// OrderPage is one page of a user's orders.
type OrderPage struct {
	Orders     []Order `json:"orders"`
	Total      int     `json:"total"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
}

// OrderService turns carts into orders and manages their lifecycle.
type OrderService interface {
	// CreateOrder snapshots the user's active cart into a pending order and
	// moves the cart to checkout. All-or-nothing.
	CreateOrder(ctx context.Context, userID uuid.UUID, params CreateOrderParams) (*Order, error)

	// GetOrder returns one of the user's orders.
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)

	// ListOrders returns a page of the user's orders, newest first.
	ListOrders(ctx context.Context, userID uuid.UUID, params ListOrdersParams) (*OrderPage, error)

	// CancelOrder cancels a pending order. Inventory is not touched.
	CancelOrder(ctx context.Context, userID, orderID uuid.UUID) (*Order, error)
}
