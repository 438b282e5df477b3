package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// CART DOMAIN ERRORS
// =============================================================================

var (
	ErrCartNotFound     = &Error{Code: ENOTFOUND, Message: "Cart not found"}
	ErrCartItemNotFound = &Error{Code: ENOTFOUND, Message: "Cart item not found"}
	ErrInvalidQuantity  = &Error{Code: EINVALID, Message: "Quantity must be between 1 and 1000"}
)

// Quantity bounds for a single cart line.
const (
	MinItemQuantity = 1
	MaxItemQuantity = 1000
)

// CartStatus is the lifecycle state of a cart.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCheckout  CartStatus = "checkout"
	CartStatusCompleted CartStatus = "completed"
	CartStatusAbandoned CartStatus = "abandoned"
)

// Cart is a user's mutable working basket. TotalAmount and TotalItems are
// derived from the items and rewritten after every mutation.
type Cart struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"userId"`
	Status      CartStatus      `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int             `json:"totalItems"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CartItem is one line of a cart. Price is the game's discount price frozen
// when the line was last added or updated.
type CartItem struct {
	ID        uuid.UUID       `json:"id"`
	CartID    uuid.UUID       `json:"cartId"`
	GameID    uuid.UUID       `json:"gameId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Subtotal returns price × quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartTotals are the derived cart aggregates.
type CartTotals struct {
	Amount decimal.Decimal
	Items  int
}

// ComputeCartTotals folds the current item set into cart totals.
func ComputeCartTotals(items []CartItem) CartTotals {
	totals := CartTotals{Amount: decimal.Zero}
	for _, item := range items {
		totals.Amount = totals.Amount.Add(item.Subtotal())
		totals.Items += item.Quantity
	}
	return totals
}

// ValidQuantity reports whether qty is within the per-line bounds.
func ValidQuantity(qty int) bool {
	return qty >= MinItemQuantity && qty <= MaxItemQuantity
}

// CartDetail is a cart together with its current items.
type CartDetail struct {
	Cart  Cart       `json:"cart"`
	Items []CartItem `json:"items"`
}

// CartMutation is the result of a single item operation.
type CartMutation struct {
	Cart     Cart     `json:"cart"`
	Item     CartItem `json:"item"`
	Inserted bool     `json:"-"`
}

// CartService manages a user's active cart.
type CartService interface {
	// GetOrCreateActiveCart returns the user's active cart, creating an empty
	// one on first access.
	GetOrCreateActiveCart(ctx context.Context, userID uuid.UUID) (*Cart, error)

	// GetCart returns the active cart with its items.
	GetCart(ctx context.Context, userID uuid.UUID) (*CartDetail, error)

	// AddItem adds quantity units of a game, merging into an existing line.
	AddItem(ctx context.Context, userID, gameID uuid.UUID, quantity int) (*CartMutation, error)

	// UpdateItemQuantity overwrites the quantity of a line.
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*CartMutation, error)

	// RemoveItem deletes a line from the active cart.
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*CartMutation, error)

	// Clear deletes every line and zeroes the totals.
	Clear(ctx context.Context, userID uuid.UUID) (*Cart, error)
}
