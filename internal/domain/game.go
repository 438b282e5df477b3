package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Availability is the catalog-facing purchasability flag of a game.
type Availability string

const (
	AvailabilityAvailable  Availability = "available"
	AvailabilityPreOrder   Availability = "pre-order"
	AvailabilityOutOfStock Availability = "out-of-stock"
)

// Stock is the per-game inventory counter. Unlimited games never run out.
type Stock struct {
	Quantity  int  `json:"quantity"`
	Unlimited bool `json:"unlimited"`
}

// Game is a catalog item. The commerce core reads it and mutates only
// Stock, Availability and IsActive.
type Game struct {
	ID           uuid.UUID       `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	Price        decimal.Decimal `json:"price"`
	Discount     decimal.Decimal `json:"discount"` // percent, 0-100
	Stock        Stock           `json:"stock"`
	Availability Availability    `json:"availability"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

var hundred = decimal.NewFromInt(100)

// DiscountPrice returns price × (1 − discount/100) rounded to 2 decimals.
func (g *Game) DiscountPrice() decimal.Decimal {
	if g.Discount.IsZero() {
		return g.Price.Round(2)
	}
	factor := decimal.NewFromInt(1).Sub(g.Discount.Div(hundred))
	return g.Price.Mul(factor).Round(2)
}

// Purchasable reports whether the game may be added to a cart or ordered.
func (g *Game) Purchasable() bool {
	return g.IsActive && g.Availability == AvailabilityAvailable
}

// HasStockFor reports whether qty units can be taken from stock.
func (g *Game) HasStockFor(qty int) bool {
	return g.Stock.Unlimited || g.Stock.Quantity >= qty
}

// InventoryLedger is the single source of truth for purchasable quantity.
// Stock is checked at cart and order time but only decremented when a
// payment succeeds; nothing is reserved in between.
type InventoryLedger interface {
	// CheckAvailable fails with ENOTFOUND when the game is missing, inactive
	// or unavailable, and with ESTOCK when limited stock is below quantity.
	CheckAvailable(ctx context.Context, gameID uuid.UUID, quantity int) (*Game, error)

	// Decrement removes quantity units, floored at zero.
	Decrement(ctx context.Context, gameID uuid.UUID, quantity int) (*Game, error)
}
