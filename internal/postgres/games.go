package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

const gameColumns = `id, name, slug, price, discount, stock_quantity, stock_unlimited,
	availability, is_active, created_at, updated_at`

func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	var availability string
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Slug,
		&g.Price,
		&g.Discount,
		&g.Stock.Quantity,
		&g.Stock.Unlimited,
		&availability,
		&g.IsActive,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	g.Availability = domain.Availability(availability)
	return &g, nil
}

const getGame = `SELECT ` + gameColumns + ` FROM games WHERE id = $1`

// GetGame returns a game by id.
func (q *Queries) GetGame(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	return scanGame(q.db.QueryRow(ctx, getGame, id))
}

const markGameOutOfStock = `
UPDATE games
SET availability = 'out-of-stock', is_active = FALSE, updated_at = now()
WHERE id = $1 AND stock_unlimited = FALSE AND stock_quantity = 0
`

// MarkGameOutOfStock flips a depleted limited game to out-of-stock.
func (q *Queries) MarkGameOutOfStock(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, markGameOutOfStock, id)
	return err
}

// Column references on the right-hand side see the pre-update row, so the
// CASE arms and GREATEST all evaluate against the same stock value.
const decrementGameStock = `
UPDATE games
SET stock_quantity = GREATEST(stock_quantity - $2, 0),
    availability   = CASE WHEN stock_quantity - $2 <= 0 THEN 'out-of-stock' ELSE availability END,
    is_active      = CASE WHEN stock_quantity - $2 <= 0 THEN FALSE ELSE is_active END,
    updated_at     = now()
WHERE id = $1 AND stock_unlimited = FALSE
RETURNING ` + gameColumns

// DecrementGameStock atomically removes qty units, floored at zero.
func (q *Queries) DecrementGameStock(ctx context.Context, id uuid.UUID, qty int) (*domain.Game, error) {
	g, err := scanGame(q.db.QueryRow(ctx, decrementGameStock, id, qty))
	if errors.Is(err, repository.ErrNoRows) {
		// Unlimited or missing; GetGame tells them apart.
		return q.GetGame(ctx, id)
	}
	return g, err
}
