package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

const cartColumns = `id, user_id, status, total_amount, total_items, created_at, updated_at`

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var c domain.Cart
	var status string
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&status,
		&c.TotalAmount,
		&c.TotalItems,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	c.Status = domain.CartStatus(status)
	return &c, nil
}

const getActiveCart = `SELECT ` + cartColumns + ` FROM carts WHERE user_id = $1 AND status = 'active'`

// GetActiveCart returns the user's active cart.
func (q *Queries) GetActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCart, userID))
}

// The partial unique index idx_carts_one_active_per_user turns a concurrent
// second insert into a no-op.
const createActiveCart = `INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT DO NOTHING`

// CreateActiveCart inserts an empty active cart if none exists.
func (q *Queries) CreateActiveCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	if _, err := q.db.Exec(ctx, createActiveCart, userID); err != nil {
		return nil, err
	}
	return q.GetActiveCart(ctx, userID)
}

const updateCartTotals = `
UPDATE carts SET total_amount = $2, total_items = $3, updated_at = now()
WHERE id = $1
RETURNING ` + cartColumns

// UpdateCartTotals persists recomputed totals.
func (q *Queries) UpdateCartTotals(ctx context.Context, cartID uuid.UUID, totals domain.CartTotals) (*domain.Cart, error) {
	return scanCart(q.db.QueryRow(ctx, updateCartTotals, cartID, totals.Amount, totals.Items))
}

const transitionCartStatus = `UPDATE carts SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`

// TransitionCartStatus moves a cart between statuses if it is in from.
func (q *Queries) TransitionCartStatus(ctx context.Context, cartID uuid.UUID, from, to domain.CartStatus) (bool, error) {
	tag, err := q.db.Exec(ctx, transitionCartStatus, cartID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const cartItemColumns = `id, cart_id, game_id, quantity, price, created_at, updated_at`

func scanCartItem(row pgx.Row, extra ...any) (*domain.CartItem, error) {
	var i domain.CartItem
	dest := append([]any{
		&i.ID,
		&i.CartID,
		&i.GameID,
		&i.Quantity,
		&i.Price,
		&i.CreatedAt,
		&i.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, mapErr(err)
	}
	return &i, nil
}

const listCartItems = `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 ORDER BY created_at, id`

// ListCartItems returns every line of a cart.
func (q *Queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]domain.CartItem, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

const getCartItem = `SELECT ` + cartItemColumns + ` FROM cart_items WHERE cart_id = $1 AND id = $2`

// GetCartItem returns a line scoped to its cart.
func (q *Queries) GetCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, getCartItem, cartID, itemID))
}

// The update arm only fires when the merged quantity stays within $5, or $5
// is zero; otherwise ON CONFLICT ... WHERE suppresses the row and RETURNING
// is empty.
// xmax = 0 identifies a freshly inserted tuple.
const upsertCartItem = `
INSERT INTO cart_items (cart_id, game_id, quantity, price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (cart_id, game_id) DO UPDATE
SET quantity   = cart_items.quantity + EXCLUDED.quantity,
    price      = EXCLUDED.price,
    updated_at = now()
WHERE $5::int = 0 OR cart_items.quantity + EXCLUDED.quantity <= $5::int
RETURNING ` + cartItemColumns + `, (xmax = 0) AS inserted`

// UpsertCartItem inserts a line or merges into the existing one atomically.
func (q *Queries) UpsertCartItem(ctx context.Context, arg repository.UpsertCartItemParams) (*domain.CartItem, bool, error) {
	var inserted bool
	item, err := scanCartItem(
		q.db.QueryRow(ctx, upsertCartItem, arg.CartID, arg.GameID, arg.Quantity, arg.Price, arg.MaxQuantity),
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	return item, inserted, nil
}

const updateCartItem = `
UPDATE cart_items SET quantity = $3, price = $4, updated_at = now()
WHERE cart_id = $1 AND id = $2
RETURNING ` + cartItemColumns

// UpdateCartItem overwrites a line's quantity and price snapshot.
func (q *Queries) UpdateCartItem(ctx context.Context, arg repository.UpdateCartItemParams) (*domain.CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, updateCartItem, arg.CartID, arg.ItemID, arg.Quantity, arg.Price))
}

const deleteCartItem = `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2 RETURNING ` + cartItemColumns

// DeleteCartItem removes a line and returns it.
func (q *Queries) DeleteCartItem(ctx context.Context, cartID, itemID uuid.UUID) (*domain.CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, deleteCartItem, cartID, itemID))
}

const deleteCartItems = `DELETE FROM cart_items WHERE cart_id = $1`

// DeleteCartItems removes every line of a cart.
func (q *Queries) DeleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteCartItems, cartID)
	return err
}
