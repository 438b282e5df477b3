package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

const orderColumns = `id, user_id, order_number, total_amount, total_items, status, payment_status,
	payment_method, shipping_street, shipping_city, shipping_state, shipping_zip, shipping_country,
	is_active, created_at, updated_at`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var status, paymentStatus, paymentMethod string
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.OrderNumber,
		&o.TotalAmount,
		&o.TotalItems,
		&status,
		&paymentStatus,
		&paymentMethod,
		&o.ShippingAddress.Street,
		&o.ShippingAddress.City,
		&o.ShippingAddress.State,
		&o.ShippingAddress.ZipCode,
		&o.ShippingAddress.Country,
		&o.IsActive,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaymentStatus = domain.OrderPaymentStatus(paymentStatus)
	o.PaymentMethod = domain.PaymentMethod(paymentMethod)
	o.Items = []domain.OrderItem{}
	return &o, nil
}

const insertOrder = `
INSERT INTO orders (
	id, user_id, order_number, total_amount, total_items, status, payment_status,
	payment_method, shipping_street, shipping_city, shipping_state, shipping_zip,
	shipping_country, is_active
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING created_at, updated_at`

const insertOrderItem = `
INSERT INTO order_items (id, order_id, game_id, name, price, quantity, subtotal, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// CreateOrder inserts an order and its item snapshot. Call inside ExecTx.
func (q *Queries) CreateOrder(ctx context.Context, o *domain.Order) error {
	err := q.db.QueryRow(ctx, insertOrder,
		o.ID,
		o.UserID,
		o.OrderNumber,
		o.TotalAmount,
		o.TotalItems,
		string(o.Status),
		string(o.PaymentStatus),
		string(o.PaymentMethod),
		o.ShippingAddress.Street,
		o.ShippingAddress.City,
		o.ShippingAddress.State,
		o.ShippingAddress.ZipCode,
		o.ShippingAddress.Country,
		o.IsActive,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for i, item := range o.Items {
		_, err := q.db.Exec(ctx, insertOrderItem,
			item.ID,
			o.ID,
			item.GameID,
			item.Name,
			item.Price,
			item.Quantity,
			item.Subtotal,
			i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

const listOrderItems = `
SELECT order_id, id, game_id, name, price, quantity, subtotal
FROM order_items
WHERE order_id = ANY($1)
ORDER BY order_id, position`

// attachItems loads the item snapshots for the given orders in one query.
func (q *Queries) attachItems(ctx context.Context, orders ...*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(orders))
	byID := make(map[uuid.UUID]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	rows, err := q.db.Query(ctx, listOrderItems, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var orderID uuid.UUID
		var item domain.OrderItem
		if err := rows.Scan(
			&orderID,
			&item.ID,
			&item.GameID,
			&item.Name,
			&item.Price,
			&item.Quantity,
			&item.Subtotal,
		); err != nil {
			return err
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return rows.Err()
}

func (q *Queries) orderWithItems(ctx context.Context, row pgx.Row) (*domain.Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	if err := q.attachItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

// GetOrder returns an order with its items.
func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return q.orderWithItems(ctx, q.db.QueryRow(ctx, getOrder, id))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC, id
LIMIT $3 OFFSET $4`

const countOrders = `SELECT count(*) FROM orders WHERE user_id = $1 AND ($2 = '' OR status = $2)`

// ListOrders returns a page of a user's orders and the unpaginated count.
func (q *Queries) ListOrders(ctx context.Context, arg repository.ListOrdersParams) ([]domain.Order, int, error) {
	var total int
	if err := q.db.QueryRow(ctx, countOrders, arg.UserID, string(arg.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := q.db.Query(ctx, listOrders, arg.UserID, string(arg.Status), arg.Limit, arg.Offset)
	if err != nil {
		return nil, 0, err
	}
	ptrs := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if err := q.attachItems(ctx, ptrs...); err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(ptrs))
	for _, o := range ptrs {
		orders = append(orders, *o)
	}
	return orders, total, nil
}

const cancelPendingOrder = `
UPDATE orders SET status = 'cancelled', is_active = FALSE, updated_at = now()
WHERE id = $1 AND user_id = $2 AND status = 'pending'
RETURNING ` + orderColumns

// CancelPendingOrder is the pending→cancelled compare-and-swap.
func (q *Queries) CancelPendingOrder(ctx context.Context, userID, orderID uuid.UUID) (*domain.Order, error) {
	return q.orderWithItems(ctx, q.db.QueryRow(ctx, cancelPendingOrder, orderID, userID))
}

const markOrderPaid = `
UPDATE orders
SET payment_status = 'paid',
    status         = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
    updated_at     = now()
WHERE id = $1
RETURNING ` + orderColumns

// MarkOrderPaid records settlement and advances a pending order.
func (q *Queries) MarkOrderPaid(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return q.orderWithItems(ctx, q.db.QueryRow(ctx, markOrderPaid, id))
}

const markOrderPaymentFailed = `
UPDATE orders SET payment_status = 'failed', updated_at = now()
WHERE id = $1 AND payment_status <> 'paid'`

// MarkOrderPaymentFailed records a failed settlement attempt.
func (q *Queries) MarkOrderPaymentFailed(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, markOrderPaymentFailed, id)
	return err
}
