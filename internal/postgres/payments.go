package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dukerupert/gamersmart/internal/domain"
	"github.com/dukerupert/gamersmart/internal/repository"
)

const paymentColumns = `id, order_id, user_id, payment_reference, transaction_id, amount, currency,
	status, payment_method, gateway, failure_reason, gateway_response, paid_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var transactionID, failureReason *string
	var status, method string
	err := row.Scan(
		&p.ID,
		&p.OrderID,
		&p.UserID,
		&p.Reference,
		&transactionID,
		&p.Amount,
		&p.Currency,
		&status,
		&method,
		&p.Gateway,
		&failureReason,
		&p.GatewayResponse,
		&p.PaidAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	p.TransactionID = derefString(transactionID)
	p.FailureReason = derefString(failureReason)
	p.Status = domain.PaymentStatus(status)
	p.PaymentMethod = domain.PaymentMethod(method)
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]domain.Payment, error) {
	defer rows.Close()
	payments := []domain.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// idx_payments_one_pending_per_order makes a racing second insert a no-op.
const createPendingPayment = `
INSERT INTO payments (id, order_id, user_id, payment_reference, amount, currency, status, payment_method, gateway)
VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, $8)
ON CONFLICT DO NOTHING
RETURNING created_at, updated_at`

// CreatePendingPayment inserts p unless its order already has a pending payment.
func (q *Queries) CreatePendingPayment(ctx context.Context, p *domain.Payment) (bool, error) {
	err := q.db.QueryRow(ctx, createPendingPayment,
		p.ID,
		p.OrderID,
		p.UserID,
		p.Reference,
		p.Amount,
		p.Currency,
		string(p.PaymentMethod),
		p.Gateway,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err = mapErr(err); errors.Is(err, repository.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	p.Status = domain.PaymentStatusPending
	return true, nil
}

const getPendingPaymentForOrder = `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 AND status = 'pending'`

// GetPendingPaymentForOrder returns the order's open payment attempt.
func (q *Queries) GetPendingPaymentForOrder(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPendingPaymentForOrder, orderID))
}

const getPayment = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

// GetPayment returns a payment by id.
func (q *Queries) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPayment, id))
}

const getPaymentByReference = `SELECT ` + paymentColumns + ` FROM payments WHERE payment_reference = $1`

// GetPaymentByReference returns a payment by its merchant reference.
func (q *Queries) GetPaymentByReference(ctx context.Context, reference string) (*domain.Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByReference, reference))
}

const completePayment = `
UPDATE payments
SET status = 'successful', transaction_id = $2, paid_at = $3, gateway_response = $4,
    failure_reason = NULL, updated_at = now()
WHERE id = $1 AND status = 'pending'`

// CompletePayment is the pending→successful compare-and-swap. Only the
// caller that observes true may apply order and inventory side effects.
func (q *Queries) CompletePayment(ctx context.Context, arg repository.CompletePaymentParams) (bool, error) {
	tag, err := q.db.Exec(ctx, completePayment,
		arg.ID,
		nullString(arg.TransactionID),
		arg.PaidAt,
		arg.GatewayResponse,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const failPayment = `
UPDATE payments
SET status = 'failed', failure_reason = $2, gateway_response = $3, updated_at = now()
WHERE id = $1 AND status = 'pending'`

// FailPayment is the pending→failed compare-and-swap.
func (q *Queries) FailPayment(ctx context.Context, arg repository.FailPaymentParams) (bool, error) {
	tag, err := q.db.Exec(ctx, failPayment, arg.ID, arg.Reason, arg.GatewayResponse)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const cancelPendingPaymentsBefore = `
UPDATE payments
SET status = 'cancelled', failure_reason = $2, updated_at = now()
WHERE status = 'pending' AND created_at < $1
RETURNING ` + paymentColumns

// CancelPendingPaymentsBefore expires abandoned payment attempts.
func (q *Queries) CancelPendingPaymentsBefore(ctx context.Context, cutoff time.Time, reason string) ([]domain.Payment, error) {
	rows, err := q.db.Query(ctx, cancelPendingPaymentsBefore, cutoff, reason)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

const listPaymentsByUser = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id`

// ListPaymentsByUser returns a user's payments, newest first.
func (q *Queries) ListPaymentsByUser(ctx context.Context, userID uuid.UUID) ([]domain.Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByUser, userID)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}
