package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tkaseke/homestore/internal/domain/payment"
)

const (
	upsertPaymentSQL = `INSERT INTO payments (
		order_id, payment_method, transaction_id, amount, currency, status, poll_url, instructions
	) VALUES ($1, $2, $3, $4, $5, 'pending', $6, $7)
	ON CONFLICT (order_id) DO UPDATE SET
		payment_method = EXCLUDED.payment_method,
		transaction_id = EXCLUDED.transaction_id,
		amount = EXCLUDED.amount,
		currency = EXCLUDED.currency,
		status = 'pending',
		poll_url = EXCLUDED.poll_url,
		instructions = EXCLUDED.instructions,
		failure_reason = '',
		processed_at = NULL
	RETURNING id, created_at`

	paymentColumns = `id, order_id, payment_method, transaction_id, amount, currency,
		status, poll_url, instructions, failure_reason, processed_at, created_at`

	getPaymentByIDSQL = `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	getPaymentByOrderSQL = `SELECT p.id, p.order_id, p.payment_method, p.transaction_id,
		p.amount, p.currency, p.status, p.poll_url, p.instructions, p.failure_reason,
		p.processed_at, p.created_at
		FROM payments p JOIN orders o ON o.id = p.order_id
		WHERE p.order_id = $1 AND o.user_id = $2`

	completePaymentSQL = `UPDATE payments SET status = 'completed', processed_at = $2
		WHERE id = $1 RETURNING order_id`

	failPaymentSQL = `UPDATE payments SET status = 'failed', failure_reason = $2
		WHERE id = $1 RETURNING order_id`

	timeoutPaymentSQL = `UPDATE payments SET status = 'timeout'
		WHERE id = $1 AND status = 'pending' RETURNING order_id`

	setOrderPaidSQL = `UPDATE orders SET payment_status = 'paid', status = 'confirmed' WHERE id = $1`

	setOrderPaymentStatusSQL = `UPDATE orders SET payment_status = $2 WHERE id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Upsert inserts the payment or overwrites the order's existing one,
// resetting it to pending. The owning order's payment_status moves back to
// pending in the same transaction.
func (r *PaymentRepository) Upsert(ctx context.Context, p *payment.Payment) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, upsertPaymentSQL,
			p.OrderID, p.Method, p.TransactionID, p.Amount, p.Currency,
			p.PollURL, p.Instructions,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, setOrderPaymentStatusSQL, p.OrderID, "pending")
		return err
	})
	if err != nil {
		return fmt.Errorf("upserting payment for order %d: %w", p.OrderID, err)
	}
	p.Status = payment.StatusPending
	return nil
}

// GetByID returns a payment by its identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, getPaymentByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting payment %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment %d: %w", id, err)
	}
	return &p, nil
}

// GetByOrderForUser returns the payment for the order, scoped to the order's
// owner.
func (r *PaymentRepository) GetByOrderForUser(ctx context.Context, orderID, userID int64) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, getPaymentByOrderSQL, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("getting payment for order %d: %w", orderID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment for order %d: %w", orderID, err)
	}
	return &p, nil
}

// ListByOrderForUser returns the order's payments, scoped to its owner. An
// order has at most one payment row, so the slice has zero or one element.
func (r *PaymentRepository) ListByOrderForUser(ctx context.Context, orderID, userID int64) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, getPaymentByOrderSQL, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("listing payments for order %d: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanPayment)
}

// MarkCompleted sets the payment to completed and its order to paid and
// confirmed, in one transaction.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, id int64, processedAt time.Time) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var orderID int64
		if err := tx.QueryRow(ctx, completePaymentSQL, id, processedAt).Scan(&orderID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, setOrderPaidSQL, orderID)
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.ErrNotFound
		}
		return fmt.Errorf("completing payment %d: %w", id, err)
	}
	return nil
}

// MarkFailed sets the payment to failed with a reason, and its order to
// payment_status=failed.
func (r *PaymentRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var orderID int64
		if err := tx.QueryRow(ctx, failPaymentSQL, id, reason).Scan(&orderID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, setOrderPaymentStatusSQL, orderID, "failed")
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payment.ErrNotFound
		}
		return fmt.Errorf("failing payment %d: %w", id, err)
	}
	return nil
}

// MarkTimeout sets the payment to timeout only when it is still pending. A
// payment already completed or failed by a concurrent poll is left alone.
func (r *PaymentRepository) MarkTimeout(ctx context.Context, id int64) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var orderID int64
		err := tx.QueryRow(ctx, timeoutPaymentSQL, id).Scan(&orderID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, setOrderPaymentStatusSQL, orderID, "timeout")
		return err
	})
	if err != nil {
		return fmt.Errorf("timing out payment %d: %w", id, err)
	}
	return nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.Method, &p.TransactionID, &p.Amount, &p.Currency,
		&p.Status, &p.PollURL, &p.Instructions, &p.FailureReason,
		&p.ProcessedAt, &p.CreatedAt,
	)
	return p, err
}
