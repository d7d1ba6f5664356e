package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tkaseke/homestore/internal/domain/coupon"
	"github.com/tkaseke/homestore/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (
		user_id, order_number, status, payment_status, currency,
		subtotal, tax_amount, shipping_cost, discount_amount, total_amount, coupon_code,
		shipping_first_name, shipping_last_name, shipping_company,
		shipping_address_line1, shipping_address_line2, shipping_city,
		shipping_province, shipping_postal_code, shipping_country, shipping_phone,
		billing_first_name, billing_last_name, billing_company,
		billing_address_line1, billing_address_line2, billing_city,
		billing_province, billing_postal_code, billing_country, billing_phone,
		notes
	) VALUES (
		$1, $2, $3, $4, $5,
		$6, $7, $8, $9, $10, $11,
		$12, $13, $14, $15, $16, $17, $18, $19, $20, $21,
		$22, $23, $24, $25, $26, $27, $28, $29, $30, $31,
		$32
	) RETURNING id, created_at`

	insertOrderItemSQL = `INSERT INTO order_items (
		order_id, product_id, variant_id, product_name, variant_name, sku,
		quantity, unit_price, total_price
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`

	// The WHERE clause keeps the increment from exceeding usage_limit even
	// under concurrent checkouts: the row lock taken by the first UPDATE
	// makes the loser re-evaluate the condition and match zero rows.
	redeemCouponSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE code = $1 AND is_active
		AND (usage_limit IS NULL OR usage_count < usage_limit)`

	orderColumns = `id, user_id, order_number, status, payment_status, currency,
		subtotal, tax_amount, shipping_cost, discount_amount, total_amount, coupon_code,
		shipping_first_name, shipping_last_name, shipping_company,
		shipping_address_line1, shipping_address_line2, shipping_city,
		shipping_province, shipping_postal_code, shipping_country, shipping_phone,
		billing_first_name, billing_last_name, billing_company,
		billing_address_line1, billing_address_line2, billing_city,
		billing_province, billing_postal_code, billing_country, billing_phone,
		notes, shipped_at, delivered_at, created_at`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	listOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`

	listOrderItemsSQL = `SELECT id, order_id, product_id, variant_id,
		product_name, variant_name, sku, quantity, unit_price, total_price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	cancelOrderSQL = `UPDATE orders SET status = 'cancelled'
		WHERE id = $1 AND user_id = $2 AND status = 'pending' AND payment_status <> 'paid'`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND user_id = $2)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// CreateFromCart persists the order, its items, the coupon redemption and
// the cart clear in a single transaction. Any failure rolls everything back,
// so a rejected coupon redemption leaves no partial order behind.
func (r *OrderRepository) CreateFromCart(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertOrderSQL,
			o.UserID, o.OrderNumber, o.Status, o.PaymentStatus, o.Currency,
			o.Subtotal, o.TaxAmount, o.ShippingCost, o.DiscountAmount, o.TotalAmount, o.CouponCode,
			o.Shipping.FirstName, o.Shipping.LastName, o.Shipping.Company,
			o.Shipping.AddressLine1, o.Shipping.AddressLine2, o.Shipping.City,
			o.Shipping.Province, o.Shipping.PostalCode, o.Shipping.Country, o.Shipping.Phone,
			o.Billing.FirstName, o.Billing.LastName, o.Billing.Company,
			o.Billing.AddressLine1, o.Billing.AddressLine2, o.Billing.City,
			o.Billing.Province, o.Billing.PostalCode, o.Billing.Country, o.Billing.Phone,
			o.Notes,
		).Scan(&o.ID, &o.CreatedAt)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for i := range o.Items {
			item := &o.Items[i]
			item.OrderID = o.ID
			err = tx.QueryRow(ctx, insertOrderItemSQL,
				o.ID, item.ProductID, item.VariantID,
				item.ProductName, item.VariantName, item.SKU,
				item.Quantity, item.UnitPrice, item.TotalPrice,
			).Scan(&item.ID)
			if err != nil {
				return fmt.Errorf("inserting order item: %w", err)
			}
		}

		if o.CouponCode != "" {
			tag, err := tx.Exec(ctx, redeemCouponSQL, o.CouponCode)
			if err != nil {
				return fmt.Errorf("redeeming coupon %q: %w", o.CouponCode, err)
			}
			if tag.RowsAffected() == 0 {
				return coupon.ErrUsageLimitReached
			}
		}

		if _, err = tx.Exec(ctx, clearCartSQL, o.UserID); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			return coupon.ErrUsageLimitReached
		}
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}

// GetForUser returns the order with its items, scoped to the owning user.
func (r *OrderRepository) GetForUser(ctx context.Context, id, userID int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	itemRows, err := r.pool.Query(ctx, listOrderItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing items for order %d: %w", id, err)
	}
	o.Items, err = pgx.CollectRows(itemRows, scanOrderItem)
	if err != nil {
		return nil, fmt.Errorf("listing items for order %d: %w", id, err)
	}
	return &o, nil
}

// ListForUser returns the user's orders without items, newest first,
// optionally filtered by status.
func (r *OrderRepository) ListForUser(ctx context.Context, userID int64, status string, limit, offset int) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersSQL, userID, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// CancelPending moves a pending, unpaid order to cancelled.
func (r *OrderRepository) CancelPending(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, cancelOrderSQL, id, userID)
	if err != nil {
		return fmt.Errorf("cancelling order %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id, userID).Scan(&exists); err != nil {
		return fmt.Errorf("cancelling order %d: %w", id, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrNotCancellable
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.Currency,
		&o.Subtotal, &o.TaxAmount, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount, &o.CouponCode,
		&o.Shipping.FirstName, &o.Shipping.LastName, &o.Shipping.Company,
		&o.Shipping.AddressLine1, &o.Shipping.AddressLine2, &o.Shipping.City,
		&o.Shipping.Province, &o.Shipping.PostalCode, &o.Shipping.Country, &o.Shipping.Phone,
		&o.Billing.FirstName, &o.Billing.LastName, &o.Billing.Company,
		&o.Billing.AddressLine1, &o.Billing.AddressLine2, &o.Billing.City,
		&o.Billing.Province, &o.Billing.PostalCode, &o.Billing.Country, &o.Billing.Phone,
		&o.Notes, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt,
	)
	return o, err
}

func scanOrderItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.VariantID,
		&it.ProductName, &it.VariantName, &it.SKU,
		&it.Quantity, &it.UnitPrice, &it.TotalPrice,
	)
	return it, err
}
