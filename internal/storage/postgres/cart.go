package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/cart"
	"github.com/tkaseke/homestore/internal/domain/catalog"
)

const (
	selectCartLineSQL = `SELECT ci.id, ci.user_id, ci.product_id, ci.variant_id, ci.quantity, ci.price, ci.created_at,
		p.id, p.name, p.sku, p.description, p.price, p.currency,
		v.id, v.product_id, v.name, v.sku, v.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN product_variants v ON v.id = ci.variant_id`

	listCartSQL = selectCartLineSQL + ` WHERE ci.user_id = $1 ORDER BY ci.created_at DESC, ci.id DESC`

	getCartLineSQL = selectCartLineSQL + ` WHERE ci.id = $1`

	// IS NOT DISTINCT FROM makes NULL variant_id match NULL, which a plain
	// equality comparison would not.
	bumpCartLineSQL = `UPDATE cart_items SET quantity = quantity + $4
		WHERE user_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
		RETURNING id`

	insertCartLineSQL = `INSERT INTO cart_items (user_id, product_id, variant_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateCartQuantitySQL = `UPDATE cart_items SET quantity = $3
		WHERE id = $1 AND user_id = $2 RETURNING id`

	removeCartLineSQL = `DELETE FROM cart_items WHERE id = $1 AND user_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// ListForUser returns the user's cart lines resolved against the catalog,
// newest first.
func (r *CartRepository) ListForUser(ctx context.Context, userID int64) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	return pgx.CollectRows(rows, scanCartLine)
}

// Add upserts a cart line. An existing (user, product, variant) line has its
// quantity incremented; otherwise a new line is inserted with the snapshot
// price. The update-then-insert pair runs in one transaction because the
// uniqueness of a line is enforced by two partial indexes, which ON CONFLICT
// cannot target together.
func (r *CartRepository) Add(ctx context.Context, userID, productID int64, variantID *int64, qty int, price decimal.Decimal) (*cart.Line, error) {
	var lineID int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, bumpCartLineSQL, userID, productID, variantID, qty).Scan(&lineID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = tx.QueryRow(ctx, insertCartLineSQL, userID, productID, variantID, qty, price).Scan(&lineID)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("adding cart line: %w", err)
	}
	return r.getLine(ctx, lineID)
}

// UpdateQuantity sets the quantity of the user's line.
func (r *CartRepository) UpdateQuantity(ctx context.Context, id, userID int64, qty int) (*cart.Line, error) {
	var lineID int64
	err := r.pool.QueryRow(ctx, updateCartQuantitySQL, id, userID, qty).Scan(&lineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("updating cart line %d: %w", id, err)
	}
	return r.getLine(ctx, lineID)
}

// Remove deletes a single line owned by the user.
func (r *CartRepository) Remove(ctx context.Context, id, userID int64) error {
	tag, err := r.pool.Exec(ctx, removeCartLineSQL, id, userID)
	if err != nil {
		return fmt.Errorf("removing cart line %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Clear deletes all of the user's lines.
func (r *CartRepository) Clear(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx, clearCartSQL, userID)
	if err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

func (r *CartRepository) getLine(ctx context.Context, id int64) (*cart.Line, error) {
	rows, err := r.pool.Query(ctx, getCartLineSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart line %d: %w", id, err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, scanCartLine)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrLineNotFound
		}
		return nil, fmt.Errorf("getting cart line %d: %w", id, err)
	}
	return &l, nil
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var (
		l cart.Line
		p catalog.Product

		variantID      *int64
		variantProduct *int64
		variantName    *string
		variantSKU     *string
		variantPrice   *decimal.Decimal
	)
	err := row.Scan(
		&l.ID, &l.UserID, &l.ProductID, &l.VariantID, &l.Quantity, &l.Price, &l.CreatedAt,
		&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Currency,
		&variantID, &variantProduct, &variantName, &variantSKU, &variantPrice,
	)
	if err != nil {
		return l, err
	}
	l.Product = &p
	if variantID != nil {
		l.Variant = &catalog.Variant{
			ID:        *variantID,
			ProductID: *variantProduct,
			Name:      *variantName,
			SKU:       *variantSKU,
			Price:     *variantPrice,
		}
	}
	return l, nil
}
