package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tkaseke/homestore/internal/domain/catalog"
	"github.com/tkaseke/homestore/internal/domain/wishlist"
)

const (
	listWishlistSQL = `SELECT w.id, w.user_id, w.product_id, w.created_at,
		p.id, p.name, p.sku, p.description, p.price, p.currency
		FROM wishlist w JOIN products p ON p.id = w.product_id
		WHERE w.user_id = $1 ORDER BY w.created_at DESC, w.id DESC`

	addWishlistSQL = `INSERT INTO wishlist (user_id, product_id)
		VALUES ($1, $2) RETURNING id, created_at`

	removeWishlistSQL = `DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2`
)

var _ wishlist.Repository = (*WishlistRepository)(nil)

// WishlistRepository implements wishlist.Repository backed by PostgreSQL.
type WishlistRepository struct {
	pool *pgxpool.Pool
}

// NewWishlistRepository returns a WishlistRepository that uses the given pool.
func NewWishlistRepository(pool *pgxpool.Pool) *WishlistRepository {
	return &WishlistRepository{pool: pool}
}

// ListForUser returns the user's wishlisted products, newest first.
func (r *WishlistRepository) ListForUser(ctx context.Context, userID int64) ([]wishlist.Item, error) {
	rows, err := r.pool.Query(ctx, listWishlistSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing wishlist: %w", err)
	}
	return pgx.CollectRows(rows, scanWishlistItem)
}

// Add inserts the product onto the user's wishlist. A duplicate maps the
// unique-violation error to wishlist.ErrAlreadyExists.
func (r *WishlistRepository) Add(ctx context.Context, userID, productID int64) (*wishlist.Item, error) {
	item := wishlist.Item{UserID: userID, ProductID: productID}
	err := r.pool.QueryRow(ctx, addWishlistSQL, userID, productID).Scan(&item.ID, &item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, wishlist.ErrAlreadyExists
		}
		return nil, fmt.Errorf("adding wishlist item: %w", err)
	}
	return &item, nil
}

// Remove deletes the product from the user's wishlist.
func (r *WishlistRepository) Remove(ctx context.Context, userID, productID int64) error {
	tag, err := r.pool.Exec(ctx, removeWishlistSQL, userID, productID)
	if err != nil {
		return fmt.Errorf("removing wishlist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return wishlist.ErrNotFound
	}
	return nil
}

func scanWishlistItem(row pgx.CollectableRow) (wishlist.Item, error) {
	var (
		it wishlist.Item
		p  catalog.Product
	)
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.CreatedAt,
		&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Currency,
	)
	it.Product = &p
	return it, err
}
