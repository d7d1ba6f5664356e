package wishlist

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/tkaseke/homestore/internal/domain/catalog"
)

var (
	// ErrAlreadyExists is returned when the product is already wishlisted.
	ErrAlreadyExists = errors.New("item already in wishlist")
	// ErrNotFound is returned when the product is not on the user's wishlist.
	ErrNotFound = errors.New("wishlist item not found")
)

// Item is one wishlisted product. A user wishlists a product at most once.
type Item struct {
	ID        int64
	UserID    int64
	ProductID int64
	CreatedAt time.Time

	Product *catalog.Product
}

// Repository defines persistence operations for wishlists.
type Repository interface {
	ListForUser(ctx context.Context, userID int64) ([]Item, error)
	// Add inserts the product onto the user's wishlist.
	// Returns ErrAlreadyExists on a duplicate.
	Add(ctx context.Context, userID, productID int64) (*Item, error)
	// Remove deletes the product from the user's wishlist.
	// Returns ErrNotFound when absent.
	Remove(ctx context.Context, userID, productID int64) error
}
