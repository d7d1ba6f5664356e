package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/catalog"
)

// ErrLineNotFound is returned when a cart line does not exist or is not
// owned by the requesting user.
var ErrLineNotFound = errors.New("cart item not found")

// Line is one product (optionally one variant) a user intends to buy.
// Price is snapshotted when the line is added, so later catalog price
// changes do not reprice the cart.
type Line struct {
	ID        int64
	UserID    int64
	ProductID int64
	VariantID *int64
	Quantity  int
	Price     decimal.Decimal
	CreatedAt time.Time

	// Resolved references, populated on reads.
	Product *catalog.Product
	Variant *catalog.Variant
}

// Subtotal returns price * quantity for this line.
func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Repository defines persistence operations for cart lines.
type Repository interface {
	// ListForUser returns the user's cart lines with product and variant
	// references resolved, newest first.
	ListForUser(ctx context.Context, userID int64) ([]Line, error)
	// Add upserts a line: an existing (user, product, variant) line has its
	// quantity incremented by qty, otherwise a new line is inserted with the
	// given snapshot price. The resulting line is returned resolved.
	Add(ctx context.Context, userID, productID int64, variantID *int64, qty int, price decimal.Decimal) (*Line, error)
	// UpdateQuantity sets the quantity of the user's line.
	// Returns ErrLineNotFound when the line is missing or not owned.
	UpdateQuantity(ctx context.Context, id, userID int64, qty int) (*Line, error)
	// Remove deletes a single line. Returns ErrLineNotFound when missing.
	Remove(ctx context.Context, id, userID int64) error
	// Clear deletes all of the user's lines.
	Clear(ctx context.Context, userID int64) error
}
