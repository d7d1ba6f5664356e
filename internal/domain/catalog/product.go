package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrProductNotFound is returned when a requested product does not exist.
	ErrProductNotFound = errors.New("product not found")
	// ErrVariantNotFound is returned when a variant does not exist or does
	// not belong to the requested product.
	ErrVariantNotFound = errors.New("product variant not found")
)

// Product represents a catalog item available for purchase.
type Product struct {
	ID          int64
	Name        string
	SKU         string
	Description string
	Price       decimal.Decimal
	Currency    string
}

// Variant represents a purchasable variation of a product (size, colour)
// with its own SKU and price.
type Variant struct {
	ID        int64
	ProductID int64
	Name      string
	SKU       string
	Price     decimal.Decimal
}

// Repository defines read operations for the product catalog. The catalog is
// read-only from the order flow's point of view.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	// GetVariant returns the variant only when it belongs to productID.
	GetVariant(ctx context.Context, productID, variantID int64) (*Variant, error)
}
