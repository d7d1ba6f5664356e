package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/address"
	"github.com/tkaseke/homestore/internal/domain/cart"
	"github.com/tkaseke/homestore/internal/domain/coupon"
)

var (
	// ErrCartEmpty is returned when an order is requested for an empty cart.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrNotFound is returned when an order does not exist or is not owned
	// by the requesting user.
	ErrNotFound = errors.New("order not found")
	// ErrNotCancellable is returned when an order has progressed past the
	// point where the user may cancel it.
	ErrNotCancellable = errors.New("order can no longer be cancelled")
)

// InvalidCouponError carries the evaluator's user-facing message when a
// supplied coupon code cannot be applied.
type InvalidCouponError struct {
	Message string
}

func (e *InvalidCouponError) Error() string {
	return e.Message
}

// CreateRequest holds the input for converting a cart into an order.
type CreateRequest struct {
	ShippingAddressID int64
	BillingAddressID  *int64
	CouponCode        string
	Notes             string
}

// Service converts a user's cart into a persisted order, or fails leaving
// cart and catalog state untouched.
type Service struct {
	carts     cart.Repository
	addresses address.Repository
	coupons   coupon.Validator
	orders    Repository
	now       func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	carts cart.Repository,
	addresses address.Repository,
	coupons coupon.Validator,
	orders Repository,
) *Service {
	return &Service{
		carts:     carts,
		addresses: addresses,
		coupons:   coupons,
		orders:    orders,
		now:       time.Now,
	}
}

// CreateOrder loads the user's cart, resolves and snapshots the addresses,
// computes the totals, applies an optional coupon, and persists the order
// atomically with coupon redemption and cart clearing. The prices honoured
// are the cart lines' snapshotted prices, never a fresh catalog lookup.
func (s *Service) CreateOrder(ctx context.Context, userID int64, req CreateRequest) (*Order, error) {
	lines, err := s.carts.ListForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(lines) == 0 {
		return nil, ErrCartEmpty
	}

	shipping, err := s.addresses.GetForUser(ctx, req.ShippingAddressID, userID)
	if err != nil {
		return nil, err
	}

	billing := shipping
	if req.BillingAddressID != nil && *req.BillingAddressID != req.ShippingAddressID {
		billing, err = s.addresses.GetForUser(ctx, *req.BillingAddressID, userID)
		if err != nil {
			return nil, err
		}
	}

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Subtotal())
	}

	// Tax and shipping rules do not exist yet.
	taxAmount := decimal.Zero
	shippingCost := decimal.Zero

	discount := decimal.Zero
	if req.CouponCode != "" {
		eval, err := s.coupons.Validate(ctx, req.CouponCode, subtotal)
		if err != nil {
			return nil, errors.Wrap(err, "validate coupon")
		}
		if !eval.Valid {
			return nil, &InvalidCouponError{Message: eval.Message}
		}
		discount = eval.DiscountAmount
	}

	total := subtotal.Add(taxAmount).Add(shippingCost).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	now := s.now()
	o := &Order{
		UserID:         userID,
		OrderNumber:    NewOrderNumber(now),
		Status:         StatusPending,
		PaymentStatus:  PaymentPending,
		Currency:       "USD",
		Subtotal:       subtotal,
		TaxAmount:      taxAmount,
		ShippingCost:   shippingCost,
		DiscountAmount: discount,
		TotalAmount:    total,
		CouponCode:     req.CouponCode,
		Shipping:       SnapshotAddress(shipping),
		Billing:        SnapshotAddress(billing),
		Notes:          req.Notes,
		Items:          buildItems(lines),
	}

	if err := s.orders.CreateFromCart(ctx, o); err != nil {
		if errors.Is(err, coupon.ErrUsageLimitReached) {
			return nil, &InvalidCouponError{Message: "Coupon usage limit reached"}
		}
		return nil, errors.Wrap(err, "create order")
	}

	return o, nil
}

// Get returns one of the user's orders with its items.
func (s *Service) Get(ctx context.Context, id, userID int64) (*Order, error) {
	return s.orders.GetForUser(ctx, id, userID)
}

// List returns the user's orders without items, newest first, optionally
// filtered by status.
func (s *Service) List(ctx context.Context, userID int64, status string, limit, offset int) ([]Order, error) {
	return s.orders.ListForUser(ctx, userID, status, limit, offset)
}

// Cancel cancels a pending, unpaid order.
func (s *Service) Cancel(ctx context.Context, id, userID int64) error {
	return s.orders.CancelPending(ctx, id, userID)
}

// buildItems freezes cart lines into order items. The SKU is the variant's
// when a variant with a sku was selected, otherwise the product's.
func buildItems(lines []cart.Line) []Item {
	items := make([]Item, len(lines))
	for i, line := range lines {
		sku := line.Product.SKU
		variantName := ""
		if line.Variant != nil {
			variantName = line.Variant.Name
			if line.Variant.SKU != "" {
				sku = line.Variant.SKU
			}
		}

		productID := line.ProductID
		items[i] = Item{
			ProductID:   &productID,
			VariantID:   line.VariantID,
			ProductName: line.Product.Name,
			VariantName: variantName,
			SKU:         sku,
			Quantity:    line.Quantity,
			UnitPrice:   line.Price,
			TotalPrice:  line.Subtotal(),
		}
	}
	return items
}
