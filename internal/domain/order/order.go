package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/address"
)

// Status is the order lifecycle state. Transitions are forward-only: a
// cancelled or delivered order never moves again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus tracks how far the order's payment has progressed.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	PaymentTimeout PaymentStatus = "timeout"
)

// AddressSnapshot is a field-by-field copy of an address taken at checkout.
// Orders never reference the addresses table, so later edits or deletes
// cannot retroactively alter a placed order.
type AddressSnapshot struct {
	FirstName    string
	LastName     string
	Company      string
	AddressLine1 string
	AddressLine2 string
	City         string
	Province     string
	PostalCode   string
	Country      string
	Phone        string
}

// SnapshotAddress copies the mutable address fields into a snapshot.
func SnapshotAddress(a *address.Address) AddressSnapshot {
	return AddressSnapshot{
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Company:      a.Company,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		Province:     a.Province,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
	}
}

// Order is an immutable-after-creation snapshot of a completed checkout.
// TotalAmount always equals Subtotal + TaxAmount + ShippingCost −
// DiscountAmount, floored at zero.
type Order struct {
	ID             int64
	UserID         int64
	OrderNumber    string
	Status         Status
	PaymentStatus  PaymentStatus
	Currency       string
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponCode     string
	Shipping       AddressSnapshot
	Billing        AddressSnapshot
	Notes          string
	Items          []Item
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// Item is a frozen copy of a cart line at checkout. ProductName, VariantName
// and SKU are authoritative even if the catalog rows are later deleted.
type Item struct {
	ID          int64
	OrderID     int64
	ProductID   *int64
	VariantID   *int64
	ProductName string
	VariantName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// NewOrderNumber generates a human-readable order number of the form
// ORD-<YYYYMMDD>-<8 uppercase hex chars>. There is no collision retry; the
// unique constraint on orders.order_number is the backstop.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateFromCart atomically persists the order and its items, redeems
	// the coupon (when o.CouponCode is set) with a conditional increment,
	// and clears the user's cart. Any failure rolls the whole transaction
	// back, including coupon.ErrUsageLimitReached from a lost redemption
	// race. On success o.ID and o.Items[i].ID are populated.
	CreateFromCart(ctx context.Context, o *Order) error
	// GetForUser returns the order with items, scoped to the owning user.
	GetForUser(ctx context.Context, id, userID int64) (*Order, error)
	// ListForUser returns the user's orders without items, newest first,
	// optionally filtered by status.
	ListForUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Order, error)
	// CancelPending moves a pending, unpaid order to cancelled.
	// Returns ErrNotFound when missing or not owned, ErrNotCancellable when
	// the order has already progressed past pending or is paid.
	CancelPending(ctx context.Context, id, userID int64) error
}
