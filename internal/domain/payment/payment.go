package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the payment attempt's state. completed, failed, and timeout are
// terminal: no further transitions occur.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Supported mobile-money providers.
const (
	MethodEcocash  = "ecocash"
	MethodOneMoney = "onemoney"
)

// Supported charge currencies.
const (
	CurrencyUSD = "USD"
	CurrencyZWL = "ZWL"
)

var (
	// ErrUnsupportedMethod is returned for any payment method other than the
	// two supported mobile-money providers.
	ErrUnsupportedMethod = errors.New("only Ecocash and OneMoney payments are supported")
	// ErrUnsupportedCurrency is returned for currencies other than USD and ZWL.
	ErrUnsupportedCurrency = errors.New("currency must be USD or ZWL")
	// ErrOrderAlreadyPaid is returned when initiating payment for a paid order.
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	// ErrOrderHasNoItems is returned when the order has no line items.
	ErrOrderHasNoItems = errors.New("order has no items")
	// ErrNotFound is returned when no payment exists for an order.
	ErrNotFound = errors.New("payment not found for this order")
)

// Payment is one gateway attempt tied to an order. An order has at most one
// payment row: re-initiation overwrites it rather than inserting a second.
type Payment struct {
	ID            int64
	OrderID       int64
	Method        string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Status        Status
	PollURL       string
	Instructions  string
	FailureReason string
	ProcessedAt   *time.Time
	CreatedAt     time.Time
}

// Repository defines persistence for payments. The Mark* mutations also
// update the owning order's payment status in the same transaction, since a
// payment transition is never observed without its order-side effect.
type Repository interface {
	// Upsert inserts the payment or, when the order already has one,
	// overwrites method, amount, currency, transaction id, poll URL and
	// instructions, resetting status to pending. p.ID is populated.
	Upsert(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id int64) (*Payment, error)
	// GetByOrderForUser returns the payment for the order, scoped to the
	// order's owner. Returns ErrNotFound when absent.
	GetByOrderForUser(ctx context.Context, orderID, userID int64) (*Payment, error)
	ListByOrderForUser(ctx context.Context, orderID, userID int64) ([]Payment, error)
	// MarkCompleted sets the payment to completed with the given processing
	// time, and the order to payment_status=paid, status=confirmed.
	MarkCompleted(ctx context.Context, id int64, processedAt time.Time) error
	// MarkFailed sets the payment to failed with a reason, and the order to
	// payment_status=failed.
	MarkFailed(ctx context.Context, id int64, reason string) error
	// MarkTimeout sets the payment to timeout only when it is still pending,
	// mirroring the status onto the order. A payment that reached a terminal
	// state concurrently is left untouched.
	MarkTimeout(ctx context.Context, id int64) error
}
