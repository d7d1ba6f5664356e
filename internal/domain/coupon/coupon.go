package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage discounts a percentage of the subtotal, optionally
	// capped by MaximumDiscount.
	TypePercentage Type = "percentage"
	// TypeFixedAmount discounts a fixed amount, never more than the subtotal.
	TypeFixedAmount Type = "fixed_amount"
	// TypeFreeShipping is a placeholder: shipping-cost computation does not
	// exist yet, so the discount is always zero.
	TypeFreeShipping Type = "free_shipping"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrUsageLimitReached is returned when a usage-limited coupon cannot be
	// redeemed because its counter already reached the limit.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
)

// Coupon is a reusable, globally-scoped discount rule.
type Coupon struct {
	Code            string
	Name            string
	Description     string
	Type            Type
	Value           decimal.Decimal
	MinimumAmount   *decimal.Decimal
	MaximumDiscount *decimal.Decimal
	UsageLimit      *int
	UsageCount      int
	IsActive        bool
	StartsAt        *time.Time
	ExpiresAt       *time.Time
}

// Repository provides coupon lookup. Redemption (the usage_count increment)
// happens inside the order transaction, not here.
type Repository interface {
	// FindByCode looks up a coupon by exact, case-sensitive code.
	// Returns ErrNotFound when no coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
}
