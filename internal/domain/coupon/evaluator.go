package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Evaluation is the outcome of checking a coupon against a cart subtotal.
// Message is always set and suitable for showing to the user.
type Evaluation struct {
	Valid          bool
	DiscountAmount decimal.Decimal
	Message        string
}

func invalid(message string) Evaluation {
	return Evaluation{Valid: false, Message: message}
}

// Evaluate decides whether c can be applied to a cart with the given
// subtotal at time now, and computes the discount when it can. It is a pure
// function: checks run in a fixed order and the first failing check wins.
//
// Boundary semantics: a coupon is valid at exactly StartsAt and at exactly
// ExpiresAt; a usage count equal to the limit counts as exhausted.
func Evaluate(c *Coupon, subtotal decimal.Decimal, now time.Time) Evaluation {
	if c == nil {
		return invalid("Coupon not found")
	}
	if !c.IsActive {
		return invalid("Coupon is not active")
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return invalid("Coupon is not yet active")
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return invalid("Coupon has expired")
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return invalid("Coupon usage limit reached")
	}
	if c.MinimumAmount != nil && subtotal.LessThan(*c.MinimumAmount) {
		return invalid(fmt.Sprintf("Minimum order amount of $%s required", c.MinimumAmount.StringFixed(2)))
	}

	var discount decimal.Decimal
	switch c.Type {
	case TypePercentage:
		discount = subtotal.Mul(c.Value).Div(hundred)
		if c.MaximumDiscount != nil {
			discount = decimal.Min(discount, *c.MaximumDiscount)
		}
	case TypeFixedAmount:
		discount = decimal.Min(c.Value, subtotal)
	case TypeFreeShipping:
		discount = decimal.Zero
	default:
		return invalid("Invalid coupon type")
	}

	return Evaluation{
		Valid:          true,
		DiscountAmount: discount,
		Message:        "Coupon is valid",
	}
}

// Validator evaluates a coupon code against a cart subtotal. It exists as an
// interface so the order service can be tested with a fake.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (Evaluation, error)
}

// RepoValidator implements Validator by looking codes up in a Repository and
// delegating the decision to Evaluate.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon for code and evaluates it. An unknown code is
// not an error: it yields an invalid Evaluation with the "not found" message.
// Only repository failures are returned as errors.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (Evaluation, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid("Coupon not found"), nil
		}
		return Evaluation{}, errors.Wrap(err, "lookup coupon")
	}
	return Evaluate(c, subtotal, v.now()), nil
}
