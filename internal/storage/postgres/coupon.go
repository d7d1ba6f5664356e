package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/coupon"
)

const getCouponByCodeSQL = `SELECT code, name, description, type, value,
	minimum_amount, maximum_discount, usage_limit, usage_count, is_active,
	starts_at, expires_at
	FROM coupons WHERE code = $1`

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by exact, case-sensitive code. Returns
// coupon.ErrNotFound when no coupon exists. Inactive and exhausted coupons
// are still returned; the evaluator decides what they mean.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c          coupon.Coupon
		typ        string
		minAmount  *decimal.Decimal
		maxDisc    *decimal.Decimal
		usageLimit *int32
		startsAt   *time.Time
		expiresAt  *time.Time
	)
	err := row.Scan(
		&c.Code, &c.Name, &c.Description, &typ, &c.Value,
		&minAmount, &maxDisc, &usageLimit, &c.UsageCount, &c.IsActive,
		&startsAt, &expiresAt,
	)
	c.Type = coupon.Type(typ)
	c.MinimumAmount = minAmount
	c.MaximumDiscount = maxDisc
	if usageLimit != nil {
		limit := int(*usageLimit)
		c.UsageLimit = &limit
	}
	c.StartsAt = startsAt
	c.ExpiresAt = expiresAt
	return c, err
}
