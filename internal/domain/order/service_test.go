package order

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaseke/homestore/internal/domain/address"
	"github.com/tkaseke/homestore/internal/domain/cart"
	"github.com/tkaseke/homestore/internal/domain/catalog"
	"github.com/tkaseke/homestore/internal/domain/coupon"
)

// --- Mock implementations ---

type mockCartRepo struct {
	lines   []cart.Line
	listErr error
	cleared bool
}

func (m *mockCartRepo) ListForUser(_ context.Context, _ int64) ([]cart.Line, error) {
	return m.lines, m.listErr
}

func (m *mockCartRepo) Add(_ context.Context, _, _ int64, _ *int64, _ int, _ decimal.Decimal) (*cart.Line, error) {
	return nil, nil
}

func (m *mockCartRepo) UpdateQuantity(_ context.Context, _, _ int64, _ int) (*cart.Line, error) {
	return nil, nil
}

func (m *mockCartRepo) Remove(_ context.Context, _, _ int64) error { return nil }

func (m *mockCartRepo) Clear(_ context.Context, _ int64) error {
	m.cleared = true
	return nil
}

type mockAddressRepo struct {
	byID map[int64]*address.Address
}

func (m *mockAddressRepo) GetForUser(_ context.Context, id, userID int64) (*address.Address, error) {
	a, ok := m.byID[id]
	if !ok || a.UserID != userID {
		return nil, address.ErrNotFound
	}
	return a, nil
}

func (m *mockAddressRepo) ListForUser(_ context.Context, _ int64) ([]address.Address, error) {
	return nil, nil
}

type mockValidator struct {
	eval     coupon.Evaluation
	err      error
	gotCode  string
	gotTotal decimal.Decimal
}

func (m *mockValidator) Validate(_ context.Context, code string, subtotal decimal.Decimal) (coupon.Evaluation, error) {
	m.gotCode = code
	m.gotTotal = subtotal
	return m.eval, m.err
}

type mockOrderRepo struct {
	created *Order
	err     error
}

func (m *mockOrderRepo) CreateFromCart(_ context.Context, o *Order) error {
	if m.err != nil {
		return m.err
	}
	o.ID = 1
	m.created = o
	return nil
}

func (m *mockOrderRepo) GetForUser(_ context.Context, _, _ int64) (*Order, error) { return nil, nil }

func (m *mockOrderRepo) ListForUser(_ context.Context, _ int64, _ string, _, _ int) ([]Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) CancelPending(_ context.Context, _, _ int64) error { return nil }

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testLine(productID int64, price string, qty int) cart.Line {
	return cart.Line{
		UserID:    7,
		ProductID: productID,
		Quantity:  qty,
		Price:     dec(price),
		Product: &catalog.Product{
			ID:    productID,
			Name:  "Widget",
			SKU:   "WID-1",
			Price: dec(price),
		},
	}
}

func testAddress(id, userID int64) *address.Address {
	return &address.Address{
		ID:           id,
		UserID:       userID,
		FirstName:    "Rudo",
		LastName:     "Moyo",
		AddressLine1: "12 Samora Machel Ave",
		City:         "Harare",
		Province:     "Harare",
		PostalCode:   "00000",
		Country:      "Zimbabwe",
		Phone:        "+263771234567",
	}
}

func newService(carts *mockCartRepo, addrs *mockAddressRepo, v *mockValidator, orders *mockOrderRepo) *Service {
	svc := NewService(carts, addrs, v, orders)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestCreateOrder_EmptyCart(t *testing.T) {
	svc := newService(
		&mockCartRepo{},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		&mockOrderRepo{},
	)

	_, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.ErrorIs(t, err, ErrCartEmpty)
}

func TestCreateOrder_ShippingAddressNotOwned(t *testing.T) {
	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "10.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 99)}},
		&mockValidator{},
		&mockOrderRepo{},
	)

	_, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.ErrorIs(t, err, address.ErrNotFound)
}

func TestCreateOrder_NoCoupon(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{
			testLine(1, "10.00", 2),
			testLine(2, "5.00", 1),
		}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		orders,
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.NoError(t, err)

	assert.True(t, dec("25.00").Equal(o.Subtotal), "subtotal = %s", o.Subtotal)
	assert.True(t, dec("25.00").Equal(o.TotalAmount), "total = %s", o.TotalAmount)
	assert.True(t, o.DiscountAmount.IsZero())
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Len(t, o.Items, 2)
	require.NotNil(t, orders.created)
}

func TestCreateOrder_OrderNumberFormat(t *testing.T) {
	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "10.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		&mockOrderRepo{},
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^ORD-20250615-[A-Z0-9]{8}$`), o.OrderNumber)
}

func TestCreateOrder_PercentageCouponWithCap(t *testing.T) {
	v := &mockValidator{eval: coupon.Evaluation{
		Valid:          true,
		DiscountAmount: dec("2.00"),
		Message:        "Coupon is valid",
	}}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{
			testLine(1, "10.00", 2),
			testLine(2, "5.00", 1),
		}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		v,
		&mockOrderRepo{},
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{
		ShippingAddressID: 1,
		CouponCode:        "SAVE10",
	})
	require.NoError(t, err)

	assert.Equal(t, "SAVE10", v.gotCode)
	assert.True(t, dec("25.00").Equal(v.gotTotal))
	assert.True(t, dec("2.00").Equal(o.DiscountAmount))
	assert.True(t, dec("23.00").Equal(o.TotalAmount), "total = %s", o.TotalAmount)
}

func TestCreateOrder_FixedCouponExceedingSubtotal(t *testing.T) {
	v := &mockValidator{eval: coupon.Evaluation{
		Valid:          true,
		DiscountAmount: dec("25.00"),
		Message:        "Coupon is valid",
	}}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{
			testLine(1, "10.00", 2),
			testLine(2, "5.00", 1),
		}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		v,
		&mockOrderRepo{},
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{
		ShippingAddressID: 1,
		CouponCode:        "BIG30",
	})
	require.NoError(t, err)
	assert.True(t, o.TotalAmount.IsZero(), "total = %s", o.TotalAmount)
}

func TestCreateOrder_InvalidCouponAborts(t *testing.T) {
	orders := &mockOrderRepo{}
	v := &mockValidator{eval: coupon.Evaluation{
		Valid:   false,
		Message: "Minimum order amount of $50.00 required",
	}}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "25.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		v,
		orders,
	)

	_, err := svc.CreateOrder(context.Background(), 7, CreateRequest{
		ShippingAddressID: 1,
		CouponCode:        "MIN50",
	})

	var icErr *InvalidCouponError
	require.ErrorAs(t, err, &icErr)
	assert.Equal(t, "Minimum order amount of $50.00 required", icErr.Message)
	assert.Nil(t, orders.created, "no order may be persisted on coupon failure")
}

func TestCreateOrder_RedemptionRaceSurfacesAsInvalidCoupon(t *testing.T) {
	v := &mockValidator{eval: coupon.Evaluation{
		Valid:          true,
		DiscountAmount: dec("5.00"),
		Message:        "Coupon is valid",
	}}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "25.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		v,
		&mockOrderRepo{err: coupon.ErrUsageLimitReached},
	)

	_, err := svc.CreateOrder(context.Background(), 7, CreateRequest{
		ShippingAddressID: 1,
		CouponCode:        "LAST1",
	})

	var icErr *InvalidCouponError
	require.ErrorAs(t, err, &icErr)
	assert.Equal(t, "Coupon usage limit reached", icErr.Message)
}

func TestCreateOrder_BillingDefaultsToShipping(t *testing.T) {
	orders := &mockOrderRepo{}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "10.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		orders,
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.NoError(t, err)
	assert.Equal(t, o.Shipping, o.Billing)
}

func TestCreateOrder_DistinctBillingAddress(t *testing.T) {
	billing := testAddress(2, 7)
	billing.City = "Bulawayo"
	billingID := int64(2)

	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "10.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{
			1: testAddress(1, 7),
			2: billing,
		}},
		&mockValidator{},
		&mockOrderRepo{},
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{
		ShippingAddressID: 1,
		BillingAddressID:  &billingID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Harare", o.Shipping.City)
	assert.Equal(t, "Bulawayo", o.Billing.City)
}

func TestCreateOrder_VariantSKUWins(t *testing.T) {
	variantID := int64(42)
	line := testLine(1, "10.00", 1)
	line.VariantID = &variantID
	line.Variant = &catalog.Variant{
		ID:        variantID,
		ProductID: 1,
		Name:      "Large",
		SKU:       "WID-1-L",
		Price:     dec("10.00"),
	}

	svc := newService(
		&mockCartRepo{lines: []cart.Line{line}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		&mockOrderRepo{},
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "WID-1-L", o.Items[0].SKU)
	assert.Equal(t, "Large", o.Items[0].VariantName)
}

func TestCreateOrder_VariantWithoutSKUFallsBack(t *testing.T) {
	variantID := int64(42)
	line := testLine(1, "10.00", 1)
	line.VariantID = &variantID
	line.Variant = &catalog.Variant{
		ID:        variantID,
		ProductID: 1,
		Name:      "Large",
		Price:     dec("10.00"),
	}

	svc := newService(
		&mockCartRepo{lines: []cart.Line{line}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		&mockOrderRepo{},
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.NoError(t, err)
	assert.Equal(t, "WID-1", o.Items[0].SKU)
}

func TestCreateOrder_RepositoryErrorWrapped(t *testing.T) {
	svc := newService(
		&mockCartRepo{lines: []cart.Line{testLine(1, "10.00", 1)}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		&mockValidator{},
		&mockOrderRepo{err: errors.New("db write failed")},
	)

	_, err := svc.CreateOrder(context.Background(), 7, CreateRequest{ShippingAddressID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestCreateOrder_TotalInvariant(t *testing.T) {
	// total == subtotal + tax + shipping - discount for every persisted order.
	v := &mockValidator{eval: coupon.Evaluation{
		Valid:          true,
		DiscountAmount: dec("3.75"),
		Message:        "Coupon is valid",
	}}
	orders := &mockOrderRepo{}
	svc := newService(
		&mockCartRepo{lines: []cart.Line{
			testLine(1, "12.49", 3),
			testLine(2, "0.99", 7),
		}},
		&mockAddressRepo{byID: map[int64]*address.Address{1: testAddress(1, 7)}},
		v,
		orders,
	)

	o, err := svc.CreateOrder(context.Background(), 7, CreateRequest{
		ShippingAddressID: 1,
		CouponCode:        "SAVE",
	})
	require.NoError(t, err)

	want := o.Subtotal.Add(o.TaxAmount).Add(o.ShippingCost).Sub(o.DiscountAmount)
	assert.True(t, want.Equal(o.TotalAmount))
	assert.True(t, dec("44.40").Equal(o.Subtotal), "subtotal = %s", o.Subtotal)
}
