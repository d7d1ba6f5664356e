package payment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaseke/homestore/internal/domain/order"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	order *order.Order
	err   error
}

func (m *mockOrderRepo) CreateFromCart(_ context.Context, _ *order.Order) error { return nil }

func (m *mockOrderRepo) GetForUser(_ context.Context, _, _ int64) (*order.Order, error) {
	return m.order, m.err
}

func (m *mockOrderRepo) ListForUser(_ context.Context, _ int64, _ string, _, _ int) ([]order.Order, error) {
	return nil, nil
}

func (m *mockOrderRepo) CancelPending(_ context.Context, _, _ int64) error { return nil }

type mockPaymentRepo struct {
	mu        sync.Mutex
	upserted  *Payment
	completed bool
	failed    bool
	reason    string
	timedOut  bool
	done      chan struct{}
}

func newMockPaymentRepo() *mockPaymentRepo {
	return &mockPaymentRepo{done: make(chan struct{}, 1)}
}

func (m *mockPaymentRepo) signal() {
	select {
	case m.done <- struct{}{}:
	default:
	}
}

func (m *mockPaymentRepo) Upsert(_ context.Context, p *Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = 11
	m.upserted = p
	return nil
}

func (m *mockPaymentRepo) GetByID(_ context.Context, _ int64) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserted, nil
}

func (m *mockPaymentRepo) GetByOrderForUser(_ context.Context, _, _ int64) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upserted == nil {
		return nil, ErrNotFound
	}
	return m.upserted, nil
}

func (m *mockPaymentRepo) ListByOrderForUser(_ context.Context, _, _ int64) ([]Payment, error) {
	return nil, nil
}

func (m *mockPaymentRepo) MarkCompleted(_ context.Context, _ int64, _ time.Time) error {
	m.mu.Lock()
	m.completed = true
	m.mu.Unlock()
	m.signal()
	return nil
}

func (m *mockPaymentRepo) MarkFailed(_ context.Context, _ int64, reason string) error {
	m.mu.Lock()
	m.failed = true
	m.reason = reason
	m.mu.Unlock()
	m.signal()
	return nil
}

func (m *mockPaymentRepo) MarkTimeout(_ context.Context, _ int64) error {
	m.mu.Lock()
	m.timedOut = true
	m.mu.Unlock()
	m.signal()
	return nil
}

// scriptedGateway replays a fixed sequence of poll outcomes; once the script
// is exhausted the last entry repeats.
type scriptedGateway struct {
	mu        sync.Mutex
	charge    *ChargeResponse
	chargeErr error
	script    []pollStep
	polls     int
}

type pollStep struct {
	state PollState
	err   error
}

func (g *scriptedGateway) SendMobile(_ context.Context, _ ChargeRequest) (*ChargeResponse, error) {
	if g.chargeErr != nil {
		return nil, g.chargeErr
	}
	return g.charge, nil
}

func (g *scriptedGateway) CheckStatus(_ context.Context, _ string) (*PollResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.polls
	if i >= len(g.script) {
		i = len(g.script) - 1
	}
	g.polls++
	step := g.script[i]
	if step.err != nil {
		return nil, step.err
	}
	return &PollResult{State: step.state}, nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testOrder() *order.Order {
	return &order.Order{
		ID:            5,
		UserID:        7,
		OrderNumber:   "ORD-20250615-AB12CD34",
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Currency:      CurrencyUSD,
		TotalAmount:   dec("25.00"),
		Items:         []order.Item{{Quantity: 1, UnitPrice: dec("25.00"), TotalPrice: dec("25.00")}},
	}
}

func fastConfig() Config {
	return Config{
		InitialDelay:      time.Millisecond,
		CheckInterval:     time.Millisecond,
		MaxAttempts:       3,
		SyncInitialDelay:  time.Millisecond,
		SyncCheckInterval: time.Millisecond,
		SyncMaxAttempts:   3,
		ConversionRate:    decimal.NewFromInt(35),
	}
}

func newTestService(orders *mockOrderRepo, payments *mockPaymentRepo, gw Gateway) *Service {
	return NewService(orders, payments, map[string]Gateway{
		CurrencyUSD: gw,
		CurrencyZWL: gw,
	}, NewTracker(), fastConfig())
}

func validRequest() InitiateRequest {
	return InitiateRequest{
		OrderID:  5,
		Method:   MethodEcocash,
		Phone:    "0771234567",
		Currency: CurrencyUSD,
		Email:    "rudo@example.com",
	}
}

func waitSignal(t *testing.T, repo *mockPaymentRepo) {
	t.Helper()
	select {
	case <-repo.done:
	case <-time.After(2 * time.Second):
		t.Fatal("confirmation loop did not reach a terminal state")
	}
}

// --- Tests ---

func TestConvert(t *testing.T) {
	rate := decimal.NewFromInt(35)

	assert.True(t, dec("875").Equal(Convert(dec("25"), CurrencyUSD, CurrencyZWL, rate)))
	assert.True(t, dec("25").Equal(Convert(dec("875"), CurrencyZWL, CurrencyUSD, rate)))
	assert.True(t, dec("25").Equal(Convert(dec("25"), CurrencyUSD, CurrencyUSD, rate)))
}

func TestInitiate_UnsupportedMethod(t *testing.T) {
	svc := newTestService(&mockOrderRepo{order: testOrder()}, newMockPaymentRepo(), &scriptedGateway{})

	req := validRequest()
	req.Method = "visa"
	_, err := svc.Initiate(context.Background(), 7, req)
	require.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestInitiate_UnsupportedCurrency(t *testing.T) {
	svc := newTestService(&mockOrderRepo{order: testOrder()}, newMockPaymentRepo(), &scriptedGateway{})

	req := validRequest()
	req.Currency = "EUR"
	_, err := svc.Initiate(context.Background(), 7, req)
	require.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestInitiate_OrderAlreadyPaid(t *testing.T) {
	o := testOrder()
	o.PaymentStatus = order.PaymentPaid
	gw := &scriptedGateway{charge: &ChargeResponse{PollURL: "https://gw/poll/1"}}
	svc := newTestService(&mockOrderRepo{order: o}, newMockPaymentRepo(), gw)

	_, err := svc.Initiate(context.Background(), 7, validRequest())
	require.ErrorIs(t, err, ErrOrderAlreadyPaid)
	assert.Zero(t, gw.polls, "gateway must not be contacted for a paid order")
}

func TestInitiate_OrderHasNoItems(t *testing.T) {
	o := testOrder()
	o.Items = nil
	svc := newTestService(&mockOrderRepo{order: o}, newMockPaymentRepo(), &scriptedGateway{})

	_, err := svc.Initiate(context.Background(), 7, validRequest())
	require.ErrorIs(t, err, ErrOrderHasNoItems)
}

func TestInitiate_GatewayRejection(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{chargeErr: &RejectedError{Reason: "invalid phone"}}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	_, err := svc.Initiate(context.Background(), 7, validRequest())

	var rejErr *RejectedError
	require.ErrorAs(t, err, &rejErr)
	assert.Nil(t, repo.upserted, "no payment row side effects on rejection")
}

func TestInitiate_Success(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1", Instructions: "Dial *151#"},
		script: []pollStep{{state: PollPaid}},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	res, err := svc.Initiate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "sent", res.Status)
	assert.Equal(t, "https://gw/poll/1", res.PollURL)
	assert.Equal(t, "Order#ORD-20250615-AB12CD34", res.PaymentID)
	assert.Equal(t, "Dial *151#", res.Instructions)

	require.NotNil(t, repo.upserted)
	assert.Equal(t, StatusPending, repo.upserted.Status)
	assert.True(t, dec("25.00").Equal(repo.upserted.Amount))

	waitSignal(t, repo)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.True(t, repo.completed)
}

func TestInitiate_ZWLAmountConverted(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{{state: PollPaid}},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	req := validRequest()
	req.Currency = CurrencyZWL
	_, err := svc.Initiate(context.Background(), 7, req)
	require.NoError(t, err)

	require.NotNil(t, repo.upserted)
	assert.True(t, dec("875.00").Equal(repo.upserted.Amount), "amount = %s", repo.upserted.Amount)
	assert.Equal(t, CurrencyZWL, repo.upserted.Currency)

	waitSignal(t, repo)
}

func TestConfirm_TimeoutAfterBudgetExhausted(t *testing.T) {
	// Gateway reports "sent" on every poll: the loop must end in timeout
	// with no completed or failed transition.
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{{state: PollSent}},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	_, err := svc.Initiate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	waitSignal(t, repo)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.True(t, repo.timedOut)
	assert.False(t, repo.completed)
	assert.False(t, repo.failed)
	assert.Equal(t, 3, gw.polls, "one poll per configured attempt")
}

func TestConfirm_CancelledByUser(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{{state: PollSent}, {state: PollCancelled}},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	_, err := svc.Initiate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	waitSignal(t, repo)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.True(t, repo.failed)
	assert.Equal(t, "User cancelled or insufficient funds", repo.reason)
}

func TestConfirm_TransientErrorDoesNotAbort(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{
			{err: errors.New("gateway unreachable")},
			{err: errors.New("gateway unreachable")},
			{state: PollPaid},
		},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	_, err := svc.Initiate(context.Background(), 7, validRequest())
	require.NoError(t, err)

	waitSignal(t, repo)
	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.True(t, repo.completed)
	assert.False(t, repo.timedOut)
}

func TestInitiateAndWait_Paid(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{{state: PollSent}, {state: PollPaid}},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	res, err := svc.InitiateAndWait(context.Background(), 7, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "paid", res.Status)
	assert.True(t, repo.completed)
}

func TestInitiateAndWait_Timeout(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{{state: PollSent}},
	}
	svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, gw)

	res, err := svc.InitiateAndWait(context.Background(), 7, validRequest())
	require.NoError(t, err)
	assert.Equal(t, "timeout", res.Status)
	assert.True(t, repo.timedOut)
}

func TestStatus_Mapping(t *testing.T) {
	tests := []struct {
		stored Status
		want   string
	}{
		{StatusPending, "sent"},
		{StatusCompleted, "paid"},
		{StatusFailed, "cancelled"},
		{StatusTimeout, "timeout"},
	}

	for _, tt := range tests {
		t.Run(string(tt.stored), func(t *testing.T) {
			repo := newMockPaymentRepo()
			repo.upserted = &Payment{
				ID:            11,
				OrderID:       5,
				TransactionID: "Order#ORD-20250615-AB12CD34",
				Amount:        dec("25.00"),
				Currency:      CurrencyUSD,
				Status:        tt.stored,
			}
			svc := newTestService(&mockOrderRepo{order: testOrder()}, repo, &scriptedGateway{})

			res, err := svc.Status(context.Background(), 7, 5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, "Order#ORD-20250615-AB12CD34", res.Reference)
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	svc := newTestService(&mockOrderRepo{order: testOrder()}, newMockPaymentRepo(), &scriptedGateway{})

	_, err := svc.Status(context.Background(), 7, 5)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestTracker_CancelStopsLoop(t *testing.T) {
	repo := newMockPaymentRepo()
	gw := &scriptedGateway{
		charge: &ChargeResponse{PollURL: "https://gw/poll/1"},
		script: []pollStep{{state: PollSent}},
	}
	tracker := NewTracker()
	cfg := fastConfig()
	cfg.InitialDelay = time.Hour // loop parks in the initial delay
	svc := NewService(&mockOrderRepo{order: testOrder()}, repo,
		map[string]Gateway{CurrencyUSD: gw}, tracker, cfg)

	_, err := svc.Initiate(context.Background(), 7, validRequest())
	require.NoError(t, err)
	require.True(t, tracker.Active(11))

	svc.CancelPolling(context.Background(), 7, 5)

	require.Eventually(t, func() bool {
		return !tracker.Active(11)
	}, 2*time.Second, 10*time.Millisecond)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.False(t, repo.timedOut, "a cancelled loop must not mark timeout")
	assert.False(t, repo.completed)
	assert.False(t, repo.failed)
}
