package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tkaseke/homestore/internal/domain/order"
)

// Config controls the confirmation loop schedule and currency conversion.
// The delays are fixed configuration, not dynamically adjusted.
type Config struct {
	// InitialDelay gives the user time to see the prompt and enter a PIN
	// before the first status check.
	InitialDelay  time.Duration
	CheckInterval time.Duration
	MaxAttempts   int

	// The synchronous initiate-and-wait variant uses a tighter budget so the
	// HTTP response returns within about two minutes.
	SyncInitialDelay  time.Duration
	SyncCheckInterval time.Duration
	SyncMaxAttempts   int

	// ConversionRate is the static ZWL amount per 1 USD.
	ConversionRate decimal.Decimal
}

// DefaultConfig mirrors the production schedule: a 30s PIN-entry grace then
// 10 checks every 15s for the background loop, and 30s + 6 checks every 10s
// for the synchronous variant.
func DefaultConfig() Config {
	return Config{
		InitialDelay:      30 * time.Second,
		CheckInterval:     15 * time.Second,
		MaxAttempts:       10,
		SyncInitialDelay:  30 * time.Second,
		SyncCheckInterval: 10 * time.Second,
		SyncMaxAttempts:   6,
		ConversionRate:    decimal.NewFromInt(35),
	}
}

// Convert converts an amount between USD and ZWL using the fixed rate.
// Identical currencies pass through unchanged.
func Convert(amount decimal.Decimal, from, to string, rate decimal.Decimal) decimal.Decimal {
	switch {
	case from == to:
		return amount
	case from == CurrencyUSD && to == CurrencyZWL:
		return amount.Mul(rate)
	case from == CurrencyZWL && to == CurrencyUSD:
		return amount.Div(rate)
	}
	return amount
}

// InitiateRequest is the input for starting a mobile-money charge.
type InitiateRequest struct {
	OrderID  int64
	Method   string
	Phone    string
	Currency string
	Email    string
}

// InitiateResult is the fixed-shape response of a successful initiation.
type InitiateResult struct {
	PollURL      string
	PaymentID    string
	Instructions string
	Status       string
	Message      string
}

// StatusResult is the mapped payment status for an order.
type StatusResult struct {
	Status    string
	PaymentID string
	Amount    decimal.Decimal
	Currency  string
	Reference string
}

// Service orchestrates the external gateway and drives payments from pending
// to a terminal state.
type Service struct {
	orders   order.Repository
	payments Repository
	gateways map[string]Gateway
	tracker  *Tracker
	cfg      Config
	now      func() time.Time
}

// NewService creates a payment Service. gateways maps each supported
// currency to its configured client; clients are constructed at startup and
// injected, never package-level singletons.
func NewService(
	orders order.Repository,
	payments Repository,
	gateways map[string]Gateway,
	tracker *Tracker,
	cfg Config,
) *Service {
	return &Service{
		orders:   orders,
		payments: payments,
		gateways: gateways,
		tracker:  tracker,
		cfg:      cfg,
		now:      time.Now,
	}
}

// initiate validates the request, sends the charge, and upserts the payment
// row. It is shared by the async and synchronous entry points.
func (s *Service) initiate(ctx context.Context, userID int64, req InitiateRequest) (*Payment, Gateway, error) {
	if req.Method != MethodEcocash && req.Method != MethodOneMoney {
		return nil, nil, ErrUnsupportedMethod
	}
	gw, ok := s.gateways[req.Currency]
	if !ok {
		return nil, nil, ErrUnsupportedCurrency
	}

	o, err := s.orders.GetForUser(ctx, req.OrderID, userID)
	if err != nil {
		return nil, nil, err
	}
	if o.PaymentStatus == order.PaymentPaid {
		return nil, nil, ErrOrderAlreadyPaid
	}
	if len(o.Items) == 0 {
		return nil, nil, ErrOrderHasNoItems
	}

	amount := Convert(o.TotalAmount, o.Currency, req.Currency, s.cfg.ConversionRate)
	reference := "Order#" + o.OrderNumber

	resp, err := gw.SendMobile(ctx, ChargeRequest{
		Reference:   reference,
		Description: "Payment for order #" + o.OrderNumber,
		Amount:      amount,
		Email:       req.Email,
		Phone:       req.Phone,
		Method:      req.Method,
	})
	if err != nil {
		// Gateway rejection or transport failure: no payment row was touched.
		return nil, nil, err
	}

	p := &Payment{
		OrderID:       o.ID,
		Method:        req.Method,
		TransactionID: reference,
		Amount:        amount,
		Currency:      req.Currency,
		Status:        StatusPending,
		PollURL:       resp.PollURL,
		Instructions:  resp.Instructions,
	}
	if err := s.payments.Upsert(ctx, p); err != nil {
		return nil, nil, errors.Wrap(err, "store payment")
	}

	return p, gw, nil
}

// Initiate starts a charge and spawns a detached, tracked confirmation loop
// that drives the payment to a terminal state.
func (s *Service) Initiate(ctx context.Context, userID int64, req InitiateRequest) (*InitiateResult, error) {
	p, gw, err := s.initiate(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	// The loop outlives the request but keeps its values (logger, trace).
	loopCtx, release := s.tracker.Track(context.WithoutCancel(ctx), p.ID)
	go s.confirm(loopCtx, release, p, gw)

	instructions := p.Instructions
	if instructions == "" {
		instructions = "Please complete payment on your phone"
	}
	return &InitiateResult{
		PollURL:      p.PollURL,
		PaymentID:    p.TransactionID,
		Instructions: instructions,
		Status:       "sent",
		Message:      "Payment initiated. Enter your PIN on your phone to confirm; the status is checked automatically.",
	}, nil
}

// confirm is the bounded polling loop: one initial delay, then up to
// MaxAttempts checks spaced by CheckInterval. A transient gateway error is
// logged and the loop waits for the next scheduled attempt. Exhausting the
// budget without a terminal gateway state marks the payment as timed out.
func (s *Service) confirm(ctx context.Context, release func(), p *Payment, gw Gateway) {
	defer release()
	lg := zctx.From(ctx).With(
		zap.Int64("payment_id", p.ID),
		zap.Int64("order_id", p.OrderID),
	)

	if !sleepCtx(ctx, s.cfg.InitialDelay) {
		lg.Info("payment polling cancelled before first check")
		return
	}

	for attempt := 0; attempt < s.cfg.MaxAttempts; attempt++ {
		res, err := gw.CheckStatus(ctx, p.PollURL)
		switch {
		case ctx.Err() != nil:
			lg.Info("payment polling cancelled")
			return
		case err != nil:
			lg.Warn("payment status check failed", zap.Int("attempt", attempt+1), zap.Error(err))
		case res.State == PollPaid:
			if err := s.payments.MarkCompleted(ctx, p.ID, s.now()); err != nil {
				lg.Error("mark payment completed", zap.Error(err))
				return
			}
			lg.Info("payment confirmed as paid")
			return
		case res.State == PollCancelled:
			if err := s.payments.MarkFailed(ctx, p.ID, "User cancelled or insufficient funds"); err != nil {
				lg.Error("mark payment failed", zap.Error(err))
				return
			}
			lg.Info("payment cancelled by user")
			return
		default:
			lg.Debug("payment still awaiting PIN confirmation", zap.Int("attempt", attempt+1))
		}

		if attempt < s.cfg.MaxAttempts-1 {
			if !sleepCtx(ctx, s.cfg.CheckInterval) {
				lg.Info("payment polling cancelled")
				return
			}
		}
	}

	if err := s.payments.MarkTimeout(ctx, p.ID); err != nil {
		lg.Error("mark payment timeout", zap.Error(err))
		return
	}
	lg.Warn("payment timed out", zap.Int("attempts", s.cfg.MaxAttempts))
}

// InitiateAndWait starts a charge and blocks until the gateway reports a
// terminal state or the synchronous polling budget is exhausted. Timeout is
// a normal terminal outcome, reported in the result rather than as an error.
func (s *Service) InitiateAndWait(ctx context.Context, userID int64, req InitiateRequest) (*StatusResult, error) {
	p, gw, err := s.initiate(ctx, userID, req)
	if err != nil {
		return nil, err
	}
	lg := zctx.From(ctx).With(zap.Int64("payment_id", p.ID))

	if !sleepCtx(ctx, s.cfg.SyncInitialDelay) {
		return nil, ctx.Err()
	}

	for i := 0; i < s.cfg.SyncMaxAttempts; i++ {
		res, err := gw.CheckStatus(ctx, p.PollURL)
		switch {
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			lg.Warn("payment status check failed", zap.Int("attempt", i+1), zap.Error(err))
		case res.State == PollPaid:
			if err := s.payments.MarkCompleted(ctx, p.ID, s.now()); err != nil {
				return nil, errors.Wrap(err, "mark payment completed")
			}
			return s.statusResult(p, "paid"), nil
		case res.State == PollCancelled:
			if err := s.payments.MarkFailed(ctx, p.ID, "Cancelled or insufficient funds"); err != nil {
				return nil, errors.Wrap(err, "mark payment failed")
			}
			return s.statusResult(p, "cancelled"), nil
		}

		if i < s.cfg.SyncMaxAttempts-1 {
			if !sleepCtx(ctx, s.cfg.SyncCheckInterval) {
				return nil, ctx.Err()
			}
		}
	}

	if err := s.payments.MarkTimeout(ctx, p.ID); err != nil {
		return nil, errors.Wrap(err, "mark payment timeout")
	}
	return s.statusResult(p, "timeout"), nil
}

// Status returns the mapped payment status for an order, scoped to its owner.
func (s *Service) Status(ctx context.Context, userID, orderID int64) (*StatusResult, error) {
	p, err := s.payments.GetByOrderForUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return s.statusResult(p, mapStatus(p.Status)), nil
}

// List returns the order's payment attempts, scoped to its owner.
func (s *Service) List(ctx context.Context, userID, orderID int64) ([]Payment, error) {
	return s.payments.ListByOrderForUser(ctx, orderID, userID)
}

// CancelPolling requests early termination of the order's in-flight
// confirmation loop, if one is running. Used by the order-cancellation path.
func (s *Service) CancelPolling(ctx context.Context, userID, orderID int64) {
	p, err := s.payments.GetByOrderForUser(ctx, orderID, userID)
	if err != nil {
		return
	}
	s.tracker.Cancel(p.ID)
}

func (s *Service) statusResult(p *Payment, status string) *StatusResult {
	return &StatusResult{
		Status:    status,
		PaymentID: p.TransactionID,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Reference: p.TransactionID,
	}
}

// mapStatus translates the stored payment status to the wire vocabulary.
func mapStatus(s Status) string {
	switch s {
	case StatusCompleted:
		return "paid"
	case StatusFailed:
		return "cancelled"
	case StatusTimeout:
		return "timeout"
	default:
		return "sent"
	}
}

// sleepCtx waits for d or until ctx is cancelled. It reports whether the
// full duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
