package payment

import (
	"context"
	"sync"
)

type pollHandle struct {
	cancel context.CancelFunc
}

// Tracker keeps a cancel function per in-flight confirmation loop so other
// paths (order cancellation, shutdown) can request early termination.
type Tracker struct {
	mu    sync.Mutex
	polls map[int64]*pollHandle
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{polls: make(map[int64]*pollHandle)}
}

// Track derives a cancellable context for the payment's confirmation loop
// and returns it with a release function the loop must call when it exits.
// A previous loop for the same payment, if any, is cancelled first: only one
// loop per payment may run at a time.
func (t *Tracker) Track(ctx context.Context, paymentID int64) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	h := &pollHandle{cancel: cancel}

	t.mu.Lock()
	if prev, ok := t.polls[paymentID]; ok {
		prev.cancel()
	}
	t.polls[paymentID] = h
	t.mu.Unlock()

	release := func() {
		t.mu.Lock()
		// A re-initiation may have replaced the entry; only remove our own.
		if cur, ok := t.polls[paymentID]; ok && cur == h {
			delete(t.polls, paymentID)
		}
		t.mu.Unlock()
		cancel()
	}
	return ctx, release
}

// Cancel requests early termination of the payment's confirmation loop.
// It is a no-op when no loop is running.
func (t *Tracker) Cancel(paymentID int64) {
	t.mu.Lock()
	h, ok := t.polls[paymentID]
	if ok {
		delete(t.polls, paymentID)
	}
	t.mu.Unlock()

	if ok {
		h.cancel()
	}
}

// Active reports whether a confirmation loop is currently tracked for the
// payment.
func (t *Tracker) Active(paymentID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.polls[paymentID]
	return ok
}
