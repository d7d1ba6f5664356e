package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ChargeRequest describes a mobile-money charge to be sent to the gateway.
type ChargeRequest struct {
	Reference   string
	Description string
	Amount      decimal.Decimal
	Email       string
	Phone       string
	Method      string
}

// ChargeResponse is the gateway's acknowledgement of an accepted charge.
// PollURL is the handle for subsequent status checks.
type ChargeResponse struct {
	PollURL      string
	Instructions string
}

// RejectedError indicates the gateway refused the charge outright, e.g. a
// malformed phone number or unknown method. It is a user-correctable error.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment rejected: %s", e.Reason)
}

// PollState is the gateway-reported transaction state.
type PollState string

const (
	// PollSent means the charge was delivered to the phone and the user has
	// not yet entered a PIN.
	PollSent PollState = "sent"
	// PollPaid means the charge was confirmed.
	PollPaid PollState = "paid"
	// PollCancelled means the user declined or had insufficient funds.
	PollCancelled PollState = "cancelled"
)

// PollResult is one status-check response from the gateway.
type PollResult struct {
	State     PollState
	Reference string
	Amount    decimal.Decimal
}

// Gateway is the external mobile-money service. One Gateway instance is
// configured per supported currency and injected at startup.
type Gateway interface {
	// SendMobile initiates a charge to the given phone. A *RejectedError is
	// returned when the gateway refuses the charge; other errors indicate
	// transport failures.
	SendMobile(ctx context.Context, req ChargeRequest) (*ChargeResponse, error)
	// CheckStatus polls the transaction referenced by pollURL.
	CheckStatus(ctx context.Context, pollURL string) (*PollResult, error)
}
