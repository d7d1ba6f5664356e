// Package paynow implements the Paynow Zimbabwe remote-transaction interface
// used to initiate and poll mobile-money (Ecocash, OneMoney) charges.
package paynow

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/payment"
)

const defaultBaseURL = "https://www.paynow.co.zw"

// Config carries one currency's integration credentials. Paynow issues a
// separate integration per settlement currency, so the application holds one
// Client per supported currency.
type Config struct {
	IntegrationID  string
	IntegrationKey string
	ReturnURL      string
	ResultURL      string
	// BaseURL overrides the Paynow endpoint, used by tests.
	BaseURL string
}

// Client speaks the Paynow remote-transaction wire format: form-encoded
// request and response bodies, each signed with an SHA-512 hash of the
// concatenated field values plus the integration key.
type Client struct {
	cfg  Config
	http *http.Client
}

var _ payment.Gateway = (*Client)(nil)

// NewClient creates a Client for one integration. httpClient may be nil, in
// which case http.DefaultClient is used.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, http: httpClient}
}

// SendMobile initiates a mobile-money charge. The gateway responds with
// status=Ok and a poll URL on acceptance, or status=Error and a reason when
// it refuses the charge; the latter is surfaced as *payment.RejectedError.
func (c *Client) SendMobile(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResponse, error) {
	form := url.Values{}
	form.Set("id", c.cfg.IntegrationID)
	form.Set("reference", req.Reference)
	form.Set("amount", req.Amount.StringFixed(2))
	form.Set("additionalinfo", req.Description)
	form.Set("returnurl", c.cfg.ReturnURL)
	form.Set("resulturl", c.cfg.ResultURL)
	form.Set("authemail", req.Email)
	form.Set("phone", req.Phone)
	form.Set("method", req.Method)
	form.Set("status", "Message")
	form.Set("hash", c.sign(form))

	body, err := c.post(ctx, c.cfg.BaseURL+"/interface/remotetransaction", form)
	if err != nil {
		return nil, err
	}

	fields, err := url.ParseQuery(body)
	if err != nil {
		return nil, errors.Wrap(err, "parse gateway response")
	}

	switch strings.ToLower(fields.Get("status")) {
	case "ok":
		return &payment.ChargeResponse{
			PollURL:      fields.Get("pollurl"),
			Instructions: fields.Get("instructions"),
		}, nil
	case "error":
		reason := fields.Get("error")
		if reason == "" {
			reason = "payment initiation failed"
		}
		return nil, &payment.RejectedError{Reason: reason}
	default:
		return nil, errors.Errorf("unexpected gateway status %q", fields.Get("status"))
	}
}

// CheckStatus polls a transaction by its poll URL and maps the gateway's
// status vocabulary onto the three states the confirmation loop acts on.
func (c *Client) CheckStatus(ctx context.Context, pollURL string) (*payment.PollResult, error) {
	body, err := c.post(ctx, pollURL, url.Values{})
	if err != nil {
		return nil, err
	}

	fields, err := url.ParseQuery(body)
	if err != nil {
		return nil, errors.Wrap(err, "parse poll response")
	}

	amount := decimal.Zero
	if raw := fields.Get("amount"); raw != "" {
		amount, err = decimal.NewFromString(raw)
		if err != nil {
			return nil, errors.Wrap(err, "parse amount")
		}
	}

	return &payment.PollResult{
		State:     mapState(fields.Get("status")),
		Reference: fields.Get("reference"),
		Amount:    amount,
	}, nil
}

// mapState folds Paynow's transaction statuses into the loop's vocabulary.
// "Awaiting Delivery" means funds were captured, so it counts as paid.
func mapState(status string) payment.PollState {
	switch strings.ToLower(status) {
	case "paid", "awaiting delivery", "delivered":
		return payment.PollPaid
	case "cancelled", "failed", "disputed", "refunded":
		return payment.PollCancelled
	default:
		// Created, Sent and anything unrecognised: keep polling.
		return payment.PollSent
	}
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "gateway request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "read gateway response")
	}
	return string(body), nil
}

// sign computes the Paynow message hash: SHA-512 over the concatenation of
// every field value in insertion order followed by the integration key,
// upper-case hex encoded.
func (c *Client) sign(form url.Values) string {
	var b strings.Builder
	for _, key := range []string{
		"id", "reference", "amount", "additionalinfo", "returnurl",
		"resulturl", "authemail", "phone", "method", "status",
	} {
		b.WriteString(form.Get(key))
	}
	b.WriteString(c.cfg.IntegrationKey)

	sum := sha512.Sum512([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
