package paynow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkaseke/homestore/internal/domain/payment"
)

func testConfig(baseURL string) Config {
	return Config{
		IntegrationID:  "21436",
		IntegrationKey: "test-key",
		ReturnURL:      "https://shop.example.com/payment-return",
		ResultURL:      "https://shop.example.com/api/paynow/webhook",
		BaseURL:        baseURL,
	}
}

func chargeRequest() payment.ChargeRequest {
	return payment.ChargeRequest{
		Reference:   "Order#ORD-20250615-AB12CD34",
		Description: "Payment for order #ORD-20250615-AB12CD34",
		Amount:      decimal.RequireFromString("25.00"),
		Email:       "rudo@example.com",
		Phone:       "0771234567",
		Method:      payment.MethodEcocash,
	}
}

func TestSendMobile_Accepted(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		got = r.PostForm

		resp := url.Values{}
		resp.Set("status", "Ok")
		resp.Set("pollurl", "https://www.paynow.co.zw/interface/pollpayment?guid=abc")
		resp.Set("instructions", "Dial *151*2*4# and confirm")
		_, _ = w.Write([]byte(resp.Encode()))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client())
	resp, err := c.SendMobile(context.Background(), chargeRequest())
	require.NoError(t, err)

	assert.Equal(t, "https://www.paynow.co.zw/interface/pollpayment?guid=abc", resp.PollURL)
	assert.Equal(t, "Dial *151*2*4# and confirm", resp.Instructions)

	assert.Equal(t, "21436", got.Get("id"))
	assert.Equal(t, "25.00", got.Get("amount"))
	assert.Equal(t, "ecocash", got.Get("method"))
	assert.Equal(t, "0771234567", got.Get("phone"))
	assert.NotEmpty(t, got.Get("hash"))
	assert.Len(t, got.Get("hash"), 128, "SHA-512 hex digest")
}

func TestSendMobile_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		resp := url.Values{}
		resp.Set("status", "Error")
		resp.Set("error", "Invalid phone number")
		_, _ = w.Write([]byte(resp.Encode()))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client())
	_, err := c.SendMobile(context.Background(), chargeRequest())

	var rejErr *payment.RejectedError
	require.ErrorAs(t, err, &rejErr)
	assert.Equal(t, "Invalid phone number", rejErr.Reason)
}

func TestSendMobile_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), srv.Client())
	_, err := c.SendMobile(context.Background(), chargeRequest())
	require.Error(t, err)

	// Transport failures are not rejections.
	var rejErr *payment.RejectedError
	assert.False(t, errors.As(err, &rejErr))
	assert.Contains(t, err.Error(), "502")
}

func TestCheckStatus_Mapping(t *testing.T) {
	tests := []struct {
		gateway string
		want    payment.PollState
	}{
		{"Paid", payment.PollPaid},
		{"Awaiting Delivery", payment.PollPaid},
		{"Cancelled", payment.PollCancelled},
		{"Failed", payment.PollCancelled},
		{"Sent", payment.PollSent},
		{"Created", payment.PollSent},
	}

	for _, tt := range tests {
		t.Run(tt.gateway, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				resp := url.Values{}
				resp.Set("status", tt.gateway)
				resp.Set("reference", "Order#ORD-20250615-AB12CD34")
				resp.Set("amount", "25.00")
				_, _ = w.Write([]byte(resp.Encode()))
			}))
			defer srv.Close()

			c := NewClient(testConfig(srv.URL), srv.Client())
			res, err := c.CheckStatus(context.Background(), srv.URL+"/interface/pollpayment?guid=abc")
			require.NoError(t, err)

			assert.Equal(t, tt.want, res.State)
			assert.Equal(t, "Order#ORD-20250615-AB12CD34", res.Reference)
			assert.True(t, decimal.RequireFromString("25.00").Equal(res.Amount))
		})
	}
}
