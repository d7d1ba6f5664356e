package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/order"
	"github.com/tkaseke/homestore/internal/domain/payment"
)

type initiatePaymentRequest struct {
	Method   string `json:"method"`
	Phone    string `json:"phone"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
}

type initiatePaymentResponse struct {
	Status       string `json:"status"`
	PaymentID    string `json:"payment_id"`
	PollURL      string `json:"poll_url,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Message      string `json:"message,omitempty"`
}

type paymentStatusResponse struct {
	Status    string          `json:"status"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Reference string          `json:"reference"`
}

type paymentResponse struct {
	ID            int64           `json:"id"`
	OrderID       int64           `json:"order_id"`
	Method        string          `json:"method"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InitiatePayment starts a mobile-money charge for the order. By default the
// confirmation loop runs in the background; ?wait=true blocks until the
// payment reaches a terminal state and returns it.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Phone == "" {
		respondError(w, r, http.StatusBadRequest, "phone is required")
		return
	}

	domainReq := payment.InitiateRequest{
		OrderID:  orderID,
		Method:   req.Method,
		Phone:    req.Phone,
		Currency: req.Currency,
		Email:    req.Email,
	}

	if r.URL.Query().Get("wait") == "true" {
		status, err := h.payments.InitiateAndWait(r.Context(), userID, domainReq)
		if err != nil {
			mapPaymentError(w, r, err)
			return
		}
		respondJSON(w, r, http.StatusOK, toStatusResponse(status))
		return
	}

	result, err := h.payments.Initiate(r.Context(), userID, domainReq)
	if err != nil {
		mapPaymentError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusAccepted, initiatePaymentResponse{
		Status:       result.Status,
		PaymentID:    result.PaymentID,
		PollURL:      result.PollURL,
		Instructions: result.Instructions,
		Message:      result.Message,
	})
}

// PaymentStatus returns the mapped status of the order's payment.
func (h *Handler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	status, err := h.payments.Status(r.Context(), userID, orderID)
	if err != nil {
		mapPaymentError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toStatusResponse(status))
}

// ListPayments returns the order's payment attempts.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	payments, err := h.payments.List(r.Context(), userID, orderID)
	if err != nil {
		mapPaymentError(w, r, err)
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = paymentResponse{
			ID:            p.ID,
			OrderID:       p.OrderID,
			Method:        p.Method,
			TransactionID: p.TransactionID,
			Amount:        p.Amount,
			Currency:      p.Currency,
			Status:        string(p.Status),
			FailureReason: p.FailureReason,
			ProcessedAt:   p.ProcessedAt,
			CreatedAt:     p.CreatedAt,
		}
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// CancelPaymentPolling stops the background confirmation loop for the
// order's payment, leaving the payment itself untouched.
func (h *Handler) CancelPaymentPolling(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	h.payments.CancelPolling(r.Context(), userID, orderID)
	w.WriteHeader(http.StatusNoContent)
}

func toStatusResponse(s *payment.StatusResult) paymentStatusResponse {
	return paymentStatusResponse{
		Status:    s.Status,
		PaymentID: s.PaymentID,
		Amount:    s.Amount,
		Currency:  s.Currency,
		Reference: s.Reference,
	}
}

// mapPaymentError converts payment domain errors to HTTP responses.
func mapPaymentError(w http.ResponseWriter, r *http.Request, err error) {
	var rejected *payment.RejectedError
	switch {
	case errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, payment.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "payment not found for this order")
	case errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, payment.ErrUnsupportedCurrency),
		errors.Is(err, payment.ErrOrderHasNoItems):
		respondError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, payment.ErrOrderAlreadyPaid):
		respondError(w, r, http.StatusConflict, err.Error())
	case errors.As(err, &rejected):
		respondError(w, r, http.StatusBadRequest, rejected.Reason)
	default:
		respondInternal(w, r, err)
	}
}
