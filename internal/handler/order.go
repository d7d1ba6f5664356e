package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/address"
	"github.com/tkaseke/homestore/internal/domain/order"
)

type addressSnapshotResponse struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Company      string `json:"company,omitempty"`
	AddressLine1 string `json:"address_line1"`
	AddressLine2 string `json:"address_line2,omitempty"`
	City         string `json:"city"`
	Province     string `json:"province"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
	Phone        string `json:"phone,omitempty"`
}

type orderItemResponse struct {
	ID          int64           `json:"id"`
	ProductID   *int64          `json:"product_id"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	VariantName string          `json:"variant_name,omitempty"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type orderResponse struct {
	ID              int64                   `json:"id"`
	OrderNumber     string                  `json:"order_number"`
	Status          string                  `json:"status"`
	PaymentStatus   string                  `json:"payment_status"`
	Currency        string                  `json:"currency"`
	Subtotal        decimal.Decimal         `json:"subtotal"`
	TaxAmount       decimal.Decimal         `json:"tax_amount"`
	ShippingCost    decimal.Decimal         `json:"shipping_cost"`
	DiscountAmount  decimal.Decimal         `json:"discount_amount"`
	TotalAmount     decimal.Decimal         `json:"total_amount"`
	CouponCode      string                  `json:"coupon_code,omitempty"`
	ShippingAddress addressSnapshotResponse `json:"shipping_address"`
	BillingAddress  addressSnapshotResponse `json:"billing_address"`
	Notes           string                  `json:"notes,omitempty"`
	Items           []orderItemResponse     `json:"items,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
}

func toSnapshotResponse(s order.AddressSnapshot) addressSnapshotResponse {
	return addressSnapshotResponse{
		FirstName:    s.FirstName,
		LastName:     s.LastName,
		Company:      s.Company,
		AddressLine1: s.AddressLine1,
		AddressLine2: s.AddressLine2,
		City:         s.City,
		Province:     s.Province,
		PostalCode:   s.PostalCode,
		Country:      s.Country,
		Phone:        s.Phone,
	}
}

func toOrderResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Currency:        o.Currency,
		Subtotal:        o.Subtotal,
		TaxAmount:       o.TaxAmount,
		ShippingCost:    o.ShippingCost,
		DiscountAmount:  o.DiscountAmount,
		TotalAmount:     o.TotalAmount,
		CouponCode:      o.CouponCode,
		ShippingAddress: toSnapshotResponse(o.Shipping),
		BillingAddress:  toSnapshotResponse(o.Billing),
		Notes:           o.Notes,
		CreatedAt:       o.CreatedAt,
	}
	if len(o.Items) > 0 {
		resp.Items = make([]orderItemResponse, len(o.Items))
		for i, it := range o.Items {
			resp.Items[i] = orderItemResponse{
				ID:          it.ID,
				ProductID:   it.ProductID,
				VariantID:   it.VariantID,
				ProductName: it.ProductName,
				VariantName: it.VariantName,
				SKU:         it.SKU,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				TotalPrice:  it.TotalPrice,
			}
		}
	}
	return resp
}

type createOrderRequest struct {
	ShippingAddressID int64  `json:"shipping_address_id"`
	BillingAddressID  *int64 `json:"billing_address_id"`
	CouponCode        string `json:"coupon_code"`
	Notes             string `json:"notes"`
}

// CreateOrder converts the authenticated user's cart into an order.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ShippingAddressID <= 0 {
		respondError(w, r, http.StatusBadRequest, "shipping_address_id is required")
		return
	}

	o, err := h.orders.CreateOrder(r.Context(), userID, order.CreateRequest{
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		CouponCode:        req.CouponCode,
		Notes:             req.Notes,
	})
	if err != nil {
		mapOrderError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toOrderResponse(o))
}

// ListOrders returns the user's orders, newest first. Supports ?status=,
// ?limit= and ?offset= query parameters.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	orders, err := h.orders.List(r.Context(), userID, status, limit, offset)
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i])
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// GetOrder returns one of the user's orders with its items.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, err := h.orders.Get(r.Context(), id, userID)
	if err != nil {
		mapOrderError(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toOrderResponse(o))
}

// CancelOrder cancels a pending, unpaid order and requests early termination
// of any in-flight payment confirmation polling for it.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.orders.Cancel(r.Context(), id, userID); err != nil {
		mapOrderError(w, r, err)
		return
	}
	h.payments.CancelPolling(r.Context(), userID, id)
	respondJSON(w, r, http.StatusOK, map[string]string{"status": "cancelled"})
}

// mapOrderError converts order domain errors to HTTP responses.
func mapOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var couponErr *order.InvalidCouponError
	switch {
	case errors.Is(err, order.ErrCartEmpty):
		respondError(w, r, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, address.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "address not found")
	case errors.Is(err, order.ErrNotFound):
		respondError(w, r, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrNotCancellable):
		respondError(w, r, http.StatusConflict, "order can no longer be cancelled")
	case errors.As(err, &couponErr):
		respondError(w, r, http.StatusBadRequest, couponErr.Message)
	default:
		respondInternal(w, r, err)
	}
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
