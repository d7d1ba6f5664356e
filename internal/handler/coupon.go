package handler

import (
	"net/http"

	"github.com/shopspring/decimal"
)

type validateCouponRequest struct {
	Code string `json:"code"`
	// CartTotal overrides the subtotal derived from the stored cart, letting
	// clients validate a code against a total they computed locally.
	CartTotal *decimal.Decimal `json:"cart_total"`
}

type validateCouponResponse struct {
	Valid          bool            `json:"valid"`
	Message        string          `json:"message"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// ValidateCoupon evaluates a coupon code without redeeming it, against the
// supplied cart_total or, when absent, the authenticated user's current cart
// subtotal.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req validateCouponRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Code == "" {
		respondError(w, r, http.StatusBadRequest, "code is required")
		return
	}

	var subtotal decimal.Decimal
	if req.CartTotal != nil {
		if req.CartTotal.IsNegative() {
			respondError(w, r, http.StatusBadRequest, "cart_total must not be negative")
			return
		}
		subtotal = *req.CartTotal
	} else {
		lines, err := h.carts.ListForUser(r.Context(), userID)
		if err != nil {
			respondInternal(w, r, err)
			return
		}
		for _, line := range lines {
			subtotal = subtotal.Add(line.Subtotal())
		}
	}

	eval, err := h.coupons.Validate(r.Context(), req.Code, subtotal)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, validateCouponResponse{
		Valid:          eval.Valid,
		Message:        eval.Message,
		DiscountAmount: eval.DiscountAmount,
	})
}
