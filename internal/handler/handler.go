package handler

import (
	"net/http"

	"github.com/tkaseke/homestore/internal/domain/address"
	"github.com/tkaseke/homestore/internal/domain/cart"
	"github.com/tkaseke/homestore/internal/domain/catalog"
	"github.com/tkaseke/homestore/internal/domain/coupon"
	"github.com/tkaseke/homestore/internal/domain/order"
	"github.com/tkaseke/homestore/internal/domain/payment"
	"github.com/tkaseke/homestore/internal/domain/wishlist"
)

// Handler serves the store API, delegating business logic to the domain
// services and repositories.
type Handler struct {
	products  catalog.Repository
	addresses address.Repository
	carts     cart.Repository
	coupons   coupon.Validator
	wishlists wishlist.Repository
	orders    *order.Service
	payments  *payment.Service
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products catalog.Repository,
	addresses address.Repository,
	carts cart.Repository,
	coupons coupon.Validator,
	wishlists wishlist.Repository,
	orders *order.Service,
	payments *payment.Service,
) *Handler {
	return &Handler{
		products:  products,
		addresses: addresses,
		carts:     carts,
		coupons:   coupons,
		wishlists: wishlists,
		orders:    orders,
		payments:  payments,
	}
}

// RegisterRoutes attaches all API routes to mux under /api. Every route
// except the catalog reads requires an authenticated user.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, auth Middleware) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("GET /api/cart", auth(h.GetCart))
	mux.Handle("POST /api/cart/items", auth(h.AddCartItem))
	mux.Handle("PUT /api/cart/items/{id}", auth(h.UpdateCartItem))
	mux.Handle("DELETE /api/cart/items/{id}", auth(h.RemoveCartItem))
	mux.Handle("DELETE /api/cart", auth(h.ClearCart))

	mux.Handle("GET /api/wishlist", auth(h.GetWishlist))
	mux.Handle("POST /api/wishlist/{productID}", auth(h.AddWishlistItem))
	mux.Handle("DELETE /api/wishlist/{productID}", auth(h.RemoveWishlistItem))

	mux.Handle("GET /api/addresses", auth(h.ListAddresses))

	mux.Handle("POST /api/coupons/validate", auth(h.ValidateCoupon))

	mux.Handle("POST /api/orders", auth(h.CreateOrder))
	mux.Handle("GET /api/orders", auth(h.ListOrders))
	mux.Handle("GET /api/orders/{id}", auth(h.GetOrder))
	mux.Handle("POST /api/orders/{id}/cancel", auth(h.CancelOrder))

	mux.Handle("POST /api/orders/{id}/payments", auth(h.InitiatePayment))
	mux.Handle("GET /api/orders/{id}/payments", auth(h.ListPayments))
	mux.Handle("GET /api/orders/{id}/payments/status", auth(h.PaymentStatus))
	mux.Handle("DELETE /api/orders/{id}/payments/poll", auth(h.CancelPaymentPolling))
}
