package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tkaseke/homestore/internal/domain/cart"
	"github.com/tkaseke/homestore/internal/domain/catalog"
)

type cartLineResponse struct {
	ID       int64            `json:"id"`
	Quantity int              `json:"quantity"`
	Price    decimal.Decimal  `json:"price"`
	Subtotal decimal.Decimal  `json:"subtotal"`
	Product  productResponse  `json:"product"`
	Variant  *variantResponse `json:"variant,omitempty"`
}

type cartResponse struct {
	Items    []cartLineResponse `json:"items"`
	Subtotal decimal.Decimal    `json:"subtotal"`
}

func toCartLineResponse(l *cart.Line) cartLineResponse {
	resp := cartLineResponse{
		ID:       l.ID,
		Quantity: l.Quantity,
		Price:    l.Price,
		Subtotal: l.Subtotal(),
		Product:  toProductResponse(l.Product),
	}
	if l.Variant != nil {
		v := toVariantResponse(l.Variant)
		resp.Variant = &v
	}
	return resp
}

func toCartResponse(lines []cart.Line) cartResponse {
	resp := cartResponse{
		Items:    make([]cartLineResponse, len(lines)),
		Subtotal: decimal.Zero,
	}
	for i := range lines {
		resp.Items[i] = toCartLineResponse(&lines[i])
		resp.Subtotal = resp.Subtotal.Add(lines[i].Subtotal())
	}
	return resp
}

// GetCart returns the authenticated user's cart with a running subtotal.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	lines, err := h.carts.ListForUser(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartResponse(lines))
}

type addCartItemRequest struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// AddCartItem adds a product (optionally a variant) to the cart. The line
// price is snapshotted from the catalog at add time: the variant price when a
// variant is chosen, the product price otherwise.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req addCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		respondError(w, r, http.StatusBadRequest, "quantity must be positive")
		return
	}

	p, err := h.products.GetByID(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, r, http.StatusNotFound, "product not found")
			return
		}
		respondInternal(w, r, err)
		return
	}

	price := p.Price
	if req.VariantID != nil {
		v, err := h.products.GetVariant(r.Context(), req.ProductID, *req.VariantID)
		if err != nil {
			if errors.Is(err, catalog.ErrVariantNotFound) {
				respondError(w, r, http.StatusNotFound, "product variant not found")
				return
			}
			respondInternal(w, r, err)
			return
		}
		price = v.Price
	}

	line, err := h.carts.Add(r.Context(), userID, req.ProductID, req.VariantID, req.Quantity, price)
	if err != nil {
		respondInternal(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, toCartLineResponse(line))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateCartItem sets the quantity of a cart line.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req updateCartItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity <= 0 {
		respondError(w, r, http.StatusBadRequest, "quantity must be positive")
		return
	}

	line, err := h.carts.UpdateQuantity(r.Context(), id, userID, req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondError(w, r, http.StatusNotFound, "cart item not found")
			return
		}
		respondInternal(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusOK, toCartLineResponse(line))
}

// RemoveCartItem deletes one cart line.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.carts.Remove(r.Context(), id, userID); err != nil {
		if errors.Is(err, cart.ErrLineNotFound) {
			respondError(w, r, http.StatusNotFound, "cart item not found")
			return
		}
		respondInternal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearCart empties the authenticated user's cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		respondInternal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
