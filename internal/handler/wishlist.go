package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"

	"github.com/tkaseke/homestore/internal/domain/catalog"
	"github.com/tkaseke/homestore/internal/domain/wishlist"
)

type wishlistItemResponse struct {
	ID        int64           `json:"id"`
	Product   productResponse `json:"product"`
	CreatedAt time.Time       `json:"created_at"`
}

// GetWishlist returns the user's wishlisted products, newest first.
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	items, err := h.wishlists.ListForUser(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	resp := make([]wishlistItemResponse, len(items))
	for i, it := range items {
		resp[i] = wishlistItemResponse{
			ID:        it.ID,
			Product:   toProductResponse(it.Product),
			CreatedAt: it.CreatedAt,
		}
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// AddWishlistItem puts a product on the user's wishlist.
func (h *Handler) AddWishlistItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	p, err := h.products.GetByID(r.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, r, http.StatusNotFound, "product not found")
			return
		}
		respondInternal(w, r, err)
		return
	}

	item, err := h.wishlists.Add(r.Context(), userID, productID)
	if err != nil {
		if errors.Is(err, wishlist.ErrAlreadyExists) {
			respondError(w, r, http.StatusConflict, "item already in wishlist")
			return
		}
		respondInternal(w, r, err)
		return
	}
	respondJSON(w, r, http.StatusCreated, wishlistItemResponse{
		ID:        item.ID,
		Product:   toProductResponse(p),
		CreatedAt: item.CreatedAt,
	})
}

// RemoveWishlistItem takes a product off the user's wishlist.
func (h *Handler) RemoveWishlistItem(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	productID, ok := pathID(w, r, "productID")
	if !ok {
		return
	}

	if err := h.wishlists.Remove(r.Context(), userID, productID); err != nil {
		if errors.Is(err, wishlist.ErrNotFound) {
			respondError(w, r, http.StatusNotFound, "wishlist item not found")
			return
		}
		respondInternal(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
