package handler

import (
	"net/http"

	"github.com/tkaseke/homestore/internal/domain/address"
)

type addressResponse struct {
	ID           int64  `json:"id"`
	Label        string `json:"label,omitempty"`
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
	IsDefault    bool   `json:"is_default"`
}

func toAddressResponse(a *address.Address) addressResponse {
	return addressResponse{
		ID:           a.ID,
		Label:        a.Label,
		FirstName:    a.FirstName,
		LastName:     a.LastName,
		Company:      a.Company,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		Province:     a.Province,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		Phone:        a.Phone,
		IsDefault:    a.IsDefault,
	}
}

// ListAddresses returns the user's saved addresses, default first.
func (h *Handler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	addrs, err := h.addresses.ListForUser(r.Context(), userID)
	if err != nil {
		respondInternal(w, r, err)
		return
	}

	resp := make([]addressResponse, len(addrs))
	for i := range addrs {
		resp[i] = toAddressResponse(&addrs[i])
	}
	respondJSON(w, r, http.StatusOK, resp)
}
