package address

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an address does not exist or is not owned by
// the requesting user. The two cases are deliberately indistinguishable.
var ErrNotFound = errors.New("address not found")

// Address is a user-owned shipping or billing address. Orders copy these
// fields at checkout time, so editing or deleting an address never alters a
// placed order.
type Address struct {
	ID           int64
	UserID       int64
	Label        string
	FirstName    string
	LastName     string
	Company      string
	AddressLine1 string
	AddressLine2 string
	City         string
	Province     string
	PostalCode   string
	Country      string
	Phone        string
	IsDefault    bool
}

// Repository defines lookup of addresses scoped to their owner.
type Repository interface {
	// GetForUser returns the address only when it belongs to userID,
	// otherwise ErrNotFound.
	GetForUser(ctx context.Context, id, userID int64) (*Address, error)
	ListForUser(ctx context.Context, userID int64) ([]Address, error)
}
