package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tkaseke/homestore/internal/domain/address"
)

const (
	getAddressSQL = `SELECT id, user_id, label, first_name, last_name, company,
		address_line1, address_line2, city, province, postal_code, country, phone, is_default
		FROM addresses WHERE id = $1 AND user_id = $2`

	listAddressesSQL = `SELECT id, user_id, label, first_name, last_name, company,
		address_line1, address_line2, city, province, postal_code, country, phone, is_default
		FROM addresses WHERE user_id = $1 ORDER BY is_default DESC, id`
)

var _ address.Repository = (*AddressRepository)(nil)

// AddressRepository implements address.Repository backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

// GetForUser returns the address only when it belongs to userID. A missing
// row and a row owned by someone else both map to address.ErrNotFound.
func (r *AddressRepository) GetForUser(ctx context.Context, id, userID int64) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressSQL, id, userID)
	if err != nil {
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, fmt.Errorf("getting address %d: %w", id, err)
	}
	return &a, nil
}

// ListForUser returns the user's addresses, default first.
func (r *AddressRepository) ListForUser(ctx context.Context, userID int64) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	return pgx.CollectRows(rows, scanAddress)
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.UserID, &a.Label, &a.FirstName, &a.LastName, &a.Company,
		&a.AddressLine1, &a.AddressLine2, &a.City, &a.Province,
		&a.PostalCode, &a.Country, &a.Phone, &a.IsDefault,
	)
	return a, err
}
