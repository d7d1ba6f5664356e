package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned when an API key is missing, unknown, or
// revoked. Callers receive no further detail.
var ErrUnauthorized = errors.New("unauthorized")

// APIKeyInfo is the identity resolved from a validated API key. UserID is
// the "current authenticated user" consumed by every user-scoped operation.
type APIKeyInfo struct {
	ID      int64
	UserID  int64
	KeyHash string
	Name    string
}

// Repository provides lookup of active API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
