// Package auth defines API key identity used to authenticate storefront and
// back-office requests.
package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrKeyNotFound is returned when no API key matches the presented hash.
var ErrKeyNotFound = errors.New("api key not found")

// ScopeAdmin grants access to the admin back office (order status updates,
// coupon management, full order listings).
const ScopeAdmin = "admin"

// Key holds the identity and permission data for a validated API key.
// Each key belongs to a storefront user; admin staff keys carry ScopeAdmin.
type Key struct {
	ID      string
	KeyHash string
	UserID  string
	Name    string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (k *Key) HasScope(scope string) bool {
	for _, s := range k.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*Key, error)
}
