package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnauthorized is returned for any authentication or authorization
// failure. The cause is deliberately not distinguished to callers.
var ErrUnauthorized = errors.New("unauthorized")

// Role describes what a caller may do.
type Role string

const (
	// RoleBuyer can browse the catalog, manage its own cart, and place
	// and track its own orders.
	RoleBuyer Role = "buyer"
	// RoleStaff can additionally confirm payments, drive order status,
	// and adjust inventory.
	RoleStaff Role = "staff"
)

// Actor is the authenticated caller attached to a request.
type Actor struct {
	ID   string
	Name string
	Role Role
}

// Staff reports whether the actor holds back-office permissions.
func (a Actor) Staff() bool {
	return a.Role == RoleStaff
}

// APIKeyInfo holds the identity and permission data for a validated API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	ActorID string
	Name    string
	Role    Role
	Active  bool
}

// Repository provides lookup of API keys by their HMAC hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}
