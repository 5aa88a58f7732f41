package authz

import (
	"errors"
	"slices"

	"github.com/google/uuid"
)

// Role names carried in verified token claims.
const (
	RoleAdmin  = "ADMIN"
	RoleAuthor = "AUTHOR"
)

// ErrDenied indicates the caller lacks permission for the attempted operation.
var ErrDenied = errors.New("authz: access denied")

// AuthenticatedUser is the identity attached to a request by the auth layer.
// It is an input value only; nothing here persists it.
type AuthenticatedUser struct {
	PersonID uuid.UUID
	Email    string
	Roles    []string
}

// HasRole reports whether the user carries the named role.
func (u AuthenticatedUser) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}
