package authz

import (
	"fmt"

	"github.com/google/uuid"
)

// Role is the closed set of roles a user record may carry.
type Role string

const (
	RoleUnset     Role = ""
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// ParseRole validates s against the role enumeration.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUnset, RoleUser, RoleModerator, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Principal is the caller an operation runs on behalf of.
// The zero value is the anonymous principal.
type Principal struct {
	UserID    uuid.UUID
	Username  string
	Role      Role
	Superuser bool
}

// Anonymous is the unauthenticated principal.
var Anonymous = Principal{}

func (p Principal) Authenticated() bool {
	return p.UserID != uuid.Nil
}

// IsStaff reports moderator, admin or superuser.
func (p Principal) IsStaff() bool {
	return p.Authenticated() && (p.Superuser || p.Role == RoleModerator || p.Role == RoleAdmin)
}

// IsAdmin reports admin or superuser.
func (p Principal) IsAdmin() bool {
	return p.Authenticated() && (p.Superuser || p.Role == RoleAdmin)
}
