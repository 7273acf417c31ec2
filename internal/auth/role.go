package auth

import (
	"strings"

	"ecoindex/internal/core"
)

// Role is a user's authorization level. Roles are ordered
// GUEST < USER < ADMIN, and SUPER_ADMIN ranks equal to ADMIN.
type Role string

const (
	RoleGuest      Role = "GUEST"
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

var roleRank = map[Role]int{
	RoleGuest:      0,
	RoleUser:       1,
	RoleAdmin:      2,
	RoleSuperAdmin: 2,
}

// ParseRole converts s into a known Role. Case and surrounding space are
// ignored.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := roleRank[r]; !ok {
		return "", core.NewValidationError("role", "unknown role %q", s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r meets min. Unknown roles meet nothing.
func (r Role) AtLeast(min Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	need, ok := roleRank[min]
	return ok && have >= need
}

// Assignable reports whether an administrator may grant r. SUPER_ADMIN is
// only ever created out of band.
func (r Role) Assignable() bool { return r == RoleGuest || r == RoleUser || r == RoleAdmin }

// RequireRole returns core.ErrUnauthorized unless r meets min.
func RequireRole(r, min Role) error {
	if !r.AtLeast(min) {
		return core.Unauthorizedf("%s role required", strings.ToLower(string(min)))
	}
	return nil
}
