package domain

import "time"

// Membership links a principal to an organization with a role.
type Membership struct {
	ID          string
	PrincipalID string
	OrgID       string
	Role        Role
	CreatedAt   time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}
