package domain

import (
	"errors"
	"time"
)

// Principal is the core account entity. TokenVersion and CurrentRefreshHash
// are the session-control fields: they are owned by this row but mutated only
// through the session store's atomic operations, never by profile updates.
type Principal struct {
	ID                 string
	Email              string
	Username           string
	Role               Role
	OrgID              string // primary organization; empty until first membership
	TokenVersion       int64
	CurrentRefreshHash string // empty when no active session
	Status             Status
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Validate validates the principal for persistence. Returns an error
// describing the first validation failure.
func (p *Principal) Validate() error {
	if p.Email == "" {
		return errors.New("email is required")
	}
	if p.Username == "" {
		return errors.New("username is required")
	}
	if p.Role == "" {
		p.Role = RoleMember
	}
	if p.Status == "" {
		p.Status = StatusActive
	}
	if p.TokenVersion < 0 {
		return errors.New("token version must be non-negative")
	}
	return nil
}
