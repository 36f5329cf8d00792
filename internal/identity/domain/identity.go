package domain

import "time"

// Identity is a principal's linked credential (local password or an external
// OAuth provider). A principal has at most one identity per provider.
type Identity struct {
	ID           string
	PrincipalID  string
	Provider     Provider
	ProviderID   string
	PasswordHash string // empty unless Provider is local
	CreatedAt    time.Time
}

type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
)
