package domain

import "time"

// Invitation is a pending offer for an email address to join an organization.
// Only the hash of the invite token is stored; the plaintext token exists
// solely in the email that was sent.
type Invitation struct {
	ID         string
	OrgID      string
	Email      string
	Role       string
	TokenHash  string
	InvitedBy  string
	ExpiresAt  time.Time
	AcceptedAt *time.Time
	CreatedAt  time.Time
}

// Pending reports whether the invitation can still be accepted at now.
func (i *Invitation) Pending(now time.Time) bool {
	return i.AcceptedAt == nil && now.Before(i.ExpiresAt)
}
