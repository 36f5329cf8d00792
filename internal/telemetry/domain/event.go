package domain

import "time"

// Event types emitted by the platform's security-relevant code paths.
const (
	EventLogin          = "login"
	EventLoginFailure   = "login_failure"
	EventLogout         = "logout"
	EventTokenRotated   = "token_rotated"
	EventTokenReuse     = "token_reuse_detected"
	EventInviteCreated  = "invite_created"
	EventInviteAccepted = "invite_accepted"
)

// SecurityEvent represents one security event (org-scoped, optional principal).
type SecurityEvent struct {
	EventType   string            `json:"event_type"`
	PrincipalID string            `json:"principal_id,omitempty"`
	OrgID       string            `json:"org_id,omitempty"`
	Source      string            `json:"source"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// NewEvent returns a SecurityEvent stamped with the current time.
func NewEvent(eventType, principalID, orgID string) *SecurityEvent {
	return &SecurityEvent{
		EventType:   eventType,
		PrincipalID: principalID,
		OrgID:       orgID,
		Source:      "platform-api",
		CreatedAt:   time.Now().UTC(),
	}
}
