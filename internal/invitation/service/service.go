package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	invitationdomain "tenant-platform/backend/internal/invitation/domain"
	membershipdomain "tenant-platform/backend/internal/membership/domain"
	orgdomain "tenant-platform/backend/internal/organization/domain"
	principaldomain "tenant-platform/backend/internal/principal/domain"
	"tenant-platform/backend/internal/security"
)

// Sentinel errors for invitation service; handler maps them to HTTP statuses.
var (
	ErrInviteInvalid  = errors.New("invitation is invalid or already used")
	ErrInviteExpired  = errors.New("invitation has expired")
	ErrInvitePending  = errors.New("a pending invitation already exists for this email")
	ErrAlreadyMember  = errors.New("principal is already a member")
	ErrSeatLimit      = errors.New("organization seat limit reached")
	ErrOrgNotFound    = errors.New("organization not found")
	ErrWrongRecipient = errors.New("invitation was issued for a different email")
)

// InvitationRepo is the minimal invitation repository needed by the service.
type InvitationRepo interface {
	GetByTokenHash(ctx context.Context, tokenHash string) (*invitationdomain.Invitation, error)
	GetPendingByOrgAndEmail(ctx context.Context, orgID, email string) (*invitationdomain.Invitation, error)
	Create(ctx context.Context, i *invitationdomain.Invitation) error
	MarkAccepted(ctx context.Context, id string, at time.Time) error
}

// MembershipRepo is the minimal membership repository needed by the service.
type MembershipRepo interface {
	GetMembershipByPrincipalAndOrg(ctx context.Context, principalID, orgID string) (*membershipdomain.Membership, error)
	CreateMembership(ctx context.Context, m *membershipdomain.Membership) error
}

// PrincipalRepo is the minimal principal repository needed by the service.
type PrincipalRepo interface {
	GetByID(ctx context.Context, id string) (*principaldomain.Principal, error)
	GetByEmail(ctx context.Context, email string) (*principaldomain.Principal, error)
	Update(ctx context.Context, p *principaldomain.Principal) error
}

// OrgRepo is the minimal organization repository needed by the service.
type OrgRepo interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
}

// Sender delivers the invitation email.
type Sender interface {
	SendInvitation(ctx context.Context, to, orgName, inviterName, acceptURL string) error
}

// SeatChecker answers whether an org may grow. quota.Client satisfies this.
type SeatChecker interface {
	CheckSeats(ctx context.Context, orgID string, requested int64) bool
}

// Service implements invitation create and accept.
type Service struct {
	invites     InvitationRepo
	memberships MembershipRepo
	principals  PrincipalRepo
	orgs        OrgRepo
	sender      Sender
	seats       SeatChecker
	acceptURL   string
	lifetime    time.Duration
}

// NewService returns a Service with the given dependencies. sender and seats
// may be nil; then no email goes out and seat checks always pass.
func NewService(
	invites InvitationRepo,
	memberships MembershipRepo,
	principals PrincipalRepo,
	orgs OrgRepo,
	sender Sender,
	seats SeatChecker,
	acceptURL string,
	lifetime time.Duration,
) *Service {
	if lifetime <= 0 {
		lifetime = 7 * 24 * time.Hour
	}
	return &Service{
		invites:     invites,
		memberships: memberships,
		principals:  principals,
		orgs:        orgs,
		sender:      sender,
		seats:       seats,
		acceptURL:   acceptURL,
		lifetime:    lifetime,
	}
}

// Create issues an invitation for email to join the org and emails the accept
// link. The plaintext token leaves the process only inside that email.
func (s *Service) Create(ctx context.Context, orgID, email string, role membershipdomain.Role, invitedByID string) (*invitationdomain.Invitation, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, errors.New("email is required")
	}
	org, err := s.orgs.GetOrganizationByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, ErrOrgNotFound
	}
	existing, err := s.principals.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m, err := s.memberships.GetMembershipByPrincipalAndOrg(ctx, existing.ID, orgID)
		if err != nil {
			return nil, err
		}
		if m != nil {
			return nil, ErrAlreadyMember
		}
	}
	pending, err := s.invites.GetPendingByOrgAndEmail(ctx, orgID, email)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, ErrInvitePending
	}
	token, tokenHash, err := security.GenerateOpaque()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	inv := &invitationdomain.Invitation{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		Email:     email,
		Role:      string(role),
		TokenHash: tokenHash,
		InvitedBy: invitedByID,
		ExpiresAt: now.Add(s.lifetime),
		CreatedAt: now,
	}
	if err := s.invites.Create(ctx, inv); err != nil {
		return nil, err
	}
	if s.sender != nil {
		inviterName := invitedByID
		if inviter, err := s.principals.GetByID(ctx, invitedByID); err == nil && inviter != nil {
			inviterName = inviter.Username
		}
		accept := fmt.Sprintf("%s?token=%s", s.acceptURL, url.QueryEscape(token))
		if err := s.sender.SendInvitation(ctx, email, org.Name, inviterName, accept); err != nil {
			return nil, err
		}
	}
	return inv, nil
}

// Accept redeems the invite token for principalID: checks the stored hash,
// expiry, and recipient email, consults the seat quota, then creates the
// membership and marks the invitation accepted.
func (s *Service) Accept(ctx context.Context, token, principalID string) (*membershipdomain.Membership, error) {
	if token == "" {
		return nil, ErrInviteInvalid
	}
	inv, err := s.invites.GetByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.AcceptedAt != nil {
		return nil, ErrInviteInvalid
	}
	if !security.TokenHashEqual(token, inv.TokenHash) {
		return nil, ErrInviteInvalid
	}
	now := time.Now().UTC()
	if now.After(inv.ExpiresAt) {
		return nil, ErrInviteExpired
	}
	p, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrInviteInvalid
	}
	if !strings.EqualFold(p.Email, inv.Email) {
		return nil, ErrWrongRecipient
	}
	existing, err := s.memberships.GetMembershipByPrincipalAndOrg(ctx, principalID, inv.OrgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}
	if s.seats != nil && !s.seats.CheckSeats(ctx, inv.OrgID, 1) {
		return nil, ErrSeatLimit
	}
	m := &membershipdomain.Membership{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		OrgID:       inv.OrgID,
		Role:        membershipdomain.Role(inv.Role),
		CreatedAt:   now,
	}
	if err := s.memberships.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	if p.OrgID == "" {
		p.OrgID = inv.OrgID
		p.Role = principaldomain.Role(inv.Role)
		if err := s.principals.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	if err := s.invites.MarkAccepted(ctx, inv.ID, now); err != nil {
		return nil, err
	}
	return m, nil
}
