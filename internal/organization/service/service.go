package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	membershipdomain "tenant-platform/backend/internal/membership/domain"
	orgdomain "tenant-platform/backend/internal/organization/domain"
	principaldomain "tenant-platform/backend/internal/principal/domain"
)

// Sentinel errors for organization service; handler maps them to HTTP statuses.
var (
	ErrOrgNotFound     = errors.New("organization not found")
	ErrSlugTaken       = errors.New("organization slug already in use")
	ErrAlreadyMember   = errors.New("principal is already a member")
	ErrNotMember       = errors.New("principal is not a member")
	ErrLastOwner       = errors.New("cannot remove or demote the last owner")
	ErrInvalidRole     = errors.New("invalid role")
	ErrPrincipalAbsent = errors.New("principal not found")
)

// OrgRepo is the minimal organization repository needed by the service.
type OrgRepo interface {
	GetOrganizationByID(ctx context.Context, id string) (*orgdomain.Org, error)
	GetOrganizationBySlug(ctx context.Context, slug string) (*orgdomain.Org, error)
	CreateOrganization(ctx context.Context, o *orgdomain.Org) error
	UpdateOrganization(ctx context.Context, o *orgdomain.Org) error
}

// MembershipRepo is the minimal membership repository needed by the service.
type MembershipRepo interface {
	GetMembershipByPrincipalAndOrg(ctx context.Context, principalID, orgID string) (*membershipdomain.Membership, error)
	ListMembershipsByOrg(ctx context.Context, orgID string) ([]*membershipdomain.Membership, error)
	CountOwnersByOrg(ctx context.Context, orgID string) (int64, error)
	CreateMembership(ctx context.Context, m *membershipdomain.Membership) error
	UpdateRole(ctx context.Context, principalID, orgID string, role membershipdomain.Role) (*membershipdomain.Membership, error)
	DeleteByPrincipalAndOrg(ctx context.Context, principalID, orgID string) error
}

// PrincipalRepo is the minimal principal repository needed by the service.
type PrincipalRepo interface {
	GetByID(ctx context.Context, id string) (*principaldomain.Principal, error)
	Update(ctx context.Context, p *principaldomain.Principal) error
}

// Service implements organization lifecycle and member management.
type Service struct {
	orgs        OrgRepo
	memberships MembershipRepo
	principals  PrincipalRepo
}

// NewService returns a Service with the given dependencies.
func NewService(orgs OrgRepo, memberships MembershipRepo, principals PrincipalRepo) *Service {
	return &Service{orgs: orgs, memberships: memberships, principals: principals}
}

// CreateOrganization creates an org and makes ownerID its owner. If the owner
// has no primary org yet, the new org becomes it.
func (s *Service) CreateOrganization(ctx context.Context, name, slug, ownerID string) (*orgdomain.Org, error) {
	owner, err := s.principals.GetByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, ErrPrincipalAbsent
	}
	o := &orgdomain.Org{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Slug:      strings.TrimSpace(strings.ToLower(slug)),
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.orgs.GetOrganizationBySlug(ctx, o.Slug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrSlugTaken
	}
	if err := s.orgs.CreateOrganization(ctx, o); err != nil {
		return nil, err
	}
	m := &membershipdomain.Membership{
		ID:          uuid.New().String(),
		PrincipalID: ownerID,
		OrgID:       o.ID,
		Role:        membershipdomain.RoleOwner,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.memberships.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	if owner.OrgID == "" {
		owner.OrgID = o.ID
		owner.Role = principaldomain.RoleOwner
		if err := s.principals.Update(ctx, owner); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// GetOrganization returns the org by id.
func (s *Service) GetOrganization(ctx context.Context, id string) (*orgdomain.Org, error) {
	o, err := s.orgs.GetOrganizationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOrgNotFound
	}
	return o, nil
}

// RenameOrganization updates the org's display name. The slug never changes.
func (s *Service) RenameOrganization(ctx context.Context, id, name string) (*orgdomain.Org, error) {
	o, err := s.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Name = strings.TrimSpace(name)
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if err := s.orgs.UpdateOrganization(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ListMembers returns the org's memberships, oldest first.
func (s *Service) ListMembers(ctx context.Context, orgID string) ([]*membershipdomain.Membership, error) {
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	return s.memberships.ListMembershipsByOrg(ctx, orgID)
}

// AddMember adds the principal to the org with the given role.
func (s *Service) AddMember(ctx context.Context, orgID, principalID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if _, err := s.GetOrganization(ctx, orgID); err != nil {
		return nil, err
	}
	p, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPrincipalAbsent
	}
	existing, err := s.memberships.GetMembershipByPrincipalAndOrg(ctx, principalID, orgID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyMember
	}
	m := &membershipdomain.Membership{
		ID:          uuid.New().String(),
		PrincipalID: principalID,
		OrgID:       orgID,
		Role:        role,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.memberships.CreateMembership(ctx, m); err != nil {
		return nil, err
	}
	if p.OrgID == "" {
		p.OrgID = orgID
		p.Role = principaldomain.Role(role)
		if err := s.principals.Update(ctx, p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// UpdateMemberRole changes a member's role. Demoting the last owner is refused.
func (s *Service) UpdateMemberRole(ctx context.Context, orgID, principalID string, role membershipdomain.Role) (*membershipdomain.Membership, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	existing, err := s.memberships.GetMembershipByPrincipalAndOrg(ctx, principalID, orgID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotMember
	}
	if existing.Role == membershipdomain.RoleOwner && role != membershipdomain.RoleOwner {
		owners, err := s.memberships.CountOwnersByOrg(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if owners <= 1 {
			return nil, ErrLastOwner
		}
	}
	return s.memberships.UpdateRole(ctx, principalID, orgID, role)
}

// RemoveMember removes the principal from the org. Removing the last owner is refused.
func (s *Service) RemoveMember(ctx context.Context, orgID, principalID string) error {
	existing, err := s.memberships.GetMembershipByPrincipalAndOrg(ctx, principalID, orgID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrNotMember
	}
	if existing.Role == membershipdomain.RoleOwner {
		owners, err := s.memberships.CountOwnersByOrg(ctx, orgID)
		if err != nil {
			return err
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}
	return s.memberships.DeleteByPrincipalAndOrg(ctx, principalID, orgID)
}
