package repository

import (
	"context"

	"tenant-platform/backend/internal/membership/domain"
)

// Repository defines persistence for memberships.
type Repository interface {
	GetMembershipByID(ctx context.Context, id string) (*domain.Membership, error)
	GetMembershipByPrincipalAndOrg(ctx context.Context, principalID, orgID string) (*domain.Membership, error)
	ListMembershipsByOrg(ctx context.Context, orgID string) ([]*domain.Membership, error)
	CountMembershipsByOrg(ctx context.Context, orgID string) (int64, error)
	CountOwnersByOrg(ctx context.Context, orgID string) (int64, error)
	CreateMembership(ctx context.Context, m *domain.Membership) error
	UpdateRole(ctx context.Context, principalID, orgID string, role domain.Role) (*domain.Membership, error)
	DeleteByPrincipalAndOrg(ctx context.Context, principalID, orgID string) error
}
