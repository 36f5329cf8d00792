package service

import (
	"context"
	"fmt"

	"tenant-platform/backend/internal/security"
)

// ClaimsResolver re-reads a principal's current role and organization so that
// access tokens minted during rotation carry fresh context instead of the
// snapshot taken at login.
type ClaimsResolver struct {
	principals PrincipalRepo
	orgs       OrgRepo
}

// NewClaimsResolver returns a ClaimsResolver over the given repositories.
func NewClaimsResolver(principals PrincipalRepo, orgs OrgRepo) *ClaimsResolver {
	return &ClaimsResolver{principals: principals, orgs: orgs}
}

// ResolveContext implements session.ContextResolver.
func (r *ClaimsResolver) ResolveContext(ctx context.Context, principalID string) (security.ContextClaims, error) {
	p, err := r.principals.GetByID(ctx, principalID)
	if err != nil {
		return security.ContextClaims{}, err
	}
	if p == nil {
		return security.ContextClaims{}, fmt.Errorf("principal %s not found", principalID)
	}
	cc := security.ContextClaims{Role: string(p.Role), OrgID: p.OrgID}
	if p.OrgID != "" && r.orgs != nil {
		org, err := r.orgs.GetOrganizationByID(ctx, p.OrgID)
		if err != nil {
			return security.ContextClaims{}, err
		}
		if org != nil {
			cc.OrgName = org.Name
		}
	}
	return cc, nil
}
