// Package rbac provides route-level role checks for org-scoped endpoints.
package rbac

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"tenant-platform/backend/internal/membership/domain"
	"tenant-platform/backend/internal/server/middleware"
)

// OrgMembershipGetter returns a principal's membership in an org. Used to resolve caller role.
type OrgMembershipGetter interface {
	GetMembershipByPrincipalAndOrg(ctx context.Context, principalID, orgID string) (*domain.Membership, error)
}

// LocalOrgRole is the locals key holding the caller's role in the path org.
const LocalOrgRole = "org_role"

// RequireOrgMember ensures the caller is a member of the org in the :id path
// param (any role). Stores the resolved role in locals.
func RequireOrgMember(getter OrgMembershipGetter) fiber.Handler {
	return requireRole(getter, func(domain.Role) bool { return true })
}

// RequireOrgAdmin ensures the caller has role owner or admin in the org in
// the :id path param. Stores the resolved role in locals.
func RequireOrgAdmin(getter OrgMembershipGetter) fiber.Handler {
	return requireRole(getter, func(r domain.Role) bool {
		return r == domain.RoleOwner || r == domain.RoleAdmin
	})
}

func requireRole(getter OrgMembershipGetter, allowed func(domain.Role) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principalID := middleware.PrincipalID(c)
		orgID := c.Params("id")
		if principalID == "" || orgID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "org and principal context required",
			})
		}
		m, err := getter.GetMembershipByPrincipalAndOrg(c.Context(), principalID, orgID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to resolve membership",
			})
		}
		if m == nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "not a member of this organization",
			})
		}
		if !allowed(m.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "organization admin or owner required",
			})
		}
		c.Locals(LocalOrgRole, m.Role)
		return c.Next()
	}
}

// OrgRole returns the role resolved by RequireOrgMember/RequireOrgAdmin, or "".
func OrgRole(c *fiber.Ctx) domain.Role {
	role, _ := c.Locals(LocalOrgRole).(domain.Role)
	return role
}
