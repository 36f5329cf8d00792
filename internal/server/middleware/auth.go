package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tenant-platform/backend/internal/security"
	"tenant-platform/backend/internal/session"
)

// Locals keys set by Auth for downstream handlers.
const (
	LocalPrincipalID = "principal_id"
	LocalClaims      = "claims"
	LocalRole        = "role"
	LocalOrgID       = "org_id"
)

// Auth validates the Bearer access token against the session manager and
// stores the verified claims in locals. Token-intrinsic failures and
// invalidated sessions both end as 401; a store outage is 503 so clients
// retry instead of re-authenticating.
func Auth(sessions *session.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization header",
			})
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid authorization header format",
			})
		}

		claims, err := sessions.VerifyAccess(c.Context(), parts[1])
		if err != nil {
			switch {
			case errors.Is(err, security.ErrTokenExpired):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "token expired",
				})
			case errors.Is(err, session.ErrSessionInvalidated):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "session invalidated, please log in again",
				})
			case errors.Is(err, session.ErrStoreUnavailable):
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "session store unavailable, retry shortly",
				})
			default:
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error": "invalid token",
				})
			}
		}

		c.Locals(LocalPrincipalID, claims.Subject)
		c.Locals(LocalClaims, claims)
		c.Locals(LocalRole, claims.Role)
		c.Locals(LocalOrgID, claims.OrgID)
		return c.Next()
	}
}

// PrincipalID returns the authenticated principal id from locals, or "".
func PrincipalID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalPrincipalID).(string)
	return id
}

// Claims returns the verified access claims from locals, or nil.
func Claims(c *fiber.Ctx) *security.AccessClaims {
	claims, _ := c.Locals(LocalClaims).(*security.AccessClaims)
	return claims
}
