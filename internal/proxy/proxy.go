// Package proxy forwards plugin and pipeline API calls to their upstream
// services, attaching the authenticated principal as headers. The platform
// does not interpret or reshape the proxied payloads.
package proxy

import (
	"github.com/gofiber/fiber/v2"
	fiberproxy "github.com/gofiber/fiber/v2/middleware/proxy"

	"tenant-platform/backend/internal/server/middleware"
)

// Principal headers attached to every forwarded request.
const (
	HeaderPrincipalID = "X-Principal-Id"
	HeaderOrgID       = "X-Org-Id"
	HeaderRole        = "X-Principal-Role"
)

// Handler forwards requests to the plugin and pipeline services.
type Handler struct {
	pluginBase   string
	pipelineBase string
}

// NewHandler returns a Handler for the given upstream base URLs. An empty
// base URL disables that route with 502.
func NewHandler(pluginBase, pipelineBase string) *Handler {
	return &Handler{pluginBase: pluginBase, pipelineBase: pipelineBase}
}

// Plugins forwards /api/v1/plugins/* to the plugin service.
func (h *Handler) Plugins(c *fiber.Ctx) error {
	return h.forward(c, h.pluginBase)
}

// Pipelines forwards /api/v1/pipelines/* to the pipeline service.
func (h *Handler) Pipelines(c *fiber.Ctx) error {
	return h.forward(c, h.pipelineBase)
}

func (h *Handler) forward(c *fiber.Ctx, base string) error {
	if base == "" {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream not configured"})
	}
	target := base + "/" + c.Params("*")
	if qs := string(c.Request().URI().QueryString()); qs != "" {
		target += "?" + qs
	}

	claims := middleware.Claims(c)
	c.Request().Header.Set(HeaderPrincipalID, middleware.PrincipalID(c))
	if claims != nil {
		c.Request().Header.Set(HeaderOrgID, claims.OrgID)
		c.Request().Header.Set(HeaderRole, claims.Role)
	}
	// Upstream terminates auth via the principal headers; the platform token
	// must not leak past the proxy boundary.
	c.Request().Header.Del(fiber.HeaderAuthorization)

	return fiberproxy.Do(c, target)
}
