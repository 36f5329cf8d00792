// Package server assembles the fiber application: middleware, routes, and
// the handlers behind them.
package server

import (
	"github.com/gofiber/fiber/v2"

	"tenant-platform/backend/internal/health"
	identityhandler "tenant-platform/backend/internal/identity/handler"
	invitationhandler "tenant-platform/backend/internal/invitation/handler"
	organizationhandler "tenant-platform/backend/internal/organization/handler"
	"tenant-platform/backend/internal/platform/rbac"
	"tenant-platform/backend/internal/proxy"
	"tenant-platform/backend/internal/server/middleware"
	"tenant-platform/backend/internal/session"
)

// Deps are the handlers and collaborators the server wires into routes.
type Deps struct {
	Sessions    *session.Manager
	Memberships rbac.OrgMembershipGetter
	Auth        *identityhandler.AuthHandler
	Orgs        *organizationhandler.OrgHandler
	Invites     *invitationhandler.InviteHandler
	Health      *health.Handler
	Proxy       *proxy.Handler
}

// New builds the fiber app with all middleware and routes registered.
func New(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "platform-api",
		DisableStartupMessage: true,
	})

	app.Use(middleware.Recovery())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())
	app.Use(middleware.ClientIP())

	// Probes (public).
	app.Get("/health", d.Health.Health)
	app.Get("/ready", d.Health.Ready)

	api := app.Group("/api/v1")
	authRequired := middleware.Auth(d.Sessions)

	// Auth routes (public except logout).
	auth := api.Group("/auth")
	auth.Post("/register", d.Auth.Register)
	auth.Post("/login", d.Auth.Login)
	auth.Post("/oauth", d.Auth.LoginOAuth)
	auth.Post("/refresh", d.Auth.Refresh)
	auth.Post("/logout", authRequired, d.Auth.Logout)

	// Organization and member management (protected).
	orgs := api.Group("/orgs", authRequired)
	orgMember := rbac.RequireOrgMember(d.Memberships)
	orgAdmin := rbac.RequireOrgAdmin(d.Memberships)
	orgs.Post("/", d.Orgs.Create)
	orgs.Get("/:id", orgMember, d.Orgs.Get)
	orgs.Patch("/:id", orgAdmin, d.Orgs.Rename)
	orgs.Get("/:id/members", orgMember, d.Orgs.ListMembers)
	orgs.Post("/:id/members", orgAdmin, d.Orgs.AddMember)
	orgs.Put("/:id/members/:principalID/role", orgAdmin, d.Orgs.UpdateMemberRole)
	orgs.Delete("/:id/members/:principalID", orgAdmin, d.Orgs.RemoveMember)
	orgs.Get("/:id/audit-logs", orgAdmin, d.Orgs.ListAuditLogs)
	orgs.Post("/:id/invitations", orgAdmin, d.Invites.Create)

	// Invitation acceptance is tied to the logged-in principal.
	api.Post("/invitations/accept", authRequired, d.Invites.Accept)

	// Thin proxies to the plugin and pipeline services.
	if d.Proxy != nil {
		api.All("/plugins/*", authRequired, d.Proxy.Plugins)
		api.All("/pipelines/*", authRequired, d.Proxy.Pipelines)
	}

	return app
}
