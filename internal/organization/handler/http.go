package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"tenant-platform/backend/internal/audit"
	auditrepo "tenant-platform/backend/internal/audit/repository"
	membershipdomain "tenant-platform/backend/internal/membership/domain"
	"tenant-platform/backend/internal/organization/service"
	"tenant-platform/backend/internal/server/middleware"
	"tenant-platform/backend/internal/validate"
)

// OrgHandler exposes organization and member management over HTTP.
type OrgHandler struct {
	orgs      *service.Service
	validator *validate.Validator
	audits    audit.AuditLogger
	auditLogs auditrepo.Repository
}

// NewOrgHandler returns an OrgHandler. audits and auditLogs may be nil.
func NewOrgHandler(orgs *service.Service, validator *validate.Validator, audits audit.AuditLogger, auditLogs auditrepo.Repository) *OrgHandler {
	return &OrgHandler{orgs: orgs, validator: validator, audits: audits, auditLogs: auditLogs}
}

type createOrgRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
	Slug string `json:"slug" validate:"required,min=2,max=64"`
}

// Create creates an organization owned by the caller.
// POST /api/v1/orgs
func (h *OrgHandler) Create(c *fiber.Ctx) error {
	var req createOrgRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	org, err := h.orgs.CreateOrganization(c.Context(), req.Name, req.Slug, middleware.PrincipalID(c))
	if err != nil {
		if errors.Is(err, service.ErrSlugTaken) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return badRequest(c, err.Error())
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), org.ID, middleware.PrincipalID(c), "create", "organization", "")
	}
	return c.Status(fiber.StatusCreated).JSON(orgResponse(org.ID, org.Name, org.Slug))
}

// Get returns the organization.
// GET /api/v1/orgs/:id
func (h *OrgHandler) Get(c *fiber.Ctx) error {
	org, err := h.orgs.GetOrganization(c.Context(), c.Params("id"))
	if err != nil {
		return mapOrgError(c, err)
	}
	return c.JSON(orgResponse(org.ID, org.Name, org.Slug))
}

type renameOrgRequest struct {
	Name string `json:"name" validate:"required,min=2,max=128"`
}

// Rename updates the organization's display name.
// PATCH /api/v1/orgs/:id
func (h *OrgHandler) Rename(c *fiber.Ctx) error {
	var req renameOrgRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	org, err := h.orgs.RenameOrganization(c.Context(), c.Params("id"), req.Name)
	if err != nil {
		return mapOrgError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), org.ID, middleware.PrincipalID(c), "update", "organization", "")
	}
	return c.JSON(orgResponse(org.ID, org.Name, org.Slug))
}

// ListMembers returns the org's memberships.
// GET /api/v1/orgs/:id/members
func (h *OrgHandler) ListMembers(c *fiber.Ctx) error {
	members, err := h.orgs.ListMembers(c.Context(), c.Params("id"))
	if err != nil {
		return mapOrgError(c, err)
	}
	out := make([]fiber.Map, 0, len(members))
	for _, m := range members {
		out = append(out, fiber.Map{
			"principal_id": m.PrincipalID,
			"role":         string(m.Role),
			"joined_at":    m.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"members": out})
}

type addMemberRequest struct {
	PrincipalID string `json:"principal_id" validate:"required,uuid"`
	Role        string `json:"role" validate:"required,oneof=owner admin member"`
}

// AddMember adds a principal to the org.
// POST /api/v1/orgs/:id/members
func (h *OrgHandler) AddMember(c *fiber.Ctx) error {
	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	orgID := c.Params("id")
	m, err := h.orgs.AddMember(c.Context(), orgID, req.PrincipalID, membershipdomain.Role(req.Role))
	if err != nil {
		return mapOrgError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), orgID, middleware.PrincipalID(c), "user_added", "user", "")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"principal_id": m.PrincipalID,
		"role":         string(m.Role),
	})
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=owner admin member"`
}

// UpdateMemberRole changes a member's role.
// PUT /api/v1/orgs/:id/members/:principalID/role
func (h *OrgHandler) UpdateMemberRole(c *fiber.Ctx) error {
	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	orgID := c.Params("id")
	m, err := h.orgs.UpdateMemberRole(c.Context(), orgID, c.Params("principalID"), membershipdomain.Role(req.Role))
	if err != nil {
		return mapOrgError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), orgID, middleware.PrincipalID(c), "role_changed", "user", "")
	}
	return c.JSON(fiber.Map{
		"principal_id": m.PrincipalID,
		"role":         string(m.Role),
	})
}

// RemoveMember removes a principal from the org.
// DELETE /api/v1/orgs/:id/members/:principalID
func (h *OrgHandler) RemoveMember(c *fiber.Ctx) error {
	orgID := c.Params("id")
	if err := h.orgs.RemoveMember(c.Context(), orgID, c.Params("principalID")); err != nil {
		return mapOrgError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), orgID, middleware.PrincipalID(c), "user_removed", "user", "")
	}
	return c.JSON(fiber.Map{"message": "member removed"})
}

// ListAuditLogs returns the org's audit trail, newest first.
// GET /api/v1/orgs/:id/audit-logs
func (h *OrgHandler) ListAuditLogs(c *fiber.Ctx) error {
	if h.auditLogs == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "audit log not available"})
	}
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	logs, err := h.auditLogs.ListByOrg(c.Context(), c.Params("id"), int32(limit), int32(offset))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to list audit logs"})
	}
	out := make([]fiber.Map, 0, len(logs))
	for _, a := range logs {
		out = append(out, fiber.Map{
			"id":           a.ID,
			"principal_id": a.PrincipalID,
			"action":       a.Action,
			"resource":     a.Resource,
			"ip":           a.IP,
			"metadata":     a.Metadata,
			"created_at":   a.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"audit_logs": out})
}

func orgResponse(id, name, slug string) fiber.Map {
	return fiber.Map{"id": id, "name": name, "slug": slug}
}

func mapOrgError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrOrgNotFound), errors.Is(err, service.ErrPrincipalAbsent):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotMember):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyMember):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrLastOwner):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidRole):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
