package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"tenant-platform/backend/internal/audit"
	"tenant-platform/backend/internal/invitation/service"
	membershipdomain "tenant-platform/backend/internal/membership/domain"
	"tenant-platform/backend/internal/server/middleware"
	"tenant-platform/backend/internal/telemetry"
	telemetrydomain "tenant-platform/backend/internal/telemetry/domain"
	"tenant-platform/backend/internal/validate"
)

// InviteHandler exposes invitation create and accept over HTTP.
type InviteHandler struct {
	invites   *service.Service
	validator *validate.Validator
	audits    audit.AuditLogger
	events    telemetry.EventEmitter
}

// NewInviteHandler returns an InviteHandler. audits and events may be nil.
func NewInviteHandler(invites *service.Service, validator *validate.Validator, audits audit.AuditLogger, events telemetry.EventEmitter) *InviteHandler {
	return &InviteHandler{invites: invites, validator: validator, audits: audits, events: events}
}

type createInviteRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,oneof=owner admin member"`
}

// Create issues an invitation for an email to join the org and sends the
// accept link by email. The invite token is never returned in the response.
// POST /api/v1/orgs/:id/invitations
func (h *InviteHandler) Create(c *fiber.Ctx) error {
	var req createInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	orgID := utils.CopyString(c.Params("id"))
	inviterID := middleware.PrincipalID(c)
	inv, err := h.invites.Create(c.Context(), orgID, req.Email, membershipdomain.Role(req.Role), inviterID)
	if err != nil {
		return mapInviteError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), orgID, inviterID, "invite_created", "invitation", "")
	}
	telemetry.EmitAsync(h.events, c.Context(), telemetrydomain.NewEvent(telemetrydomain.EventInviteCreated, inviterID, orgID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         inv.ID,
		"email":      inv.Email,
		"role":       inv.Role,
		"expires_at": inv.ExpiresAt,
	})
}

type acceptInviteRequest struct {
	Token string `json:"token" validate:"required"`
}

// Accept redeems an invite token for the authenticated principal.
// POST /api/v1/invitations/accept
func (h *InviteHandler) Accept(c *fiber.Ctx) error {
	var req acceptInviteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	principalID := middleware.PrincipalID(c)
	m, err := h.invites.Accept(c.Context(), req.Token, principalID)
	if err != nil {
		return mapInviteError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), m.OrgID, principalID, "invite_accepted", "invitation", "")
	}
	telemetry.EmitAsync(h.events, c.Context(), telemetrydomain.NewEvent(telemetrydomain.EventInviteAccepted, principalID, m.OrgID))
	return c.JSON(fiber.Map{
		"org_id": m.OrgID,
		"role":   string(m.Role),
	})
}

func mapInviteError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrInviteInvalid), errors.Is(err, service.ErrWrongRecipient):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInviteExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvitePending), errors.Is(err, service.ErrAlreadyMember):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrSeatLimit):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrOrgNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
}
