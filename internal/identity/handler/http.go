package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"tenant-platform/backend/internal/audit"
	identitydomain "tenant-platform/backend/internal/identity/domain"
	"tenant-platform/backend/internal/identity/service"
	"tenant-platform/backend/internal/security"
	"tenant-platform/backend/internal/server/middleware"
	"tenant-platform/backend/internal/session"
	"tenant-platform/backend/internal/telemetry"
	telemetrydomain "tenant-platform/backend/internal/telemetry/domain"
	"tenant-platform/backend/internal/validate"
)

// AuthHandler exposes register, login, refresh, and logout over HTTP.
type AuthHandler struct {
	auth      *service.AuthService
	sessions  *session.Manager
	validator *validate.Validator
	audits    audit.AuditLogger
	events    telemetry.EventEmitter
}

// NewAuthHandler returns an AuthHandler. audits and events may be nil.
func NewAuthHandler(auth *service.AuthService, sessions *session.Manager, validator *validate.Validator, audits audit.AuditLogger, events telemetry.EventEmitter) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, validator: validator, audits: audits, events: events}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=12"`
	Username string `json:"username" validate:"omitempty,min=2,max=64"`
}

// Register creates a principal with a local password identity.
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	id, err := h.auth.Register(c.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		if errors.Is(err, service.ErrEmailAlreadyRegistered) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return badRequest(c, err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"principal_id": id})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login authenticates with email/password and returns a token pair.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	pair, p, err := h.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrAccountDisabled) {
			if h.audits != nil {
				h.audits.LogEvent(c.Context(), "", req.Email, "login_failure", "session", "")
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}
		return serviceError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), p.OrgID, p.ID, "login", "session", "")
	}
	telemetry.EmitAsync(h.events, c.Context(), telemetrydomain.NewEvent(telemetrydomain.EventLogin, p.ID, p.OrgID))
	return c.JSON(fiber.Map{
		"principal_id":  p.ID,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresInSeconds,
	})
}

type oauthLoginRequest struct {
	Provider string `json:"provider" validate:"required,oneof=google"`
	Token    string `json:"token" validate:"required"`
}

// LoginOAuth authenticates (or registers) via an external provider credential.
// POST /api/v1/auth/oauth
func (h *AuthHandler) LoginOAuth(c *fiber.Ctx) error {
	var req oauthLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	pair, p, err := h.auth.LoginOAuth(c.Context(), identitydomain.Provider(req.Provider), req.Token)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) || errors.Is(err, service.ErrAccountDisabled) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
		}
		return serviceError(c, err)
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), p.OrgID, p.ID, "login", "session", `{"provider":"`+req.Provider+`"}`)
	}
	telemetry.EmitAsync(h.events, c.Context(), telemetrydomain.NewEvent(telemetrydomain.EventLogin, p.ID, p.OrgID))
	return c.JSON(fiber.Map{
		"principal_id":  p.ID,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresInSeconds,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates the refresh token and returns a new pair. A replayed token
// invalidates the whole session family and reads as 401.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}
	pair, err := h.sessions.Rotate(c.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, security.ErrTokenExpired),
			errors.Is(err, security.ErrTokenMalformed),
			errors.Is(err, security.ErrTokenSignatureInvalid):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid refresh token"})
		case errors.Is(err, session.ErrSessionInvalidated):
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "session invalidated, please log in again"})
		case errors.Is(err, session.ErrStoreUnavailable):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session store unavailable, retry shortly"})
		default:
			return serviceError(c, err)
		}
	}
	return c.JSON(pair)
}

// Logout invalidates every outstanding token for the authenticated principal.
// POST /api/v1/auth/logout (authenticated)
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principalID := middleware.PrincipalID(c)
	if principalID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "not authenticated"})
	}
	if err := h.auth.Logout(c.Context(), principalID); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "session store unavailable, retry shortly"})
	}
	claims := middleware.Claims(c)
	orgID := ""
	if claims != nil {
		orgID = claims.OrgID
	}
	if h.audits != nil {
		h.audits.LogEvent(c.Context(), orgID, principalID, "logout", "session", "")
	}
	telemetry.EmitAsync(h.events, c.Context(), telemetrydomain.NewEvent(telemetrydomain.EventLogout, principalID, orgID))
	return c.JSON(fiber.Map{"message": "logged out"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func serviceError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
