package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// LocalClientIP is the locals key holding the client IP.
const LocalClientIP = "client_ip"

// ClientIP stashes the remote address in locals so code that only sees
// c.Context() (e.g. the audit logger) can recover it.
func ClientIP() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalClientIP, c.IP())
		return c.Next()
	}
}

// ClientIPFromContext returns the IP stored by ClientIP, or "" when absent.
func ClientIPFromContext(ctx context.Context) string {
	v, _ := ctx.Value(LocalClientIP).(string)
	return v
}
