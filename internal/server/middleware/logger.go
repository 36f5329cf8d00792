package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger logs each request with method, path, latency, and status.
func Logger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		log.Printf("[%s] %s - %d in %v", c.Method(), c.Path(), status, latency)
		return err
	}
}
