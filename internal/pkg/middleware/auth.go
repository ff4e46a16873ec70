package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/evpago/evpago/internal/pkg/env"
)

// ActorContext resolves the caller identity from request headers into
// request locals. An X-Admin-Key matching ADMIN_API_KEY grants top-level
// administrator rights; X-Region-Id scopes a regional administrator.
func ActorContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("actor_id", strings.TrimSpace(c.Get("X-Actor-Id")))
		c.Locals("region_id", strings.TrimSpace(c.Get("X-Region-Id")))
		c.Locals("is_admin", isAdminKey(c.Get("X-Admin-Key")))
		return c.Next()
	}
}

// RequireAdmin rejects requests without a valid administrator key.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if isAdmin, ok := c.Locals("is_admin").(bool); ok && isAdmin {
			return c.Next()
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "administrator key required",
		})
	}
}

func isAdminKey(provided string) bool {
	expected := strings.TrimSpace(env.GetEnv("ADMIN_API_KEY", ""))
	provided = strings.TrimSpace(provided)
	if expected == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
