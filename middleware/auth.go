package middleware

import (
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

const UserIDLocal = "user_id"

// UserContextMiddleware reads the identity the gateway forwards in X-User-ID.
// Routes behind it reject requests without one.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			log.Printf("[UserCtx] X-User-ID missing on %s %s", c.Method(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through the gateway",
			})
		}
		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}

// UserID returns the caller set by UserContextMiddleware or StreamUserMiddleware.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(UserIDLocal).(string)
	return id
}
