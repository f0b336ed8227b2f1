package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// StreamUserMiddleware identifies event stream clients. Browsers' EventSource
// cannot set headers, so a user_id query parameter is accepted as well. No
// identity means the stream carries every event.
func StreamUserMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		if userID == "" {
			userID = strings.TrimSpace(c.Query("user_id"))
		}
		c.Locals(UserIDLocal, userID)
		return c.Next()
	}
}
