// middleware/user_context.go
package middleware

import (
	"log"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// UserContextMiddleware extracts the acting Telegram user set by the bot
// front-end. Mounted once on the /s prefix; event routes identify the user
// in the body instead.
func UserContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		idStr := c.Get("X-Telegram-ID")
		if idStr == "" {
			log.Printf("❌ [USER_CTX] X-Telegram-ID missing on secured route: %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-Telegram-ID — request must come through the bot gateway",
			})
		}

		telegramID, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "X-Telegram-ID must be a numeric Telegram user ID",
			})
		}
		c.Locals("telegram_id", telegramID)

		// Optional profile snapshot headers, forwarded from the update
		c.Locals("username", c.Get("X-Telegram-Username"))
		c.Locals("first_name", c.Get("X-Telegram-First-Name"))

		return c.Next()
	}
}
