package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserContextApp() *fiber.App {
	app := fiber.New()
	app.Use("/s", UserContextMiddleware())
	app.Get("/s/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"telegram_id": c.Locals("telegram_id")})
	})
	app.Post("/events/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func TestUserContextRequiredOnSecuredRoutes(t *testing.T) {
	app := newUserContextApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/s/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest("GET", "/s/whoami", nil)
	req.Header.Set("X-Telegram-ID", "123456789")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestUserContextRejectsNonNumericID(t *testing.T) {
	app := newUserContextApp()

	req := httptest.NewRequest("GET", "/s/whoami", nil)
	req.Header.Set("X-Telegram-ID", "not-a-number")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUserContextNotAppliedOutsidePrefix(t *testing.T) {
	app := newUserContextApp()

	resp, err := app.Test(httptest.NewRequest("POST", "/events/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
