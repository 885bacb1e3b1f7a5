package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// SetupHealthRoutes registers the liveness probe. Must run before the
// gateway auth middleware so probes need no credentials.
func SetupHealthRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
