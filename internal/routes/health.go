package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes exposes liveness probes.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status": "ok",
			"app":    d.Cfg.AppName,
			"env":    d.Cfg.AppEnv,
		}
		if d.DB != nil {
			if err := d.DB.Ping(c.UserContext()); err != nil {
				status["status"] = "degraded"
				status["database"] = err.Error()
				return c.Status(http.StatusServiceUnavailable).JSON(status)
			}
		}
		return c.JSON(status)
	})
}
