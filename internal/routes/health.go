package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

type healthCheck func(ctx context.Context) error

// RegisterHealthRoutes adds liveness/readiness style endpoints.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	checks := map[string]healthCheck{}
	if d.DB != nil {
		checks["postgres"] = d.DB.Ping
	}
	if d.Cache != nil {
		checks["redis"] = func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() }
	}
	app.Get("/healthz", healthHandler(checks, d.Logger))
}

// healthHandler reports each dependency as ok or unavailable. Failure detail
// goes to the log, never into the response body.
func healthHandler(checks map[string]healthCheck, logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		report := fiber.Map{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("health check failed", "dependency", name, "error", err)
				report[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			report[name] = "ok"
		}

		return c.Status(status).JSON(fiber.Map{
			"status":    report,
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	}
}
