package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sponsor-portal-api/internal/config"
	"github.com/noah-isme/sponsor-portal-api/internal/handler"
	"github.com/noah-isme/sponsor-portal-api/internal/middleware"
	"github.com/noah-isme/sponsor-portal-api/internal/observability"
	"github.com/noah-isme/sponsor-portal-api/internal/utils"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	Backend        handler.BackendStatus
	BackendState   func() string
	StudentHandler *handler.StudentHandler
	ReportHandler  *handler.ReportHandler
	UploadHandler  *handler.UploadHandler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		if deps.Backend != nil {
			c.Locals(utils.BackendLocal, deps.Backend.Mode())
		}
		return c.Next()
	})

	app.Get("/metrics", observability.MetricsHandler(deps.BackendState))

	if deps.Backend != nil {
		api.Get("/health", handler.HealthCheck(cfg, deps.Backend))
		api.Get("/db-status", handler.DatabaseStatus(deps.Backend))
	}

	students := api.Group("/students")
	if deps.StudentHandler != nil {
		deps.StudentHandler.Register(students)
	}
	if deps.ReportHandler != nil {
		deps.ReportHandler.Register(students)
	}

	if deps.UploadHandler != nil {
		uploads := api.Group("/uploads", middleware.RateLimit("uploads", 10, time.Minute))
		deps.UploadHandler.Register(uploads)
	}
}
