package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sponsor-portal-api/internal/backend"
	"github.com/noah-isme/sponsor-portal-api/internal/config"
	"github.com/noah-isme/sponsor-portal-api/internal/utils"
)

// BackendStatus reports the active storage backend.
type BackendStatus interface {
	Mode() string
	Status(ctx context.Context) backend.Status
}

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Service     string    `json:"service"`
	Environment string    `json:"environment"`
	Backend     string    `json:"backend"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config, status BackendStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Backend:     status.Mode(),
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}

// DatabaseStatus probes the document store and reports which backend serves records.
func DatabaseStatus(status BackendStatus) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()

		return c.JSON(status.Status(ctx))
	}
}
