package observability

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber. When state is
// set, the backend state gauge is refreshed from it before every scrape.
func MetricsHandler(state func() string) fiber.Handler {
	RegisterMetrics()
	scrape := adaptor.HTTPHandler(promhttp.Handler())
	return func(c *fiber.Ctx) error {
		if state != nil {
			SetBackendState(state())
		}
		return scrape(c)
	}
}
