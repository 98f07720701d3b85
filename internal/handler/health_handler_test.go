package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sponsor-portal-api/internal/backend"
	"github.com/noah-isme/sponsor-portal-api/internal/config"
	"github.com/noah-isme/sponsor-portal-api/internal/handler"
)

type staticBackend struct {
	status backend.Status
}

func (s staticBackend) Mode() string { return s.status.Mode }

func (s staticBackend) Status(context.Context) backend.Status { return s.status }

func TestHealthCheckReportsBackend(t *testing.T) {
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(config.Config{AppName: "portal", AppEnv: "test"}, staticBackend{status: backend.Status{Mode: backend.ModeCSV}}))

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data handler.HealthResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Equal(t, "ok", body.Data.Status)
	require.Equal(t, "CSV", body.Data.Backend)
	require.Equal(t, "portal", body.Data.Service)
}

func TestDatabaseStatusFlatShape(t *testing.T) {
	app := fiber.New()
	status := backend.Status{Success: true, Message: "MongoDB connected", Mode: backend.ModeMongo, Database: "student_portal", Collections: []string{"terms"}}
	app.Get("/db-status", handler.DatabaseStatus(staticBackend{status: status}))

	resp := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/db-status", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	decodeResponse(t, resp, &body)
	require.Equal(t, true, body["success"])
	require.Equal(t, "MongoDB", body["mode"])
	require.Equal(t, "student_portal", body["database"])
}
