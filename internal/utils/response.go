package utils

import "github.com/gofiber/fiber/v2"

// BackendLocal is the request local holding the storage backend name.
const BackendLocal = "storage_backend"

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message"`
	Backend string      `json:"backend,omitempty"`
}

// SendSuccess sends a 200 envelope; an empty message becomes "success".
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus sends a success payload using the provided HTTP status code.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}
	return send(c, status, APIResponse{Success: true, Data: data, Message: orDefault(message, "success")})
}

// SendError sends an error JSON response with the given status code.
func SendError(c *fiber.Ctx, status int, message string) error {
	return send(c, status, APIResponse{Message: orDefault(message, "error")})
}

// send stamps the envelope with the backend that served the request, when the
// router recorded one.
func send(c *fiber.Ctx, status int, payload APIResponse) error {
	if backend, ok := c.Locals(BackendLocal).(string); ok {
		payload.Backend = backend
	}
	return c.Status(status).JSON(payload)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
