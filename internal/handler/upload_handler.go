package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/service"
	"github.com/noah-isme/sponsor-portal-api/internal/utils"
)

// UploadHandler handles gallery, letter, result and report uploads.
type UploadHandler struct {
	service service.UploadService
	logger  zerolog.Logger
}

// NewUploadHandler constructs an upload handler.
func NewUploadHandler(service service.UploadService, logger zerolog.Logger) *UploadHandler {
	return &UploadHandler{
		service: service,
		logger:  logger.With().Str("component", "upload_handler").Logger(),
	}
}

// Register wires upload routes.
func (h *UploadHandler) Register(router fiber.Router) {
	router.Post("/:kind/:id", h.upload)
	router.Delete("/:kind/:id", h.delete)
}

func (h *UploadHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	result, err := h.service.Upload(c.UserContext(), c.Params("kind"), admissionNumber(c), file, c.FormValue("note"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "upload")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "upload successful", result)
}

func (h *UploadHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), c.Params("kind"), admissionNumber(c), c.Query("publicId")); err != nil {
		return sendServiceError(c, h.logger, err, "file deletion")
	}
	return utils.SendSuccess(c, "file deleted", nil)
}
