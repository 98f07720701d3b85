package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/service"
	"github.com/noah-isme/sponsor-portal-api/internal/utils"
)

// ReportHandler exposes report generation, listing, download and deletion.
type ReportHandler struct {
	service service.ReportService
	logger  zerolog.Logger
}

// NewReportHandler constructs a report handler.
func NewReportHandler(service service.ReportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register wires report routes below a student group.
func (h *ReportHandler) Register(router fiber.Router) {
	router.Get("/:id/reports", h.list)
	router.Post("/:id/reports/generate", h.generate)
	router.Get("/:id/reports/download", h.download)
	router.Delete("/:id/reports", h.delete)
}

func (h *ReportHandler) list(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "reports retrieved", h.service.List(c.UserContext(), admissionNumber(c)))
}

func (h *ReportHandler) generate(c *fiber.Ctx) error {
	result, err := h.service.Generate(c.UserContext(), admissionNumber(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "report generation")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "report generated", result)
}

func (h *ReportHandler) download(c *fiber.Ctx) error {
	target, err := h.service.DownloadURL(c.UserContext(), admissionNumber(c), c.Query("publicId"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "report download")
	}
	return c.Redirect(target, fiber.StatusFound)
}

func (h *ReportHandler) delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), admissionNumber(c), c.Query("publicId")); err != nil {
		return sendServiceError(c, h.logger, err, "report deletion")
	}
	return utils.SendSuccess(c, "report deleted", nil)
}
