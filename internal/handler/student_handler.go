package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/service"
	"github.com/noah-isme/sponsor-portal-api/internal/utils"
)

// StudentHandler exposes the directory, profiles, term updates and biographies.
type StudentHandler struct {
	profiles  service.StudentProfileService
	terms     service.TermService
	bios      service.BiographyService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(profiles service.StudentProfileService, terms service.TermService, bios service.BiographyService, validator *validator.Validate, logger zerolog.Logger) *StudentHandler {
	return &StudentHandler{
		profiles:  profiles,
		terms:     terms,
		bios:      bios,
		validator: validator,
		logger:    logger.With().Str("component", "student_handler").Logger(),
	}
}

// Register wires student routes.
func (h *StudentHandler) Register(router fiber.Router) {
	router.Get("", h.search)
	router.Get("/:id", h.profile)
	router.Post("/:id/biography", h.updateBiography)
	router.Get("/:id/terms", h.listTerms)
	router.Post("/:id/terms", h.submitTerm)
	router.Patch("/:id/terms", h.updateTerm)
	router.Delete("/:id/terms", h.deleteTerm)
}

func (h *StudentHandler) search(c *fiber.Ctx) error {
	students, err := h.profiles.Search(c.UserContext(), c.Query("q"), c.Query("department"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "student search")
	}
	return utils.SendSuccess(c, "students retrieved", students)
}

func (h *StudentHandler) profile(c *fiber.Ctx) error {
	profile, err := h.profiles.Profile(c.UserContext(), admissionNumber(c))
	if err != nil {
		return sendServiceError(c, h.logger, err, "profile lookup")
	}
	return utils.SendSuccess(c, "profile retrieved", profile)
}

func (h *StudentHandler) updateBiography(c *fiber.Ctx) error {
	var payload dto.BiographyRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	bio, err := h.bios.Update(c.UserContext(), admissionNumber(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "biography update")
	}
	return utils.SendSuccess(c, "biography updated", bio)
}

func (h *StudentHandler) listTerms(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "terms retrieved", h.terms.List(c.UserContext(), admissionNumber(c)))
}

func (h *StudentHandler) submitTerm(c *fiber.Ctx) error {
	var payload dto.TermRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	term, err := h.terms.Submit(c.UserContext(), admissionNumber(c), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "term submission")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "term update saved", term)
}

func (h *StudentHandler) updateTerm(c *fiber.Ctx) error {
	var patch dto.TermPatchRequest
	if err := c.BodyParser(&patch); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.terms.Update(c.UserContext(), admissionNumber(c), c.Query("key"), patch); err != nil {
		return sendServiceError(c, h.logger, err, "term update")
	}
	return utils.SendSuccess(c, "term update changed", nil)
}

func (h *StudentHandler) deleteTerm(c *fiber.Ctx) error {
	if err := h.terms.Delete(c.UserContext(), admissionNumber(c), c.Query("key")); err != nil {
		return sendServiceError(c, h.logger, err, "term deletion")
	}
	return utils.SendSuccess(c, "term update deleted", nil)
}
