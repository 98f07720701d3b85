package handler

import (
	"errors"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/middleware"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
	"github.com/noah-isme/sponsor-portal-api/internal/service"
	"github.com/noah-isme/sponsor-portal-api/internal/utils"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// admissionNumber reads the :id path parameter, undoing URL escaping.
func admissionNumber(c *fiber.Ctx) string {
	raw := c.Params("id")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}

// sendServiceError maps domain errors onto HTTP responses.
func sendServiceError(c *fiber.Ctx, logger zerolog.Logger, err error, action string) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrStudentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "student not found")
	case errors.Is(err, repository.ErrNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "record not found")
	case errors.Is(err, repository.ErrUpdateUnsupported):
		return utils.SendError(c, fiber.StatusConflict, repository.ErrUpdateUnsupported.Error())
	case errors.Is(err, repository.ErrInvalidPatch),
		errors.Is(err, service.ErrKeyRequired),
		errors.Is(err, service.ErrNoTerms),
		errors.Is(err, service.ErrUploadKindUnknown),
		errors.Is(err, service.ErrUploadMissing),
		errors.Is(err, service.ErrUploadTypeNotAllowed):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUploadTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, service.ErrUploadNotOwned):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrBlobStoreUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, err.Error())
	default:
		requestLogger(logger, c).Error().Err(err).Msg(action + " failed")
		return utils.SendError(c, fiber.StatusInternalServerError, action+" failed")
	}
}
