package service

import (
	"context"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
)

// BiographyService replaces a student's free-text biography.
type BiographyService interface {
	Update(ctx context.Context, admissionNumber string, payload dto.BiographyRequest) (models.Biography, error)
}

type biographyService struct {
	directory repository.StudentDirectory
	records   repository.StudentRecordRepository
	events    RecordEvents
	backend   BackendMode
	validate  *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewBiographyService constructs the biography service.
func NewBiographyService(directory repository.StudentDirectory, records repository.StudentRecordRepository, events RecordEvents, backend BackendMode, validate *validator.Validate, logger zerolog.Logger) BiographyService {
	return &biographyService{
		directory: directory,
		records:   records,
		events:    events,
		backend:   backend,
		validate:  validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "biography_service").Logger(),
	}
}

func (s *biographyService) Update(ctx context.Context, admissionNumber string, payload dto.BiographyRequest) (models.Biography, error) {
	if err := s.validate.Struct(payload); err != nil {
		return models.Biography{}, err
	}

	if _, err := lookupStudent(ctx, s.directory, admissionNumber); err != nil {
		return models.Biography{}, err
	}

	// Markup is stripped; entities are decoded again so plain punctuation survives.
	text := strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(payload.Biography)))

	bio, err := s.records.UpdateBiography(ctx, admissionNumber, text)
	if err != nil {
		return models.Biography{}, err
	}

	s.events.Publish(ctx, RecordEvent{
		Kind:            "biography",
		Action:          ActionUpdated,
		AdmissionNumber: admissionNumber,
		Backend:         s.backend.Mode(),
	})
	s.logger.Info().Str("admission_number", admissionNumber).Msg("biography updated")
	return bio, nil
}
