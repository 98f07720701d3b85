package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
)

// ErrKeyRequired indicates a delete or update call named no record.
var ErrKeyRequired = errors.New("record key is required")

// TermService manages term updates for a student.
type TermService interface {
	List(ctx context.Context, admissionNumber string) []models.Term
	Submit(ctx context.Context, admissionNumber string, payload dto.TermRequest) (models.Term, error)
	Update(ctx context.Context, admissionNumber, key string, patch dto.TermPatchRequest) error
	Delete(ctx context.Context, admissionNumber, key string) error
}

type termService struct {
	directory repository.StudentDirectory
	records   repository.StudentRecordRepository
	events    RecordEvents
	backend   BackendMode
	validate  *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewTermService constructs the term service.
func NewTermService(directory repository.StudentDirectory, records repository.StudentRecordRepository, events RecordEvents, backend BackendMode, validate *validator.Validate, logger zerolog.Logger) TermService {
	return &termService{
		directory: directory,
		records:   records,
		events:    events,
		backend:   backend,
		validate:  validate,
		logger:    logger.With().Str("component", "term_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sponsor-portal-api/internal/service/term"),
	}
}

func (s *termService) List(ctx context.Context, admissionNumber string) []models.Term {
	return s.records.ListTerms(ctx, admissionNumber)
}

func (s *termService) Submit(ctx context.Context, admissionNumber string, payload dto.TermRequest) (models.Term, error) {
	ctx, span := s.tracer.Start(ctx, "terms.submit", trace.WithAttributes(
		attribute.String("admission_number", admissionNumber),
	))
	defer span.End()

	if err := s.validate.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return models.Term{}, err
	}

	if _, err := lookupStudent(ctx, s.directory, admissionNumber); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return models.Term{}, err
	}

	term, err := s.records.AddTerm(ctx, admissionNumber, payload.Term())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		return models.Term{}, err
	}

	s.publish(ctx, ActionCreated, admissionNumber, term.Key)
	s.logger.Info().Str("admission_number", admissionNumber).Str("key", term.Key).Msg("term update submitted")
	return term, nil
}

func (s *termService) Update(ctx context.Context, admissionNumber, key string, patch dto.TermPatchRequest) error {
	ctx, span := s.tracer.Start(ctx, "terms.update", trace.WithAttributes(
		attribute.String("admission_number", admissionNumber),
		attribute.String("key", key),
	))
	defer span.End()

	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}

	if err := s.records.UpdateTerm(ctx, admissionNumber, key, patch.Columns()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}

	s.publish(ctx, ActionUpdated, admissionNumber, key)
	return nil
}

func (s *termService) Delete(ctx context.Context, admissionNumber, key string) error {
	ctx, span := s.tracer.Start(ctx, "terms.delete", trace.WithAttributes(
		attribute.String("admission_number", admissionNumber),
		attribute.String("key", key),
	))
	defer span.End()

	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}

	if err := s.records.RemoveTerm(ctx, admissionNumber, key); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}

	s.publish(ctx, ActionDeleted, admissionNumber, key)
	return nil
}

func (s *termService) publish(ctx context.Context, action, admissionNumber, key string) {
	s.events.Publish(ctx, RecordEvent{
		Kind:            "term",
		Action:          action,
		AdmissionNumber: admissionNumber,
		Key:             key,
		Backend:         s.backend.Mode(),
	})
}
