package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
)

// ErrStudentNotFound indicates the admission number is not in the directory.
var ErrStudentNotFound = errors.New("student not found")

const noBiography = "No biography available."

// StudentProfileService serves the directory listing and the joined profile page.
type StudentProfileService interface {
	Search(ctx context.Context, query, department string) ([]dto.StudentSummary, error)
	Profile(ctx context.Context, admissionNumber string) (dto.StudentProfileResponse, error)
}

type studentProfileService struct {
	directory repository.StudentDirectory
	records   repository.StudentRecordRepository
	backend   BackendMode
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewStudentProfileService constructs the profile service.
func NewStudentProfileService(directory repository.StudentDirectory, records repository.StudentRecordRepository, backend BackendMode, logger zerolog.Logger) StudentProfileService {
	return &studentProfileService{
		directory: directory,
		records:   records,
		backend:   backend,
		logger:    logger.With().Str("component", "student_profile_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sponsor-portal-api/internal/service/profile"),
	}
}

func (s *studentProfileService) Search(ctx context.Context, query, department string) ([]dto.StudentSummary, error) {
	ctx, span := s.tracer.Start(ctx, "students.search", trace.WithAttributes(
		attribute.String("query", query),
		attribute.String("department", department),
	))
	defer span.End()

	students, err := s.directory.Search(ctx, query, department)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "directory search failed")
		return nil, err
	}

	summaries := make([]dto.StudentSummary, 0, len(students))
	for _, student := range students {
		summaries = append(summaries, dto.StudentSummary{
			AdmissionNumber: student.AdmissionNumber,
			FullName:        student.FullName,
			Department:      student.Department,
			Class:           student.Class,
			Photo:           student.PhotoURL(),
		})
	}
	span.SetAttributes(attribute.Int("results", len(summaries)))
	return summaries, nil
}

func (s *studentProfileService) Profile(ctx context.Context, admissionNumber string) (dto.StudentProfileResponse, error) {
	ctx, span := s.tracer.Start(ctx, "students.profile", trace.WithAttributes(
		attribute.String("admission_number", admissionNumber),
	))
	defer span.End()

	student, err := lookupStudent(ctx, s.directory, admissionNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return dto.StudentProfileResponse{}, err
	}

	profile := dto.StudentProfileResponse{
		AdmissionNumber: student.AdmissionNumber,
		FullName:        student.FullName,
		Department:      student.Department,
		Class:           student.Class,
		Gender:          student.Gender,
		Contact:         student.Contact,
		Photo:           student.PhotoURL(),
		Biography:       noBiography,
		Terms:           s.records.ListTerms(ctx, student.AdmissionNumber),
		Reports:         s.records.ListReports(ctx, student.AdmissionNumber),
		Backend:         s.backend.Mode(),
	}

	if strings.TrimSpace(student.SmallBiography) != "" {
		profile.Biography = student.SmallBiography
	}

	bio, err := s.records.GetBiography(ctx, student.AdmissionNumber)
	switch {
	case err == nil && strings.TrimSpace(bio.Text) != "":
		profile.Biography = bio.Text
		profile.BiographyUpdate = bio.LastUpdated
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		s.logger.Warn().Err(err).Str("admission_number", admissionNumber).Msg("failed to load biography")
	}

	span.SetAttributes(
		attribute.Int("terms", len(profile.Terms)),
		attribute.Int("reports", len(profile.Reports)),
	)
	return profile, nil
}

func lookupStudent(ctx context.Context, directory repository.StudentDirectory, admissionNumber string) (models.Student, error) {
	student, err := directory.Get(ctx, admissionNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return models.Student{}, ErrStudentNotFound
	}
	return student, err
}
