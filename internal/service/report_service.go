package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
	"github.com/noah-isme/sponsor-portal-api/pkg/ai"
	cloud "github.com/noah-isme/sponsor-portal-api/pkg/cloudinary"
)

var (
	// ErrNoTerms indicates a report was requested for a student without term updates.
	ErrNoTerms = errors.New("no term updates recorded for this student")
	// ErrBlobStoreUnavailable indicates no blob store is configured.
	ErrBlobStoreUnavailable = errors.New("file storage is not configured")
)

// ReportFolder is the blob store folder holding generated and uploaded reports.
const ReportFolder = "student_reports"

// BlobStore stores and removes files referenced by report records.
type BlobStore interface {
	Upload(ctx context.Context, input cloud.UploadInput) (cloud.Asset, error)
	Destroy(ctx context.Context, publicID, resourceType string) error
	DownloadURL(publicID, filename string) string
}

// ReportService generates, lists and removes student reports.
type ReportService interface {
	List(ctx context.Context, admissionNumber string) []models.Report
	Generate(ctx context.Context, admissionNumber string) (dto.GeneratedReportResponse, error)
	DownloadURL(ctx context.Context, admissionNumber, publicID string) (string, error)
	Delete(ctx context.Context, admissionNumber, publicID string) error
}

type reportService struct {
	directory repository.StudentDirectory
	records   repository.StudentRecordRepository
	blobs     BlobStore
	writer    ai.NarrativeWriter
	events    RecordEvents
	backend   BackendMode
	now       func() time.Time
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewReportService constructs the report service. blobs and writer may be nil.
func NewReportService(directory repository.StudentDirectory, records repository.StudentRecordRepository, blobs BlobStore, writer ai.NarrativeWriter, events RecordEvents, backend BackendMode, logger zerolog.Logger) ReportService {
	return &reportService{
		directory: directory,
		records:   records,
		blobs:     blobs,
		writer:    writer,
		events:    events,
		backend:   backend,
		now:       time.Now,
		logger:    logger.With().Str("component", "report_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/sponsor-portal-api/internal/service/report"),
	}
}

func (s *reportService) List(ctx context.Context, admissionNumber string) []models.Report {
	return s.records.ListReports(ctx, admissionNumber)
}

func (s *reportService) Generate(ctx context.Context, admissionNumber string) (dto.GeneratedReportResponse, error) {
	ctx, span := s.tracer.Start(ctx, "reports.generate", trace.WithAttributes(
		attribute.String("admission_number", admissionNumber),
	))
	defer span.End()

	if s.blobs == nil {
		span.SetStatus(codes.Error, "blob store missing")
		return dto.GeneratedReportResponse{}, ErrBlobStoreUnavailable
	}

	student, err := lookupStudent(ctx, s.directory, admissionNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return dto.GeneratedReportResponse{}, err
	}

	term, err := s.records.LatestTerm(ctx, student.AdmissionNumber)
	if errors.Is(err, repository.ErrNotFound) {
		span.SetStatus(codes.Error, "no terms")
		return dto.GeneratedReportResponse{}, ErrNoTerms
	}
	if err != nil {
		span.RecordError(err)
		return dto.GeneratedReportResponse{}, err
	}

	narrative := s.narrative(ctx, student, term)
	content := renderReport(student, term, narrative, s.now())
	filename := reportFilename(student, term)

	asset, err := s.blobs.Upload(ctx, cloud.UploadInput{
		Folder:       ReportFolder,
		Name:         "report_" + student.AdmissionNumber,
		ResourceType: cloud.ResourceRaw,
		Reader:       strings.NewReader(content),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return dto.GeneratedReportResponse{}, fmt.Errorf("upload report: %w", err)
	}

	report, err := s.records.AddReport(ctx, student.AdmissionNumber, filename, asset.PublicID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persistence failed")
		if destroyErr := s.blobs.Destroy(ctx, asset.PublicID, cloud.ResourceRaw); destroyErr != nil {
			s.logger.Warn().Err(destroyErr).Str("public_id", asset.PublicID).Msg("failed to remove orphaned report file")
		}
		return dto.GeneratedReportResponse{}, err
	}

	s.events.Publish(ctx, RecordEvent{
		Kind:            "report",
		Action:          ActionCreated,
		AdmissionNumber: student.AdmissionNumber,
		Key:             report.PublicID,
		Backend:         s.backend.Mode(),
	})
	s.logger.Info().
		Str("admission_number", student.AdmissionNumber).
		Str("public_id", report.PublicID).
		Bool("narrative", narrative != "").
		Msg("report generated")

	return dto.GeneratedReportResponse{
		Report:      report,
		DownloadURL: s.blobs.DownloadURL(report.PublicID, report.Filename),
		Narrative:   narrative != "",
	}, nil
}

func (s *reportService) DownloadURL(ctx context.Context, admissionNumber, publicID string) (string, error) {
	if s.blobs == nil {
		return "", ErrBlobStoreUnavailable
	}
	if strings.TrimSpace(publicID) == "" {
		return "", ErrKeyRequired
	}

	report, err := s.records.FindReport(ctx, admissionNumber, publicID)
	if err != nil {
		return "", err
	}
	return s.blobs.DownloadURL(report.PublicID, report.Filename), nil
}

func (s *reportService) Delete(ctx context.Context, admissionNumber, publicID string) error {
	ctx, span := s.tracer.Start(ctx, "reports.delete", trace.WithAttributes(
		attribute.String("admission_number", admissionNumber),
		attribute.String("public_id", publicID),
	))
	defer span.End()

	if strings.TrimSpace(publicID) == "" {
		return ErrKeyRequired
	}

	report, err := s.records.FindReport(ctx, admissionNumber, publicID)
	if err != nil {
		span.SetStatus(codes.Error, "lookup failed")
		return err
	}

	if err := s.records.RemoveReport(ctx, admissionNumber, report.PublicID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}

	if s.blobs != nil {
		if err := s.blobs.Destroy(ctx, report.PublicID, cloud.ResourceRaw); err != nil {
			span.RecordError(err)
			s.logger.Warn().Err(err).Str("public_id", report.PublicID).Msg("report record removed but file deletion failed")
		}
	}

	s.events.Publish(ctx, RecordEvent{
		Kind:            "report",
		Action:          ActionDeleted,
		AdmissionNumber: admissionNumber,
		Key:             report.PublicID,
		Backend:         s.backend.Mode(),
	})
	return nil
}

func (s *reportService) narrative(ctx context.Context, student models.Student, term models.Term) string {
	if s.writer == nil {
		return ""
	}

	text, err := s.writer.WriteNarrative(ctx, ai.NarrativeInput{
		StudentName:      student.FullName,
		AdmissionNumber:  student.AdmissionNumber,
		Department:       student.Department,
		TermName:         term.TermName,
		ExecutiveSummary: term.ExecutiveSummary,
		AcademicOverview: term.AcademicOverview,
		Strengths:        term.AcademicStrengths,
		Challenges:       term.AcademicChallenges,
		ConcludingRemark: term.ConcludingRemark,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("admission_number", student.AdmissionNumber).Msg("narrative unavailable, rendering report without it")
		return ""
	}
	return text
}

func reportFilename(student models.Student, term models.Term) string {
	name := strings.Join(strings.Fields(student.FullName), "_")
	termName := strings.Join(strings.Fields(term.TermName), "_")
	if name == "" {
		name = student.AdmissionNumber
	}
	if termName == "" {
		termName = "Term"
	}
	return fmt.Sprintf("Progress_Report_%s_%s.txt", name, termName)
}

func renderReport(student models.Student, term models.Term, narrative string, generatedAt time.Time) string {
	var b strings.Builder

	b.WriteString("STUDENT PROGRESS REPORT\n")
	b.WriteString(strings.Repeat("=", 23))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Learner: %s | Admission No: %s\n", orNA(student.FullName), orNA(student.AdmissionNumber))
	fmt.Fprintf(&b, "Department: %s | Class: %s\n", orNA(student.Department), orNA(student.Class))
	fmt.Fprintf(&b, "Term: %s\n", orNA(term.TermName))
	fmt.Fprintf(&b, "Generated: %s\n", generatedAt.UTC().Format("2 January 2006"))

	if narrative != "" {
		writeSection(&b, "Overview", narrative)
	}

	sections := []struct {
		title string
		value string
	}{
		{"Executive Summary", term.ExecutiveSummary},
		{"Academic Overview", term.AcademicOverview},
		{"Grade", term.AcademicGrade},
		{"Rank", term.AcademicRank},
		{"Strengths", term.AcademicStrengths},
		{"Challenges", term.AcademicChallenges},
		{"School Life", term.PersonalSchool},
		{"Extra-curricular", term.PersonalExtra},
		{"Home Environment", term.HomeEnvironment},
		{"Academic Goals", term.GoalsAcademic},
		{"Personal Goals", term.GoalsPersonal},
		{"Fees", joinNonEmpty(" due ", term.FeesAmount, term.FeesDueDate)},
		{"Uniform", term.UniformNotes},
		{"Book List", term.BookList},
		{"Transport", term.TransportNotes},
		{"Other Needs", term.OtherNeeds},
		{"Academic Recommendations", term.RecommendAcademic},
		{"Material Recommendations", term.RecommendMaterial},
		{"Next Term Begins", term.NextTermDate},
		{"Concluding Remark", term.ConcludingRemark},
	}
	for _, section := range sections {
		if strings.TrimSpace(section.value) != "" {
			writeSection(&b, section.title, section.value)
		}
	}

	return b.String()
}

func writeSection(b *strings.Builder, title, body string) {
	b.WriteString("\n")
	b.WriteString(strings.ToUpper(title))
	b.WriteString("\n")
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, strings.TrimSpace(value))
		}
	}
	return strings.Join(parts, sep)
}

func orNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "N/A"
	}
	return value
}
