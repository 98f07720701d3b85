package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/observability"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
	cloud "github.com/noah-isme/sponsor-portal-api/pkg/cloudinary"
)

var (
	// ErrUploadTooLarge indicates the payload exceeded the configured limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the MIME type is not permitted for the upload kind.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
	// ErrUploadKindUnknown indicates an unsupported upload kind.
	ErrUploadKindUnknown = errors.New("unknown upload kind")
	// ErrUploadMissing indicates no file was sent.
	ErrUploadMissing = errors.New("file is required")
	// ErrUploadNotOwned indicates the public id does not belong to the student.
	ErrUploadNotOwned = errors.New("file does not belong to this student")
)

// Upload kinds.
const (
	UploadGallery = "gallery"
	UploadLetters = "letters"
	UploadResults = "results"
	UploadReports = "reports"
)

type uploadKind struct {
	folder       func(admissionNumber string) string
	resourceType string
	allowed      func(mime string) bool
}

var uploadKinds = map[string]uploadKind{
	UploadGallery: {
		folder:       func(id string) string { return "students/" + id },
		resourceType: cloud.ResourceImage,
		allowed:      isImage,
	},
	UploadResults: {
		folder:       func(id string) string { return "results/" + id },
		resourceType: cloud.ResourceImage,
		allowed:      isImage,
	},
	UploadLetters: {
		folder:       func(id string) string { return "letters/" + id },
		resourceType: cloud.ResourceRaw,
		allowed:      isDocumentOrImage,
	},
	UploadReports: {
		folder:       func(string) string { return ReportFolder },
		resourceType: cloud.ResourceRaw,
		allowed:      isDocument,
	},
}

// UploadService validates files and stores them in the blob store.
type UploadService interface {
	Upload(ctx context.Context, kind, admissionNumber string, file *multipart.FileHeader, note string) (dto.UploadResponse, error)
	Delete(ctx context.Context, kind, admissionNumber, publicID string) error
}

type uploadService struct {
	storage   BlobStore
	directory repository.StudentDirectory
	records   repository.StudentRecordRepository
	events    RecordEvents
	backend   BackendMode
	logger    zerolog.Logger
	maxSize   int64
	tracer    trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(storage BlobStore, directory repository.StudentDirectory, records repository.StudentRecordRepository, events RecordEvents, backend BackendMode, maxSizeMB int, logger zerolog.Logger) UploadService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &uploadService{
		storage:   storage,
		directory: directory,
		records:   records,
		events:    events,
		backend:   backend,
		logger:    logger.With().Str("component", "upload_service").Logger(),
		maxSize:   int64(maxSizeMB) * 1024 * 1024,
		tracer:    otel.Tracer("github.com/noah-isme/sponsor-portal-api/internal/service/upload"),
	}
}

func (s *uploadService) Upload(ctx context.Context, kind, admissionNumber string, file *multipart.FileHeader, note string) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.store", trace.WithAttributes(
		attribute.String("upload.kind", kind),
		attribute.String("admission_number", admissionNumber),
		attribute.Int64("upload.max_bytes", s.maxSize),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	rule, ok := uploadKinds[kind]
	if !ok {
		span.SetStatus(codes.Error, "unknown kind")
		return dto.UploadResponse{}, ErrUploadKindUnknown
	}
	if s.storage == nil {
		span.SetStatus(codes.Error, "blob store missing")
		return dto.UploadResponse{}, ErrBlobStoreUnavailable
	}
	if file == nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, ErrUploadMissing
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	if _, err := lookupStudent(ctx, s.directory, admissionNumber); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return dto.UploadResponse{}, err
	}

	if file.Size > s.maxSize {
		return dto.UploadResponse{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.UploadResponse{}, s.reject(span, "size", ErrUploadTooLarge)
	}

	fileType := mimetype.Detect(buf.Bytes()).String()
	span.SetAttributes(attribute.String("upload.detected_mime", fileType))
	if !rule.allowed(fileType) {
		return dto.UploadResponse{}, s.reject(span, "type", ErrUploadTypeNotAllowed)
	}

	sanitizedName := sanitizeFileName(file.Filename)
	asset, err := s.storage.Upload(ctx, cloud.UploadInput{
		Folder:       rule.folder(admissionNumber),
		Name:         sanitizedName,
		ResourceType: rule.resourceType,
		Reader:       bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return dto.UploadResponse{}, s.reject(span, "storage", err)
	}

	response := dto.UploadResponse{
		Kind:      kind,
		PublicID:  asset.PublicID,
		URL:       asset.URL,
		Filename:  sanitizedName,
		Note:      strings.TrimSpace(note),
		MimeType:  fileType,
		SizeBytes: int64(buf.Len()),
	}

	if kind == UploadReports {
		report, err := s.records.AddReport(ctx, admissionNumber, sanitizedName, asset.PublicID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "persistence failed")
			return dto.UploadResponse{}, err
		}
		response.Report = &report
		s.events.Publish(ctx, RecordEvent{
			Kind:            "report",
			Action:          ActionCreated,
			AdmissionNumber: admissionNumber,
			Key:             report.PublicID,
			Backend:         s.backend.Mode(),
		})
	}

	span.SetStatus(codes.Ok, "stored")
	s.logger.Info().
		Str("kind", kind).
		Str("admission_number", admissionNumber).
		Str("public_id", asset.PublicID).
		Msg("file uploaded")

	return response, nil
}

func (s *uploadService) Delete(ctx context.Context, kind, admissionNumber, publicID string) error {
	rule, ok := uploadKinds[kind]
	if !ok {
		return ErrUploadKindUnknown
	}
	if s.storage == nil {
		return ErrBlobStoreUnavailable
	}
	if strings.TrimSpace(publicID) == "" {
		return ErrKeyRequired
	}

	if kind == UploadReports {
		report, err := s.records.FindReport(ctx, admissionNumber, publicID)
		if err != nil {
			return err
		}
		// The blob goes first so a failed destroy leaves the record to retry with.
		if err := s.storage.Destroy(ctx, report.PublicID, rule.resourceType); err != nil {
			return fmt.Errorf("delete %s file: %w", kind, err)
		}
		if err := s.records.RemoveReport(ctx, admissionNumber, report.PublicID); err != nil {
			return err
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

	if !strings.Contains(publicID, rule.folder(admissionNumber)+"/") {
		return ErrUploadNotOwned
	}
	if err := s.storage.Destroy(ctx, publicID, rule.resourceType); err != nil {
		return fmt.Errorf("delete %s file: %w", kind, err)
	}
	return nil
}

func (s *uploadService) reject(span trace.Span, reason string, err error) error {
	observability.UploadRejected().WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	return err
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

func baseMime(m string) string {
	lower := strings.ToLower(strings.TrimSpace(m))
	if i := strings.Index(lower, ";"); i >= 0 {
		lower = strings.TrimSpace(lower[:i])
	}
	return lower
}

func isImage(m string) bool {
	return strings.HasPrefix(baseMime(m), "image/")
}

func isDocument(m string) bool {
	switch baseMime(m) {
	case "application/pdf", "text/plain",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return true
	default:
		return false
	}
}

func isDocumentOrImage(m string) bool {
	return isImage(m) || isDocument(m)
}
