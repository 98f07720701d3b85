package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Resource types understood by the blob store.
const (
	ResourceImage = "image"
	ResourceRaw   = "raw"
	ResourceAuto  = "auto"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// UploadInput describes one file to store.
type UploadInput struct {
	Folder       string
	Name         string
	ResourceType string
	Reader       io.Reader
}

// Asset is a stored file.
type Asset struct {
	PublicID     string `json:"publicId"`
	URL          string `json:"url"`
	ResourceType string `json:"resourceType"`
	Bytes        int    `json:"bytes"`
}

// Service stores portal files in Cloudinary.
type Service struct {
	client    *cloudinary.Cloudinary
	cloudName string
	folder    string
	logger    zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Service{
		client:    cld,
		cloudName: cfg.CloudName,
		folder:    cfg.Folder,
		logger:    logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// Upload sends the file to Cloudinary under the configured root folder.
func (s *Service) Upload(ctx context.Context, input UploadInput) (Asset, error) {
	resourceType := input.ResourceType
	if resourceType == "" {
		resourceType = ResourceAuto
	}

	params := uploader.UploadParams{
		Folder:       joinFolder(s.folder, input.Folder),
		PublicID:     BuildPublicID(input.Name, time.Now()),
		ResourceType: resourceType,
	}

	result, err := s.client.Upload.Upload(ctx, input.Reader, params)
	if err != nil {
		return Asset{}, fmt.Errorf("failed to upload asset: %w", err)
	}
	if result.Error.Message != "" {
		return Asset{}, fmt.Errorf("failed to upload asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", result.PublicID).Str("resource_type", result.ResourceType).Msg("file uploaded to cloudinary")

	return Asset{
		PublicID:     result.PublicID,
		URL:          result.SecureURL,
		ResourceType: result.ResourceType,
		Bytes:        result.Bytes,
	}, nil
}

// Destroy removes a stored file. A missing file is not an error.
func (s *Service) Destroy(ctx context.Context, publicID, resourceType string) error {
	if resourceType == "" || resourceType == ResourceAuto {
		resourceType = ResourceImage
	}

	result, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy asset: %w", err)
	}
	if result.Error.Message != "" {
		return fmt.Errorf("failed to destroy asset: %s", result.Error.Message)
	}

	s.logger.Info().Str("public_id", publicID).Str("result", result.Result).Msg("file removed from cloudinary")
	return nil
}

// DownloadURL builds an attachment URL for a raw file.
func (s *Service) DownloadURL(publicID, filename string) string {
	return AttachmentURL(s.cloudName, publicID, filename)
}

// AttachmentURL builds the raw delivery URL that makes browsers save the file
// under filename.
func AttachmentURL(cloudName, publicID, filename string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/raw/upload/fl_attachment:%s/%s", cloudName, filename, publicID)
}

// BuildPublicID derives a URL-safe public id from a file name.
func BuildPublicID(name string, now time.Time) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "upload"
	}

	return fmt.Sprintf("%s-%d", base, now.UnixMilli())
}

func joinFolder(root, folder string) string {
	root = strings.Trim(root, "/")
	folder = strings.Trim(folder, "/")
	switch {
	case root == "":
		return folder
	case folder == "":
		return root
	default:
		return root + "/" + folder
	}
}
