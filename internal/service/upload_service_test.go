package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
	cloud "github.com/noah-isme/sponsor-portal-api/pkg/cloudinary"
)

func newUploadService(f fixture, blobs BlobStore) UploadService {
	return NewUploadService(blobs, f.directory, f.records, f.events, staticMode("CSV"), 1, zerolog.Nop())
}

func TestUploadServiceStoresGalleryImage(t *testing.T) {
	f := newFixture(t)
	blobs := &fakeBlobStore{}
	svc := newUploadService(f, blobs)

	resp, err := svc.Upload(context.Background(), UploadGallery, "A123", fileHeader(t, "My Photo.PNG", pngHeader), " sports day ")
	require.NoError(t, err)
	require.Equal(t, "my-photo.png", resp.Filename)
	require.Equal(t, "image/png", resp.MimeType)
	require.Equal(t, "sports day", resp.Note)
	require.Nil(t, resp.Report)

	require.Len(t, blobs.uploads, 1)
	require.Equal(t, "students/A123", blobs.uploads[0].Folder)
	require.Equal(t, cloud.ResourceImage, blobs.uploads[0].ResourceType)
	require.Empty(t, f.events.events)
}

func TestUploadServiceRecordsReports(t *testing.T) {
	f := newFixture(t)
	blobs := &fakeBlobStore{}
	svc := newUploadService(f, blobs)
	ctx := context.Background()

	resp, err := svc.Upload(ctx, UploadReports, "A123", fileHeader(t, "term1.pdf", []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")), "")
	require.NoError(t, err)
	require.NotNil(t, resp.Report)
	require.Equal(t, resp.PublicID, resp.Report.PublicID)

	reports := f.records.ListReports(ctx, "A123")
	require.Len(t, reports, 1)
	require.Equal(t, "term1.pdf", reports[0].Filename)

	require.NoError(t, svc.Delete(ctx, UploadReports, "A123", resp.PublicID))
	require.Empty(t, f.records.ListReports(ctx, "A123"))
	require.Equal(t, []string{resp.PublicID}, blobs.destroyed)
	require.Len(t, f.events.events, 2)
}

func TestUploadServiceRejections(t *testing.T) {
	f := newFixture(t)
	blobs := &fakeBlobStore{}
	svc := newUploadService(f, blobs)
	ctx := context.Background()

	_, err := svc.Upload(ctx, "videos", "A123", fileHeader(t, "a.png", pngHeader), "")
	require.ErrorIs(t, err, ErrUploadKindUnknown)

	_, err = svc.Upload(ctx, UploadGallery, "A123", nil, "")
	require.ErrorIs(t, err, ErrUploadMissing)

	_, err = svc.Upload(ctx, UploadGallery, "Z999", fileHeader(t, "a.png", pngHeader), "")
	require.ErrorIs(t, err, ErrStudentNotFound)

	_, err = svc.Upload(ctx, UploadResults, "A123", fileHeader(t, "notes.txt", []byte("plain text notes")), "")
	require.ErrorIs(t, err, ErrUploadTypeNotAllowed)

	large := make([]byte, 1024*1024+1)
	copy(large, pngHeader)
	_, err = svc.Upload(ctx, UploadGallery, "A123", fileHeader(t, "big.png", large), "")
	require.ErrorIs(t, err, ErrUploadTooLarge)

	blobs.uploadErr = errors.New("quota exceeded")
	_, err = svc.Upload(ctx, UploadGallery, "A123", fileHeader(t, "a.png", pngHeader), "")
	require.EqualError(t, err, "quota exceeded")

	require.Empty(t, blobs.uploads)
}

// documentKeyedRecords resolves report keys the way the document store does,
// where a record key differs from the blob public id.
type documentKeyedRecords struct {
	repository.StudentRecordRepository
	keys map[string]string
}

func (d documentKeyedRecords) FindReport(ctx context.Context, admissionNumber, key string) (models.Report, error) {
	if publicID, ok := d.keys[key]; ok {
		report, err := d.StudentRecordRepository.FindReport(ctx, admissionNumber, publicID)
		report.Key = key
		return report, err
	}
	return d.StudentRecordRepository.FindReport(ctx, admissionNumber, key)
}

func TestUploadServiceDeletesReportByDocumentKey(t *testing.T) {
	f := newFixture(t)
	blobs := &fakeBlobStore{}
	ctx := context.Background()

	resp, err := newUploadService(f, blobs).Upload(ctx, UploadReports, "A123", fileHeader(t, "term1.pdf", []byte("%PDF-1.4\n")), "")
	require.NoError(t, err)

	const documentKey = "65a1f0c2e4b0a1b2c3d4e5f6"
	f.records = documentKeyedRecords{StudentRecordRepository: f.records, keys: map[string]string{documentKey: resp.PublicID}}
	svc := newUploadService(f, blobs)

	require.NoError(t, svc.Delete(ctx, UploadReports, "A123", documentKey))
	require.Equal(t, []string{resp.PublicID}, blobs.destroyed)
	require.Empty(t, f.records.ListReports(ctx, "A123"))
	require.Equal(t, resp.PublicID, f.events.events[len(f.events.events)-1].Key)

	require.ErrorIs(t, svc.Delete(ctx, UploadReports, "A123", documentKey), repository.ErrNotFound)
	require.Len(t, blobs.destroyed, 1)
}

func TestUploadServiceKeepsReportWhenBlobDeleteFails(t *testing.T) {
	f := newFixture(t)
	blobs := &fakeBlobStore{}
	svc := newUploadService(f, blobs)
	ctx := context.Background()

	resp, err := svc.Upload(ctx, UploadReports, "A123", fileHeader(t, "term1.pdf", []byte("%PDF-1.4\n")), "")
	require.NoError(t, err)

	blobs.destroyErr = errors.New("cloud storage offline")
	require.ErrorIs(t, svc.Delete(ctx, UploadReports, "A123", resp.PublicID), blobs.destroyErr)
	require.Len(t, f.records.ListReports(ctx, "A123"), 1)
	require.Len(t, f.events.events, 1)

	blobs.destroyErr = nil
	require.NoError(t, svc.Delete(ctx, UploadReports, "A123", resp.PublicID))
	require.Empty(t, f.records.ListReports(ctx, "A123"))
	require.Equal(t, []string{resp.PublicID}, blobs.destroyed)
}

func TestUploadServiceDeleteChecksOwnership(t *testing.T) {
	f := newFixture(t)
	blobs := &fakeBlobStore{}
	svc := newUploadService(f, blobs)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, UploadLetters, "A123", "letters/B456/thanks-1"), ErrUploadNotOwned)
	require.NoError(t, svc.Delete(ctx, UploadLetters, "A123", "letters/A123/thanks-1"))
	require.Equal(t, []string{"letters/A123/thanks-1"}, blobs.destroyed)

	require.ErrorIs(t, NewUploadService(nil, f.directory, f.records, f.events, staticMode("CSV"), 1, zerolog.Nop()).
		Delete(ctx, UploadLetters, "A123", "letters/A123/thanks-1"), ErrBlobStoreUnavailable)
}
