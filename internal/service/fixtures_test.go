package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sponsor-portal-api/internal/flatfile"
	"github.com/noah-isme/sponsor-portal-api/internal/models"
	"github.com/noah-isme/sponsor-portal-api/internal/repository"
	"github.com/noah-isme/sponsor-portal-api/pkg/ai"
	cloud "github.com/noah-isme/sponsor-portal-api/pkg/cloudinary"
)

const testStudents = "Admission Number,Full Name,Department,Class,Gender,Contact,Photo,Small Biography\n" +
	"A123,Grace Wanjiru,Mini India,Grade 5,F,0700000000,a123.jpg,Enjoys reading\n" +
	"B456,Peter Otieno,Science,Grade 6,M,,,\n"

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type csvOnly struct{}

func (csvOnly) UseDocumentStore() bool { return false }

type staticMode string

func (m staticMode) Mode() string { return string(m) }

type recordingEvents struct {
	mu     sync.Mutex
	events []RecordEvent
}

func (r *recordingEvents) Publish(_ context.Context, event RecordEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type fakeBlobStore struct {
	uploads   []cloud.UploadInput
	contents  []string
	destroyed  []string
	uploadErr  error
	destroyErr error
	seq        int
}

func (f *fakeBlobStore) Upload(_ context.Context, input cloud.UploadInput) (cloud.Asset, error) {
	if f.uploadErr != nil {
		return cloud.Asset{}, f.uploadErr
	}
	data, err := io.ReadAll(input.Reader)
	if err != nil {
		return cloud.Asset{}, err
	}
	f.seq++
	f.uploads = append(f.uploads, input)
	f.contents = append(f.contents, string(data))
	publicID := input.Folder + "/" + input.Name + "-" + strconv.Itoa(f.seq)
	return cloud.Asset{PublicID: publicID, URL: "https://cdn.example/" + publicID, ResourceType: input.ResourceType, Bytes: len(data)}, nil
}

func (f *fakeBlobStore) Destroy(_ context.Context, publicID, _ string) error {
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

func (f *fakeBlobStore) DownloadURL(publicID, filename string) string {
	return cloud.AttachmentURL("demo", publicID, filename)
}

type fakeWriter struct {
	text string
	err  error
}

func (f fakeWriter) WriteNarrative(context.Context, ai.NarrativeInput) (string, error) {
	return f.text, f.err
}

var errWriterDown = errors.New("writer unavailable")

type fixture struct {
	directory repository.StudentDirectory
	records   repository.StudentRecordRepository
	events    *recordingEvents
	validate  *validator.Validate
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()

	studentsPath := filepath.Join(dir, "students.csv")
	require.NoError(t, os.WriteFile(studentsPath, []byte(testStudents), 0o644))

	files, err := repository.OpenFlatFiles(dir, zerolog.Nop())
	require.NoError(t, err)

	clock := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	return fixture{
		directory: repository.NewCSVStudentDirectory(flatfile.NewTable("students", studentsPath, models.StudentColumns, zerolog.Nop())),
		records: repository.NewStudentRecordRepository(nil, csvOnly{}, files, zerolog.Nop(), repository.WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		})),
		events:   &recordingEvents{},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}
