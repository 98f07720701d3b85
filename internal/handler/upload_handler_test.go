package handler_test

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sponsor-portal-api/internal/dto"
	"github.com/noah-isme/sponsor-portal-api/internal/handler"
	"github.com/noah-isme/sponsor-portal-api/internal/service"
)

type mockUploadService struct {
	lastKind     string
	lastID       string
	lastNote     string
	lastPublicID string
	response     dto.UploadResponse
	err          error
}

func (m *mockUploadService) Upload(_ context.Context, kind, admissionNumber string, file *multipart.FileHeader, note string) (dto.UploadResponse, error) {
	if file != nil {
		f, err := file.Open()
		if err != nil {
			return dto.UploadResponse{}, err
		}
		_ = f.Close()
	}
	m.lastKind = kind
	m.lastID = admissionNumber
	m.lastNote = note
	if m.err != nil {
		return dto.UploadResponse{}, m.err
	}
	return m.response, nil
}

func (m *mockUploadService) Delete(_ context.Context, kind, admissionNumber, publicID string) error {
	m.lastKind = kind
	m.lastID = admissionNumber
	m.lastPublicID = publicID
	return m.err
}

func newUploadApp(svc *mockUploadService) *fiber.App {
	app := fiber.New()
	handler.NewUploadHandler(svc, discardLogger()).Register(app.Group("/api/v1/uploads"))
	return app
}

func multipartRequest(t *testing.T, path, filename, note string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG\r\n\x1a\n"))
		require.NoError(t, err)
	}
	if note != "" {
		require.NoError(t, writer.WriteField("note", note))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadHandler_Success(t *testing.T) {
	svc := &mockUploadService{response: dto.UploadResponse{Kind: "gallery", PublicID: "students/A123/photo-1", URL: "https://cdn.example.com/photo.png"}}
	app := newUploadApp(svc)

	resp := doRequest(t, app, multipartRequest(t, "/api/v1/uploads/gallery/A123", "photo.png", "sports day"))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var body struct {
		Success bool               `json:"success"`
		Message string             `json:"message"`
		Data    dto.UploadResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)

	require.True(t, body.Success)
	require.Equal(t, "upload successful", body.Message)
	require.Equal(t, "gallery", svc.lastKind)
	require.Equal(t, "A123", svc.lastID)
	require.Equal(t, "sports day", svc.lastNote)
	require.Equal(t, svc.response.PublicID, body.Data.PublicID)
}

func TestUploadHandler_MissingFile(t *testing.T) {
	svc := &mockUploadService{}
	app := newUploadApp(svc)

	resp := doRequest(t, app, multipartRequest(t, "/api/v1/uploads/gallery/A123", "", "note only"))
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.lastKind)
}

func TestUploadHandler_ServiceErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{err: service.ErrUploadTypeNotAllowed, status: fiber.StatusBadRequest},
		{err: service.ErrUploadKindUnknown, status: fiber.StatusBadRequest},
		{err: service.ErrBlobStoreUnavailable, status: fiber.StatusServiceUnavailable},
		{err: errors.New("boom"), status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newUploadApp(&mockUploadService{err: tc.err})
			resp := doRequest(t, app, multipartRequest(t, "/api/v1/uploads/letters/A123", "letter.pdf", ""))
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestUploadHandler_DeleteRejectsForeignAsset(t *testing.T) {
	svc := &mockUploadService{err: service.ErrUploadNotOwned}
	app := newUploadApp(svc)

	resp := doRequest(t, app, httptest.NewRequest(http.MethodDelete, "/api/v1/uploads/gallery/A123?publicId=students%2FB456%2Fx", nil))
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, "students/B456/x", svc.lastPublicID)
}
