package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalayaone/profile-api/internal/middleware"
	"github.com/vidyalayaone/profile-api/internal/models"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
)

type uploaderMock struct {
	doc      *models.Document
	err      error
	lastName string
	lastData []byte
}

func (m *uploaderMock) UploadDocument(ctx context.Context, id, schoolID, filename string, data []byte, contentType string) (*models.Document, error) {
	m.lastName = filename
	m.lastData = data
	return m.doc, m.err
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func uploadContext(t *testing.T, body *bytes.Buffer, contentType string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodPost, "/students/s1/documents", body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"})
	return c, w
}

func TestDocumentHandlerUpload(t *testing.T) {
	uploader := &uploaderMock{doc: &models.Document{ID: "d1", Name: "report.pdf"}}
	h := NewDocumentHandler(uploader)

	body, contentType := multipartBody(t, "file", "report.pdf", []byte("%PDF-1.4 test"))
	c, w := uploadContext(t, body, contentType)
	h.Upload(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "report.pdf", uploader.lastName)
	assert.Equal(t, []byte("%PDF-1.4 test"), uploader.lastData)
}

func TestDocumentHandlerUploadMissingFile(t *testing.T) {
	h := NewDocumentHandler(&uploaderMock{})

	body, contentType := multipartBody(t, "wrong-field", "report.pdf", []byte("data"))
	c, w := uploadContext(t, body, contentType)
	h.Upload(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerUploadStudentMissing(t *testing.T) {
	h := NewDocumentHandler(&uploaderMock{err: appErrors.Clone(appErrors.ErrNotFound, "student not found")})

	body, contentType := multipartBody(t, "file", "report.pdf", []byte("data"))
	c, w := uploadContext(t, body, contentType)
	h.Upload(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}
