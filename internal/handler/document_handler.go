package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vidyalayaone/profile-api/internal/dto"
	"github.com/vidyalayaone/profile-api/internal/models"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
	"github.com/vidyalayaone/profile-api/pkg/response"
)

const maxDocumentSize = 10 << 20 // 10 MiB

// DocumentUploader stores a document and attaches it to a student.
type DocumentUploader interface {
	UploadDocument(ctx context.Context, id, schoolID, filename string, data []byte, contentType string) (*models.Document, error)
}

// DocumentHandler handles student document uploads.
type DocumentHandler struct {
	students DocumentUploader
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(students DocumentUploader) *DocumentHandler {
	return &DocumentHandler{students: students}
}

// Upload godoc
// @Summary Upload student document
// @Description Store a file and attach it to the student record
// @Tags Students
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Student ID"
// @Param file formData file true "Document file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id}/documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "missing file"))
		return
	}
	if fileHeader.Size > maxDocumentSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file exceeds the 10 MiB limit"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read file"))
		return
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	doc, err := h.students.UploadDocument(c.Request.Context(), c.Param("id"), claims.SchoolID, fileHeader.Filename, data, contentType)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.UploadDocumentResponse{Document: doc})
}
