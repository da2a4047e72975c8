package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vidyalayaone/profile-api/internal/dto"
	"github.com/vidyalayaone/profile-api/internal/models"
	"github.com/vidyalayaone/profile-api/internal/service"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
	"github.com/vidyalayaone/profile-api/pkg/response"
)

// StudentReader exposes the student CRUD use-cases to the HTTP layer.
type StudentReader interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id, schoolID string) (*models.StudentDetail, error)
	Update(ctx context.Context, id, schoolID string, req service.UpdateStudentRequest) (*models.Student, error)
	Deactivate(ctx context.Context, id, schoolID string) error
}

// StudentProvisioner exposes the provisioning flows to the HTTP layer.
type StudentProvisioner interface {
	CreateStudent(ctx context.Context, schoolID string, req dto.CreateStudentRequest) (*dto.ProvisionResponse, error)
	AcceptApplication(ctx context.Context, schoolID, studentID string, req dto.AcceptApplicationRequest) (*dto.ProvisionResponse, error)
}

// StudentHandler handles student endpoints, including account provisioning.
type StudentHandler struct {
	students  StudentReader
	provision StudentProvisioner
}

// NewStudentHandler creates a new student handler.
func NewStudentHandler(students StudentReader, provision StudentProvisioner) *StudentHandler {
	return &StudentHandler{students: students, provision: provision}
}

// List godoc
// @Summary List students
// @Description List students of the caller's school with pagination and filtering
// @Tags Students
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param status query string false "Status filter"
// @Param active query bool false "Active filter"
// @Param search query string false "Search term"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.StudentFilter{SchoolID: claims.SchoolID}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	if status := c.Query("status"); status != "" {
		filter.Status = models.StudentStatus(status)
	}

	if active := c.Query("active"); active != "" {
		if val, err := strconv.ParseBool(active); err == nil {
			filter.Active = &val
		}
	}

	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student
// @Description Get student detail with guardians, enrollments and documents
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.students.Get(c.Request.Context(), c.Param("id"), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}

	// Students see only the record whose account is theirs. The path id is
	// the student row key; ownership lives in user_id.
	if claims.Role == models.RoleStudent {
		if student.UserID == nil || *student.UserID != claims.UserID {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own record"))
			return
		}
	}

	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Register student
// @Description Create a student record together with its login account
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentRequest true "Create student payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.provision.CreateStudent(c.Request.Context(), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// Accept godoc
// @Summary Accept application
// @Description Approve a pending application, provisioning the login account and enrollment
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body dto.AcceptApplicationRequest true "Accept payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /students/{id}/accept [post]
func (h *StudentHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AcceptApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	result, err := h.provision.AcceptApplication(c.Request.Context(), claims.SchoolID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update student
// @Description Update student profile fields
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	student, err := h.students.Update(c.Request.Context(), c.Param("id"), claims.SchoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Deactivate student
// @Description Soft delete student by marking inactive
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.students.Deactivate(c.Request.Context(), c.Param("id"), claims.SchoolID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
