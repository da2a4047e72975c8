package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidyalayaone/profile-api/internal/dto"
	"github.com/vidyalayaone/profile-api/internal/middleware"
	"github.com/vidyalayaone/profile-api/internal/models"
	"github.com/vidyalayaone/profile-api/internal/service"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
)

type studentServiceMock struct {
	listResp   []models.Student
	listErr    error
	getResp    *models.StudentDetail
	getErr     error
	updateResp *models.Student
	updateErr  error
	deactErr   error
	lastFilter models.StudentFilter
	lastSchool string
}

func (m *studentServiceMock) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, nil, m.listErr
	}
	return m.listResp, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listResp)}, nil
}

func (m *studentServiceMock) Get(ctx context.Context, id, schoolID string) (*models.StudentDetail, error) {
	m.lastSchool = schoolID
	return m.getResp, m.getErr
}

func (m *studentServiceMock) Update(ctx context.Context, id, schoolID string, req service.UpdateStudentRequest) (*models.Student, error) {
	return m.updateResp, m.updateErr
}

func (m *studentServiceMock) Deactivate(ctx context.Context, id, schoolID string) error {
	return m.deactErr
}

type provisionServiceMock struct {
	createResp *dto.ProvisionResponse
	createErr  error
	acceptResp *dto.ProvisionResponse
	acceptErr  error
	lastSchool string
	lastID     string
}

func (m *provisionServiceMock) CreateStudent(ctx context.Context, schoolID string, req dto.CreateStudentRequest) (*dto.ProvisionResponse, error) {
	m.lastSchool = schoolID
	return m.createResp, m.createErr
}

func (m *provisionServiceMock) AcceptApplication(ctx context.Context, schoolID, studentID string, req dto.AcceptApplicationRequest) (*dto.ProvisionResponse, error) {
	m.lastSchool = schoolID
	m.lastID = studentID
	return m.acceptResp, m.acceptErr
}

func adminClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin, SchoolID: "school-1"}
}

func testContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, adminClaims())
	return c, w
}

func sampleProvisionResponse() *dto.ProvisionResponse {
	uid := "identity-1"
	return &dto.ProvisionResponse{
		Student:  &models.Student{ID: "student-1", SchoolID: "school-1", UserID: &uid, Status: models.StudentStatusProvisioned},
		Identity: &models.Identity{ID: "identity-1", Username: "john.a100"},
	}
}

func createPayload() []byte {
	payload, _ := json.Marshal(dto.CreateStudentRequest{
		AdmissionNumber: "A100",
		AdmissionDate:   time.Now(),
		FirstName:       "John",
		LastName:        "Adams",
		Gender:          "MALE",
		BirthDate:       time.Now(),
		Email:           "john@example.com",
		Phone:           "+621234567",
		Enrollment: dto.EnrollmentInput{
			ClassID:      "6f1c38d4-1111-4a7a-9d2a-0123456789ab",
			SectionID:    "6f1c38d4-2222-4a7a-9d2a-0123456789ab",
			AcademicYear: "2026/2027",
		},
	})
	return payload
}

func TestStudentHandlerList(t *testing.T) {
	students := &studentServiceMock{listResp: []models.Student{{ID: "s1"}}}
	h := NewStudentHandler(students, &provisionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/students?status=PENDING&search=mary", nil)
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-1", students.lastFilter.SchoolID)
	assert.Equal(t, models.StudentStatusPending, students.lastFilter.Status)
	assert.Equal(t, "mary", students.lastFilter.Search)
}

func TestStudentHandlerGet(t *testing.T) {
	students := &studentServiceMock{getResp: &models.StudentDetail{Student: models.Student{ID: "s1"}}}
	h := NewStudentHandler(students, &provisionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/students/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "school-1", students.lastSchool)
}

func TestStudentHandlerGetOwnRecord(t *testing.T) {
	// The student row key and the identity id are different id spaces;
	// ownership is resolved through the record's user_id.
	uid := "identity-1"
	students := &studentServiceMock{getResp: &models.StudentDetail{
		Student: models.Student{ID: "student-row-1", SchoolID: "school-1", UserID: &uid},
	}}
	h := NewStudentHandler(students, &provisionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/students/student-row-1", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "identity-1", Role: models.RoleStudent, SchoolID: "school-1"})
	c.Params = gin.Params{{Key: "id", Value: "student-row-1"}}
	h.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestStudentHandlerGetOtherStudentForbidden(t *testing.T) {
	uid := "identity-2"
	students := &studentServiceMock{getResp: &models.StudentDetail{
		Student: models.Student{ID: "student-row-2", SchoolID: "school-1", UserID: &uid},
	}}
	h := NewStudentHandler(students, &provisionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/students/student-row-2", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "identity-1", Role: models.RoleStudent, SchoolID: "school-1"})
	c.Params = gin.Params{{Key: "id", Value: "student-row-2"}}
	h.Get(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestStudentHandlerGetUnprovisionedRecordForbidden(t *testing.T) {
	students := &studentServiceMock{getResp: &models.StudentDetail{
		Student: models.Student{ID: "student-row-3", SchoolID: "school-1"},
	}}
	h := NewStudentHandler(students, &provisionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/students/student-row-3", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "identity-1", Role: models.RoleStudent, SchoolID: "school-1"})
	c.Params = gin.Params{{Key: "id", Value: "student-row-3"}}
	h.Get(c)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	students := &studentServiceMock{getErr: appErrors.ErrNotFound}
	h := NewStudentHandler(students, &provisionServiceMock{})

	c, w := testContext(t, http.MethodGet, "/students/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerCreate(t *testing.T) {
	provision := &provisionServiceMock{createResp: sampleProvisionResponse()}
	h := NewStudentHandler(&studentServiceMock{}, provision)

	c, w := testContext(t, http.MethodPost, "/students", createPayload())
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "school-1", provision.lastSchool)

	var body struct {
		Data dto.ProvisionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "identity-1", body.Data.Identity.ID)
}

func TestStudentHandlerCreateInvalidBody(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{}, &provisionServiceMock{})

	c, w := testContext(t, http.MethodPost, "/students", []byte(`{"admission_number":`))
	h.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerCreateConflict(t *testing.T) {
	provision := &provisionServiceMock{createErr: appErrors.Clone(appErrors.ErrConflict, "admission number already used")}
	h := NewStudentHandler(&studentServiceMock{}, provision)

	c, w := testContext(t, http.MethodPost, "/students", createPayload())
	h.Create(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestStudentHandlerCreateRemoteUnavailable(t *testing.T) {
	provision := &provisionServiceMock{createErr: appErrors.ErrRemoteUnavailable}
	h := NewStudentHandler(&studentServiceMock{}, provision)

	c, w := testContext(t, http.MethodPost, "/students", createPayload())
	h.Create(c)

	require.Equal(t, http.StatusBadGateway, w.Code)
}

func TestStudentHandlerAccept(t *testing.T) {
	provision := &provisionServiceMock{acceptResp: sampleProvisionResponse()}
	h := NewStudentHandler(&studentServiceMock{}, provision)

	payload, _ := json.Marshal(dto.AcceptApplicationRequest{
		AdmissionNumber: "A200",
		AdmissionDate:   time.Now(),
		Enrollment: dto.EnrollmentInput{
			ClassID:      "6f1c38d4-1111-4a7a-9d2a-0123456789ab",
			SectionID:    "6f1c38d4-2222-4a7a-9d2a-0123456789ab",
			AcademicYear: "2026/2027",
		},
	})
	c, w := testContext(t, http.MethodPost, "/students/s9/accept", payload)
	c.Params = gin.Params{{Key: "id", Value: "s9"}}
	h.Accept(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "s9", provision.lastID)
}

func TestStudentHandlerDelete(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{}, &provisionServiceMock{})

	c, w := testContext(t, http.MethodDelete, "/students/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "s1"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	require.Equal(t, http.StatusNoContent, w.Code)
}

func TestStudentHandlerMissingClaims(t *testing.T) {
	h := NewStudentHandler(&studentServiceMock{}, &provisionServiceMock{})

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students", nil)
	c.Request = req

	h.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
