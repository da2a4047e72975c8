package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vidyalayaone/profile-api/internal/models"
	"github.com/vidyalayaone/profile-api/internal/repository"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
	"github.com/vidyalayaone/profile-api/pkg/storage"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id, schoolID string) (*models.StudentDetail, error)
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id, schoolID string) error
	CreateDocument(ctx context.Context, doc *models.Document) error
}

// StudentCache is the read-through cache used for student detail lookups.
type StudentCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// UpdateStudentRequest holds the mutable fields of a student record.
type UpdateStudentRequest struct {
	FirstName string    `json:"first_name" validate:"required"`
	LastName  string    `json:"last_name" validate:"required"`
	Gender    string    `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
	BirthDate time.Time `json:"birth_date" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	Phone     string    `json:"phone" validate:"required"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
}

// StudentService handles the single-record student use-cases around the
// provisioning saga.
type StudentService struct {
	repo      studentRepository
	cache     StudentCache
	files     storage.Storage
	validator *validator.Validate
	logger    *zap.Logger
	metrics   *MetricsService
	cacheTTL  time.Duration
}

// NewStudentService constructs the student service. Cache may be nil.
func NewStudentService(repo studentRepository, cache StudentCache, files storage.Storage, validate *validator.Validate, logger *zap.Logger, metrics *MetricsService, cacheTTL time.Duration) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &StudentService{repo: repo, cache: cache, files: files, validator: validate, logger: logger, metrics: metrics, cacheTTL: cacheTTL}
}

// List returns students and pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return students, pagination, nil
}

// Get returns detailed student information, served from cache when warm.
func (s *StudentService) Get(ctx context.Context, id, schoolID string) (*models.StudentDetail, error) {
	key := repository.StudentDetailKey(schoolID, id)
	if s.cache != nil {
		var cached models.StudentDetail
		switch err := s.cache.Get(ctx, key, &cached); {
		case err == nil:
			s.metrics.RecordCacheLookup(true)
			return &cached, nil
		case appErrors.HasCode(err, appErrors.ErrCacheMiss):
			s.metrics.RecordCacheLookup(false)
		default:
			// A transport failure is not a cold key; keep it out of the
			// hit/miss ratio.
			s.logger.Warn("student cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	detail, err := s.repo.FindByID(ctx, id, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, detail, s.cacheTTL); err != nil {
			s.logger.Warn("student cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return detail, nil
}

// Update modifies an existing student record.
func (s *StudentService) Update(ctx context.Context, id, schoolID string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.repo.FindByID(ctx, id, schoolID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student := detail.Student
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Gender = req.Gender
	student.BirthDate = req.BirthDate
	student.Email = req.Email
	student.Phone = req.Phone
	student.Address = req.Address
	student.Active = req.Active
	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.ClassifyStore(err, "failed to update student")
	}
	s.invalidate(ctx, id, schoolID)
	return &student, nil
}

// Deactivate marks a student inactive.
func (s *StudentService) Deactivate(ctx context.Context, id, schoolID string) error {
	if _, err := s.repo.FindByID(ctx, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Deactivate(ctx, id, schoolID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.invalidate(ctx, id, schoolID)
	return nil
}

// UploadDocument stores the file bytes and attaches the document row to an
// existing student.
func (s *StudentService) UploadDocument(ctx context.Context, id, schoolID, filename string, data []byte, contentType string) (*models.Document, error) {
	if len(data) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	if _, err := s.repo.FindByID(ctx, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	objectName := fmt.Sprintf("students/%s/%s%s", id, uuid.NewString(), filepath.Ext(filename))
	object, err := s.files.Upload(ctx, objectName, data, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		StudentID: id,
		Name:      filename,
		URL:       object.URL,
		MimeType:  contentType,
		Size:      object.Size,
	}
	if err := s.repo.CreateDocument(ctx, doc); err != nil {
		// Keep storage consistent with the metadata row.
		if delErr := s.files.Delete(ctx, objectName); delErr != nil {
			s.logger.Error("failed to remove stored file after metadata failure",
				zap.String("object", objectName),
				zap.Error(delErr),
			)
		}
		return nil, appErrors.ClassifyStore(err, "failed to attach document")
	}
	s.invalidate(ctx, id, schoolID)
	return doc, nil
}

func (s *StudentService) invalidate(ctx context.Context, id, schoolID string) {
	if s.cache == nil {
		return
	}
	key := repository.StudentDetailKey(schoolID, id)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("student cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}
