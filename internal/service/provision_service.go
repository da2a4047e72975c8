package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vidyalayaone/profile-api/internal/client"
	"github.com/vidyalayaone/profile-api/internal/dto"
	"github.com/vidyalayaone/profile-api/internal/models"
	"github.com/vidyalayaone/profile-api/internal/repository"
	appErrors "github.com/vidyalayaone/profile-api/pkg/errors"
)

// provisionState names the steps of one provisioning unit of work. The
// terminal states are committed, failedNoCompensation and
// compensatingThenFailed; the distinction between the two failure states
// matters only for logging and metrics, never for the caller-visible error.
type provisionState string

const (
	stateValidating             provisionState = "VALIDATING"
	stateCheckingPrecondition   provisionState = "CHECKING_PRECONDITION"
	stateCreatingIdentity       provisionState = "CREATING_IDENTITY"
	stateWritingLocal           provisionState = "WRITING_LOCAL"
	stateCommitted              provisionState = "COMMITTED"
	stateFailedNoCompensation   provisionState = "FAILED_NO_COMPENSATION_NEEDED"
	stateCompensatingThenFailed provisionState = "COMPENSATING_THEN_FAILED"
)

const (
	flowCreate = "create"
	flowAccept = "accept"

	outcomeCommitted   = "committed"
	outcomeFailed      = "failed"
	outcomeCompensated = "compensated"
)

// compensationTimeout bounds the identity delete when the request context
// is already cancelled or expired.
const compensationTimeout = 10 * time.Second

type identityClient interface {
	CreateIdentity(ctx context.Context, req client.CreateIdentityRequest) (*models.Identity, error)
	DeleteIdentity(ctx context.Context, id string) error
}

type provisionWriter interface {
	CreateStudentTx(ctx context.Context, spec repository.CreateStudentSpec) (*models.Student, error)
	AcceptApplicationTx(ctx context.Context, spec repository.AcceptApplicationSpec) (*models.Student, error)
}

type provisionChecker interface {
	ExistsByAdmissionNumber(ctx context.Context, number, schoolID, excludeID string) (bool, error)
	FindPendingByID(ctx context.Context, id, schoolID string) (*models.Student, error)
}

type credentialsNotifier interface {
	NotifyCredentials(email CredentialsEmail)
}

// ProvisionService coordinates account provisioning across the local
// profile store and the remote auth service. The remote identity is created
// before the local commit so a failed local write can be compensated by
// deleting it; a committed local write is never reversed.
type ProvisionService struct {
	identities identityClient
	writer     provisionWriter
	checker    provisionChecker
	notifier   credentialsNotifier
	validator  *validator.Validate
	logger     *zap.Logger
	metrics    *MetricsService
}

// NewProvisionService constructs the coordinator.
func NewProvisionService(
	identities identityClient,
	writer provisionWriter,
	checker provisionChecker,
	notifier credentialsNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
	metrics *MetricsService,
) *ProvisionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisionService{
		identities: identities,
		writer:     writer,
		checker:    checker,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
		metrics:    metrics,
	}
}

// saga tracks the state of one provisioning unit of work.
type saga struct {
	flow    string
	state   provisionState
	logger  *zap.Logger
	metrics *MetricsService
}

func (s *ProvisionService) newSaga(flow string, fields ...zap.Field) *saga {
	return &saga{
		flow:    flow,
		state:   stateValidating,
		logger:  s.logger.With(append(fields, zap.String("flow", flow))...),
		metrics: s.metrics,
	}
}

func (g *saga) transition(next provisionState) {
	g.logger.Debug("provisioning state",
		zap.String("from", string(g.state)),
		zap.String("to", string(next)),
	)
	g.state = next
}

func (g *saga) committed() {
	g.transition(stateCommitted)
	g.metrics.RecordProvision(g.flow, outcomeCommitted)
}

func (g *saga) failed() {
	g.transition(stateFailedNoCompensation)
	g.metrics.RecordProvision(g.flow, outcomeFailed)
}

func (g *saga) compensated() {
	g.transition(stateCompensatingThenFailed)
	g.metrics.RecordProvision(g.flow, outcomeCompensated)
}

// CreateStudent registers a brand-new student together with a login
// identity. Order of operations: precondition check, remote identity
// create, local transactional write, best-effort credentials email.
func (s *ProvisionService) CreateStudent(ctx context.Context, schoolID string, req dto.CreateStudentRequest) (*dto.ProvisionResponse, error) {
	sg := s.newSaga(flowCreate, zap.String("school_id", schoolID), zap.String("admission_number", req.AdmissionNumber))

	if err := s.validator.Struct(req); err != nil {
		sg.failed()
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	sg.transition(stateCheckingPrecondition)
	taken, err := s.checker.ExistsByAdmissionNumber(ctx, req.AdmissionNumber, schoolID, "")
	if err != nil {
		sg.failed()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate admission number")
	}
	if taken {
		sg.failed()
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}

	sg.transition(stateCreatingIdentity)
	username := generateUsername(req.FirstName, req.AdmissionNumber)
	password, err := generatePassword(12)
	if err != nil {
		sg.failed()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credentials")
	}
	identity, err := s.identities.CreateIdentity(ctx, client.CreateIdentityRequest{
		Username:  username,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		SchoolID:  schoolID,
		RoleName:  string(models.RoleStudent),
	})
	if err != nil {
		// No local write yet, nothing to compensate.
		sg.failed()
		return nil, appErrors.ClassifyRemote(err, "failed to create login account")
	}

	sg.transition(stateWritingLocal)
	spec := createSpecFromRequest(schoolID, identity.ID, req)
	student, err := s.writer.CreateStudentTx(ctx, spec)
	if err != nil {
		s.compensate(ctx, sg, identity.ID)
		return nil, appErrors.ClassifyStore(err, "failed to register student")
	}

	sg.committed()
	s.notifier.NotifyCredentials(CredentialsEmail{
		Recipient: req.Email,
		FullName:  req.FirstName + " " + req.LastName,
		Username:  identity.Username,
		Password:  password,
	})

	return &dto.ProvisionResponse{Student: student, Identity: identity}, nil
}

// AcceptApplication approves a pending application: it verifies the record
// is still pending in the caller's school, creates (or reuses) the login
// identity, then transitions the record and enrolls the student in one
// transaction.
func (s *ProvisionService) AcceptApplication(ctx context.Context, schoolID, studentID string, req dto.AcceptApplicationRequest) (*dto.ProvisionResponse, error) {
	sg := s.newSaga(flowAccept, zap.String("school_id", schoolID), zap.String("student_id", studentID))

	if err := s.validator.Struct(req); err != nil {
		sg.failed()
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}

	sg.transition(stateCheckingPrecondition)
	pending, err := s.checker.FindPendingByID(ctx, studentID, schoolID)
	if err != nil {
		sg.failed()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pending application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	taken, err := s.checker.ExistsByAdmissionNumber(ctx, req.AdmissionNumber, schoolID, studentID)
	if err != nil {
		sg.failed()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate admission number")
	}
	if taken {
		sg.failed()
		return nil, appErrors.Clone(appErrors.ErrConflict, "admission number already used")
	}

	sg.transition(stateCreatingIdentity)
	var (
		identity        *models.Identity
		password        string
		createdIdentity bool
	)
	if pending.UserID != nil && *pending.UserID != "" {
		// Create-or-reuse: an identity already exists for this record, so
		// identity creation is an idempotent no-op.
		identity = &models.Identity{ID: *pending.UserID, Email: pending.Email}
		sg.logger.Info("reusing existing login account", zap.String("user_id", identity.ID))
	} else {
		username := generateUsername(pending.FirstName, req.AdmissionNumber)
		password, err = generatePassword(12)
		if err != nil {
			sg.failed()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credentials")
		}
		identity, err = s.identities.CreateIdentity(ctx, client.CreateIdentityRequest{
			Username:  username,
			Email:     pending.Email,
			Phone:     pending.Phone,
			Password:  password,
			FirstName: pending.FirstName,
			LastName:  pending.LastName,
			SchoolID:  schoolID,
			RoleName:  string(models.RoleStudent),
		})
		if err != nil {
			sg.failed()
			return nil, appErrors.ClassifyRemote(err, "failed to create login account")
		}
		createdIdentity = true
	}

	sg.transition(stateWritingLocal)
	student, err := s.writer.AcceptApplicationTx(ctx, repository.AcceptApplicationSpec{
		StudentID:       studentID,
		SchoolID:        schoolID,
		UserID:          identity.ID,
		AdmissionNumber: req.AdmissionNumber,
		AdmissionDate:   req.AdmissionDate,
		Enrollment: models.Enrollment{
			ClassID:      req.Enrollment.ClassID,
			SectionID:    req.Enrollment.SectionID,
			AcademicYear: req.Enrollment.AcademicYear,
			RollNumber:   req.Enrollment.RollNumber,
		},
	})
	if err != nil {
		// A reused identity predates this request and must survive it.
		if createdIdentity {
			s.compensate(ctx, sg, identity.ID)
		} else {
			sg.failed()
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "application is no longer pending")
		}
		return nil, appErrors.ClassifyStore(err, "failed to accept application")
	}

	sg.committed()
	if createdIdentity {
		s.notifier.NotifyCredentials(CredentialsEmail{
			Recipient: pending.Email,
			FullName:  pending.FirstName + " " + pending.LastName,
			Username:  identity.Username,
			Password:  password,
		})
	}

	return &dto.ProvisionResponse{Student: student, Identity: identity}, nil
}

// compensate deletes the identity created earlier in the same unit of work.
// The outcome is logged and counted only; the caller always surfaces the
// original local-write failure. An identity left orphaned by a failed
// delete is an accepted, logged residual risk.
func (s *ProvisionService) compensate(ctx context.Context, sg *saga, identityID string) {
	sg.compensated()

	// Detached from the request so compensation still runs when the caller
	// context is already cancelled.
	deleteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := s.identities.DeleteIdentity(deleteCtx, identityID); err != nil {
		s.metrics.RecordCompensation(false)
		sg.logger.Error("failed to delete login account after local write failure; identity orphaned",
			zap.String("user_id", identityID),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordCompensation(true)
	sg.logger.Warn("deleted login account after local write failure", zap.String("user_id", identityID))
}

func createSpecFromRequest(schoolID, userID string, req dto.CreateStudentRequest) repository.CreateStudentSpec {
	uid := userID
	spec := repository.CreateStudentSpec{
		Student: models.Student{
			SchoolID:        schoolID,
			UserID:          &uid,
			AdmissionNumber: req.AdmissionNumber,
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			Gender:          req.Gender,
			BirthDate:       req.BirthDate,
			Email:           req.Email,
			Phone:           req.Phone,
			Address:         req.Address,
			Status:          models.StudentStatusProvisioned,
			AdmissionDate:   req.AdmissionDate,
		},
		Enrollment: models.Enrollment{
			ClassID:      req.Enrollment.ClassID,
			SectionID:    req.Enrollment.SectionID,
			AcademicYear: req.Enrollment.AcademicYear,
			RollNumber:   req.Enrollment.RollNumber,
		},
	}
	for _, g := range req.Guardians {
		spec.Guardians = append(spec.Guardians, models.Guardian{
			FullName: g.FullName,
			Relation: g.Relation,
			Phone:    g.Phone,
			Email:    g.Email,
		})
	}
	for _, d := range req.Documents {
		spec.Documents = append(spec.Documents, models.Document{
			Name:     d.Name,
			URL:      d.URL,
			MimeType: d.MimeType,
			Size:     d.Size,
		})
	}
	return spec
}
