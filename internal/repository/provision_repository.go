package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalayaone/profile-api/internal/models"
)

// CreateStudentSpec is the unit of work for registering a new student. All
// rows are written in one transaction; either the whole family of records
// exists afterwards or none of it does.
type CreateStudentSpec struct {
	Student    models.Student
	Guardians  []models.Guardian
	Enrollment models.Enrollment
	Documents  []models.Document
}

// AcceptApplicationSpec transitions a pending application to ACCEPTED and
// enrolls the student, in one transaction.
type AcceptApplicationSpec struct {
	StudentID       string
	SchoolID        string
	UserID          string
	AdmissionNumber string
	AdmissionDate   time.Time
	Enrollment      models.Enrollment
}

// ProvisionRepository is the local transactional writer of the provisioning
// flow. It is the only component allowed to mutate a student together with
// its child rows. Unique-constraint violations bubble up as *pq.Error for
// the error classifier; callers never read driver codes themselves.
type ProvisionRepository struct {
	db *sqlx.DB
}

// NewProvisionRepository constructs a ProvisionRepository.
func NewProvisionRepository(db *sqlx.DB) *ProvisionRepository {
	return &ProvisionRepository{db: db}
}

// CreateStudentTx atomically creates the student, guardians, guardian links,
// enrollment and document rows.
func (r *ProvisionRepository) CreateStudentTx(ctx context.Context, spec CreateStudentSpec) (st *models.Student, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin provisioning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	student := spec.Student
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	student.Active = true
	if student.Status == "" {
		student.Status = models.StudentStatusProvisioned
	}

	const studentQuery = `INSERT INTO students (id, school_id, user_id, admission_number, first_name, last_name, gender, birth_date, email, phone, address, status, active, admission_date, created_at, updated_at)
        VALUES (:id, :school_id, :user_id, :admission_number, :first_name, :last_name, :gender, :birth_date, :email, :phone, :address, :status, :active, :admission_date, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, studentQuery, student); err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}

	const guardianQuery = `INSERT INTO guardians (id, school_id, full_name, phone, email, relation, created_at)
        VALUES (:id, :school_id, :full_name, :phone, :email, :relation, :created_at)`
	const linkQuery = `INSERT INTO student_guardians (student_id, guardian_id) VALUES ($1, $2)`
	for i := range spec.Guardians {
		guardian := spec.Guardians[i]
		if guardian.ID == "" {
			guardian.ID = uuid.NewString()
		}
		guardian.SchoolID = student.SchoolID
		guardian.CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, guardianQuery, guardian); err != nil {
			return nil, fmt.Errorf("insert guardian: %w", err)
		}
		if _, err = tx.ExecContext(ctx, linkQuery, student.ID, guardian.ID); err != nil {
			return nil, fmt.Errorf("link guardian: %w", err)
		}
	}

	if err = insertEnrollment(ctx, tx, student.ID, spec.Enrollment, now); err != nil {
		return nil, err
	}

	const documentQuery = `INSERT INTO documents (id, student_id, name, url, mime_type, size, created_at)
        VALUES (:id, :student_id, :name, :url, :mime_type, :size, :created_at)`
	for i := range spec.Documents {
		doc := spec.Documents[i]
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.StudentID = student.ID
		doc.CreatedAt = now
		if _, err = tx.NamedExecContext(ctx, documentQuery, doc); err != nil {
			return nil, fmt.Errorf("insert document: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit provisioning transaction: %w", err)
	}
	return &student, nil
}

// AcceptApplicationTx atomically transitions a pending application to
// ACCEPTED, links the login identity and creates the enrollment. A record
// that is no longer pending surfaces as sql.ErrNoRows so racing approvals
// cannot double-accept.
func (r *ProvisionRepository) AcceptApplicationTx(ctx context.Context, spec AcceptApplicationSpec) (st *models.Student, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accept transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const updateQuery = `UPDATE students
        SET status = $1, user_id = $2, admission_number = $3, admission_date = $4, updated_at = $5
        WHERE id = $6 AND school_id = $7 AND status = $8
        RETURNING id, school_id, user_id, admission_number, first_name, last_name, gender, birth_date, email, phone, address, status, active, admission_date, created_at, updated_at`
	var student models.Student
	if err = tx.GetContext(ctx, &student, updateQuery,
		models.StudentStatusAccepted, spec.UserID, spec.AdmissionNumber, spec.AdmissionDate, now,
		spec.StudentID, spec.SchoolID, models.StudentStatusPending,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("accept application: %w", err)
	}

	if err = insertEnrollment(ctx, tx, student.ID, spec.Enrollment, now); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accept transaction: %w", err)
	}
	return &student, nil
}

func insertEnrollment(ctx context.Context, tx *sqlx.Tx, studentID string, enrollment models.Enrollment, now time.Time) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.StudentID = studentID
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = now
	}
	const query = `INSERT INTO enrollments (id, student_id, class_id, section_id, academic_year, roll_number, status, joined_at)
        VALUES (:id, :student_id, :class_id, :section_id, :academic_year, :roll_number, :status, :joined_at)`
	if _, err := tx.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}
