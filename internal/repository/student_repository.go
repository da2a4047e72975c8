package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vidyalayaone/profile-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters. Results are always
// scoped to the caller's school.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students s"
	args := []interface{}{filter.SchoolID}
	conditions := []string{"s.school_id = $1"}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("s.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("s.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(s.first_name || ' ' || s.last_name) LIKE $%d OR LOWER(s.admission_number) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"last_name":        "s.last_name",
		"admission_number": "s.admission_number",
		"created_at":       "s.created_at",
	}
	if sortBy == "" {
		sortBy = "created_at"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT s.id, s.school_id, s.user_id, s.admission_number, s.first_name, s.last_name, s.gender, s.birth_date, s.email, s.phone, s.address, s.status, s.active, s.admission_date, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student with its guardians, enrollments and documents.
func (r *StudentRepository) FindByID(ctx context.Context, id, schoolID string) (*models.StudentDetail, error) {
	const query = `SELECT s.id, s.school_id, s.user_id, s.admission_number, s.first_name, s.last_name, s.gender, s.birth_date, s.email, s.phone, s.address, s.status, s.active, s.admission_date, s.created_at, s.updated_at
        FROM students s WHERE s.id = $1 AND s.school_id = $2`
	var detail models.StudentDetail
	if err := r.db.GetContext(ctx, &detail.Student, query, id, schoolID); err != nil {
		return nil, err
	}

	const guardianQuery = `SELECT g.id, g.school_id, g.full_name, g.phone, g.email, g.relation, g.created_at
        FROM guardians g JOIN student_guardians sg ON sg.guardian_id = g.id WHERE sg.student_id = $1`
	if err := r.db.SelectContext(ctx, &detail.Guardians, guardianQuery, id); err != nil {
		return nil, fmt.Errorf("load guardians: %w", err)
	}

	const enrollmentQuery = `SELECT id, student_id, class_id, section_id, academic_year, roll_number, status, joined_at
        FROM enrollments WHERE student_id = $1 ORDER BY joined_at DESC`
	if err := r.db.SelectContext(ctx, &detail.Enrollments, enrollmentQuery, id); err != nil {
		return nil, fmt.Errorf("load enrollments: %w", err)
	}

	const documentQuery = `SELECT id, student_id, name, url, mime_type, size, created_at
        FROM documents WHERE student_id = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &detail.Documents, documentQuery, id); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	return &detail, nil
}

// FindPendingByID fetches a student only if it is a pending application in
// the given school.
func (r *StudentRepository) FindPendingByID(ctx context.Context, id, schoolID string) (*models.Student, error) {
	const query = `SELECT id, school_id, user_id, admission_number, first_name, last_name, gender, birth_date, email, phone, address, status, active, admission_date, created_at, updated_at
        FROM students WHERE id = $1 AND school_id = $2 AND status = $3`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id, schoolID, models.StudentStatusPending); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByAdmissionNumber checks whether an admission number is taken within
// a school, optionally excluding one record. This is an optimisation; the
// unique index on (school_id, admission_number) remains the source of truth
// under concurrent writes.
func (r *StudentRepository) ExistsByAdmissionNumber(ctx context.Context, number, schoolID, excludeID string) (bool, error) {
	query := "SELECT 1 FROM students WHERE admission_number = $1 AND school_id = $2"
	args := []interface{}{number, schoolID}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check admission number: %w", err)
	}
	return true, nil
}

// Update modifies the mutable contact fields of an existing student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, gender = :gender, birth_date = :birth_date, email = :email, phone = :phone, address = :address, active = :active, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, id, schoolID string) error {
	const query = `UPDATE students SET active = false, updated_at = $3 WHERE id = $1 AND school_id = $2`
	if _, err := r.db.ExecContext(ctx, query, id, schoolID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// CreateDocument attaches an uploaded file to an existing student outside
// the provisioning transaction.
func (r *StudentRepository) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, student_id, name, url, mime_type, size, created_at)
        VALUES (:id, :student_id, :name, :url, :mime_type, :size, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}
