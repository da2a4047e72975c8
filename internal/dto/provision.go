package dto

import (
	"time"

	"github.com/vidyalayaone/profile-api/internal/models"
)

// GuardianInput describes a guardian supplied with a new student.
type GuardianInput struct {
	FullName string `json:"full_name" validate:"required"`
	Relation string `json:"relation" validate:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" validate:"omitempty,email"`
}

// EnrollmentInput places the student into a class section.
type EnrollmentInput struct {
	ClassID      string `json:"class_id" validate:"required,uuid"`
	SectionID    string `json:"section_id" validate:"required,uuid"`
	AcademicYear string `json:"academic_year" validate:"required"`
	RollNumber   string `json:"roll_number"`
}

// DocumentInput references an already uploaded file to attach at creation.
type DocumentInput struct {
	Name     string `json:"name" validate:"required"`
	URL      string `json:"url" validate:"required"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// CreateStudentRequest is the payload for registering a new student with a
// login account.
type CreateStudentRequest struct {
	AdmissionNumber string          `json:"admission_number" validate:"required"`
	AdmissionDate   time.Time       `json:"admission_date" validate:"required"`
	FirstName       string          `json:"first_name" validate:"required"`
	LastName        string          `json:"last_name" validate:"required"`
	Gender          string          `json:"gender" validate:"required,oneof=MALE FEMALE OTHER"`
	BirthDate       time.Time       `json:"birth_date" validate:"required"`
	Email           string          `json:"email" validate:"required,email"`
	Phone           string          `json:"phone" validate:"required"`
	Address         string          `json:"address"`
	Guardians       []GuardianInput `json:"guardians" validate:"dive"`
	Enrollment      EnrollmentInput `json:"enrollment" validate:"required"`
	Documents       []DocumentInput `json:"documents" validate:"dive"`
}

// AcceptApplicationRequest approves a pending application and enrolls the
// student.
type AcceptApplicationRequest struct {
	AdmissionNumber string          `json:"admission_number" validate:"required"`
	AdmissionDate   time.Time       `json:"admission_date" validate:"required"`
	Enrollment      EnrollmentInput `json:"enrollment" validate:"required"`
}

// ProvisionResponse is returned once both the student record and the login
// identity exist and are linked. The generated password is never included;
// it travels only in the credentials email.
type ProvisionResponse struct {
	Student  *models.Student  `json:"student"`
	Identity *models.Identity `json:"identity"`
}

// UploadDocumentResponse describes a stored document.
type UploadDocumentResponse struct {
	Document *models.Document `json:"document"`
}
