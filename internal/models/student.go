package models

import "time"

// StudentStatus tracks the provisioning lifecycle of a student record.
type StudentStatus string

const (
	// StudentStatusPending marks an application awaiting approval.
	StudentStatusPending StudentStatus = "PENDING"
	// StudentStatusAccepted marks an approved application with an enrollment.
	StudentStatusAccepted StudentStatus = "ACCEPTED"
	// StudentStatusProvisioned marks a directly registered student.
	StudentStatusProvisioned StudentStatus = "PROVISIONED"
)

// Student represents a learner registered with a school. UserID references
// the login identity owned by the auth service and stays nil until
// provisioning succeeds.
type Student struct {
	ID              string        `db:"id" json:"id"`
	SchoolID        string        `db:"school_id" json:"school_id"`
	UserID          *string       `db:"user_id" json:"user_id,omitempty"`
	AdmissionNumber string        `db:"admission_number" json:"admission_number"`
	FirstName       string        `db:"first_name" json:"first_name"`
	LastName        string        `db:"last_name" json:"last_name"`
	Gender          string        `db:"gender" json:"gender"`
	BirthDate       time.Time     `db:"birth_date" json:"birth_date"`
	Email           string        `db:"email" json:"email"`
	Phone           string        `db:"phone" json:"phone"`
	Address         string        `db:"address" json:"address"`
	Status          StudentStatus `db:"status" json:"status"`
	Active          bool          `db:"active" json:"active"`
	AdmissionDate   time.Time     `db:"admission_date" json:"admission_date"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	SchoolID  string
	Search    string
	Status    StudentStatus
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// StudentDetail aggregates a student with its owned child records.
type StudentDetail struct {
	Student
	Guardians   []Guardian   `json:"guardians"`
	Enrollments []Enrollment `json:"enrollments"`
	Documents   []Document   `json:"documents"`
}
