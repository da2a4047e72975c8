package models

import "time"

// Guardian is a parent or custodian linked to one or more students.
type Guardian struct {
	ID        string    `db:"id" json:"id"`
	SchoolID  string    `db:"school_id" json:"school_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	Relation  string    `db:"relation" json:"relation"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// StudentGuardian links a guardian to a student. Rows are created only
// inside the provisioning transaction, never independently.
type StudentGuardian struct {
	StudentID  string `db:"student_id" json:"student_id"`
	GuardianID string `db:"guardian_id" json:"guardian_id"`
}
