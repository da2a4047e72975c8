package models

import "time"

// EnrollmentStatusActive marks the current enrollment of a student.
const EnrollmentStatusActive = "ACTIVE"

// Enrollment places a student in a class section for an academic year.
type Enrollment struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	ClassID      string    `db:"class_id" json:"class_id"`
	SectionID    string    `db:"section_id" json:"section_id"`
	AcademicYear string    `db:"academic_year" json:"academic_year"`
	RollNumber   string    `db:"roll_number" json:"roll_number"`
	Status       string    `db:"status" json:"status"`
	JoinedAt     time.Time `db:"joined_at" json:"joined_at"`
}
