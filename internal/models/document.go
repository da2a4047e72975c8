package models

import "time"

// Document is an uploaded file attached to a student record.
type Document struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Name      string    `db:"name" json:"name"`
	URL       string    `db:"url" json:"url"`
	MimeType  string    `db:"mime_type" json:"mime_type"`
	Size      int64     `db:"size" json:"size"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
