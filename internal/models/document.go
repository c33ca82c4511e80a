package models

import "time"

// Document represents a file exchanged under an approved appointment.
type Document struct {
	ID            string    `db:"id" json:"id"`
	AppointmentID string    `db:"appointment_id" json:"appointment_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Description   string    `db:"description" json:"description"`
	FilePath      string    `db:"file_path" json:"-"`
	FileName      string    `db:"file_name" json:"file_name"`
	MimeType      string    `db:"mime_type" json:"mime_type"`
	SizeBytes     int64     `db:"size_bytes" json:"size_bytes"`
	UploadedAt    time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// DocumentDetail joins a document with its uploader display name.
type DocumentDetail struct {
	Document
	UploaderName string `db:"uploader_name" json:"uploader_name"`
}
