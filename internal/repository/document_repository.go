package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studybridge/studybridge-api/internal/models"
)

// DocumentRepository handles persistence of exchanged documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `id, appointment_id, student_id, description, file_path, file_name, mime_type, size_bytes, uploaded_at`

// Create inserts a new document record.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, appointment_id, student_id, description, file_path, file_name, mime_type, size_bytes, uploaded_at)
VALUES (:id, :appointment_id, :student_id, :description, :file_path, :file_name, :mime_type, :size_bytes, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID returns a document by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListForAppointment returns an appointment's documents, newest first,
// optionally filtered by a case-insensitive substring over the description.
func (r *DocumentRepository) ListForAppointment(ctx context.Context, appointmentID, search string) ([]models.DocumentDetail, error) {
	query := `SELECT d.id, d.appointment_id, d.student_id, d.description, d.file_path, d.file_name, d.mime_type, d.size_bytes, d.uploaded_at,
u.full_name AS uploader_name
FROM documents d
JOIN users u ON u.id = d.student_id
WHERE d.appointment_id = $1`
	args := []interface{}{appointmentID}
	if search != "" {
		query += " AND d.description ILIKE $2"
		args = append(args, "%"+search+"%")
	}
	query += " ORDER BY d.uploaded_at DESC"

	var docs []models.DocumentDetail
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// UpdateDescription changes a document's description.
func (r *DocumentRepository) UpdateDescription(ctx context.Context, id, description string) error {
	const query = `UPDATE documents SET description = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, description, id)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a document row.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
