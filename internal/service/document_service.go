package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	ListForAppointment(ctx context.Context, appointmentID, search string) ([]models.DocumentDetail, error)
	UpdateDescription(ctx context.Context, id, description string) error
	Delete(ctx context.Context, id string) error
}

type appointmentReader interface {
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
}

type documentStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
	Remove(filename string) error
}

// UploadDocumentRequest describes a document upload. The file itself arrives
// as a multipart stream alongside this payload.
type UploadDocumentRequest struct {
	Description string `json:"description" validate:"required"`
	FileName    string `json:"-"`
	MimeType    string `json:"-"`
	SizeBytes   int64  `json:"-"`
}

// UpdateDocumentRequest changes a document's description.
type UpdateDocumentRequest struct {
	Description string `json:"description" validate:"required"`
}

// DocumentLimits bounds accepted uploads.
type DocumentLimits struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService gates file exchange behind approved appointments.
type DocumentService struct {
	repo         documentRepository
	appointments appointmentReader
	storage      documentStorage
	limits       DocumentLimits
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentRepository, appointments appointmentReader, storage documentStorage, limits DocumentLimits, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, appointments: appointments, storage: storage, limits: limits, validator: validate, logger: logger}
}

// Upload stores a file under an appointment. The appointment must exist,
// belong to the uploading student, and be APPROVED; a missing or unapproved
// appointment is reported identically so callers cannot probe other
// students' bookings.
func (s *DocumentService) Upload(ctx context.Context, appointmentID, studentID string, req UploadDocumentRequest, file io.Reader) (*models.Document, error) {
	if file == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no file uploaded")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if s.limits.MaxFileSizeBytes > 0 && req.SizeBytes > s.limits.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the maximum allowed size")
	}
	if !s.mimeAllowed(req.MimeType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported file type")
	}

	appt, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found or not approved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if appt.StudentID != studentID || appt.Status != models.AppointmentApproved {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found or not approved")
	}

	// Stored name is an opaque UUID; the client-supplied name is kept only
	// as display metadata.
	storedName := uuid.NewString() + strings.ToLower(filepath.Ext(req.FileName))
	relPath, err := s.storage.SaveStream(storedName, file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	doc := &models.Document{
		AppointmentID: appt.ID,
		StudentID:     studentID,
		Description:   req.Description,
		FilePath:      relPath,
		FileName:      req.FileName,
		MimeType:      req.MimeType,
		SizeBytes:     req.SizeBytes,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if removeErr := s.storage.Remove(relPath); removeErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}

	s.logger.Info("document uploaded",
		zap.String("document_id", doc.ID),
		zap.String("appointment_id", appt.ID),
		zap.Int64("size_bytes", doc.SizeBytes))
	return doc, nil
}

// List returns an appointment's documents for either party of the
// appointment.
func (s *DocumentService) List(ctx context.Context, appointmentID string, claims *models.JWTClaims, search string) ([]models.DocumentDetail, error) {
	appt, err := s.appointments.FindByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if !s.partyOf(appt, claims) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a party of this appointment")
	}

	docs, err := s.repo.ListForAppointment(ctx, appointmentID, search)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, nil
}

// Download opens a stored document for either party of its appointment.
func (s *DocumentService) Download(ctx context.Context, documentID string, claims *models.JWTClaims) (*models.Document, *os.File, error) {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	appt, err := s.appointments.FindByID(ctx, doc.AppointmentID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if !s.partyOf(appt, claims) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not a party of this appointment")
	}

	file, err := s.storage.Open(doc.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return doc, file, nil
}

// Update changes the description of the caller's own document.
func (s *DocumentService) Update(ctx context.Context, documentID, studentID string, req UpdateDocumentRequest) (*models.Document, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "document belongs to another student")
	}
	if err := s.repo.UpdateDescription(ctx, doc.ID, req.Description); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	doc.Description = req.Description
	return doc, nil
}

// Delete removes the caller's own document together with its stored file.
// A file already missing on disk is tolerated; the record is still removed.
func (s *DocumentService) Delete(ctx context.Context, documentID, studentID string) error {
	doc, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "document belongs to another student")
	}

	if err := s.storage.Remove(doc.FilePath); err != nil {
		if !os.IsNotExist(err) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove file")
		}
		s.logger.Warn("stored file already missing", zap.String("document_id", doc.ID), zap.String("path", doc.FilePath))
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	return nil
}

func (s *DocumentService) loadDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) partyOf(appt *models.Appointment, claims *models.JWTClaims) bool {
	if claims.Role == models.RoleAdmin {
		return true
	}
	return appt.StudentID == claims.UserID || appt.AgentID == claims.UserID
}

func (s *DocumentService) mimeAllowed(mime string) bool {
	if len(s.limits.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.limits.AllowedMIMEs {
		if strings.EqualFold(allowed, mime) {
			return true
		}
	}
	return false
}
