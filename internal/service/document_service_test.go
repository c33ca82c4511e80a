package service

import (
	"context"
	"database/sql"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type mockDocumentRepo struct {
	documents map[string]models.Document
	deleted   []string
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	if m.documents == nil {
		m.documents = make(map[string]models.Document)
	}
	if doc.ID == "" {
		doc.ID = "doc-new"
	}
	m.documents[doc.ID] = *doc
	return nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if d, ok := m.documents[id]; ok {
		return &d, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) ListForAppointment(ctx context.Context, appointmentID, search string) ([]models.DocumentDetail, error) {
	var list []models.DocumentDetail
	for _, d := range m.documents {
		if d.AppointmentID != appointmentID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(d.Description), strings.ToLower(search)) {
			continue
		}
		list = append(list, models.DocumentDetail{Document: d})
	}
	return list, nil
}

func (m *mockDocumentRepo) UpdateDescription(ctx context.Context, id, description string) error {
	d, ok := m.documents[id]
	if !ok {
		return sql.ErrNoRows
	}
	d.Description = description
	m.documents[id] = d
	return nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.documents[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.documents, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type fakeStorage struct {
	saved   []string
	removed []string
	missing map[string]bool
}

func (f *fakeStorage) SaveStream(filename string, r io.Reader) (string, error) {
	f.saved = append(f.saved, filename)
	return filename, nil
}

func (f *fakeStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func (f *fakeStorage) Remove(filename string) error {
	if f.missing[filename] {
		return os.ErrNotExist
	}
	f.removed = append(f.removed, filename)
	return nil
}

func newDocumentService(repo *mockDocumentRepo, appts *mockAppointmentRepo, store *fakeStorage) *DocumentService {
	return NewDocumentService(repo, appts, store, DocumentLimits{}, nil, nil)
}

func approvedAppointment(id, studentID, agentID string) models.Appointment {
	return models.Appointment{ID: id, StudentID: studentID, AgentID: agentID, Status: models.AppointmentApproved}
}

func TestDocumentServiceUploadRequiresApprovedAppointment(t *testing.T) {
	repo := &mockDocumentRepo{}
	appts := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-pending": {ID: "appt-pending", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentPending},
	}}
	svc := newDocumentService(repo, appts, &fakeStorage{})

	req := UploadDocumentRequest{Description: "transcript", FileName: "transcript.pdf", MimeType: "application/pdf", SizeBytes: 100}

	_, err := svc.Upload(context.Background(), "appt-pending", "student-1", req, strings.NewReader("data"))
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "not found or not approved")

	_, err = svc.Upload(context.Background(), "appt-missing", "student-1", req, strings.NewReader("data"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadRejectsForeignAppointment(t *testing.T) {
	appts := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": approvedAppointment("appt-1", "student-1", "agent-1"),
	}}
	svc := newDocumentService(&mockDocumentRepo{}, appts, &fakeStorage{})

	_, err := svc.Upload(context.Background(), "appt-1", "student-2",
		UploadDocumentRequest{Description: "transcript", FileName: "transcript.pdf", MimeType: "application/pdf", SizeBytes: 100},
		strings.NewReader("data"))
	require.Error(t, err)
	// Reported identically to a missing appointment.
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadStoresOpaqueName(t *testing.T) {
	repo := &mockDocumentRepo{}
	store := &fakeStorage{}
	appts := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": approvedAppointment("appt-1", "student-1", "agent-1"),
	}}
	svc := newDocumentService(repo, appts, store)

	doc, err := svc.Upload(context.Background(), "appt-1", "student-1",
		UploadDocumentRequest{Description: "transcript", FileName: "My Transcript.PDF", MimeType: "application/pdf", SizeBytes: 100},
		strings.NewReader("data"))
	require.NoError(t, err)

	require.Len(t, store.saved, 1)
	assert.NotContains(t, store.saved[0], "Transcript")
	assert.True(t, strings.HasSuffix(store.saved[0], ".pdf"))
	assert.Equal(t, "My Transcript.PDF", doc.FileName)
	assert.Equal(t, "appt-1", doc.AppointmentID)
}

func TestDocumentServiceUploadWithoutFile(t *testing.T) {
	svc := newDocumentService(&mockDocumentRepo{}, &mockAppointmentRepo{}, &fakeStorage{})

	_, err := svc.Upload(context.Background(), "appt-1", "student-1",
		UploadDocumentRequest{Description: "transcript", FileName: "t.pdf"}, nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, "no file uploaded", appErr.Message)
}

func TestDocumentServiceUploadEnforcesSizeLimit(t *testing.T) {
	appts := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": approvedAppointment("appt-1", "student-1", "agent-1"),
	}}
	svc := NewDocumentService(&mockDocumentRepo{}, appts, &fakeStorage{}, DocumentLimits{MaxFileSizeBytes: 10}, nil, nil)

	_, err := svc.Upload(context.Background(), "appt-1", "student-1",
		UploadDocumentRequest{Description: "big", FileName: "big.pdf", MimeType: "application/pdf", SizeBytes: 11},
		strings.NewReader("data"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceDeleteToleratesMissingFile(t *testing.T) {
	repo := &mockDocumentRepo{documents: map[string]models.Document{
		"doc-1": {ID: "doc-1", AppointmentID: "appt-1", StudentID: "student-1", FilePath: "gone.pdf"},
	}}
	store := &fakeStorage{missing: map[string]bool{"gone.pdf": true}}
	svc := newDocumentService(repo, &mockAppointmentRepo{}, store)

	err := svc.Delete(context.Background(), "doc-1", "student-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, repo.deleted)
}

func TestDocumentServiceDeleteEnforcesOwnership(t *testing.T) {
	repo := &mockDocumentRepo{documents: map[string]models.Document{
		"doc-1": {ID: "doc-1", AppointmentID: "appt-1", StudentID: "student-1", FilePath: "file.pdf"},
	}}
	svc := newDocumentService(repo, &mockAppointmentRepo{}, &fakeStorage{})

	err := svc.Delete(context.Background(), "doc-1", "student-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestDocumentServiceListRestrictedToParties(t *testing.T) {
	repo := &mockDocumentRepo{documents: map[string]models.Document{
		"doc-1": {ID: "doc-1", AppointmentID: "appt-1", StudentID: "student-1", Description: "transcript"},
		"doc-2": {ID: "doc-2", AppointmentID: "appt-1", StudentID: "student-1", Description: "passport scan"},
	}}
	appts := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": approvedAppointment("appt-1", "student-1", "agent-1"),
	}}
	svc := newDocumentService(repo, appts, &fakeStorage{})

	docs, err := svc.List(context.Background(), "appt-1", &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent}, "")
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	filtered, err := svc.List(context.Background(), "appt-1", &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}, "trans")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "doc-1", filtered[0].ID)

	_, err = svc.List(context.Background(), "appt-1", &models.JWTClaims{UserID: "student-9", Role: models.RoleStudent}, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUpdateDescription(t *testing.T) {
	repo := &mockDocumentRepo{documents: map[string]models.Document{
		"doc-1": {ID: "doc-1", AppointmentID: "appt-1", StudentID: "student-1", Description: "old"},
	}}
	svc := newDocumentService(repo, &mockAppointmentRepo{}, &fakeStorage{})

	updated, err := svc.Update(context.Background(), "doc-1", "student-1", UpdateDocumentRequest{Description: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Description)
	assert.Equal(t, "new", repo.documents["doc-1"].Description)
}
