package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments map[string]models.Payment
	deleted  []string
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.payments == nil {
		m.payments = make(map[string]models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "payment-new"
	}
	m.payments[payment.ID] = *payment
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) ListForAgent(ctx context.Context, agentID string) ([]models.PaymentDetail, error) {
	var list []models.PaymentDetail
	for _, p := range m.payments {
		if p.AgentID == agentID {
			list = append(list, models.PaymentDetail{Payment: p})
		}
	}
	return list, nil
}

func (m *mockPaymentRepo) ListForStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	var list []models.PaymentDetail
	for _, p := range m.payments {
		if p.StudentID == studentID {
			list = append(list, models.PaymentDetail{Payment: p})
		}
	}
	return list, nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	p, ok := m.payments[id]
	if !ok {
		return sql.ErrNoRows
	}
	p.Status = status
	m.payments[id] = p
	return nil
}

func (m *mockPaymentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.payments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.payments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func newPaymentService(repo *mockPaymentRepo, users *mockUserReader, store *fakeStorage) *PaymentService {
	return NewPaymentService(repo, users, store, nil, nil)
}

func validPaymentRequest() RecordPaymentRequest {
	return RecordPaymentRequest{
		Amount:      1250.50,
		PaidOn:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "application fee",
		Institution: "University of Oslo",
	}
}

func TestPaymentServiceRecord(t *testing.T) {
	repo := &mockPaymentRepo{}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newPaymentService(repo, users, &fakeStorage{})

	payment, err := svc.Record(context.Background(), "agent-1", "student-1", validPaymentRequest(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, payment.Status)
	assert.Nil(t, payment.SlipPath)
}

func TestPaymentServiceRecordWithSlip(t *testing.T) {
	repo := &mockPaymentRepo{}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	store := &fakeStorage{}
	svc := newPaymentService(repo, users, store)

	req := validPaymentRequest()
	req.SlipFileName = "My Receipt.JPG"

	payment, err := svc.Record(context.Background(), "agent-1", "student-1", req, strings.NewReader("img"))
	require.NoError(t, err)
	require.NotNil(t, payment.SlipPath)
	require.Len(t, store.saved, 1)
	assert.NotContains(t, store.saved[0], "Receipt")
	assert.True(t, strings.HasSuffix(store.saved[0], ".jpg"))
}

func TestPaymentServiceRecordRejectsNonPositiveAmount(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newPaymentService(&mockPaymentRepo{}, users, &fakeStorage{})

	req := validPaymentRequest()
	req.Amount = 0

	_, err := svc.Record(context.Background(), "agent-1", "student-1", req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceRecordUnknownAgent(t *testing.T) {
	svc := newPaymentService(&mockPaymentRepo{}, &mockUserReader{}, &fakeStorage{})

	_, err := svc.Record(context.Background(), "missing", "student-1", validPaymentRequest(), nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceDecideEnforcesOwnershipAndState(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"payment-1": {ID: "payment-1", StudentID: "student-1", AgentID: "agent-1", Status: models.PaymentPending},
	}}
	svc := newPaymentService(repo, &mockUserReader{}, &fakeStorage{})

	_, err := svc.Decide(context.Background(), "payment-1", "agent-2", DecidePaymentRequest{Status: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	decided, err := svc.Decide(context.Background(), "payment-1", "agent-1", DecidePaymentRequest{Status: "APPROVED"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentApproved, decided.Status)

	_, err = svc.Decide(context.Background(), "payment-1", "agent-1", DecidePaymentRequest{Status: "REJECTED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
}

func TestPaymentServiceDeleteBlocksApproved(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"payment-1": {ID: "payment-1", StudentID: "student-1", AgentID: "agent-1", Status: models.PaymentApproved},
	}}
	svc := newPaymentService(repo, &mockUserReader{}, &fakeStorage{})

	err := svc.Delete(context.Background(), "payment-1", "student-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
	assert.Empty(t, repo.deleted)
}

func TestPaymentServiceDeleteRemovesSlip(t *testing.T) {
	slip := "slip.jpg"
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"payment-1": {ID: "payment-1", StudentID: "student-1", AgentID: "agent-1", Status: models.PaymentPending, SlipPath: &slip},
	}}
	store := &fakeStorage{}
	svc := newPaymentService(repo, &mockUserReader{}, store)

	require.NoError(t, svc.Delete(context.Background(), "payment-1", "student-1"))
	assert.Equal(t, []string{"slip.jpg"}, store.removed)
	assert.Equal(t, []string{"payment-1"}, repo.deleted)
}

func TestPaymentServiceDeleteToleratesMissingSlip(t *testing.T) {
	slip := "gone.jpg"
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"payment-1": {ID: "payment-1", StudentID: "student-1", AgentID: "agent-1", Status: models.PaymentPending, SlipPath: &slip},
	}}
	store := &fakeStorage{missing: map[string]bool{"gone.jpg": true}}
	svc := newPaymentService(repo, &mockUserReader{}, store)

	require.NoError(t, svc.Delete(context.Background(), "payment-1", "student-1"))
	assert.Equal(t, []string{"payment-1"}, repo.deleted)
}

func TestPaymentServiceListScoped(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"payment-1": {ID: "payment-1", StudentID: "student-1", AgentID: "agent-1"},
		"payment-2": {ID: "payment-2", StudentID: "student-2", AgentID: "agent-1"},
		"payment-3": {ID: "payment-3", StudentID: "student-1", AgentID: "agent-2"},
	}}
	svc := newPaymentService(repo, &mockUserReader{}, &fakeStorage{})

	forAgent, err := svc.ListForAgent(context.Background(), "agent-1")
	require.NoError(t, err)
	assert.Len(t, forAgent, 2)

	forStudent, err := svc.ListForStudent(context.Background(), "student-1")
	require.NoError(t, err)
	assert.Len(t, forStudent, 2)
}
