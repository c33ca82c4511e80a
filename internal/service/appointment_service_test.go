package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/repository"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type mockAppointmentRepo struct {
	appointments map[string]models.Appointment
	deleted      []string
}

func (m *mockAppointmentRepo) CreateIfFree(ctx context.Context, appt *models.Appointment) error {
	for _, existing := range m.appointments {
		if existing.AgentID != appt.AgentID {
			continue
		}
		diff := appt.ScheduledAt.Sub(existing.ScheduledAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < models.AppointmentWindow {
			return repository.ErrWindowConflict
		}
	}
	if m.appointments == nil {
		m.appointments = make(map[string]models.Appointment)
	}
	if appt.ID == "" {
		appt.ID = "appt-" + appt.ScheduledAt.Format("150405")
	}
	m.appointments[appt.ID] = *appt
	return nil
}

func (m *mockAppointmentRepo) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	if a, ok := m.appointments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAppointmentRepo) ListPendingForAgent(ctx context.Context, agentID string) ([]models.AppointmentDetail, error) {
	var list []models.AppointmentDetail
	for _, a := range m.appointments {
		if a.AgentID == agentID && a.Status == models.AppointmentPending {
			list = append(list, models.AppointmentDetail{Appointment: a})
		}
	}
	return list, nil
}

func (m *mockAppointmentRepo) ListForUser(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error) {
	var list []models.AppointmentDetail
	for _, a := range m.appointments {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.AgentID != "" && a.AgentID != filter.AgentID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		list = append(list, models.AppointmentDetail{Appointment: a})
	}
	return list, nil
}

func (m *mockAppointmentRepo) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, message *string) error {
	a, ok := m.appointments[id]
	if !ok {
		return sql.ErrNoRows
	}
	a.Status = status
	a.AgentMessage = message
	m.appointments[id] = a
	return nil
}

func (m *mockAppointmentRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.appointments[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.appointments, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type mockUserReader struct {
	users map[string]*models.User
}

func (m *mockUserReader) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func activeAgent(id string) *models.User {
	return &models.User{ID: id, Role: models.RoleAgent, Active: true, FullName: "Agent " + id}
}

func newAppointmentService(repo *mockAppointmentRepo, users *mockUserReader) *AppointmentService {
	return NewAppointmentService(repo, users, nil, nil)
}

func TestAppointmentServiceBookRejectsSameSlot(t *testing.T) {
	repo := &mockAppointmentRepo{}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newAppointmentService(repo, users)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	req := BookAppointmentRequest{AgentID: "agent-1", ScheduledAt: start, Topic: "JOB", Details: "visa questions"}

	first, err := svc.Book(context.Background(), "student-1", req)
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, models.AppointmentPending, first.Status)

	_, err = svc.Book(context.Background(), "student-2", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestAppointmentServiceBookRejectsOverlappingWindow(t *testing.T) {
	repo := &mockAppointmentRepo{}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newAppointmentService(repo, users)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), "student-1", BookAppointmentRequest{
		AgentID: "agent-1", ScheduledAt: start, Topic: "JOB", Details: "first",
	})
	require.NoError(t, err)

	// 30 minutes later still falls inside the hour-long window.
	_, err = svc.Book(context.Background(), "student-2", BookAppointmentRequest{
		AgentID: "agent-1", ScheduledAt: start.Add(30 * time.Minute), Topic: "OTHER", Details: "second",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSlotTaken.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceBookAllowsAdjacentWindows(t *testing.T) {
	repo := &mockAppointmentRepo{}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newAppointmentService(repo, users)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), "student-1", BookAppointmentRequest{
		AgentID: "agent-1", ScheduledAt: start, Topic: "JOB", Details: "first",
	})
	require.NoError(t, err)

	second, err := svc.Book(context.Background(), "student-2", BookAppointmentRequest{
		AgentID: "agent-1", ScheduledAt: start.Add(61 * time.Minute), Topic: "OTHER", Details: "second",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, second.ID)
	assert.Len(t, repo.appointments, 2)
}

func TestAppointmentServiceBookDifferentAgentsSameTime(t *testing.T) {
	repo := &mockAppointmentRepo{}
	users := &mockUserReader{users: map[string]*models.User{
		"agent-1": activeAgent("agent-1"),
		"agent-2": activeAgent("agent-2"),
	}}
	svc := newAppointmentService(repo, users)

	start := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	_, err := svc.Book(context.Background(), "student-1", BookAppointmentRequest{
		AgentID: "agent-1", ScheduledAt: start, Topic: "JOB", Details: "first",
	})
	require.NoError(t, err)

	_, err = svc.Book(context.Background(), "student-1", BookAppointmentRequest{
		AgentID: "agent-2", ScheduledAt: start, Topic: "JOB", Details: "second",
	})
	require.NoError(t, err)
}

func TestAppointmentServiceBookUnknownAgent(t *testing.T) {
	svc := newAppointmentService(&mockAppointmentRepo{}, &mockUserReader{})

	_, err := svc.Book(context.Background(), "student-1", BookAppointmentRequest{
		AgentID:     "missing",
		ScheduledAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Topic:       "JOB",
		Details:     "details",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceBookRejectsBadTopic(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newAppointmentService(&mockAppointmentRepo{}, users)

	_, err := svc.Book(context.Background(), "student-1", BookAppointmentRequest{
		AgentID:     "agent-1",
		ScheduledAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		Topic:       "KARAOKE",
		Details:     "details",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceDecideEnforcesOwnership(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": {ID: "appt-1", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentPending},
	}}
	svc := newAppointmentService(repo, &mockUserReader{})

	_, err := svc.Decide(context.Background(), "appt-1", "agent-2", DecideAppointmentRequest{Status: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceDecideRejectsSecondDecision(t *testing.T) {
	msg := "see you then"
	repo := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": {ID: "appt-1", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentPending},
	}}
	svc := newAppointmentService(repo, &mockUserReader{})

	decided, err := svc.Decide(context.Background(), "appt-1", "agent-1", DecideAppointmentRequest{Status: "APPROVED", Message: &msg})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentApproved, decided.Status)
	require.NotNil(t, decided.AgentMessage)
	assert.Equal(t, msg, *decided.AgentMessage)

	_, err = svc.Decide(context.Background(), "appt-1", "agent-1", DecideAppointmentRequest{Status: "REJECTED"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestAppointmentServiceCancelBlocksApproved(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": {ID: "appt-1", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentApproved},
	}}
	svc := newAppointmentService(repo, &mockUserReader{})

	err := svc.Cancel(context.Background(), "appt-1", "student-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
	assert.Empty(t, repo.deleted)
}

func TestAppointmentServiceCancelPendingAndRejected(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": {ID: "appt-1", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentPending},
		"appt-2": {ID: "appt-2", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentRejected},
	}}
	svc := newAppointmentService(repo, &mockUserReader{})

	require.NoError(t, svc.Cancel(context.Background(), "appt-1", "student-1"))
	require.NoError(t, svc.Cancel(context.Background(), "appt-2", "student-1"))
	assert.ElementsMatch(t, []string{"appt-1", "appt-2"}, repo.deleted)
}

func TestAppointmentServiceCancelForeignAppointment(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": {ID: "appt-1", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentPending},
	}}
	svc := newAppointmentService(repo, &mockUserReader{})

	err := svc.Cancel(context.Background(), "appt-1", "student-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceListMineScopesByRole(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]models.Appointment{
		"appt-1": {ID: "appt-1", StudentID: "student-1", AgentID: "agent-1", Status: models.AppointmentPending},
		"appt-2": {ID: "appt-2", StudentID: "student-2", AgentID: "agent-1", Status: models.AppointmentApproved},
	}}
	svc := newAppointmentService(repo, &mockUserReader{})

	mine, err := svc.ListMine(context.Background(), &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent}, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "appt-1", mine[0].ID)

	agentAppts, err := svc.ListMine(context.Background(), &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent}, "")
	require.NoError(t, err)
	assert.Len(t, agentAppts, 2)

	approved, err := svc.ListMineApproved(context.Background(), &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, "appt-2", approved[0].ID)
}
