package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/middleware"
	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/service"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type appointmentServiceMock struct {
	bookResp   *models.Appointment
	bookErr    error
	decideResp *models.Appointment
	decideErr  error
	cancelErr  error
	listResp   []models.AppointmentDetail
	listErr    error
}

func (m *appointmentServiceMock) Book(ctx context.Context, studentID string, req service.BookAppointmentRequest) (*models.Appointment, error) {
	return m.bookResp, m.bookErr
}

func (m *appointmentServiceMock) ListPendingForAgent(ctx context.Context, agentID string) ([]models.AppointmentDetail, error) {
	return m.listResp, m.listErr
}

func (m *appointmentServiceMock) ListMine(ctx context.Context, claims *models.JWTClaims, search string) ([]models.AppointmentDetail, error) {
	return m.listResp, m.listErr
}

func (m *appointmentServiceMock) ListMineApproved(ctx context.Context, claims *models.JWTClaims) ([]models.AppointmentDetail, error) {
	return m.listResp, m.listErr
}

func (m *appointmentServiceMock) Decide(ctx context.Context, appointmentID, agentID string, req service.DecideAppointmentRequest) (*models.Appointment, error) {
	return m.decideResp, m.decideErr
}

func (m *appointmentServiceMock) Cancel(ctx context.Context, appointmentID, studentID string) error {
	return m.cancelErr
}

func TestAppointmentHandlerBook(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &appointmentServiceMock{
		bookResp: &models.Appointment{ID: "appt-1", Status: models.AppointmentPending},
	}
	handler := NewAppointmentHandler(mockSvc)

	payload, _ := json.Marshal(service.BookAppointmentRequest{
		AgentID:     "agent-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Topic:       string(models.TopicUniversity),
		Details:     "Admission requirements",
	})
	c, w := newGinContext(http.MethodPost, "/appointments", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Book(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestAppointmentHandlerBookSlotTaken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &appointmentServiceMock{
		bookErr: appErrors.Clone(appErrors.ErrSlotTaken, "time window already booked"),
	}
	handler := NewAppointmentHandler(mockSvc)

	payload, _ := json.Marshal(service.BookAppointmentRequest{
		AgentID:     "agent-1",
		ScheduledAt: time.Now().Add(48 * time.Hour),
		Topic:       string(models.TopicUniversity),
		Details:     "Admission requirements",
	})
	c, w := newGinContext(http.MethodPost, "/appointments", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Book(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAppointmentHandlerPendingForAgentForbidsOthers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&appointmentServiceMock{})

	c, w := newGinContext(http.MethodGet, "/appointments/agent/agent-2", nil)
	c.Params = gin.Params{{Key: "agentId", Value: "agent-2"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})

	handler.PendingForAgent(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAppointmentHandlerCancelApproved(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &appointmentServiceMock{
		cancelErr: appErrors.Clone(appErrors.ErrInvalidState, "approved appointments cannot be deleted"),
	}
	handler := NewAppointmentHandler(mockSvc)

	c, w := newGinContext(http.MethodDelete, "/appointments/appt-1", nil)
	c.Params = gin.Params{{Key: "appointmentId", Value: "appt-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Cancel(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandlerDecide(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &appointmentServiceMock{
		decideResp: &models.Appointment{ID: "appt-1", Status: models.AppointmentApproved},
	}
	handler := NewAppointmentHandler(mockSvc)

	payload, _ := json.Marshal(service.DecideAppointmentRequest{Status: string(models.AppointmentApproved)})
	c, w := newGinContext(http.MethodPut, "/appointments/appt-1", payload)
	c.Params = gin.Params{{Key: "appointmentId", Value: "appt-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})

	handler.Decide(c)
	require.Equal(t, http.StatusOK, w.Code)
}
