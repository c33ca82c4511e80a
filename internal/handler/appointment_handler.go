package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/service"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
	"github.com/studybridge/studybridge-api/pkg/response"
)

type appointmentService interface {
	Book(ctx context.Context, studentID string, req service.BookAppointmentRequest) (*models.Appointment, error)
	ListPendingForAgent(ctx context.Context, agentID string) ([]models.AppointmentDetail, error)
	ListMine(ctx context.Context, claims *models.JWTClaims, search string) ([]models.AppointmentDetail, error)
	ListMineApproved(ctx context.Context, claims *models.JWTClaims) ([]models.AppointmentDetail, error)
	Decide(ctx context.Context, appointmentID, agentID string, req service.DecideAppointmentRequest) (*models.Appointment, error)
	Cancel(ctx context.Context, appointmentID, studentID string) error
}

// AppointmentHandler exposes the appointment lifecycle endpoints.
type AppointmentHandler struct {
	service appointmentService
}

// NewAppointmentHandler constructs handler.
func NewAppointmentHandler(svc appointmentService) *AppointmentHandler {
	return &AppointmentHandler{service: svc}
}

// Book godoc
// @Summary Book an appointment with an agent
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.BookAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Book(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid appointment payload"))
		return
	}

	appt, err := h.service.Book(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, appt)
}

// PendingForAgent godoc
// @Summary Pending appointment requests for an agent
// @Tags Appointments
// @Produce json
// @Param agentId path string true "Agent ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /appointments/agent/{agentId} [get]
func (h *AppointmentHandler) PendingForAgent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	agentID := c.Param("agentId")
	if agentID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "agents may only view their own requests"))
		return
	}

	appts, err := h.service.ListPendingForAgent(c.Request.Context(), agentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appts, nil)
}

// Mine godoc
// @Summary List the caller's appointments
// @Tags Appointments
// @Produce json
// @Param search query string false "Substring match over topic and details"
// @Success 200 {object} response.Envelope
// @Router /appointments/my [get]
func (h *AppointmentHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	appts, err := h.service.ListMine(c.Request.Context(), claims, c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appts, nil)
}

// MineApproved godoc
// @Summary List the caller's approved appointments
// @Tags Appointments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /appointments/my/approved [get]
func (h *AppointmentHandler) MineApproved(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	appts, err := h.service.ListMineApproved(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appts, nil)
}

// Decide godoc
// @Summary Approve or reject a pending appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param appointmentId path string true "Appointment ID"
// @Param payload body service.DecideAppointmentRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{appointmentId} [put]
func (h *AppointmentHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecideAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	appt, err := h.service.Decide(c.Request.Context(), c.Param("appointmentId"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, appt, nil)
}

// Cancel godoc
// @Summary Delete the caller's own appointment
// @Tags Appointments
// @Produce json
// @Param appointmentId path string true "Appointment ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /appointments/{appointmentId} [delete]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Cancel(c.Request.Context(), c.Param("appointmentId"), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
