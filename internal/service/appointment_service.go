package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/repository"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type appointmentRepository interface {
	CreateIfFree(ctx context.Context, appt *models.Appointment) error
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	ListPendingForAgent(ctx context.Context, agentID string) ([]models.AppointmentDetail, error)
	ListForUser(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, message *string) error
	Delete(ctx context.Context, id string) error
}

type agentReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// BookAppointmentRequest describes appointment creation payload.
type BookAppointmentRequest struct {
	AgentID     string    `json:"agent_id" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	Topic       string    `json:"topic" validate:"required"`
	Details     string    `json:"details" validate:"required"`
}

// DecideAppointmentRequest carries the agent's decision for a pending appointment.
type DecideAppointmentRequest struct {
	Status  string  `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	Message *string `json:"message,omitempty"`
}

// AppointmentService orchestrates the appointment lifecycle.
type AppointmentService struct {
	repo      appointmentRepository
	users     agentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService constructs AppointmentService.
func NewAppointmentService(repo appointmentRepository, users agentReader, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{repo: repo, users: users, validator: validate, logger: logger}
}

// Book creates a PENDING appointment on an agent's calendar. The hour-long
// window starting at the requested time must not overlap any existing
// appointment for that agent.
func (s *AppointmentService) Book(ctx context.Context, studentID string, req BookAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid appointment payload")
	}
	topic := models.AppointmentTopic(req.Topic)
	if !topic.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported appointment topic")
	}

	agent, err := s.users.FindByID(ctx, req.AgentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent")
	}
	if agent.Role != models.RoleAgent || !agent.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
	}

	appt := &models.Appointment{
		StudentID:   studentID,
		AgentID:     req.AgentID,
		ScheduledAt: req.ScheduledAt.UTC(),
		Topic:       topic,
		Details:     req.Details,
		Status:      models.AppointmentPending,
	}
	if err := s.repo.CreateIfFree(ctx, appt); err != nil {
		if errors.Is(err, repository.ErrWindowConflict) {
			return nil, appErrors.Clone(appErrors.ErrSlotTaken, "time window already booked")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	s.logger.Info("appointment booked",
		zap.String("appointment_id", appt.ID),
		zap.String("agent_id", appt.AgentID),
		zap.Time("scheduled_at", appt.ScheduledAt))
	return appt, nil
}

// ListPendingForAgent returns the agent's PENDING requests awaiting a decision.
func (s *AppointmentService) ListPendingForAgent(ctx context.Context, agentID string) ([]models.AppointmentDetail, error) {
	appts, err := s.repo.ListPendingForAgent(ctx, agentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appts, nil
}

// ListMine returns the caller's appointments, scoped by their role.
func (s *AppointmentService) ListMine(ctx context.Context, claims *models.JWTClaims, search string) ([]models.AppointmentDetail, error) {
	filter := models.AppointmentFilter{Search: search}
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleAgent:
		filter.AgentID = claims.UserID
	default:
	}
	appts, err := s.repo.ListForUser(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appts, nil
}

// ListMineApproved returns only the caller's APPROVED appointments.
func (s *AppointmentService) ListMineApproved(ctx context.Context, claims *models.JWTClaims) ([]models.AppointmentDetail, error) {
	filter := models.AppointmentFilter{Status: models.AppointmentApproved}
	switch claims.Role {
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	case models.RoleAgent:
		filter.AgentID = claims.UserID
	default:
	}
	appts, err := s.repo.ListForUser(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	return appts, nil
}

// Decide applies an agent's APPROVED/REJECTED decision to a pending
// appointment. Only the agent the appointment was booked with may decide,
// and decided appointments cannot be decided again.
func (s *AppointmentService) Decide(ctx context.Context, appointmentID, agentID string, req DecideAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	status := models.AppointmentStatus(req.Status)

	appt, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.AgentID != agentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another agent")
	}
	if appt.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "appointment has already been decided")
	}

	if err := s.repo.UpdateStatus(ctx, appt.ID, status, req.Message); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	appt.Status = status
	appt.AgentMessage = req.Message
	appt.UpdatedAt = time.Now().UTC()

	s.logger.Info("appointment decided",
		zap.String("appointment_id", appt.ID),
		zap.String("status", string(status)))
	return appt, nil
}

// Cancel removes a student's own appointment. Approved appointments are
// locked in and cannot be cancelled.
func (s *AppointmentService) Cancel(ctx context.Context, appointmentID, studentID string) error {
	appt, err := s.loadAppointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appt.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "appointment belongs to another student")
	}
	if appt.Status == models.AppointmentApproved {
		return appErrors.Clone(appErrors.ErrInvalidState, "approved appointments cannot be deleted")
	}

	if err := s.repo.Delete(ctx, appt.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	return nil
}

func (s *AppointmentService) loadAppointment(ctx context.Context, id string) (*models.Appointment, error) {
	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return appt, nil
}
