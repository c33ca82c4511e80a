package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studybridge/studybridge-api/internal/models"
)

// AppointmentRepository handles persistence of appointments.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs the repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `id, student_id, agent_id, scheduled_at, topic, details, status, agent_message, created_at, updated_at`

// ErrWindowConflict is returned by CreateIfFree when the requested window
// overlaps an existing appointment for the same agent.
var ErrWindowConflict = fmt.Errorf("appointment window conflict")

// CreateIfFree atomically checks the agent's calendar for an overlapping
// one-hour window and inserts the appointment when the slot is free. The
// check and insert run in one transaction holding a per-agent advisory lock,
// so two concurrent bookings for the same agent serialize instead of both
// passing the read-then-write check.
func (r *AppointmentRepository) CreateIfFree(ctx context.Context, appt *models.Appointment) error {
	if appt.ID == "" {
		appt.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	if appt.Status == "" {
		appt.Status = models.AppointmentPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, appt.AgentID); err != nil {
		return fmt.Errorf("acquire agent booking lock: %w", err)
	}

	// Symmetric interval overlap for fixed one-hour windows: an existing
	// appointment conflicts iff its start lies strictly within one hour of
	// the new start on either side.
	const conflictQuery = `SELECT COUNT(*) FROM appointments
WHERE agent_id = $1 AND scheduled_at > $2 AND scheduled_at < $3`
	var conflicts int
	windowStart := appt.ScheduledAt.Add(-models.AppointmentWindow)
	windowEnd := appt.ScheduledAt.Add(models.AppointmentWindow)
	if err := tx.GetContext(ctx, &conflicts, conflictQuery, appt.AgentID, windowStart, windowEnd); err != nil {
		return fmt.Errorf("check booking conflict: %w", err)
	}
	if conflicts > 0 {
		return ErrWindowConflict
	}

	const insertQuery = `INSERT INTO appointments (id, student_id, agent_id, scheduled_at, topic, details, status, agent_message, created_at, updated_at)
VALUES (:id, :student_id, :agent_id, :scheduled_at, :topic, :details, :status, :agent_message, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, appt); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

// FindByID returns an appointment by its ID.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE id = $1`, appointmentColumns)
	var appt models.Appointment
	if err := r.db.GetContext(ctx, &appt, query, id); err != nil {
		return nil, err
	}
	return &appt, nil
}

// ListPendingForAgent returns the agent's pending queue ordered by scheduled
// time, joined with the student display name.
func (r *AppointmentRepository) ListPendingForAgent(ctx context.Context, agentID string) ([]models.AppointmentDetail, error) {
	const query = `SELECT a.id, a.student_id, a.agent_id, a.scheduled_at, a.topic, a.details, a.status, a.agent_message, a.created_at, a.updated_at,
su.full_name AS student_name
FROM appointments a
JOIN users su ON su.id = a.student_id
WHERE a.agent_id = $1 AND a.status = $2
ORDER BY a.scheduled_at ASC`
	var appts []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appts, query, agentID, models.AppointmentPending); err != nil {
		return nil, fmt.Errorf("list pending appointments: %w", err)
	}
	return appts, nil
}

// ListForUser returns appointments where the user is the student or the
// agent, optionally filtered by status and a case-insensitive substring
// search over topic and details, ordered by ascending scheduled time.
func (r *AppointmentRepository) ListForUser(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.AgentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.agent_id = $%d", len(args)+1))
		args = append(args, filter.AgentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(a.topic ILIKE $%d OR a.details ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.agent_id, a.scheduled_at, a.topic, a.details, a.status, a.agent_message, a.created_at, a.updated_at,
su.full_name AS student_name, au.full_name AS agent_name
FROM appointments a
JOIN users su ON su.id = a.student_id
JOIN users au ON au.id = a.agent_id%s
ORDER BY a.scheduled_at ASC`, clause)

	var appts []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appts, query, args...); err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// UpdateStatus sets the status and optional agent message.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, message *string) error {
	const query = `UPDATE appointments SET status = $2, agent_message = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, message, time.Now().UTC()); err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return nil
}

// Delete removes an appointment row.
func (r *AppointmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM appointments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
