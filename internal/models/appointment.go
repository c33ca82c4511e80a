package models

import "time"

// AppointmentWindow is the fixed duration an appointment occupies on an
// agent's calendar, starting at its scheduled time.
const AppointmentWindow = time.Hour

// AppointmentTopic classifies what an appointment is about.
type AppointmentTopic string

const (
	TopicJob         AppointmentTopic = "JOB"
	TopicUniversity  AppointmentTopic = "UNIVERSITY_ADMISSION"
	TopicScholarship AppointmentTopic = "SCHOLARSHIP_OPPORTUNITY"
	TopicOther       AppointmentTopic = "OTHER"
)

// Valid returns true when the topic is a supported value.
func (t AppointmentTopic) Valid() bool {
	switch t {
	case TopicJob, TopicUniversity, TopicScholarship, TopicOther:
		return true
	default:
		return false
	}
}

// AppointmentStatus is the lifecycle state of an appointment.
// PENDING is the only non-terminal state; APPROVED and REJECTED are terminal.
type AppointmentStatus string

const (
	AppointmentPending  AppointmentStatus = "PENDING"
	AppointmentApproved AppointmentStatus = "APPROVED"
	AppointmentRejected AppointmentStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentApproved, AppointmentRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status transition is allowed.
func (s AppointmentStatus) Terminal() bool {
	return s == AppointmentApproved || s == AppointmentRejected
}

// Appointment represents a booked consultation between a student and an agent.
type Appointment struct {
	ID           string            `db:"id" json:"id"`
	StudentID    string            `db:"student_id" json:"student_id"`
	AgentID      string            `db:"agent_id" json:"agent_id"`
	ScheduledAt  time.Time         `db:"scheduled_at" json:"scheduled_at"`
	Topic        AppointmentTopic  `db:"topic" json:"topic"`
	Details      string            `db:"details" json:"details"`
	Status       AppointmentStatus `db:"status" json:"status"`
	AgentMessage *string           `db:"agent_message" json:"agent_message,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// WindowEnd returns the exclusive end of the appointment's occupied window.
func (a Appointment) WindowEnd() time.Time {
	return a.ScheduledAt.Add(AppointmentWindow)
}

// AppointmentDetail joins an appointment with counterpart display names.
type AppointmentDetail struct {
	Appointment
	StudentName string `db:"student_name" json:"student_name,omitempty"`
	AgentName   string `db:"agent_name" json:"agent_name,omitempty"`
}

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	StudentID string
	AgentID   string
	Status    AppointmentStatus
	Search    string
}
