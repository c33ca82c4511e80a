package models

import "time"

// PaymentStatus mirrors the appointment lifecycle for payment records.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentApproved PaymentStatus = "APPROVED"
	PaymentRejected PaymentStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentApproved || s == PaymentRejected
}

// Payment records money sent from a student to an agent. Payments are not
// tied to an appointment.
type Payment struct {
	ID          string        `db:"id" json:"id"`
	StudentID   string        `db:"student_id" json:"student_id"`
	AgentID     string        `db:"agent_id" json:"agent_id"`
	Amount      float64       `db:"amount" json:"amount"`
	PaidOn      time.Time     `db:"paid_on" json:"paid_on"`
	Description string        `db:"description" json:"description"`
	Institution string        `db:"institution" json:"institution"`
	Notes       *string       `db:"notes" json:"notes,omitempty"`
	SlipPath    *string       `db:"slip_path" json:"-"`
	Status      PaymentStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail joins a payment with counterpart display names.
type PaymentDetail struct {
	Payment
	StudentName string `db:"student_name" json:"student_name,omitempty"`
	AgentName   string `db:"agent_name" json:"agent_name,omitempty"`
}
