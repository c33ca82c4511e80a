package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studybridge/studybridge-api/internal/models"
)

// PaymentRepository handles persistence of the payment ledger.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, student_id, agent_id, amount, paid_on, description, institution, notes, slip_path, status, created_at, updated_at`

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	const query = `INSERT INTO payments (id, student_id, agent_id, amount, paid_on, description, institution, notes, slip_path, status, created_at, updated_at)
VALUES (:id, :student_id, :agent_id, :amount, :paid_on, :description, :institution, :notes, :slip_path, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by identifier.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListForAgent returns payments addressed to the agent, newest first,
// joined with the paying student's display name.
func (r *PaymentRepository) ListForAgent(ctx context.Context, agentID string) ([]models.PaymentDetail, error) {
	const query = `SELECT p.id, p.student_id, p.agent_id, p.amount, p.paid_on, p.description, p.institution, p.notes, p.slip_path, p.status, p.created_at, p.updated_at,
su.full_name AS student_name
FROM payments p
JOIN users su ON su.id = p.student_id
WHERE p.agent_id = $1
ORDER BY p.created_at DESC`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, agentID); err != nil {
		return nil, fmt.Errorf("list agent payments: %w", err)
	}
	return payments, nil
}

// ListForStudent returns payments made by the student, newest first,
// joined with the receiving agent's display name.
func (r *PaymentRepository) ListForStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	const query = `SELECT p.id, p.student_id, p.agent_id, p.amount, p.paid_on, p.description, p.institution, p.notes, p.slip_path, p.status, p.created_at, p.updated_at,
au.full_name AS agent_name
FROM payments p
JOIN users au ON au.id = p.agent_id
WHERE p.student_id = $1
ORDER BY p.created_at DESC`
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// UpdateStatus sets the payment status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	const query = `UPDATE payments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// Delete removes a payment row.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM payments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
