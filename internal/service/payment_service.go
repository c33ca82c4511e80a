package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListForAgent(ctx context.Context, agentID string) ([]models.PaymentDetail, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus) error
	Delete(ctx context.Context, id string) error
}

// RecordPaymentRequest describes a student-declared payment. A payment slip
// may be attached as a multipart stream.
type RecordPaymentRequest struct {
	Amount       float64   `json:"amount" validate:"required,gt=0"`
	PaidOn       time.Time `json:"paid_on" validate:"required"`
	Description  string    `json:"description" validate:"required"`
	Institution  string    `json:"institution" validate:"required"`
	Notes        *string   `json:"notes,omitempty"`
	SlipFileName string    `json:"-"`
}

// DecidePaymentRequest carries the agent's confirmation decision.
type DecidePaymentRequest struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED"`
}

// PaymentService maintains the declared payment ledger between students and
// agents.
type PaymentService struct {
	repo      paymentRepository
	users     agentReader
	storage   documentStorage
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService.
func NewPaymentService(repo paymentRepository, users agentReader, storage documentStorage, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{repo: repo, users: users, storage: storage, validator: validate, logger: logger}
}

// Record creates a PENDING payment declaration towards an agent.
func (s *PaymentService) Record(ctx context.Context, agentID, studentID string, req RecordPaymentRequest, slip io.Reader) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	agent, err := s.users.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent")
	}
	if agent.Role != models.RoleAgent || !agent.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
	}

	var slipPath *string
	if slip != nil {
		storedName := uuid.NewString() + strings.ToLower(filepath.Ext(req.SlipFileName))
		relPath, err := s.storage.SaveStream(storedName, slip)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store payment slip")
		}
		slipPath = &relPath
	}

	payment := &models.Payment{
		StudentID:   studentID,
		AgentID:     agentID,
		Amount:      req.Amount,
		PaidOn:      req.PaidOn.UTC(),
		Description: req.Description,
		Institution: req.Institution,
		Notes:       req.Notes,
		SlipPath:    slipPath,
		Status:      models.PaymentPending,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if slipPath != nil {
			if removeErr := s.storage.Remove(*slipPath); removeErr != nil {
				s.logger.Warn("failed to remove orphaned payment slip", zap.String("path", *slipPath), zap.Error(removeErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Info("payment recorded",
		zap.String("payment_id", payment.ID),
		zap.String("agent_id", agentID),
		zap.Float64("amount", payment.Amount))
	return payment, nil
}

// ListForAgent returns payments declared towards the agent.
func (s *PaymentService) ListForAgent(ctx context.Context, agentID string) ([]models.PaymentDetail, error) {
	payments, err := s.repo.ListForAgent(ctx, agentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ListForStudent returns payments declared by the student.
func (s *PaymentService) ListForStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	payments, err := s.repo.ListForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Decide lets the receiving agent confirm or reject a pending payment.
func (s *PaymentService) Decide(ctx context.Context, paymentID, agentID string, req DecidePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	status := models.PaymentStatus(req.Status)

	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.AgentID != agentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another agent")
	}
	if payment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "payment has already been decided")
	}

	if err := s.repo.UpdateStatus(ctx, payment.ID, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}
	payment.Status = status
	payment.UpdatedAt = time.Now().UTC()
	return payment, nil
}

// Delete removes a student's own payment declaration together with its slip.
// Approved payments are part of the confirmed ledger and cannot be deleted.
func (s *PaymentService) Delete(ctx context.Context, paymentID, studentID string) error {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	if payment.Status == models.PaymentApproved {
		return appErrors.Clone(appErrors.ErrInvalidState, "approved payments cannot be deleted")
	}

	if payment.SlipPath != nil {
		if err := s.storage.Remove(*payment.SlipPath); err != nil {
			if !os.IsNotExist(err) {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove payment slip")
			}
			s.logger.Warn("payment slip already missing", zap.String("payment_id", payment.ID), zap.String("path", *payment.SlipPath))
		}
	}

	if err := s.repo.Delete(ctx, payment.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	return nil
}

// OpenSlip returns the stored payment slip for either party of the payment.
func (s *PaymentService) OpenSlip(ctx context.Context, paymentID string, claims *models.JWTClaims) (*models.Payment, *os.File, error) {
	payment, err := s.loadPayment(ctx, paymentID)
	if err != nil {
		return nil, nil, err
	}
	if claims.Role != models.RoleAdmin && payment.StudentID != claims.UserID && payment.AgentID != claims.UserID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not a party of this payment")
	}
	if payment.SlipPath == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "payment has no slip attached")
	}
	file, err := s.storage.Open(*payment.SlipPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open payment slip")
	}
	return payment, file, nil
}

func (s *PaymentService) loadPayment(ctx context.Context, id string) (*models.Payment, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}
