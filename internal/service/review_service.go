package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type reviewRepository interface {
	Create(ctx context.Context, review *models.Review) error
	Update(ctx context.Context, review *models.Review) error
	Delete(ctx context.Context, id, agentID string) error
	FindByID(ctx context.Context, id string) (*models.Review, error)
	ExistsForPair(ctx context.Context, agentID, studentID string) (bool, error)
	ListForAgent(ctx context.Context, agentID string) ([]models.ReviewDetail, error)
}

// SubmitReviewRequest describes review creation and update payloads.
type SubmitReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required"`
}

// ReviewService maintains the per-agent review ledger and its rating
// aggregate.
type ReviewService struct {
	repo      reviewRepository
	users     agentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReviewService constructs ReviewService.
func NewReviewService(repo reviewRepository, users agentReader, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{repo: repo, users: users, validator: validate, logger: logger}
}

// Submit creates a student's review of an agent. A student may review an
// agent at most once.
func (s *ReviewService) Submit(ctx context.Context, agentID, studentID string, req SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	agent, err := s.users.FindByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent")
	}
	if agent.Role != models.RoleAgent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "agent not found")
	}

	exists, err := s.repo.ExistsForPair(ctx, agentID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing review")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you have already reviewed this agent")
	}

	review := &models.Review{
		AgentID:   agentID,
		StudentID: studentID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
	}

	s.logger.Info("review submitted",
		zap.String("review_id", review.ID),
		zap.String("agent_id", agentID),
		zap.Int("rating", review.Rating))
	return review, nil
}

// ListForAgent returns an agent's reviews, newest first.
func (s *ReviewService) ListForAgent(ctx context.Context, agentID string) ([]models.ReviewDetail, error) {
	reviews, err := s.repo.ListForAgent(ctx, agentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	return reviews, nil
}

// Update edits the caller's own review.
func (s *ReviewService) Update(ctx context.Context, reviewID, studentID string, req SubmitReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	review, err := s.loadReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if review.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "review belongs to another student")
	}

	review.Rating = req.Rating
	review.Comment = req.Comment
	review.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}
	return review, nil
}

// Delete removes the caller's own review and refreshes the agent aggregate.
func (s *ReviewService) Delete(ctx context.Context, reviewID, studentID string) error {
	review, err := s.loadReview(ctx, reviewID)
	if err != nil {
		return err
	}
	if review.StudentID != studentID {
		return appErrors.Clone(appErrors.ErrForbidden, "review belongs to another student")
	}
	if err := s.repo.Delete(ctx, review.ID, review.AgentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	return nil
}

func (s *ReviewService) loadReview(ctx context.Context, id string) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	return review, nil
}
