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

// ReviewRepository handles persistence of agent reviews and keeps the
// agent profile rating aggregate in step with the review rows.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, agent_id, student_id, rating, comment, created_at, updated_at`

// Create inserts a review and refreshes the agent aggregate in one transaction.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now

	return r.withAggregate(ctx, review.AgentID, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO reviews (id, agent_id, student_id, rating, comment, created_at, updated_at)
VALUES (:id, :agent_id, :student_id, :rating, :comment, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, review); err != nil {
			return fmt.Errorf("create review: %w", err)
		}
		return nil
	})
}

// Update rewrites the rating and comment of a review.
func (r *ReviewRepository) Update(ctx context.Context, review *models.Review) error {
	review.UpdatedAt = time.Now().UTC()
	return r.withAggregate(ctx, review.AgentID, func(tx *sqlx.Tx) error {
		const query = `UPDATE reviews SET rating = :rating, comment = :comment, updated_at = :updated_at WHERE id = :id`
		if _, err := tx.NamedExecContext(ctx, query, review); err != nil {
			return fmt.Errorf("update review: %w", err)
		}
		return nil
	})
}

// Delete removes a review row and refreshes the agent aggregate.
func (r *ReviewRepository) Delete(ctx context.Context, id, agentID string) error {
	return r.withAggregate(ctx, agentID, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete review: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// FindByID returns a review by identifier.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews WHERE id = $1`, reviewColumns)
	var review models.Review
	if err := r.db.GetContext(ctx, &review, query, id); err != nil {
		return nil, err
	}
	return &review, nil
}

// ExistsForPair reports whether the student already reviewed the agent.
func (r *ReviewRepository) ExistsForPair(ctx context.Context, agentID, studentID string) (bool, error) {
	const query = `SELECT 1 FROM reviews WHERE agent_id = $1 AND student_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, agentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check review exists: %w", err)
	}
	return true, nil
}

// ListForAgent returns an agent's reviews joined with author names, newest first.
func (r *ReviewRepository) ListForAgent(ctx context.Context, agentID string) ([]models.ReviewDetail, error) {
	const query = `SELECT rv.id, rv.agent_id, rv.student_id, rv.rating, rv.comment, rv.created_at, rv.updated_at,
su.full_name AS student_name
FROM reviews rv
JOIN users su ON su.id = rv.student_id
WHERE rv.agent_id = $1
ORDER BY rv.created_at DESC`
	var reviews []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &reviews, query, agentID); err != nil {
		return nil, fmt.Errorf("list agent reviews: %w", err)
	}
	return reviews, nil
}

// withAggregate runs the mutation and recomputes the agent's rating
// aggregate in a single transaction.
func (r *ReviewRepository) withAggregate(ctx context.Context, agentID string, mutate func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := mutate(tx); err != nil {
		return err
	}

	const aggregate = `UPDATE agent_profiles SET
avg_rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE agent_id = $1), 0),
review_count = (SELECT COUNT(*) FROM reviews WHERE agent_id = $1),
updated_at = $2
WHERE user_id = $1`
	if _, err := tx.ExecContext(ctx, aggregate, agentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("refresh agent rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	return nil
}
