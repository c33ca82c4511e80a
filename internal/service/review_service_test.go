package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type mockReviewRepo struct {
	reviews map[string]models.Review
	deleted []string
}

func (m *mockReviewRepo) Create(ctx context.Context, review *models.Review) error {
	if m.reviews == nil {
		m.reviews = make(map[string]models.Review)
	}
	if review.ID == "" {
		review.ID = "review-new"
	}
	m.reviews[review.ID] = *review
	return nil
}

func (m *mockReviewRepo) Update(ctx context.Context, review *models.Review) error {
	if _, ok := m.reviews[review.ID]; !ok {
		return sql.ErrNoRows
	}
	m.reviews[review.ID] = *review
	return nil
}

func (m *mockReviewRepo) Delete(ctx context.Context, id, agentID string) error {
	if _, ok := m.reviews[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.reviews, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockReviewRepo) FindByID(ctx context.Context, id string) (*models.Review, error) {
	if r, ok := m.reviews[id]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReviewRepo) ExistsForPair(ctx context.Context, agentID, studentID string) (bool, error) {
	for _, r := range m.reviews {
		if r.AgentID == agentID && r.StudentID == studentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockReviewRepo) ListForAgent(ctx context.Context, agentID string) ([]models.ReviewDetail, error) {
	var list []models.ReviewDetail
	for _, r := range m.reviews {
		if r.AgentID == agentID {
			list = append(list, models.ReviewDetail{Review: r})
		}
	}
	return list, nil
}

func newReviewService(repo *mockReviewRepo, users *mockUserReader) *ReviewService {
	return NewReviewService(repo, users, nil, nil)
}

func TestReviewServiceSubmit(t *testing.T) {
	repo := &mockReviewRepo{}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newReviewService(repo, users)

	review, err := svc.Submit(context.Background(), "agent-1", "student-1", SubmitReviewRequest{Rating: 5, Comment: "very helpful"})
	require.NoError(t, err)
	assert.Equal(t, 5, review.Rating)
	assert.Len(t, repo.reviews, 1)
}

func TestReviewServiceSubmitRejectsRatingOutOfBounds(t *testing.T) {
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newReviewService(&mockReviewRepo{}, users)

	for _, rating := range []int{0, 6, -1} {
		_, err := svc.Submit(context.Background(), "agent-1", "student-1", SubmitReviewRequest{Rating: rating, Comment: "meh"})
		require.Error(t, err, "rating %d should fail", rating)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestReviewServiceSubmitRejectsDuplicate(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"review-1": {ID: "review-1", AgentID: "agent-1", StudentID: "student-1", Rating: 4},
	}}
	users := &mockUserReader{users: map[string]*models.User{"agent-1": activeAgent("agent-1")}}
	svc := newReviewService(repo, users)

	_, err := svc.Submit(context.Background(), "agent-1", "student-1", SubmitReviewRequest{Rating: 2, Comment: "changed my mind"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
}

func TestReviewServiceSubmitUnknownAgent(t *testing.T) {
	svc := newReviewService(&mockReviewRepo{}, &mockUserReader{})

	_, err := svc.Submit(context.Background(), "missing", "student-1", SubmitReviewRequest{Rating: 3, Comment: "ok"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReviewServiceUpdateEnforcesOwnership(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"review-1": {ID: "review-1", AgentID: "agent-1", StudentID: "student-1", Rating: 4},
	}}
	svc := newReviewService(repo, &mockUserReader{})

	_, err := svc.Update(context.Background(), "review-1", "student-2", SubmitReviewRequest{Rating: 1, Comment: "sabotage"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	updated, err := svc.Update(context.Background(), "review-1", "student-1", SubmitReviewRequest{Rating: 3, Comment: "revised"})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Rating)
}

func TestReviewServiceDelete(t *testing.T) {
	repo := &mockReviewRepo{reviews: map[string]models.Review{
		"review-1": {ID: "review-1", AgentID: "agent-1", StudentID: "student-1", Rating: 4},
	}}
	svc := newReviewService(repo, &mockUserReader{})

	err := svc.Delete(context.Background(), "review-1", "student-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Delete(context.Background(), "review-1", "student-1"))
	assert.Equal(t, []string{"review-1"}, repo.deleted)
}
