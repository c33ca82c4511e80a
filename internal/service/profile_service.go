package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type profileRepository interface {
	FindStudentByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	UpsertStudent(ctx context.Context, profile *models.StudentProfile) error
	FindAgentByUserID(ctx context.Context, userID string) (*models.AgentProfile, error)
	UpsertAgent(ctx context.Context, profile *models.AgentProfile) error
	SetAgentVerified(ctx context.Context, userID string, verified bool) error
	ListAgents(ctx context.Context, filter models.AgentFilter) ([]models.AgentDirectoryEntry, int, error)
}

// UpdateStudentProfileRequest describes mutable student profile fields.
type UpdateStudentProfileRequest struct {
	Nationality     *string `json:"nationality,omitempty"`
	CurrentCountry  *string `json:"current_country,omitempty"`
	EducationLevel  *string `json:"education_level,omitempty"`
	FieldOfStudy    *string `json:"field_of_study,omitempty"`
	TargetCountries *string `json:"target_countries,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	Bio             *string `json:"bio,omitempty"`
}

// UpdateAgentProfileRequest describes mutable agent profile fields.
type UpdateAgentProfileRequest struct {
	AgencyName  *string `json:"agency_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Specialties *string `json:"specialties,omitempty"`
	Countries   *string `json:"countries,omitempty"`
	Phone       *string `json:"phone,omitempty"`
}

// VerifyAgentRequest toggles the admin-managed verification badge.
type VerifyAgentRequest struct {
	Verified bool `json:"verified"`
}

// ProfileService manages student and agent profiles and the public agent
// directory.
type ProfileService struct {
	repo      profileRepository
	users     agentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProfileService constructs ProfileService.
func NewProfileService(repo profileRepository, users agentReader, validate *validator.Validate, logger *zap.Logger) *ProfileService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{repo: repo, users: users, validator: validate, logger: logger}
}

// GetStudent returns the caller's student profile. A user who has not filled
// in a profile yet gets an empty one back.
func (s *ProfileService) GetStudent(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.repo.FindStudentByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.StudentProfile{UserID: userID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

// UpdateStudent creates or updates the caller's student profile.
func (s *ProfileService) UpdateStudent(ctx context.Context, userID string, req UpdateStudentProfileRequest) (*models.StudentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	profile := &models.StudentProfile{
		UserID:          userID,
		Nationality:     req.Nationality,
		CurrentCountry:  req.CurrentCountry,
		EducationLevel:  req.EducationLevel,
		FieldOfStudy:    req.FieldOfStudy,
		TargetCountries: req.TargetCountries,
		Phone:           req.Phone,
		Bio:             req.Bio,
	}
	if err := s.repo.UpsertStudent(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save student profile")
	}
	return profile, nil
}

// GetAgent returns an agent's profile by user ID.
func (s *ProfileService) GetAgent(ctx context.Context, userID string) (*models.AgentProfile, error) {
	profile, err := s.repo.FindAgentByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.AgentProfile{UserID: userID}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent profile")
	}
	return profile, nil
}

// UpdateAgent creates or updates the caller's agent profile. Verification
// and the rating aggregate are never touched here.
func (s *ProfileService) UpdateAgent(ctx context.Context, userID string, req UpdateAgentProfileRequest) (*models.AgentProfile, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}
	profile := &models.AgentProfile{
		UserID:      userID,
		AgencyName:  req.AgencyName,
		Bio:         req.Bio,
		Specialties: req.Specialties,
		Countries:   req.Countries,
		Phone:       req.Phone,
	}
	if err := s.repo.UpsertAgent(ctx, profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save agent profile")
	}
	return s.GetAgent(ctx, userID)
}

// VerifyAgent sets the verification badge on an agent profile. Admin only,
// enforced at the route level.
func (s *ProfileService) VerifyAgent(ctx context.Context, agentUserID string, req VerifyAgentRequest) error {
	agent, err := s.users.FindByID(ctx, agentUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "agent not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load agent")
	}
	if agent.Role != models.RoleAgent {
		return appErrors.Clone(appErrors.ErrNotFound, "agent not found")
	}
	if err := s.repo.SetAgentVerified(ctx, agentUserID, req.Verified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "agent profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update verification")
	}
	s.logger.Info("agent verification updated", zap.String("agent_id", agentUserID), zap.Bool("verified", req.Verified))
	return nil
}

// ListAgents returns the public agent directory.
func (s *ProfileService) ListAgents(ctx context.Context, filter models.AgentFilter) ([]models.AgentDirectoryEntry, *models.Pagination, error) {
	agents, total, err := s.repo.ListAgents(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list agents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return agents, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}
