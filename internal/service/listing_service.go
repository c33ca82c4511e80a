package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
)

type universityRepository interface {
	List(ctx context.Context, filter models.ListingFilter) ([]models.University, int, error)
	FindByID(ctx context.Context, id string) (*models.University, error)
	Create(ctx context.Context, u *models.University) error
	Update(ctx context.Context, u *models.University) error
	Delete(ctx context.Context, id string) error
}

type jobListingRepository interface {
	List(ctx context.Context, filter models.ListingFilter) ([]models.Job, int, error)
	FindByID(ctx context.Context, id string) (*models.Job, error)
	Create(ctx context.Context, j *models.Job) error
	Update(ctx context.Context, j *models.Job) error
	Delete(ctx context.Context, id string) error
}

type scholarshipRepository interface {
	List(ctx context.Context, filter models.ListingFilter) ([]models.Scholarship, int, error)
	FindByID(ctx context.Context, id string) (*models.Scholarship, error)
	Create(ctx context.Context, s *models.Scholarship) error
	Update(ctx context.Context, s *models.Scholarship) error
	Delete(ctx context.Context, id string) error
}

// UniversityRequest describes university create/update payloads.
type UniversityRequest struct {
	Name         string     `json:"name" validate:"required"`
	Country      string     `json:"country" validate:"required"`
	City         *string    `json:"city,omitempty"`
	Description  string     `json:"description" validate:"required"`
	TuitionPerYr *float64   `json:"tuition_per_year,omitempty" validate:"omitempty,gte=0"`
	Website      *string    `json:"website,omitempty" validate:"omitempty,url"`
	Ranking      *int       `json:"ranking,omitempty" validate:"omitempty,gt=0"`
}

// JobListingRequest describes job listing create/update payloads.
type JobListingRequest struct {
	Title       string     `json:"title" validate:"required"`
	Company     string     `json:"company" validate:"required"`
	Country     string     `json:"country" validate:"required"`
	Description string     `json:"description" validate:"required"`
	SalaryMin   *float64   `json:"salary_min,omitempty" validate:"omitempty,gte=0"`
	SalaryMax   *float64   `json:"salary_max,omitempty" validate:"omitempty,gte=0"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

// ScholarshipRequest describes scholarship create/update payloads.
type ScholarshipRequest struct {
	Name        string     `json:"name" validate:"required"`
	Provider    string     `json:"provider" validate:"required"`
	Country     string     `json:"country" validate:"required"`
	Description string     `json:"description" validate:"required"`
	Amount      *float64   `json:"amount,omitempty" validate:"omitempty,gte=0"`
	Deadline    *time.Time `json:"deadline,omitempty"`
}

type universityListPage struct {
	Items []models.University `json:"items"`
	Total int                 `json:"total"`
}

type jobListPage struct {
	Items []models.Job `json:"items"`
	Total int          `json:"total"`
}

type scholarshipListPage struct {
	Items []models.Scholarship `json:"items"`
	Total int                  `json:"total"`
}

// ListingService manages the public university, job, and scholarship
// catalogs with a read-through cache over list queries.
type ListingService struct {
	universities universityRepository
	jobs         jobListingRepository
	scholarships scholarshipRepository
	cache        *CacheService
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewListingService constructs ListingService.
func NewListingService(universities universityRepository, jobs jobListingRepository, scholarships scholarshipRepository, cache *CacheService, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ListingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{
		universities: universities,
		jobs:         jobs,
		scholarships: scholarships,
		cache:        cache,
		cacheTTL:     cacheTTL,
		validator:    validate,
		logger:       logger,
	}
}

func listingCacheKey(kind string, filter models.ListingFilter) string {
	return fmt.Sprintf("listings:%s:%s:%s:%d:%d:%s:%s",
		kind, filter.Search, filter.Country, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)
}

func (s *ListingService) pagination(filter models.ListingFilter, total int) *models.Pagination {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return &models.Pagination{Page: page, PageSize: size, TotalCount: total}
}

// ListUniversities returns active universities matching the filter.
func (s *ListingService) ListUniversities(ctx context.Context, filter models.ListingFilter) ([]models.University, *models.Pagination, error) {
	key := listingCacheKey("universities", filter)
	var cached universityListPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, s.pagination(filter, cached.Total), nil
	}

	items, total, err := s.universities.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list universities")
	}
	if err := s.cache.Set(ctx, key, universityListPage{Items: items, Total: total}, s.cacheTTL); err != nil {
		s.logger.Debug("university cache write skipped", zap.Error(err))
	}
	return items, s.pagination(filter, total), nil
}

// GetUniversity returns a single university.
func (s *ListingService) GetUniversity(ctx context.Context, id string) (*models.University, error) {
	u, err := s.universities.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load university")
	}
	return u, nil
}

// CreateUniversity adds a university listing owned by the caller.
func (s *ListingService) CreateUniversity(ctx context.Context, creatorID string, req UniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	u := &models.University{
		Name:         req.Name,
		Country:      req.Country,
		City:         req.City,
		Description:  req.Description,
		TuitionPerYr: req.TuitionPerYr,
		Website:      req.Website,
		Ranking:      req.Ranking,
		Active:       true,
		CreatedBy:    creatorID,
	}
	if err := s.universities.Create(ctx, u); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create university")
	}
	s.invalidate(ctx, "universities")
	return u, nil
}

// UpdateUniversity edits a listing owned by the caller. Admins may edit any.
func (s *ListingService) UpdateUniversity(ctx context.Context, id string, claims *models.JWTClaims, req UniversityRequest) (*models.University, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid university payload")
	}
	u, err := s.GetUniversity(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireListingOwner(u.CreatedBy, claims); err != nil {
		return nil, err
	}
	u.Name = req.Name
	u.Country = req.Country
	u.City = req.City
	u.Description = req.Description
	u.TuitionPerYr = req.TuitionPerYr
	u.Website = req.Website
	u.Ranking = req.Ranking
	if err := s.universities.Update(ctx, u); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update university")
	}
	s.invalidate(ctx, "universities")
	return u, nil
}

// DeleteUniversity removes a listing owned by the caller.
func (s *ListingService) DeleteUniversity(ctx context.Context, id string, claims *models.JWTClaims) error {
	u, err := s.GetUniversity(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireListingOwner(u.CreatedBy, claims); err != nil {
		return err
	}
	if err := s.universities.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "university not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete university")
	}
	s.invalidate(ctx, "universities")
	return nil
}

// ListJobs returns active job listings matching the filter.
func (s *ListingService) ListJobs(ctx context.Context, filter models.ListingFilter) ([]models.Job, *models.Pagination, error) {
	key := listingCacheKey("jobs", filter)
	var cached jobListPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, s.pagination(filter, cached.Total), nil
	}

	items, total, err := s.jobs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list jobs")
	}
	if err := s.cache.Set(ctx, key, jobListPage{Items: items, Total: total}, s.cacheTTL); err != nil {
		s.logger.Debug("job cache write skipped", zap.Error(err))
	}
	return items, s.pagination(filter, total), nil
}

// GetJob returns a single job listing.
func (s *ListingService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	j, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load job")
	}
	return j, nil
}

// CreateJob adds a job listing owned by the caller.
func (s *ListingService) CreateJob(ctx context.Context, creatorID string, req JobListingRequest) (*models.Job, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	if req.SalaryMin != nil && req.SalaryMax != nil && *req.SalaryMin > *req.SalaryMax {
		return nil, appErrors.Clone(appErrors.ErrValidation, "salary_min cannot exceed salary_max")
	}
	j := &models.Job{
		Title:       req.Title,
		Company:     req.Company,
		Country:     req.Country,
		Description: req.Description,
		SalaryMin:   req.SalaryMin,
		SalaryMax:   req.SalaryMax,
		Deadline:    req.Deadline,
		Active:      true,
		CreatedBy:   creatorID,
	}
	if err := s.jobs.Create(ctx, j); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create job")
	}
	s.invalidate(ctx, "jobs")
	return j, nil
}

// UpdateJob edits a job listing owned by the caller.
func (s *ListingService) UpdateJob(ctx context.Context, id string, claims *models.JWTClaims, req JobListingRequest) (*models.Job, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid job payload")
	}
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireListingOwner(j.CreatedBy, claims); err != nil {
		return nil, err
	}
	j.Title = req.Title
	j.Company = req.Company
	j.Country = req.Country
	j.Description = req.Description
	j.SalaryMin = req.SalaryMin
	j.SalaryMax = req.SalaryMax
	j.Deadline = req.Deadline
	if err := s.jobs.Update(ctx, j); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update job")
	}
	s.invalidate(ctx, "jobs")
	return j, nil
}

// DeleteJob removes a job listing owned by the caller.
func (s *ListingService) DeleteJob(ctx context.Context, id string, claims *models.JWTClaims) error {
	j, err := s.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireListingOwner(j.CreatedBy, claims); err != nil {
		return err
	}
	if err := s.jobs.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "job not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete job")
	}
	s.invalidate(ctx, "jobs")
	return nil
}

// ListScholarships returns active scholarships matching the filter.
func (s *ListingService) ListScholarships(ctx context.Context, filter models.ListingFilter) ([]models.Scholarship, *models.Pagination, error) {
	key := listingCacheKey("scholarships", filter)
	var cached scholarshipListPage
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached.Items, s.pagination(filter, cached.Total), nil
	}

	items, total, err := s.scholarships.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scholarships")
	}
	if err := s.cache.Set(ctx, key, scholarshipListPage{Items: items, Total: total}, s.cacheTTL); err != nil {
		s.logger.Debug("scholarship cache write skipped", zap.Error(err))
	}
	return items, s.pagination(filter, total), nil
}

// GetScholarship returns a single scholarship.
func (s *ListingService) GetScholarship(ctx context.Context, id string) (*models.Scholarship, error) {
	sch, err := s.scholarships.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load scholarship")
	}
	return sch, nil
}

// CreateScholarship adds a scholarship listing owned by the caller.
func (s *ListingService) CreateScholarship(ctx context.Context, creatorID string, req ScholarshipRequest) (*models.Scholarship, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship payload")
	}
	sch := &models.Scholarship{
		Name:        req.Name,
		Provider:    req.Provider,
		Country:     req.Country,
		Description: req.Description,
		Amount:      req.Amount,
		Deadline:    req.Deadline,
		Active:      true,
		CreatedBy:   creatorID,
	}
	if err := s.scholarships.Create(ctx, sch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create scholarship")
	}
	s.invalidate(ctx, "scholarships")
	return sch, nil
}

// UpdateScholarship edits a scholarship listing owned by the caller.
func (s *ListingService) UpdateScholarship(ctx context.Context, id string, claims *models.JWTClaims, req ScholarshipRequest) (*models.Scholarship, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scholarship payload")
	}
	sch, err := s.GetScholarship(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireListingOwner(sch.CreatedBy, claims); err != nil {
		return nil, err
	}
	sch.Name = req.Name
	sch.Provider = req.Provider
	sch.Country = req.Country
	sch.Description = req.Description
	sch.Amount = req.Amount
	sch.Deadline = req.Deadline
	if err := s.scholarships.Update(ctx, sch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update scholarship")
	}
	s.invalidate(ctx, "scholarships")
	return sch, nil
}

// DeleteScholarship removes a scholarship listing owned by the caller.
func (s *ListingService) DeleteScholarship(ctx context.Context, id string, claims *models.JWTClaims) error {
	sch, err := s.GetScholarship(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireListingOwner(sch.CreatedBy, claims); err != nil {
		return err
	}
	if err := s.scholarships.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "scholarship not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete scholarship")
	}
	s.invalidate(ctx, "scholarships")
	return nil
}

func (s *ListingService) requireListingOwner(createdBy string, claims *models.JWTClaims) error {
	if claims.Role == models.RoleAdmin {
		return nil
	}
	if createdBy != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "listing belongs to another user")
	}
	return nil
}

func (s *ListingService) invalidate(ctx context.Context, kind string) {
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("listings:%s:*", kind)); err != nil {
		s.logger.Warn("listing cache invalidation failed", zap.String("kind", kind), zap.Error(err))
	}
}
