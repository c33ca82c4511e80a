package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/service"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
	"github.com/studybridge/studybridge-api/pkg/response"
)

// ListingHandler exposes the public catalog of universities, job openings and
// scholarships, plus the agent/admin authoring endpoints.
type ListingHandler struct {
	service *service.ListingService
}

// NewListingHandler constructs handler.
func NewListingHandler(svc *service.ListingService) *ListingHandler {
	return &ListingHandler{service: svc}
}

func listingFilterFromQuery(c *gin.Context) models.ListingFilter {
	filter := models.ListingFilter{
		Search:    c.Query("search"),
		Country:   c.Query("country"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	return filter
}

// Universities godoc
// @Summary List universities
// @Tags Listings
// @Produce json
// @Param search query string false "Substring match over name and description"
// @Param country query string false "Filter by country"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /universities [get]
func (h *ListingHandler) Universities(c *gin.Context) {
	universities, pagination, err := h.service.ListUniversities(c.Request.Context(), listingFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, universities, pagination)
}

// University godoc
// @Summary Get a university listing
// @Tags Listings
// @Produce json
// @Param id path string true "University ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /universities/{id} [get]
func (h *ListingHandler) University(c *gin.Context) {
	university, err := h.service.GetUniversity(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, university, nil)
}

// CreateUniversity godoc
// @Summary Create a university listing
// @Tags Listings
// @Accept json
// @Produce json
// @Param payload body service.UniversityRequest true "University payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /universities [post]
func (h *ListingHandler) CreateUniversity(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UniversityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid university payload"))
		return
	}

	university, err := h.service.CreateUniversity(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, university)
}

// UpdateUniversity godoc
// @Summary Update a university listing
// @Tags Listings
// @Accept json
// @Produce json
// @Param id path string true "University ID"
// @Param payload body service.UniversityRequest true "University payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /universities/{id} [put]
func (h *ListingHandler) UpdateUniversity(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UniversityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid university payload"))
		return
	}

	university, err := h.service.UpdateUniversity(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, university, nil)
}

// DeleteUniversity godoc
// @Summary Delete a university listing
// @Tags Listings
// @Produce json
// @Param id path string true "University ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /universities/{id} [delete]
func (h *ListingHandler) DeleteUniversity(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteUniversity(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Jobs godoc
// @Summary List job openings
// @Tags Listings
// @Produce json
// @Param search query string false "Substring match over title and description"
// @Param country query string false "Filter by country"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /jobs [get]
func (h *ListingHandler) Jobs(c *gin.Context) {
	jobs, pagination, err := h.service.ListJobs(c.Request.Context(), listingFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, pagination)
}

// Job godoc
// @Summary Get a job opening
// @Tags Listings
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id} [get]
func (h *ListingHandler) Job(c *gin.Context) {
	job, err := h.service.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// CreateJob godoc
// @Summary Create a job opening
// @Tags Listings
// @Accept json
// @Produce json
// @Param payload body service.JobListingRequest true "Job payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /jobs [post]
func (h *ListingHandler) CreateJob(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.JobListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid job payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, job)
}

// UpdateJob godoc
// @Summary Update a job opening
// @Tags Listings
// @Accept json
// @Produce json
// @Param id path string true "Job ID"
// @Param payload body service.JobListingRequest true "Job payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id} [put]
func (h *ListingHandler) UpdateJob(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.JobListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid job payload"))
		return
	}

	job, err := h.service.UpdateJob(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// DeleteJob godoc
// @Summary Delete a job opening
// @Tags Listings
// @Produce json
// @Param id path string true "Job ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /jobs/{id} [delete]
func (h *ListingHandler) DeleteJob(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteJob(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Scholarships godoc
// @Summary List scholarships
// @Tags Listings
// @Produce json
// @Param search query string false "Substring match over name and description"
// @Param country query string false "Filter by country"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /scholarships [get]
func (h *ListingHandler) Scholarships(c *gin.Context) {
	scholarships, pagination, err := h.service.ListScholarships(c.Request.Context(), listingFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scholarships, pagination)
}

// Scholarship godoc
// @Summary Get a scholarship listing
// @Tags Listings
// @Produce json
// @Param id path string true "Scholarship ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id} [get]
func (h *ListingHandler) Scholarship(c *gin.Context) {
	scholarship, err := h.service.GetScholarship(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scholarship, nil)
}

// CreateScholarship godoc
// @Summary Create a scholarship listing
// @Tags Listings
// @Accept json
// @Produce json
// @Param payload body service.ScholarshipRequest true "Scholarship payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /scholarships [post]
func (h *ListingHandler) CreateScholarship(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ScholarshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scholarship payload"))
		return
	}

	scholarship, err := h.service.CreateScholarship(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, scholarship)
}

// UpdateScholarship godoc
// @Summary Update a scholarship listing
// @Tags Listings
// @Accept json
// @Produce json
// @Param id path string true "Scholarship ID"
// @Param payload body service.ScholarshipRequest true "Scholarship payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id} [put]
func (h *ListingHandler) UpdateScholarship(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.ScholarshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid scholarship payload"))
		return
	}

	scholarship, err := h.service.UpdateScholarship(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, scholarship, nil)
}

// DeleteScholarship godoc
// @Summary Delete a scholarship listing
// @Tags Listings
// @Produce json
// @Param id path string true "Scholarship ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /scholarships/{id} [delete]
func (h *ListingHandler) DeleteScholarship(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.DeleteScholarship(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
