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

// ProfileHandler exposes profile and agent directory endpoints.
type ProfileHandler struct {
	service *service.ProfileService
}

// NewProfileHandler constructs handler.
func NewProfileHandler(svc *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: svc}
}

// StudentMe godoc
// @Summary Get the calling student's profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profiles/student/me [get]
func (h *ProfileHandler) StudentMe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.service.GetStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateStudentMe godoc
// @Summary Update the calling student's profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body service.UpdateStudentProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profiles/student/me [put]
func (h *ProfileHandler) UpdateStudentMe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateStudentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	profile, err := h.service.UpdateStudent(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// AgentMe godoc
// @Summary Get the calling agent's profile
// @Tags Profiles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /profiles/agent/me [get]
func (h *ProfileHandler) AgentMe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.service.GetAgent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateAgentMe godoc
// @Summary Update the calling agent's profile
// @Tags Profiles
// @Accept json
// @Produce json
// @Param payload body service.UpdateAgentProfileRequest true "Profile fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /profiles/agent/me [put]
func (h *ProfileHandler) UpdateAgentMe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateAgentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	profile, err := h.service.UpdateAgent(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// Agents godoc
// @Summary Browse the public agent directory
// @Tags Profiles
// @Produce json
// @Param search query string false "Substring match over agency name and bio"
// @Param country query string false "Filter by served country"
// @Param verified query boolean false "Filter by verification badge"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /agents [get]
func (h *ProfileHandler) Agents(c *gin.Context) {
	filter := models.AgentFilter{
		Search:  c.Query("search"),
		Country: c.Query("country"),
	}
	if raw := c.Query("verified"); raw != "" {
		if verified, err := strconv.ParseBool(raw); err == nil {
			filter.Verified = &verified
		}
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", "20"))

	agents, pagination, err := h.service.ListAgents(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, agents, pagination)
}

// Agent godoc
// @Summary Get an agent's public profile
// @Tags Profiles
// @Produce json
// @Param agentId path string true "Agent ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /agents/{agentId} [get]
func (h *ProfileHandler) Agent(c *gin.Context) {
	profile, err := h.service.GetAgent(c.Request.Context(), c.Param("agentId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// VerifyAgent godoc
// @Summary Toggle an agent's verification badge
// @Tags Profiles
// @Accept json
// @Produce json
// @Param agentId path string true "Agent ID"
// @Param payload body service.VerifyAgentRequest true "Verification flag"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /agents/{agentId}/verify [put]
func (h *ProfileHandler) VerifyAgent(c *gin.Context) {
	var req service.VerifyAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid verification payload"))
		return
	}

	if err := h.service.VerifyAgent(c.Request.Context(), c.Param("agentId"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
