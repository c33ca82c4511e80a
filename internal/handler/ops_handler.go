package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studybridge/studybridge-api/internal/service"
	"github.com/studybridge/studybridge-api/pkg/response"
)

// OpsHandler exposes the admin runtime metrics snapshot.
type OpsHandler struct {
	metrics *service.MetricsService
}

// NewOpsHandler constructs handler.
func NewOpsHandler(metrics *service.MetricsService) *OpsHandler {
	return &OpsHandler{metrics: metrics}
}

// System godoc
// @Summary Runtime metrics snapshot
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ops/metrics [get]
func (h *OpsHandler) System(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
