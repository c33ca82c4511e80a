package dto

import (
	"time"

	"github.com/studybridge/studybridge-api/internal/models"
)

// ReportRequest captures POST /reports/generate payload.
type ReportRequest struct {
	Type     models.ReportType   `json:"type"`
	AgentID  *string             `json:"agentId,omitempty"`
	Format   models.ReportFormat `json:"format"`
	DateFrom *time.Time          `json:"dateFrom,omitempty"`
	DateTo   *time.Time          `json:"dateTo,omitempty"`
}

// ReportJobResponse is returned after enqueueing a report.
type ReportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ReportStatus `json:"status"`
}

// ReportStatusResponse exposes job progress metadata.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
