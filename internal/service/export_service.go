package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/pkg/export"
	"github.com/studybridge/studybridge-api/pkg/storage"
)

type reportAppointmentSource interface {
	ListForUser(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, error)
}

type reportPaymentSource interface {
	ListForAgent(ctx context.Context, agentID string) ([]models.PaymentDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	appointments reportAppointmentSource
	payments     reportPaymentSource
	storage      fileStorage
	csv          csvRenderer
	pdf          pdfRenderer
	signer       *storage.SignedURLSigner
	logger       *zap.Logger
	cfg          ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(appointments reportAppointmentSource, payments reportPaymentSource, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		appointments: appointments,
		payments:     payments,
		storage:      storage,
		csv:          csv,
		pdf:          pdf,
		signer:       signer,
		logger:       logger,
		cfg:          cfg,
	}
}

// Generate builds dataset according to job definition and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api"
	}
	signedURL = fmt.Sprintf("%s/reports/export/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	agentPart := sanitizeFilename(job.Params.AgentID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), agentPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ReportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ReportTypeAgentSchedule:
		return s.buildScheduleDataset(ctx, job.Params)
	case models.ReportTypePaymentLedger:
		return s.buildLedgerDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported report type %s", job.Type)
	}
}

func (s *ExportService) buildScheduleDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	appts, err := s.appointments.ListForUser(ctx, models.AppointmentFilter{AgentID: params.AgentID})
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(appts))
	for _, appt := range appts {
		if !withinRange(appt.ScheduledAt, params.DateFrom, params.DateTo) {
			continue
		}
		dataRows = append(dataRows, map[string]string{
			"Scheduled At": appt.ScheduledAt.UTC().Format(time.RFC3339),
			"Student":      appt.StudentName,
			"Topic":        string(appt.Topic),
			"Status":       string(appt.Status),
			"Details":      appt.Details,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Scheduled At", "Student", "Topic", "Status", "Details"},
		Rows:    dataRows,
	}
	return dataset, "Agent Schedule", nil
}

func (s *ExportService) buildLedgerDataset(ctx context.Context, params models.ReportJobParams) (export.Dataset, string, error) {
	payments, err := s.payments.ListForAgent(ctx, params.AgentID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	dataRows := make([]map[string]string, 0, len(payments))
	for _, payment := range payments {
		if !withinRange(payment.PaidOn, params.DateFrom, params.DateTo) {
			continue
		}
		dataRows = append(dataRows, map[string]string{
			"Paid On":     payment.PaidOn.UTC().Format("2006-01-02"),
			"Student":     payment.StudentName,
			"Amount":      fmt.Sprintf("%.2f", payment.Amount),
			"Institution": payment.Institution,
			"Status":      string(payment.Status),
			"Description": payment.Description,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Paid On", "Student", "Amount", "Institution", "Status", "Description"},
		Rows:    dataRows,
	}
	return dataset, "Payment Ledger", nil
}

func withinRange(ts time.Time, from, to *time.Time) bool {
	if from != nil && ts.Before(*from) {
		return false
	}
	if to != nil && ts.After(*to) {
		return false
	}
	return true
}
