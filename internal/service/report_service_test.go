package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studybridge/studybridge-api/internal/dto"
	"github.com/studybridge/studybridge-api/internal/models"
	"github.com/studybridge/studybridge-api/internal/repository"
	appErrors "github.com/studybridge/studybridge-api/pkg/errors"
	"github.com/studybridge/studybridge-api/pkg/jobs"
)

type mockReportStore struct {
	jobsByID map[string]*models.ReportJob
}

func newMockReportStore() *mockReportStore {
	return &mockReportStore{jobsByID: make(map[string]*models.ReportJob)}
}

func (m *mockReportStore) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", len(m.jobsByID)+1)
	}
	m.jobsByID[job.ID] = job
	return nil
}

func (m *mockReportStore) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	if j, ok := m.jobsByID[id]; ok {
		return j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportStore) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	j, ok := m.jobsByID[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		j.Status = *params.Status
	}
	if params.ResultURL != nil {
		j.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		j.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		j.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockReportStore) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var list []models.ReportJob
	for _, j := range m.jobsByID {
		if j.Status == models.ReportStatusQueued {
			list = append(list, *j)
		}
	}
	return list, nil
}

func (m *mockReportStore) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return nil, nil
}

type mockDispatcher struct {
	enqueued []jobs.Job
	fail     bool
}

func (m *mockDispatcher) Enqueue(job jobs.Job) error {
	if m.fail {
		return fmt.Errorf("queue full")
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type mockGenerator struct {
	result *ExportResult
	err    error
}

func (m *mockGenerator) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func TestReportServiceCreateJobForAgent(t *testing.T) {
	store := newMockReportStore()
	queue := &mockDispatcher{}
	svc := NewReportService(store, queue, nil, nil, ReportServiceConfig{})

	claims := &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent}
	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeAgentSchedule,
		Format: models.ReportFormatCSV,
	}, claims)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "agent-1", store.jobsByID[resp.ID].Params.AgentID)
}

func TestReportServiceCreateJobAgentCannotExportOthers(t *testing.T) {
	svc := NewReportService(newMockReportStore(), &mockDispatcher{}, nil, nil, ReportServiceConfig{})

	other := "agent-2"
	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:    models.ReportTypePaymentLedger,
		Format:  models.ReportFormatPDF,
		AgentID: &other,
	}, &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobAdminNeedsAgentID(t *testing.T) {
	svc := NewReportService(newMockReportStore(), &mockDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeAgentSchedule,
		Format: models.ReportFormatCSV,
	}, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobRejectsBadType(t *testing.T) {
	svc := NewReportService(newMockReportStore(), &mockDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportType("bogus"),
		Format: models.ReportFormatCSV,
	}, &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailureMarksFailed(t *testing.T) {
	store := newMockReportStore()
	svc := NewReportService(store, &mockDispatcher{fail: true}, nil, nil, ReportServiceConfig{})

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeAgentSchedule,
		Format: models.ReportFormatCSV,
	}, &models.JWTClaims{UserID: "agent-1", Role: models.RoleAgent})
	require.Error(t, err)
	require.Len(t, store.jobsByID, 1)
	for _, job := range store.jobsByID {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatusEnforcesOwnership(t *testing.T) {
	store := newMockReportStore()
	store.jobsByID["job-1"] = &models.ReportJob{ID: "job-1", Status: models.ReportStatusQueued, CreatedBy: "agent-1"}
	svc := NewReportService(store, &mockDispatcher{}, nil, nil, ReportServiceConfig{})

	_, err := svc.GetStatus(context.Background(), "job-1", &models.JWTClaims{UserID: "agent-2", Role: models.RoleAgent})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	status, err := svc.GetStatus(context.Background(), "job-1", &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, status.Status)
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	store := newMockReportStore()
	store.jobsByID["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeAgentSchedule, Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &mockGenerator{result: &ExportResult{URL: "/api/reports/export/token"}}, 3, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.NoError(t, err)
	job := store.jobsByID["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "/api/reports/export/token", *job.ResultURL)
	assert.NotNil(t, job.FinishedAt)
}

func TestReportWorkerHandleRetriesThenFails(t *testing.T) {
	store := newMockReportStore()
	store.jobsByID["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeAgentSchedule, Status: models.ReportStatusQueued}
	worker := NewReportWorker(store, &mockGenerator{err: fmt.Errorf("render failed")}, 2, nil)

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, store.jobsByID["job-1"].Status)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, store.jobsByID["job-1"].Status)
}
