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

// JobRepository handles persistence of overseas job listings.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository constructs the repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

const jobColumns = `id, title, company, country, description, salary_min, salary_max, deadline, active, created_by, created_at, updated_at`

// List returns active job listings filtered by search/country with total count.
func (r *JobRepository) List(ctx context.Context, filter models.ListingFilter) ([]models.Job, int, error) {
	base := `FROM jobs WHERE active = TRUE`
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (title ILIKE $%d OR company ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Country != "" {
		base += fmt.Sprintf(" AND country = $%d", len(args)+1)
		args = append(args, filter.Country)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d",
		jobColumns, base, listingOrder(filter, map[string]bool{"title": true, "country": true, "deadline": true, "created_at": true}), size, offset)

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}
	return jobs, total, nil
}

// FindByID returns a job listing by identifier.
func (r *JobRepository) FindByID(ctx context.Context, id string) (*models.Job, error) {
	query := fmt.Sprintf(`SELECT %s FROM jobs WHERE id = $1`, jobColumns)
	var j models.Job
	if err := r.db.GetContext(ctx, &j, query, id); err != nil {
		return nil, err
	}
	return &j, nil
}

// Create inserts a new job listing.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	j.UpdatedAt = now
	const query = `INSERT INTO jobs (id, title, company, country, description, salary_min, salary_max, deadline, active, created_by, created_at, updated_at)
VALUES (:id, :title, :company, :country, :description, :salary_min, :salary_max, :deadline, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, j); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a job listing.
func (r *JobRepository) Update(ctx context.Context, j *models.Job) error {
	j.UpdatedAt = time.Now().UTC()
	const query = `UPDATE jobs SET title = :title, company = :company, country = :country, description = :description,
salary_min = :salary_min, salary_max = :salary_max, deadline = :deadline, active = :active, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, j); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// Delete removes a job listing.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
