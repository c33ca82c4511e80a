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

// ScholarshipRepository handles persistence of scholarship listings.
type ScholarshipRepository struct {
	db *sqlx.DB
}

// NewScholarshipRepository constructs the repository.
func NewScholarshipRepository(db *sqlx.DB) *ScholarshipRepository {
	return &ScholarshipRepository{db: db}
}

const scholarshipColumns = `id, name, provider, country, description, amount, deadline, active, created_by, created_at, updated_at`

// List returns active scholarships filtered by search/country with total count.
func (r *ScholarshipRepository) List(ctx context.Context, filter models.ListingFilter) ([]models.Scholarship, int, error) {
	base := `FROM scholarships WHERE active = TRUE`
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (name ILIKE $%d OR provider ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Country != "" {
		base += fmt.Sprintf(" AND country = $%d", len(args)+1)
		args = append(args, filter.Country)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d",
		scholarshipColumns, base, listingOrder(filter, map[string]bool{"name": true, "country": true, "deadline": true, "amount": true, "created_at": true}), size, offset)

	var scholarships []models.Scholarship
	if err := r.db.SelectContext(ctx, &scholarships, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list scholarships: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count scholarships: %w", err)
	}
	return scholarships, total, nil
}

// FindByID returns a scholarship by identifier.
func (r *ScholarshipRepository) FindByID(ctx context.Context, id string) (*models.Scholarship, error) {
	query := fmt.Sprintf(`SELECT %s FROM scholarships WHERE id = $1`, scholarshipColumns)
	var s models.Scholarship
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create inserts a new scholarship listing.
func (r *ScholarshipRepository) Create(ctx context.Context, s *models.Scholarship) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
	const query = `INSERT INTO scholarships (id, name, provider, country, description, amount, deadline, active, created_by, created_at, updated_at)
VALUES (:id, :name, :provider, :country, :description, :amount, :deadline, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("create scholarship: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a scholarship listing.
func (r *ScholarshipRepository) Update(ctx context.Context, s *models.Scholarship) error {
	s.UpdatedAt = time.Now().UTC()
	const query = `UPDATE scholarships SET name = :name, provider = :provider, country = :country, description = :description,
amount = :amount, deadline = :deadline, active = :active, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("update scholarship: %w", err)
	}
	return nil
}

// Delete removes a scholarship listing.
func (r *ScholarshipRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM scholarships WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete scholarship: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
