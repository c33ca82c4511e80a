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

// UniversityRepository handles persistence of university listings.
type UniversityRepository struct {
	db *sqlx.DB
}

// NewUniversityRepository constructs the repository.
func NewUniversityRepository(db *sqlx.DB) *UniversityRepository {
	return &UniversityRepository{db: db}
}

const universityColumns = `id, name, country, city, description, tuition_per_year, website, ranking, active, created_by, created_at, updated_at`

// List returns active universities filtered by search/country with total count.
func (r *UniversityRepository) List(ctx context.Context, filter models.ListingFilter) ([]models.University, int, error) {
	base := `FROM universities WHERE active = TRUE`
	var args []interface{}

	if filter.Search != "" {
		base += fmt.Sprintf(" AND (name ILIKE $%d OR description ILIKE $%d)", len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Country != "" {
		base += fmt.Sprintf(" AND country = $%d", len(args)+1)
		args = append(args, filter.Country)
	}

	page, size := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s LIMIT %d OFFSET %d",
		universityColumns, base, listingOrder(filter, map[string]bool{"name": true, "country": true, "ranking": true, "created_at": true}), size, offset)

	var universities []models.University
	if err := r.db.SelectContext(ctx, &universities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list universities: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count universities: %w", err)
	}
	return universities, total, nil
}

// FindByID returns a university by identifier.
func (r *UniversityRepository) FindByID(ctx context.Context, id string) (*models.University, error) {
	query := fmt.Sprintf(`SELECT %s FROM universities WHERE id = $1`, universityColumns)
	var u models.University
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new university listing.
func (r *UniversityRepository) Create(ctx context.Context, u *models.University) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	const query = `INSERT INTO universities (id, name, country, city, description, tuition_per_year, website, ranking, active, created_by, created_at, updated_at)
VALUES (:id, :name, :country, :city, :description, :tuition_per_year, :website, :ranking, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		return fmt.Errorf("create university: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a university listing.
func (r *UniversityRepository) Update(ctx context.Context, u *models.University) error {
	u.UpdatedAt = time.Now().UTC()
	const query = `UPDATE universities SET name = :name, country = :country, city = :city, description = :description,
tuition_per_year = :tuition_per_year, website = :website, ranking = :ranking, active = :active, updated_at = :updated_at
WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		return fmt.Errorf("update university: %w", err)
	}
	return nil
}

// Delete removes a university listing.
func (r *UniversityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM universities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete university: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
