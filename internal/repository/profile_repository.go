package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/studybridge/studybridge-api/internal/models"
)

// ProfileRepository handles student and agent profile persistence.
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository constructs the repository.
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindStudentByUserID returns the student profile owned by a user.
func (r *ProfileRepository) FindStudentByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	const query = `SELECT id, user_id, nationality, current_country, education_level, field_of_study, target_countries, phone, bio, created_at, updated_at
FROM student_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertStudent creates or replaces the mutable fields of a student profile.
func (r *ProfileRepository) UpsertStudent(ctx context.Context, profile *models.StudentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO student_profiles (id, user_id, nationality, current_country, education_level, field_of_study, target_countries, phone, bio, created_at, updated_at)
VALUES (:id, :user_id, :nationality, :current_country, :education_level, :field_of_study, :target_countries, :phone, :bio, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET
nationality = EXCLUDED.nationality, current_country = EXCLUDED.current_country,
education_level = EXCLUDED.education_level, field_of_study = EXCLUDED.field_of_study,
target_countries = EXCLUDED.target_countries, phone = EXCLUDED.phone, bio = EXCLUDED.bio,
updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert student profile: %w", err)
	}
	return nil
}

// FindAgentByUserID returns the agent profile owned by a user.
func (r *ProfileRepository) FindAgentByUserID(ctx context.Context, userID string) (*models.AgentProfile, error) {
	const query = `SELECT id, user_id, agency_name, bio, specialties, countries, phone, verified, avg_rating, review_count, created_at, updated_at
FROM agent_profiles WHERE user_id = $1 LIMIT 1`
	var profile models.AgentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpsertAgent creates or replaces the mutable fields of an agent profile.
// The verified flag and rating aggregate are never written from here.
func (r *ProfileRepository) UpsertAgent(ctx context.Context, profile *models.AgentProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	const query = `INSERT INTO agent_profiles (id, user_id, agency_name, bio, specialties, countries, phone, verified, avg_rating, review_count, created_at, updated_at)
VALUES (:id, :user_id, :agency_name, :bio, :specialties, :countries, :phone, FALSE, 0, 0, :created_at, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET
agency_name = EXCLUDED.agency_name, bio = EXCLUDED.bio, specialties = EXCLUDED.specialties,
countries = EXCLUDED.countries, phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, profile); err != nil {
		return fmt.Errorf("upsert agent profile: %w", err)
	}
	return nil
}

// SetAgentVerified toggles the admin-controlled verification badge.
func (r *ProfileRepository) SetAgentVerified(ctx context.Context, userID string, verified bool) error {
	const query = `UPDATE agent_profiles SET verified = $1, updated_at = $2 WHERE user_id = $3`
	res, err := r.db.ExecContext(ctx, query, verified, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("set agent verified: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAgents returns the public agent directory with total count.
func (r *ProfileRepository) ListAgents(ctx context.Context, filter models.AgentFilter) ([]models.AgentDirectoryEntry, int, error) {
	base := `FROM agent_profiles ap
JOIN users u ON u.id = ap.user_id AND u.active = TRUE`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(u.full_name ILIKE $%d OR ap.agency_name ILIKE $%d OR ap.specialties ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Country != "" {
		conditions = append(conditions, fmt.Sprintf("ap.countries ILIKE $%d", len(args)+1))
		args = append(args, "%"+filter.Country+"%")
	}
	if filter.Verified != nil {
		conditions = append(conditions, fmt.Sprintf("ap.verified = $%d", len(args)+1))
		args = append(args, *filter.Verified)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT ap.id, ap.user_id, ap.agency_name, ap.bio, ap.specialties, ap.countries, ap.phone, ap.verified, ap.avg_rating, ap.review_count, ap.created_at, ap.updated_at,
u.full_name, u.email
%s ORDER BY ap.avg_rating DESC, ap.review_count DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var agents []models.AgentDirectoryEntry
	if err := r.db.SelectContext(ctx, &agents, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list agents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count agents: %w", err)
	}
	return agents, total, nil
}
