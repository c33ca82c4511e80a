package models

import "time"

// StudentProfile extends a STUDENT user with study-abroad details.
type StudentProfile struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Nationality     *string   `db:"nationality" json:"nationality,omitempty"`
	CurrentCountry  *string   `db:"current_country" json:"current_country,omitempty"`
	EducationLevel  *string   `db:"education_level" json:"education_level,omitempty"`
	FieldOfStudy    *string   `db:"field_of_study" json:"field_of_study,omitempty"`
	TargetCountries *string   `db:"target_countries" json:"target_countries,omitempty"`
	Phone           *string   `db:"phone" json:"phone,omitempty"`
	Bio             *string   `db:"bio" json:"bio,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// AgentProfile extends an AGENT user with agency details and the review
// aggregate maintained by the review ledger.
type AgentProfile struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	AgencyName  *string   `db:"agency_name" json:"agency_name,omitempty"`
	Bio         *string   `db:"bio" json:"bio,omitempty"`
	Specialties *string   `db:"specialties" json:"specialties,omitempty"`
	Countries   *string   `db:"countries" json:"countries,omitempty"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Verified    bool      `db:"verified" json:"verified"`
	AvgRating   float64   `db:"avg_rating" json:"avg_rating"`
	ReviewCount int       `db:"review_count" json:"review_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AgentDirectoryEntry joins an agent profile with its user display fields.
type AgentDirectoryEntry struct {
	AgentProfile
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// AgentFilter narrows the public agent directory.
type AgentFilter struct {
	Search   string
	Country  string
	Verified *bool
	Page     int
	PageSize int
}
