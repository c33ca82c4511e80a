package models

import "time"

// University is a study destination listing managed by an agent.
type University struct {
	ID            string    `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	Country       string    `db:"country" json:"country"`
	City          *string   `db:"city" json:"city,omitempty"`
	Description   string    `db:"description" json:"description"`
	TuitionPerYr  *float64  `db:"tuition_per_year" json:"tuition_per_year,omitempty"`
	Website       *string   `db:"website" json:"website,omitempty"`
	Ranking       *int      `db:"ranking" json:"ranking,omitempty"`
	Active        bool      `db:"active" json:"active"`
	CreatedBy     string    `db:"created_by" json:"created_by"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Job is an overseas employment listing managed by an agent.
type Job struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Company     string    `db:"company" json:"company"`
	Country     string    `db:"country" json:"country"`
	Description string    `db:"description" json:"description"`
	SalaryMin   *float64  `db:"salary_min" json:"salary_min,omitempty"`
	SalaryMax   *float64  `db:"salary_max" json:"salary_max,omitempty"`
	Deadline    *time.Time `db:"deadline" json:"deadline,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedBy   string    `db:"created_by" json:"created_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Scholarship is a funding opportunity listing managed by an agent.
type Scholarship struct {
	ID          string     `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Provider    string     `db:"provider" json:"provider"`
	Country     string     `db:"country" json:"country"`
	Description string     `db:"description" json:"description"`
	Amount      *float64   `db:"amount" json:"amount,omitempty"`
	Deadline    *time.Time `db:"deadline" json:"deadline,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// ListingFilter narrows public listing queries.
type ListingFilter struct {
	Search    string
	Country   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
