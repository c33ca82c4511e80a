package models

import "time"

// Review is a student's rating of an agent. One review per (agent, student).
type Review struct {
	ID        string    `db:"id" json:"id"`
	AgentID   string    `db:"agent_id" json:"agent_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ReviewDetail joins a review with the author display name.
type ReviewDetail struct {
	Review
	StudentName string `db:"student_name" json:"student_name"`
}
