package models

import "time"

// Lesson is an immutable teaching unit referenced by demand records.
type Lesson struct {
	ID              string    `db:"id" json:"id"`
	InstitutionID   string    `db:"institution_id" json:"institution_id"`
	Name            string    `db:"name" json:"name"`
	SubjectCode     *string   `db:"subject_code" json:"subject_code,omitempty"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// LessonFilter describes query params for listing lessons.
type LessonFilter struct {
	InstitutionID string
	Search        string
	Page          int
	PageSize      int
}
