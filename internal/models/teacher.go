package models

import "time"

// Teacher may only be scheduled for lessons it has a qualification row for.
type Teacher struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	FullName      string    `db:"full_name" json:"full_name"`
	Subject       *string   `db:"subject" json:"subject,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// TeacherQualification links a teacher to a lesson it is allowed to teach.
type TeacherQualification struct {
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	LessonID  string    `db:"lesson_id" json:"lesson_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TeacherFilter describes query params for listing teachers.
type TeacherFilter struct {
	InstitutionID string
	Search        string
	Page          int
	PageSize      int
}
