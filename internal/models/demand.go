package models

import "time"

// LessonDemand states how many weekly occurrences of a lesson a group needs.
type LessonDemand struct {
	ID            string    `db:"id" json:"id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	LessonID      string    `db:"lesson_id" json:"lesson_id"`
	ClassGroupID  *string   `db:"class_group_id" json:"class_group_id,omitempty"`
	StudyGroupID  *string   `db:"study_group_id" json:"study_group_id,omitempty"`
	Count         int       `db:"count" json:"count"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Group returns the demand's group as a tagged variant.
func (d LessonDemand) Group() (GroupRef, error) {
	return GroupRefFromColumns(d.ClassGroupID, d.StudyGroupID)
}
