package models

import "time"

// ScheduleStatus represents lifecycle phases for schedules.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "draft"
	ScheduleStatusGenerated ScheduleStatus = "generated"
	ScheduleStatusActive    ScheduleStatus = "active"
)

// Schedule owns an ordered set of generated entries for one institution.
type Schedule struct {
	ID             string         `db:"id" json:"id"`
	InstitutionID  string         `db:"institution_id" json:"institution_id"`
	Name           string         `db:"name" json:"name"`
	AcademicPeriod *string        `db:"academic_period" json:"academic_period,omitempty"`
	Status         ScheduleStatus `db:"status" json:"status"`
	GeneratedAt    *time.Time     `db:"generated_at" json:"generated_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`

	Entries []ScheduleEntry `db:"-" json:"entries,omitempty"`
}

// ScheduleEntry pins one lesson occurrence to a (teacher, room, slot, group,
// week) tuple. WeekNumber nil applies every week; a concrete value pins the
// occurrence to that week of the rotation.
type ScheduleEntry struct {
	ID            string    `db:"id" json:"id"`
	ScheduleID    string    `db:"schedule_id" json:"schedule_id"`
	InstitutionID string    `db:"institution_id" json:"institution_id"`
	LessonID      string    `db:"lesson_id" json:"lesson_id"`
	TeacherID     string    `db:"teacher_id" json:"teacher_id"`
	RoomID        string    `db:"room_id" json:"room_id"`
	TimeSlotID    string    `db:"time_slot_id" json:"time_slot_id"`
	ClassGroupID  *string   `db:"class_group_id" json:"class_group_id,omitempty"`
	StudyGroupID  *string   `db:"study_group_id" json:"study_group_id,omitempty"`
	WeekNumber    *int      `db:"week_number" json:"week_number,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Group returns the entry's group as a tagged variant.
func (e ScheduleEntry) Group() (GroupRef, error) {
	return GroupRefFromColumns(e.ClassGroupID, e.StudyGroupID)
}
